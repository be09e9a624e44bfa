package watch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RunFunc regenerates the templates. It is called once at start and after
// every debounced burst of file events.
type RunFunc func(ctx context.Context) (*RunResult, error)

// RunResult is the outcome of a single regeneration.
type RunResult struct {
	// Definitions is the number of XRDs loaded.
	Definitions int
	// Templates is the number of templates written.
	Templates int
	// Failures lists per-version transformation errors.
	Failures []string
	// Changes are the template changes against the previous run.
	Changes []Change
}

// Options configures the watch behaviour.
type Options struct {
	// Dir is the XRD directory to watch recursively.
	Dir string

	// ExtraFiles are additional files to watch, such as the config file.
	ExtraFiles []string

	// Debounce is the quiet period before triggering a rebuild.
	Debounce time.Duration

	// Logger is used for structured logging.
	Logger *slog.Logger

	// Out receives user-facing status lines.
	Out io.Writer
}

// DefaultOptions returns sensible default watch options.
func DefaultOptions() Options {
	return Options{
		Debounce: 500 * time.Millisecond,
		Logger:   slog.Default(),
		Out:      os.Stderr,
	}
}

// Run starts the file watcher and blocks until the context is cancelled
// or a SIGINT/SIGTERM signal is received. Regeneration errors are reported
// and the watcher keeps running.
func Run(ctx context.Context, opts Options, runFn RunFunc) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Out == nil {
		opts.Out = io.Discard
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, opts.Dir); err != nil {
		return fmt.Errorf("watching directory: %w", err)
	}

	for _, f := range opts.ExtraFiles {
		abs, absErr := filepath.Abs(f)
		if absErr != nil {
			return fmt.Errorf("resolving extra file %q: %w", f, absErr)
		}

		if err := watcher.Add(abs); err != nil {
			return fmt.Errorf("watching file %q: %w", abs, err)
		}
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(opts.Out, "watching %s (debounce=%s)\n", opts.Dir, opts.Debounce)

	doRun(sigCtx, opts, runFn, "(initial)")

	debouncer := NewDebouncer(opts.Debounce, func(paths []string) {
		doRun(sigCtx, opts, runFn, describeTrigger(paths))
	})
	defer debouncer.Stop()

	for {
		select {
		case <-sigCtx.Done():
			fmt.Fprintln(opts.Out, "\nshutting down watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if addErr := addRecursive(watcher, event.Name); addErr != nil {
						opts.Logger.Warn("cannot watch new directory",
							slog.String("path", event.Name), slog.String("error", addErr.Error()))
					}

					continue
				}
			}

			if !isRelevant(event) {
				continue
			}

			opts.Logger.Debug("file event", slog.String("path", event.Name), slog.String("op", event.Op.String()))
			debouncer.Trigger(event.Name)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			opts.Logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// doRun executes a single regeneration and prints the status lines.
func doRun(ctx context.Context, opts Options, runFn RunFunc, trigger string) {
	now := time.Now().Format("15:04:05")

	result, err := runFn(ctx)
	if err != nil {
		fmt.Fprintf(opts.Out, "[%s] %s -> ERROR: %v\n", now, trigger, err)
		return
	}

	fmt.Fprintf(opts.Out, "[%s] %s -> OK (%d definitions, %d templates)\n",
		now, trigger, result.Definitions, result.Templates)

	for _, f := range result.Failures {
		fmt.Fprintf(opts.Out, "  failed: %s\n", f)
	}

	if len(result.Changes) > 0 {
		fmt.Fprintf(opts.Out, "  templates: %s\n", Summarize(result.Changes))

		for _, c := range result.Changes {
			fmt.Fprintf(opts.Out, "    %s\n", c)
		}
	}
}

func describeTrigger(paths []string) string {
	if len(paths) == 1 {
		return paths[0]
	}

	return fmt.Sprintf("%s (+%d more)", paths[0], len(paths)-1)
}

// addRecursive walks root and adds all non-hidden directories to the
// watcher.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}

		return watcher.Add(path)
	})
}

// isRelevant keeps write, create, remove and rename events on YAML and JSON
// files, ignoring hidden and editor temporary files.
func isRelevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)

	if strings.HasPrefix(name, ".") && !isConfigFile(name) {
		return false
	}

	if strings.HasSuffix(name, "~") || strings.HasPrefix(name, "#") {
		return false
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}

func isConfigFile(name string) bool {
	return strings.HasPrefix(name, ".xrd2template.")
}
