package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/xrd2template/internal/loader"
	"github.com/hupe1980/xrd2template/internal/output"
)

type lintOptions struct {
	strict bool
}

func newLintCommand() *cobra.Command {
	opts := &lintOptions{}

	cmd := &cobra.Command{
		Use:   "lint <template-file>...",
		Short: "Check scaffolder templates for structural problems",
		Long: `Lint checks Template documents for missing required fields, invalid
names and tags, duplicate step ids, and expressions that reference
undeclared parameters or steps that have not run yet.

Each file may hold several documents. Use "-" to read standard input.
Errors exit with code 7; --strict also fails on warnings.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "treat warnings as errors")

	return cmd
}

func runLint(cmd *cobra.Command, files []string, opts *lintOptions) error {
	w := cmd.OutOrStdout()

	var errCount, warnCount, docCount int

	for _, file := range files {
		data, err := readInput(cmd.InOrStdin(), file)
		if err != nil {
			return &ExitError{Code: ExitLoad, Err: err}
		}

		results, err := output.LintStream(data)
		if err != nil {
			return &ExitError{Code: ExitValidation, Err: fmt.Errorf("%s: %w", file, err)}
		}

		for _, res := range results {
			docCount++
			errCount += len(res.Errors())
			warnCount += len(res.Warnings())

			for _, f := range res.Findings {
				_, _ = fmt.Fprintf(w, "%s:%d %s %s\n", file, res.Line, displayName(res.Name), f.Error())
			}
		}
	}

	_, _ = fmt.Fprintf(w, "%d document(s): %d error(s), %d warning(s)\n", docCount, errCount, warnCount)

	if errCount > 0 || (opts.strict && warnCount > 0) {
		return &ExitError{
			Code: ExitValidation,
			Err:  fmt.Errorf("lint failed with %d error(s) and %d warning(s)", errCount, warnCount),
		}
	}

	return nil
}

func readInput(stdin io.Reader, ref string) ([]byte, error) {
	if ref == loader.RefStdin {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}

		return data, nil
	}

	data, err := os.ReadFile(ref) //nolint:gosec // ref is a user-provided CLI arg
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ref, err)
	}

	return data, nil
}

func displayName(name string) string {
	if name == "" {
		return "<unnamed>"
	}

	return name
}
