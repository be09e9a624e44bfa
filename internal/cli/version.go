package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/xrd2template/internal/version"
)

type versionOptions struct {
	jsonOutput bool
	short      bool
	check      string
}

func newVersionCommand() *cobra.Command {
	opts := &versionOptions{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Display the version, git commit, build date, Go version and platform.

--check tests the binary against a semver constraint, the same check the
required-version setting performs, and exits with code 2 when it is not
satisfied. Development builds satisfy every constraint.`,
		Args: cobra.NoArgs,
		// Version needs no config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVersion(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.jsonOutput, "json", false, "output version info as JSON")
	f.BoolVar(&opts.short, "short", false, "print the version number only")
	f.StringVar(&opts.check, "check", "", "exit non-zero unless the version satisfies this constraint")

	cmd.MarkFlagsMutuallyExclusive("json", "short")

	return cmd
}

func runVersion(cmd *cobra.Command, opts *versionOptions) error {
	info := version.GetInfo()
	w := cmd.OutOrStdout()

	if opts.check != "" {
		if err := info.Check(opts.check); err != nil {
			return &ExitError{Code: ExitUsage, Err: err}
		}
	}

	switch {
	case opts.jsonOutput:
		j, err := info.JSON()
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(w, j)

		return err
	case opts.short:
		_, err := fmt.Fprintln(w, info.Version)
		return err
	default:
		_, err := fmt.Fprintln(w, info.String())
		return err
	}
}
