package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var completionShells = []string{"bash", "zsh", "fish", "powershell"}

func newCompletionCommand() *cobra.Command {
	var noDescriptions bool

	cmd := &cobra.Command{
		Use:   "completion <shell>",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script for bash, zsh, fish or powershell.

  source <(xrd2template completion bash)
  xrd2template completion zsh > "${fpath[1]}/_xrd2template"
  xrd2template completion fish > ~/.config/fish/completions/xrd2template.fish
  xrd2template completion powershell | Out-String | Invoke-Expression`,
		// Completion needs no config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Args:              cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs:         completionShells,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeCompletion(cmd.Root(), cmd, args[0], !noDescriptions)
		},
	}

	cmd.Flags().BoolVar(&noDescriptions, "no-descriptions", false, "omit completion descriptions")

	return cmd
}

func writeCompletion(root, cmd *cobra.Command, shell string, descriptions bool) error {
	w := cmd.OutOrStdout()

	switch shell {
	case "bash":
		return root.GenBashCompletionV2(w, descriptions)
	case "zsh":
		if descriptions {
			return root.GenZshCompletion(w)
		}

		return root.GenZshCompletionNoDesc(w)
	case "fish":
		return root.GenFishCompletion(w, descriptions)
	case "powershell":
		if descriptions {
			return root.GenPowerShellCompletionWithDesc(w)
		}

		return root.GenPowerShellCompletion(w)
	default:
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("unsupported shell %q", shell)}
	}
}
