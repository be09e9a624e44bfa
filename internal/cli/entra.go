package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/xrd2template/internal/config"
	"github.com/hupe1980/xrd2template/internal/logging"
	"github.com/hupe1980/xrd2template/internal/msgraph"
)

func newEntraCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entra",
		Short: "Query Microsoft Entra ID",
		Long: `Commands that look up Entra ID users and groups through Microsoft Graph,
for example to choose template owners.

Credentials come from the entra section of the config file or from the
XRD2TEMPLATE_ENTRA_TENANT_ID, XRD2TEMPLATE_ENTRA_CLIENT_ID and
XRD2TEMPLATE_ENTRA_CLIENT_SECRET environment variables.`,
	}

	cmd.AddCommand(newEntraSearchCommand())

	return cmd
}

type entraSearchOptions struct {
	kind       string
	limit      int
	jsonOutput bool
}

func newEntraSearchCommand() *cobra.Command {
	opts := &entraSearchOptions{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search users or groups by display name or mail prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntraSearch(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.kind, "kind", string(msgraph.KindGroup), "entity kind: user, group")
	f.IntVar(&opts.limit, "limit", 25, "maximum number of results")
	f.BoolVar(&opts.jsonOutput, "json", false, "output results as JSON")

	return cmd
}

func runEntraSearch(cmd *cobra.Command, query string, opts *entraSearchOptions) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)

	kind := msgraph.Kind(opts.kind)
	if kind != msgraph.KindUser && kind != msgraph.KindGroup {
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("invalid kind %q: must be one of user, group", opts.kind)}
	}

	var entra msgraph.Config
	if cfg.Template != nil {
		entra = cfg.Template.Entra
	}

	client, err := msgraph.NewClient(entra, msgraph.WithLogger(logging.FromContext(ctx)))
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}

	entities, err := client.Search(ctx, kind, query, opts.limit)
	if err != nil {
		if errors.Is(err, msgraph.ErrUnauthorized) {
			return &ExitError{Code: ExitUsage, Err: err}
		}

		return &ExitError{Code: ExitGeneric, Err: err}
	}

	w := cmd.OutOrStdout()

	if opts.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(entities)
	}

	if len(entities) == 0 {
		_, _ = fmt.Fprintln(w, "no matches")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tMAIL")

	for _, e := range entities {
		mail := e.Mail
		if mail == "" {
			mail = e.UserPrincipalName
		}

		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ID, e.DisplayName, mail)
	}

	return tw.Flush()
}
