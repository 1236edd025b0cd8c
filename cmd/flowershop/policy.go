package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"flowershop-gateway/internal/config"
	"flowershop-gateway/middleware/ratelimit/domain"

	"github.com/spf13/cobra"
)

func policyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Work with rate limit policies",
	}
	cmd.AddCommand(&cobra.Command{
		Use:     "check <policy>...",
		Short:   `Parse policies such as "5/m;20/h" and print their windows`,
		Args:    cobra.MinimumNArgs(1),
		Example: `  flowershop policy check "5/m;20/h" "1/s;10/m;100/h"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "POLICY\tWINDOWS\tRESULT")

			invalid := 0
			for _, raw := range args {
				p, err := domain.ParsePolicy(raw)
				if err != nil {
					invalid++
					fmt.Fprintf(w, "%s\t-\t%v\n", raw, err)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\tok\n", raw, describeWindows(p))
			}
			_ = w.Flush()

			if invalid > 0 {
				return fmt.Errorf("%d of %d policies are invalid", invalid, len(args))
			}
			return nil
		},
	})
	return cmd
}

func describeWindows(p domain.Policy) string {
	parts := make([]string, len(p))
	for i, win := range p {
		parts[i] = fmt.Sprintf("%d per %s", win.MaxRequests, win.Duration())
	}
	return strings.Join(parts, ", ")
}

func routesCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Work with the rate limited route table",
	}
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the route table (RATE_ROUTES_FILE or the built-in table)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				file = cfg.Rate.RoutesFile
			}

			routes, err := config.LoadRoutes(file)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tPATH\tSTRATEGY\tPOLICY")
			for _, r := range routes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Method, r.Path, r.Rule.Strategy, r.Rule.Policy)
			}
			_ = w.Flush()

			source := file
			if source == "" {
				source = "built-in table"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d routes OK (%s)\n", len(routes), source)
			return nil
		},
	}
	validate.Flags().StringVarP(&file, "file", "f", "", "route table YAML file")
	cmd.AddCommand(validate)
	return cmd
}
