package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"flowershop-gateway/internal/config"
	"flowershop-gateway/middleware/ratelimit/domain"
	"flowershop-gateway/middleware/ratelimit/infra"

	"github.com/spf13/cobra"
)

func limiterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limiter",
		Short: "Inspect or reset rate limit keys in Redis",
	}
	cmd.AddCommand(limiterInspectCmd(), limiterResetCmd())
	return cmd
}

type keyFlags struct {
	endpoint   string
	identifier string
}

func (k *keyFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&k.endpoint, "endpoint", "", "request path, e.g. /users/login")
	cmd.Flags().StringVar(&k.identifier, "identifier", "", "client IP or user id")
	_ = cmd.MarkFlagRequired("endpoint")
	_ = cmd.MarkFlagRequired("identifier")
}

func (k *keyFlags) validate() error {
	if k.endpoint == "" || k.identifier == "" {
		return errors.New("--endpoint and --identifier are required")
	}
	return nil
}

func limiterInspectCmd() *cobra.Command {
	var key keyFlags
	var policy string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show per-window usage of a rate key without recording an attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := key.validate(); err != nil {
				return err
			}
			windows, err := domain.ParsePolicy(policy)
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			rdb := newRedisClient(cfg.Redis)
			defer func() { _ = rdb.Close() }()

			usage, err := infra.NewRedisLimiter(rdb).Usage(cmd.Context(), key.identifier, key.endpoint, windows)
			if err != nil {
				return fmt.Errorf("inspect %s: %w", domain.RateKey(key.endpoint, key.identifier), err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "key:     %s\n", usage.Key)
			fmt.Fprintf(out, "records: %d\n", usage.Records)
			fmt.Fprintf(out, "ttl:     %s\n", formatTTL(usage.TTL))

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WINDOW\tCOUNT\tLIMIT\tSTATUS")
			for _, u := range usage.Windows {
				status := "ok"
				if u.Exceeded() {
					status = "limited"
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", u.Window, u.Count, u.Window.MaxRequests, status)
			}
			return w.Flush()
		},
	}
	key.bind(cmd)
	cmd.Flags().StringVar(&policy, "policy", "", `policy to evaluate, e.g. "5/m;20/h"`)
	_ = cmd.MarkFlagRequired("policy")
	return cmd
}

func limiterResetCmd() *cobra.Command {
	var key keyFlags

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete a rate key, clearing its history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := key.validate(); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			rdb := newRedisClient(cfg.Redis)
			defer func() { _ = rdb.Close() }()

			rk := domain.RateKey(key.endpoint, key.identifier)
			deleted, err := infra.NewRedisLimiter(rdb).Reset(cmd.Context(), key.identifier, key.endpoint)
			if err != nil {
				return fmt.Errorf("reset %s: %w", rk, err)
			}
			if deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", rk)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s not found\n", rk)
			}
			return nil
		},
	}
	key.bind(cmd)
	return cmd
}

// formatTTL segue a convenção do Redis: -2 chave ausente, -1 sem expiração.
func formatTTL(ttl time.Duration) string {
	switch ttl {
	case -2:
		return "key not found"
	case -1:
		return "no expiry"
	}
	return ttl.String()
}
