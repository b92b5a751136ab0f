package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ugandavote/betclient"
	"github.com/ugandavote/betclient/internal/journal"
	"github.com/ugandavote/betclient/internal/version"
)

var errNoJournal = errors.New("journal is disabled: set journal.driver to sqlite or postgres")

type journalLister interface {
	List(ctx context.Context, q journal.Query) (journal.Result, error)
}

func (a *app) journalCmd() *cobra.Command {
	var q journal.Query
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recently submitted bets, payments and admin changes",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, c *betclient.Client, _ []string) error {
			l, ok := c.Journal().(journalLister)
			if !ok {
				return errNoJournal
			}
			res, err := l.List(ctx, q)
			if err != nil {
				return err
			}
			if len(res.Data) == 0 {
				fmt.Fprintln(a.out, "Journal is empty")
				return nil
			}
			tw := newTable(a.out, "WHEN", "OPERATION", "REQUEST", "STATUS", "ERROR")
			for _, e := range res.Data {
				row(tw, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Operation, e.Method+" "+e.Upstream+e.Path, e.Status, e.ErrorMessage)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d of %d entries\n", len(res.Data), res.Total)
			return nil
		}),
	}
	cmd.Flags().IntVar(&q.Limit, "limit", 20, "maximum entries to show")
	cmd.Flags().StringVar(&q.Operation, "operation", "", "only show this operation, e.g. place-bet")
	return cmd
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect client configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file, or the effective configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg := a.cfg
			if len(args) == 1 {
				loaded, err := betclient.LoadConfig(args[0])
				if err != nil {
					return err
				}
				cfg = *loaded
			}
			if err := betclient.ValidateConfig(cfg); err != nil {
				return fmt.Errorf("validation error: %w", err)
			}
			fmt.Fprintln(a.out, "✓ Config is valid")
			fmt.Fprintf(a.out, "  API:        %s\n", cfg.APIBaseURL)
			fmt.Fprintf(a.out, "  Root:       %s\n", cfg.RootBaseURL)
			fmt.Fprintf(a.out, "  Timeout:    %s\n", cfg.Timeout)
			fmt.Fprintf(a.out, "  Credential: %s\n", cfg.Credential.Store)
			fmt.Fprintf(a.out, "  Cache:      %s\n", cfg.Cache.Backend)
			fmt.Fprintf(a.out, "  Journal:    %s\n", cfg.Journal.Driver)
			if len(cfg.Cache.TTLs) > 0 {
				keys := make([]string, 0, len(cfg.Cache.TTLs))
				for k := range cfg.Cache.TTLs {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(a.out, "  TTL %-18s %s\n", k+":", cfg.Cache.TTLs[k])
				}
			}
			return nil
		},
	})
	return cmd
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.out, "betctl %s\n", version.String())
		},
	}
}
