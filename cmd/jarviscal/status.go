package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"jarviscal/internal/model"
	"jarviscal/internal/termview"
)

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.client.GetHealth(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status: %s\nmodel:  %s\n", h.Status, h.Model)
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show backend statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.client.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), stats)
		},
	}
}

// newStatusCmd fetches health, models and stats concurrently.
func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show health, models and statistics at once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				health model.Health
				models model.ModelList
				stats  model.Stats
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() (err error) {
				health, err = a.client.GetHealth(ctx)
				return err
			})
			g.Go(func() (err error) {
				models, err = a.client.ListModels(ctx)
				return err
			})
			g.Go(func() (err error) {
				stats, err = a.client.GetStats(ctx)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend: %s (%s)\n", a.cfg.APIURL, health.Status)
			fmt.Fprintln(out, "\nmodels:")
			fmt.Fprint(out, termview.RenderModels(models))
			fmt.Fprintln(out, "\nstats:")
			return printYAML(out, stats)
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit   int
		session string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the messages of a chat session",
		Long:  "Sessions live only in process memory, so pass --session to read the history of an earlier conversation.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if session != "" {
				a.client.SetSessionID(session)
			}
			entries, err := a.client.GetHistory(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No history.")
				return nil
			}
			return printYAML(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of entries")
	cmd.Flags().StringVar(&session, "session", "", "Session id to read")
	return cmd
}

// printYAML renders free-form backend objects.
func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
