package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jarviscal/internal/ics"
	appLog "jarviscal/internal/log"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		days   int
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "import <file|url>",
		Short: "Create events from an iCalendar file or feed",
		Long: `Read an .ics file or http(s) feed, expand recurring events over the next
--days days and create each occurrence on the backend. Events that fail
to create are reported and the rest are still imported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				days = a.cfg.HorizonDays
			}
			src := ics.Source{Location: args[0]}
			body, err := ics.NewLoader(nil).Load(cmd.Context(), src)
			if err != nil {
				return fmt.Errorf("load %s: %w", src.Name(), err)
			}
			parsed, err := ics.ParseICS(src, body)
			if err != nil {
				return fmt.Errorf("parse %s: %w", src.Name(), err)
			}

			now := a.now().In(a.loc)
			res, err := ics.Expand(parsed, ics.ExpandConfig{
				Location:   a.loc,
				RangeStart: now,
				RangeEnd:   now.AddDate(0, 0, days),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				for _, ev := range res.Events {
					fmt.Fprintf(out, "%s  %s\n", ev.EventDate, ev.Title)
				}
				fmt.Fprintf(out, "%d events would be imported\n", len(res.Events))
				return nil
			}

			var errs []error
			created := 0
			for _, ev := range res.Events {
				id, err := a.client.CreateEvent(cmd.Context(), ev)
				if err != nil {
					appLog.Error("import: create failed", err, "title", ev.Title, "event_date", ev.EventDate)
					errs = append(errs, fmt.Errorf("%s %q: %w", ev.EventDate, ev.Title, err))
					continue
				}
				appLog.Debug("import: created", "id", id, "title", ev.Title)
				created++
			}
			fmt.Fprintf(out, "Imported %d of %d events\n", created, len(res.Events))
			return errors.Join(errs...)
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Days ahead to expand recurring events (default: horizon_days)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the events without creating them")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		days   int
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write upcoming events as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				days = a.cfg.HorizonDays
			}
			events, err := a.client.GetUpcomingEvents(cmd.Context(), days)
			if err != nil {
				return err
			}
			body := ics.Encode(events, ics.ExportOptions{
				Name:     "Jarvis",
				Location: a.loc,
				Now:      a.now(),
			})
			if output == "" || output == "-" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}
			if err := os.WriteFile(output, []byte(body), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d events to %s\n", len(events), output)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Days ahead to export (default: horizon_days)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file, - for stdout")
	return cmd
}
