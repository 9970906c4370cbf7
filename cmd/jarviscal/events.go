package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"jarviscal/internal/calview"
	"jarviscal/internal/model"
	"jarviscal/internal/termview"
)

func newEventsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Manage calendar events",
	}
	cmd.AddCommand(
		newEventsUpcomingCmd(a),
		newEventsTodayCmd(a),
		newEventsAddCmd(a),
		newEventActionCmd("complete", "Mark an event as completed", a.completeEvent),
		newEventActionCmd("delete", "Delete an event", a.deleteEvent),
	)
	return cmd
}

func newEventsUpcomingCmd(a *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List events of the next days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := a.client.GetUpcomingEvents(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), termview.RenderEvents(events, a.loc))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "Number of days ahead")
	return cmd
}

func newEventsTodayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "List today's events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := a.client.GetTodayEvents(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), termview.RenderEvents(events, a.loc))
			return nil
		},
	}
}

func newEventsAddCmd(a *app) *cobra.Command {
	var (
		title       string
		date        string
		description string
		reminder    int
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an event",
		Example: `  jarviscal events add --title "Dentist" --date "2025-11-13 10:00" --reminder 30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := model.ParseEventDate(date, a.loc)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			ev := model.CalendarEvent{
				Title:       title,
				Description: description,
				EventDate:   model.FormatEventDate(start),
			}
			if cmd.Flags().Changed("reminder") {
				ev.ReminderMinutes = &reminder
			}
			id, err := a.client.CreateEvent(cmd.Context(), ev)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created event #%d\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Event title")
	cmd.Flags().StringVar(&date, "date", "", "Start as YYYY-MM-DD HH:MM in the display timezone")
	cmd.Flags().StringVar(&description, "description", "", "Optional description")
	cmd.Flags().IntVar(&reminder, "reminder", 0, "Reminder in minutes before start")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newEventActionCmd(name, short string, do func(*cobra.Command, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid event id %q", args[0])
			}
			return do(cmd, id)
		},
	}
}

func (a *app) completeEvent(cmd *cobra.Command, id int64) error {
	ok, err := a.client.CompleteEvent(cmd.Context(), id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("event #%d was not completed", id)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Completed event #%d\n", id)
	return nil
}

func (a *app) deleteEvent(cmd *cobra.Command, id int64) error {
	ok, err := a.client.DeleteEvent(cmd.Context(), id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("event #%d was not deleted", id)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted event #%d\n", id)
	return nil
}

func newWeekCmd(a *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Show the week grid",
		Long:  "Show the Monday-based week containing --date (default today) with events placed in hour slots.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := a.now().In(a.loc)
			ref := now
			if date != "" {
				d, err := time.ParseInLocation("2006-01-02", date, a.loc)
				if err != nil {
					return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
				}
				ref = d
			}

			events, err := a.client.GetUpcomingEvents(cmd.Context(), a.cfg.HorizonDays)
			if err != nil {
				return err
			}
			hours := calview.HourRange{First: a.cfg.Hours.First, Last: a.cfg.Hours.Last}
			week := calview.BuildWeek(events, ref, hours, now)
			fmt.Fprint(cmd.OutOrStdout(), termview.RenderWeek(week, now))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Any day of the week to show (YYYY-MM-DD)")
	return cmd
}
