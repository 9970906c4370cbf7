package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jarviscal/internal/capture"
	appLog "jarviscal/internal/log"
	"jarviscal/internal/scheduler"
	"jarviscal/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the week view locally",
		Long: `Serve the week grid as HTML (/week), JSON (/api/week, /api/events) and
iCalendar (/calendar.ics). The event list is refreshed on the configured
cron schedule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				a.cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := web.NewServer(a.cfg, a.client)
			sched, err := scheduler.New("events", a.cfg.RefreshCron, a.loc, srv.Refresh)
			if err != nil {
				return err
			}
			if err := sched.RunNow(ctx); err != nil {
				// Keep serving; the next refresh may succeed.
				appLog.Error("initial event fetch failed", err, "api_url", a.cfg.APIURL)
			}
			sched.Start()
			defer sched.Stop()

			appLog.Info("jarviscal serving",
				"version", version,
				"listen", a.cfg.Listen,
				"api_url", a.cfg.APIURL,
				"timezone", a.loc.String(),
				"refresh", a.cfg.RefreshCron,
			)
			return web.Serve(ctx, a.cfg.Listen, srv.Handler())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	return cmd
}

func newSnapshotCmd(a *app) *cobra.Command {
	var (
		date   string
		output string
		width  int
		height int
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Render the week view to a PNG with headless Chromium",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.New("--output is required (use - for stdout)")
			}
			if date != "" {
				if _, err := time.Parse("2006-01-02", date); err != nil {
					return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
				}
			}

			// Serve the page in-process on an ephemeral port.
			srv := web.NewServer(a.cfg, a.client)
			if err := srv.Refresh(cmd.Context()); err != nil {
				return err
			}
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				return err
			}
			hs := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
			go func() {
				if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					appLog.Error("snapshot server failed", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = hs.Shutdown(shutdownCtx)
			}()

			url := "http://" + ln.Addr().String() + "/week"
			if date != "" {
				url += "?date=" + date
			}
			path := output
			if path == "-" {
				path = ""
			}
			png, err := capture.Snapshot(cmd.Context(), capture.Options{
				URL:        url,
				OutputPath: path,
				Width:      width,
				Height:     height,
				Timeout:    a.cfg.RequestTimeout(),
			})
			if err != nil {
				return err
			}
			if path == "" {
				_, err = cmd.OutOrStdout().Write(png)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Any day of the week to render (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&output, "output", "o", "week.png", "PNG output path, - for stdout")
	cmd.Flags().IntVar(&width, "width", capture.DefaultWidth, "Viewport width")
	cmd.Flags().IntVar(&height, "height", capture.DefaultHeight, "Viewport height")
	return cmd
}
