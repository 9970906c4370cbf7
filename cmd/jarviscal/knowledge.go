package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"jarviscal/internal/termview"
)

func newScrapeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <url>",
		Short: "Add a web page to the knowledge base",
		Long:  "Queue a page for scraping. The backend indexes it in the background; the command returns once it is queued.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := url.Parse(args[0])
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("invalid URL %q", args[0])
			}
			id, err := a.client.ScrapeURL(cmd.Context(), u.String())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued document #%d\n", id)
			return nil
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.client.SearchDocuments(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), termview.RenderSearchResults(results))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "Maximum number of results")
	return cmd
}
