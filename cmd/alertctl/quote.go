package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"stockalert/internal/aggregate"
	"stockalert/internal/httpx"
	"stockalert/internal/market"
	"stockalert/internal/resolver"
)

func classFlag(cmd *cobra.Command, class *string) {
	cmd.Flags().StringVar(class, "class", "stock", "asset class: stock or currency")
}

func newQuoteCmd(e *env) *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "quote <symbol|pair>",
		Short: "Resolve one quote through the provider chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := market.ParseAssetClass(strings.ToLower(class))
			if err != nil {
				return err
			}
			a, err := e.App(cmd)
			if err != nil {
				return err
			}
			q, err := a.Resolver.Resolve(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			if e.json {
				return e.printJSON(q)
			}
			fmt.Fprintf(e.out, "%s %s %s (%s%%) via %s at %s\n",
				q.Symbol, q.Price, q.Currency, q.ChangePercent, q.Source, q.ResolvedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	classFlag(cmd, &class)
	return cmd
}

func newProbeCmd(e *env) *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "probe <symbol|pair>",
		Short: "Ask every strategy for a quote and compare the answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := market.ParseAssetClass(strings.ToLower(class))
			if err != nil {
				return err
			}
			a, err := e.App(cmd)
			if err != nil {
				return err
			}
			results, err := a.Resolver.Probe(cmd.Context(), c, args[0])
			if err != nil && len(results) == 0 {
				return err
			}
			var quotes []market.Quote
			for _, r := range results {
				if r.Quote != nil && r.Plausible {
					quotes = append(quotes, *r.Quote)
				}
			}
			summary := aggregate.Summarize(aggregate.LatestBySource(quotes, false))
			if e.json {
				return e.printJSON(struct {
					Results []resolver.ProbeResult `json:"results"`
					Summary []aggregate.Summary    `json:"summary"`
				}{results, summary})
			}

			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STRATEGY\tPRICE\tCURRENCY\tPLAUSIBLE\tELAPSED\tERROR")
			for _, r := range results {
				price, cur := "-", "-"
				if r.Quote != nil {
					price, cur = r.Quote.Price.String(), r.Quote.Currency
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%dms\t%s\n", r.Strategy, price, cur, r.Plausible, r.ElapsedMS, r.Error)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, s := range summary {
				fmt.Fprintf(e.out, "\n%s %s: %d sources, min %s, max %s, median %s, spread %s%%\n",
					s.Symbol, s.Currency, s.Sources, s.Min, s.Max, s.Median, s.SpreadPercent)
			}
			return nil
		},
	}
	classFlag(cmd, &class)
	return cmd
}

// newDumpCmd fetches a page the way the scraping strategy does and prints
// the raw body, for checking extraction against live markup.
func newDumpCmd(e *env) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "dump <url>",
		Short: "Fetch a page with a random browser header profile and print the raw body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hc := httpx.New(e.cfg.Resolver.ProviderTimeout())
			header := httpx.NewHeaderPool(nil, nil).Pick()
			e.log.Debug().Str("url", args[0]).Str("user_agent", header.Get("User-Agent")).Msg("dumping")
			body, err := hc.Get(cmd.Context(), args[0], header)
			if err != nil {
				return err
			}
			if outPath == "" {
				_, err = e.out.Write(body)
				return err
			}
			if err := os.WriteFile(outPath, body, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "wrote %d bytes to %s\n", len(body), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the body to this file instead of stdout")
	return cmd
}
