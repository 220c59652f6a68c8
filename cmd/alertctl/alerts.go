package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"stockalert/internal/alert"
	"stockalert/internal/notify"
)

func newCycleCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run one evaluation cycle over every active alert",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.App(cmd)
			if err != nil {
				return err
			}
			rep, err := a.Scheduler.RunCycle(cmd.Context())
			if err != nil {
				return err
			}
			if e.json {
				return e.printJSON(rep)
			}
			fmt.Fprintf(e.out, "evaluated=%d triggered=%d skipped=%d failed=%d in %s\n",
				rep.Evaluated, rep.Triggered, rep.Skipped, rep.Failed, rep.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

func newAlertCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Manage alerts",
	}
	cmd.AddCommand(newAlertAddCmd(e), newAlertListCmd(e), newAlertSetStatusCmd(e, "disable", alert.StatusDisabled), newAlertSetStatusCmd(e, "enable", alert.StatusActive))
	return cmd
}

func newAlertAddCmd(e *env) *cobra.Command {
	var (
		owner     string
		kind      string
		symbol    string
		condition string
		target    string
		keywords  []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an active alert",
		Example: `  alertctl alert add --owner u1 --kind stock --symbol AAPL --condition above --target 200
  alertctl alert add --owner u1 --kind currency --symbol USD/KRW --condition below --target 1300
  alertctl alert add --owner u1 --kind news --keywords apple,earnings`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				al  alert.Alert
				err error
			)
			now := time.Now()
			switch k := alert.Kind(strings.ToLower(kind)); k {
			case alert.KindNews:
				al, err = alert.NewNewsAlert(owner, keywords, now)
			case alert.KindStock, alert.KindCurrency:
				t, perr := decimal.NewFromString(target)
				if perr != nil {
					return fmt.Errorf("invalid --target %q: %w", target, perr)
				}
				al, err = alert.NewPriceAlert(owner, k, symbol, alert.Condition(strings.ToLower(condition)), t, now)
			default:
				return fmt.Errorf("unknown --kind %q", kind)
			}
			if err != nil {
				return err
			}
			a, err := e.App(cmd)
			if err != nil {
				return err
			}
			if err := a.Store.CreateAlert(cmd.Context(), al); err != nil {
				return err
			}
			if e.json {
				return e.printJSON(al)
			}
			fmt.Fprintln(e.out, al.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner id")
	cmd.Flags().StringVar(&kind, "kind", "stock", "stock, currency or news")
	cmd.Flags().StringVar(&symbol, "symbol", "", "ticker or currency pair")
	cmd.Flags().StringVar(&condition, "condition", "above", "above, below or equal")
	cmd.Flags().StringVar(&target, "target", "0", "target price")
	cmd.Flags().StringSliceVar(&keywords, "keywords", nil, "comma-separated keywords for news alerts")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newAlertListCmd(e *env) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.App(cmd)
			if err != nil {
				return err
			}
			alerts, err := a.Store.ListAlerts(cmd.Context(), owner)
			if err != nil {
				return err
			}
			if e.json {
				return e.printJSON(alerts)
			}
			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tOWNER\tKIND\tSUBJECT\tCONDITION\tSTATUS\tTRIGGERED")
			for _, al := range alerts {
				subject, cond := al.Symbol, fmt.Sprintf("%s %s", al.Condition, al.Target)
				if al.Kind == alert.KindNews {
					subject, cond = strings.Join(al.Keywords, ","), "-"
				}
				triggered := "-"
				if al.TriggeredAt != nil {
					triggered = al.TriggeredAt.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", al.ID, al.OwnerID, al.Kind, subject, cond, al.Status, triggered)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only this owner's alerts")
	return cmd
}

func newAlertSetStatusCmd(e *env, use string, st alert.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("Set an alert's status to %s", st),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.App(cmd)
			if err != nil {
				return err
			}
			if err := a.Store.SetStatus(cmd.Context(), args[0], st); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "%s %s\n", args[0], st)
			return nil
		},
	}
}

func newEndpointCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoint",
		Short: "Manage delivery endpoints",
	}
	var owner, channel, address string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a delivery endpoint for an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch channel {
			case "webhook", "email", "apns":
			default:
				return fmt.Errorf("unknown --channel %q", channel)
			}
			a, err := e.App(cmd)
			if err != nil {
				return err
			}
			ep := notify.Endpoint{
				ID:        uuid.NewString(),
				OwnerID:   owner,
				Channel:   channel,
				Address:   address,
				CreatedAt: time.Now().UTC(),
			}
			if err := a.Store.RegisterEndpoint(cmd.Context(), ep); err != nil {
				return err
			}
			if e.json {
				return e.printJSON(ep)
			}
			fmt.Fprintln(e.out, ep.ID)
			return nil
		},
	}
	add.Flags().StringVar(&owner, "owner", "", "owner id")
	add.Flags().StringVar(&channel, "channel", "webhook", "webhook, email or apns")
	add.Flags().StringVar(&address, "address", "", "URL, email address or device token")
	_ = add.MarkFlagRequired("owner")
	_ = add.MarkFlagRequired("address")
	cmd.AddCommand(add)
	return cmd
}

func newLogsCmd(e *env) *cobra.Command {
	var (
		alertID string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show notification logs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.App(cmd)
			if err != nil {
				return err
			}
			logs, err := a.Store.ListLogs(cmd.Context(), alertID, limit)
			if err != nil {
				return err
			}
			if e.json {
				return e.printJSON(logs)
			}
			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tALERT\tOUTCOME\tMESSAGE")
			for _, l := range logs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.CreatedAt.Format(time.RFC3339), l.AlertID, l.Outcome, l.Message)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&alertID, "alert", "", "only this alert's logs")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries")
	return cmd
}
