package main

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stockalert/internal/app"
	"stockalert/internal/config"
)

// env is shared by every subcommand. The app is built on first use so that
// commands which only need config avoid opening the store.
type env struct {
	out    io.Writer
	json   bool
	cfg    config.Config
	log    zerolog.Logger
	closer io.Closer
	app    *app.App
}

func (e *env) App(cmd *cobra.Command) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	a, err := app.New(cmd.Context(), e.cfg, e.log)
	if err != nil {
		return nil, err
	}
	e.app = a
	return a, nil
}

func (e *env) close() error {
	var errs []error
	if e.app != nil {
		errs = append(errs, e.app.Close())
		e.app = nil
	}
	if e.closer != nil {
		errs = append(errs, e.closer.Close())
		e.closer = nil
	}
	return errors.Join(errs...)
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// run executes one command line and always releases what it opened.
func run(out io.Writer, args []string) error {
	root, e := newRootCmd(out)
	root.SetArgs(args)
	err := root.Execute()
	return errors.Join(err, e.close())
}

func newRootCmd(out io.Writer) (*cobra.Command, *env) {
	e := &env{out: out}
	var (
		cfgPath string
		debug   bool
	)

	root := &cobra.Command{
		Use:           "alertctl",
		Short:         "Resolve quotes and manage price and news alerts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if debug {
				cfg.Log.Level = "debug"
			}
			log, closer, err := app.Logger(cfg.Log)
			if err != nil {
				return err
			}
			e.cfg, e.log, e.closer = cfg, log, closer
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (JSON, YAML or TOML)")
	root.PersistentFlags().BoolVar(&e.json, "json", false, "print JSON")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newQuoteCmd(e),
		newProbeCmd(e),
		newDumpCmd(e),
		newCycleCmd(e),
		newAlertCmd(e),
		newEndpointCmd(e),
		newLogsCmd(e),
	)
	return root, e
}
