package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/spf13/cobra"

	"taskbridge/internal/app"
	"taskbridge/internal/config"
)

var logger = loggo.GetLogger("taskbridge.cmd")

// lambdaStart is replaced in tests.
var lambdaStart = func(handler any) { lambda.Start(handler) }

type rootOptions struct {
	configPath string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "taskbridge",
		Short:         "Event-driven task mutation pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if err := loggo.ConfigureLoggers(cfg.Log.Level); err != nil {
				return errors.Annotate(err, "configure logging")
			}
			opts.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (env TASKBRIDGE_* overrides)")
	root.AddCommand(
		lambdaCmd(opts),
		serveCmd(opts),
		tasksCmd(opts),
		configCmd(opts),
	)
	return root
}

func lambdaCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Run as the EventBridge rule target inside AWS Lambda",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()
			lambdaStart(a.LambdaHandler().Invoke)
			return nil
		},
	}
}

func serveCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP mutation gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if addr != "" {
				opts.cfg.HTTP.Addr = addr
			}
			a, err := app.New(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()
			pub, stopBus, err := a.Publisher(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = stopBus() }()
			handler, err := a.HTTPHandler(pub)
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: opts.cfg.HTTP.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
			logger.Infof("serving mutation gateway on %s (bus %s, store %s)", opts.cfg.HTTP.Addr, opts.cfg.Bus.Driver, opts.cfg.Store.Driver)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Trace(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

func tasksCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List every stored task (full table scan)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()
			recs, err := a.Pipeline.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"ID", "Task", "Done"})
			for _, rec := range recs {
				tw.AppendRow(table.Row{rec.ID, rec.Task, rec.Done})
			}
			tw.AppendFooter(table.Row{"", "Total", len(recs)})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func configCmd(opts *rootOptions) *cobra.Command {
	var validate bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if validate {
				if err := opts.cfg.Validate(); err != nil {
					return err
				}
			}
			out, err := opts.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", false, "fail if the configuration is not usable")
	return cmd
}
