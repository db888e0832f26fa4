package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"catchcore/internal/blob"
	"catchcore/internal/core"
	"catchcore/internal/observability"
	"catchcore/internal/program"
	"catchcore/internal/report"
	"catchcore/internal/validation"
	"catchcore/pkg/domain"
	"catchcore/plugins/elasmobranch"
)

const defaultProgram = "SUMARiS"

type rootOptions struct {
	logLevel    string
	logFormat   string
	programFile string
	program     string
	gear        int
	concurrency int
	format      string
	trace       bool
	metricsFile string
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "catchctl",
		Short:         "Compute and control catch batch trees",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", observability.FormatText, "log format (text, json)")
	flags.StringVar(&opts.programFile, "program-file", "", "YAML program configuration")
	flags.StringVar(&opts.program, "program", defaultProgram, "program label")
	flags.IntVar(&opts.gear, "gear", 0, "gear id used to select gear-specific pmfms")
	flags.IntVar(&opts.concurrency, "concurrency", 1, "sorting groups controlled in parallel")
	flags.StringVar(&opts.format, "format", string(report.FormatJSON), "control report format (json, csv, both)")
	flags.BoolVar(&opts.trace, "trace", false, "write OpenTelemetry spans to stderr")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	cmd.AddCommand(
		newComputeCmd(opts),
		newRenumberCmd(opts),
		newCleanCmd(opts),
		newControlCmd(opts),
		newStoreCmd(opts),
		newReportsCmd(opts),
	)
	return cmd
}

func (o *rootOptions) gearID() *int {
	if o.gear <= 0 {
		return nil
	}
	id := o.gear
	return &id
}

func (o *rootOptions) logger(cmd *cobra.Command) (*slog.Logger, error) {
	return observability.NewLogger(observability.LogConfig{
		Level:  o.logLevel,
		Format: o.logFormat,
		Output: cmd.ErrOrStderr(),
	})
}

// programs loads the program file, or serves a single default program when
// none is given.
func (o *rootOptions) programs() (*program.Provider, error) {
	if o.programFile == "" {
		p := program.NewProvider(nil)
		if err := p.Register(program.Config{Label: o.program}); err != nil {
			return nil, err
		}
		return p, nil
	}
	file, err := program.Load(o.programFile)
	if err != nil {
		return nil, err
	}
	return program.NewProvider(file), nil
}

// app is the wired service of one command invocation.
type app struct {
	svc      *core.Service
	programs *program.Provider
	blobs    blob.Store
	logger   *slog.Logger
	closers  []func() error
}

func (o *rootOptions) openApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	logger, err := o.logger(cmd)
	if err != nil {
		return nil, err
	}
	a := &app{logger: logger}
	programs, err := o.programs()
	if err != nil {
		return nil, err
	}
	a.programs = programs

	store, closeStore, err := core.OpenTreeStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open tree store: %w", err)
	}
	a.closers = append(a.closers, closeStore)

	a.blobs, err = blob.Open(ctx)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	format, err := report.ParseFormat(o.format)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics, err := observability.NewPrometheusRecorder(registry)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if o.metricsFile != "" {
		path := o.metricsFile
		a.closers = append(a.closers, func() error { return prometheus.WriteToTextfile(path, registry) })
	}

	svcOpts := []core.ServiceOption{
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
		core.WithOutcomePublisher(report.NewPublisher(a.blobs, report.WithFormat(format), report.WithLogger(logger))),
	}
	if o.trace {
		tp, err := observability.NewStdoutTracerProvider(cmd.ErrOrStderr())
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() error { return tp.Shutdown(context.Background()) })
		svcOpts = append(svcOpts, core.WithTracer(observability.NewOTelTracer(tp)))
	}

	controller := core.NewController(programs, validation.NewBuilder(),
		core.WithControllerLogger(logger),
		core.WithConcurrency(o.concurrency),
	)
	a.svc = core.NewService(store, controller, svcOpts...)
	if _, err := a.svc.InstallPlugin(elasmobranch.New(nil, nil)); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the backends in reverse opening order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// withApp opens the app, runs fn and closes the app.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(*app) error) (err error) {
	a, err := o.openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

func (o *rootOptions) controlOptions(a *app) (core.ControlOptions, error) {
	prog, err := a.programs.Program(o.program)
	if err != nil {
		return core.ControlOptions{}, err
	}
	opts := core.ControlOptions{Program: prog, GearID: o.gearID()}
	if o.gear > 0 {
		opts.PhysicalGear = &domain.PhysicalGear{GearID: o.gear, RankOrder: 1}
	}
	return opts, nil
}

func (o *rootOptions) computeOptions() core.ComputeOptions {
	return core.ComputeOptions{ProgramLabel: o.program, GearID: o.gearID()}
}
