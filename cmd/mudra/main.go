package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "mudra: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mudra: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.Mode {
	case config.ModeRecord:
		err = record(ctx, cfg, log)
	default:
		err = run(ctx, cfg, log)
	}
	if err != nil {
		log.WithError(err).Error("mudra stopped")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(ctx)
}

func record(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	label, ok := gesture.ParseLabel(cfg.Record.Label)
	if !ok {
		return fmt.Errorf("unknown gesture label %q", cfg.Record.Label)
	}

	w, err := dataset.Create(cfg.Record.Out)
	if err != nil {
		return err
	}
	defer w.Close()

	src, err := app.OpenSource(cfg, log)
	if err != nil {
		return err
	}
	defer src.Close()

	log.WithFields(logrus.Fields{"label": label.String(), "out": cfg.Record.Out}).Info("recording samples, interrupt to stop")
	n, err := app.Record(ctx, src, w, label, log)
	log.WithField("samples", n).Info("recording finished")
	return err
}
