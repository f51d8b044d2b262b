package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"seats/config"
	"seats/solver"
)

var log = logrus.New()

func main() {
	configPath := flag.String("config", "", "seating config file (yaml, json or toml); built-in classroom if empty")
	seed := flag.Int64("seed", 0, "generator seed; clock-seeded if unset")
	attempts := flag.Int("attempts", solver.DefaultMaxAttempts, "random arrangements to try (overrides config)")
	workers := flag.Int("workers", 0, "parallel search workers (overrides config)")
	timeout := flag.Duration("timeout", 0, "stop searching after this long")
	flag.Parse()

	cfg, err := config.ReadSeating(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to read config")
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.Seed, cfg.HasSeed = *seed, true
		case "attempts":
			cfg.MaxAttempts = *attempts
		case "workers":
			cfg.Workers = *workers
		}
	})

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	if err := run(ctx, os.Stdout, cfg); err != nil {
		log.WithError(err).Fatal("seating failed")
	}
}

func run(ctx context.Context, out io.Writer, cfg config.Seating) error {
	o, err := solver.New(cfg.Input(), cfg.Options()...)
	if err != nil {
		return err
	}

	start := time.Now()
	sol, err := o.GenerateSeatingParallel(ctx, cfg.MaxAttempts, cfg.Workers)
	if err != nil {
		log.WithError(err).Warn("search stopped early")
	}
	log.WithFields(logrus.Fields{
		"attempts": cfg.MaxAttempts,
		"workers":  cfg.Workers,
		"fallback": sol.Fallback,
		"elapsed":  time.Since(start),
	}).Debug("search finished")

	fmt.Fprintf(out, "Using seed: %d\n", sol.Seed)
	if err := o.Render(out, sol.Seating); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Violations: %d\n", sol.Violations)
	return err
}
