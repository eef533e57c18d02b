package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ktree"
	"ktree/internal/stress"
	"ktree/logger"
	"ktree/promstats"
)

type workload func(context.Context, stress.Set, stress.Config, *stress.Recorder) error

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	app := cli.App{
		Name:    "ktree-stress",
		Usage:   "concurrent load generator and checker for ktree",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output: text, json, zap or logrus",
			Value:   "text",
			EnvVars: []string{"KTREE_LOG_FORMAT"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "minimum log level: error, warn or info",
			Value:   "info",
			EnvVars: []string{"KTREE_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "metrics-file",
			Usage:   "write Prometheus metrics in text format to this path after the run",
			EnvVars: []string{"KTREE_METRICS_FILE"},
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:  "disjoint",
			Usage: "each worker inserts, finds and removes its own key range",
			Flags: workloadFlags(),
			Action: func(cctx *cli.Context) error {
				return runWorkload(cctx, stress.RunDisjoint)
			},
		},
		{
			Name:  "mixed",
			Usage: "all workers insert then remove random keys from the whole key space",
			Flags: workloadFlags(),
			Action: func(cctx *cli.Context) error {
				return runWorkload(cctx, stress.RunMixed)
			},
		},
	}

	return app.Run(args)
}

func workloadFlags() []cli.Flag {
	def := stress.DefaultConfig()
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "number of concurrent goroutines",
			Value:   def.Workers,
			EnvVars: []string{"KTREE_WORKERS"},
		},
		&cli.IntFlag{
			Name:    "keys",
			Usage:   "size of the key space",
			Value:   def.KeySpace,
			EnvVars: []string{"KTREE_KEYS"},
		},
		&cli.IntFlag{
			Name:    "ops",
			Usage:   "operations per worker per phase (mixed only)",
			Value:   def.OpsPerWorker,
			EnvVars: []string{"KTREE_OPS"},
		},
		&cli.IntFlag{
			Name:  "insert-pct",
			Usage: "percentage of inserts in the insert phase, the rest are finds",
			Value: def.InsertPct,
		},
		&cli.IntFlag{
			Name:  "remove-pct",
			Usage: "percentage of removes in the remove phase, the rest are finds",
			Value: def.RemovePct,
		},
		&cli.IntFlag{
			Name:    "branching",
			Usage:   "tree branching factor k",
			Value:   ktree.DefaultBranching,
			EnvVars: []string{"KTREE_BRANCHING"},
		},
		&cli.IntFlag{
			Name:  "participants",
			Usage: "epoch participant slots, 0 for the library default",
		},
		&cli.Float64Flag{
			Name:  "rate",
			Usage: "max operations per second across all workers, 0 for unlimited",
		},
		&cli.Int64Flag{
			Name:  "seed",
			Usage: "random seed, 0 for time-based",
			Value: def.Seed,
		},
	}
}

func runWorkload(cctx *cli.Context, fn workload) error {
	log, sync, err := configLogger(cctx.String("log-format"), cctx.String("log-level"), os.Stderr)
	if err != nil {
		return err
	}
	defer sync()

	reg := prometheus.NewRegistry()
	opts := []ktree.Option{
		ktree.WithBranching(cctx.Int("branching")),
		ktree.WithLogger(log),
		ktree.WithMetrics(promstats.New(reg, "")),
	}
	if n := cctx.Int("participants"); n > 0 {
		opts = append(opts, ktree.WithParticipants(n))
	}
	tree, err := ktree.New[int](opts...)
	if err != nil {
		return fmt.Errorf("creating tree: %w", err)
	}

	cfg := stress.Config{
		Workers:      cctx.Int("workers"),
		KeySpace:     cctx.Int("keys"),
		OpsPerWorker: cctx.Int("ops"),
		InsertPct:    cctx.Int("insert-pct"),
		RemovePct:    cctx.Int("remove-pct"),
		Seed:         cctx.Int64("seed"),
		Rate:         cctx.Float64("rate"),
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting workload",
		"workload", cctx.Command.Name,
		"workers", cfg.Workers,
		"keys", cfg.KeySpace,
		"ops", cfg.OpsPerWorker,
		"branching", tree.K(),
		"seed", cfg.Seed)

	rec := stress.NewRecorder()
	start := time.Now()
	if err := fn(ctx, tree, cfg, rec); err != nil {
		return fmt.Errorf("workload %s: %w", cctx.Command.Name, err)
	}
	elapsed := time.Since(start)

	report, verr := stress.Verify(tree, rec, cfg.KeySpace)
	released := tree.Reclaim()
	stats := tree.Stats()

	totals := report.Totals
	log.Info("workload finished",
		"elapsed", elapsed.String(),
		"ops", totals.Attempts,
		"opsPerSec", int64(float64(totals.Attempts)/elapsed.Seconds()),
		"inserts", totals.Inserts,
		"removes", totals.Removes,
		"hits", totals.Hits,
		"keys", report.Actual,
		"height", report.Shape.Height,
		"digest", fmt.Sprintf("%016x", report.ActualDigest),
		"released", released,
		"retired", stats.Retired,
		"dropped", stats.Dropped)

	if path := cctx.String("metrics-file"); path != "" {
		if err := prometheus.WriteToTextfile(path, reg); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	if verr != nil {
		log.Error("verification failed", "err", verr)
		return verr
	}
	return nil
}

// configLogger builds the logger selected by format. The returned func
// flushes buffered output.
func configLogger(format, level string, w io.Writer) (ktree.Logger, func(), error) {
	format, level = strings.ToLower(format), strings.ToLower(level)
	noop := func() {}

	switch format {
	case "text", "json":
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, noop, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		hopts := &slog.HandlerOptions{Level: lvl}
		var h slog.Handler = slog.NewTextHandler(w, hopts)
		if format == "json" {
			h = slog.NewJSONHandler(w, hopts)
		}
		l := slog.New(h)
		slog.SetDefault(l)
		return l, noop, nil

	case "zap":
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, noop, err
		}
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(w),
			lvl,
		)
		zl := zap.New(core)
		return logger.NewZap(zl), func() { _ = zl.Sync() }, nil

	case "logrus":
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, noop, err
		}
		ll := logrus.New()
		ll.SetOutput(w)
		ll.SetLevel(lvl)
		ll.SetFormatter(&logrus.JSONFormatter{})
		return logger.NewLogrus(ll), noop, nil
	}

	return nil, noop, errors.New("log-format must be one of text, json, zap or logrus")
}
