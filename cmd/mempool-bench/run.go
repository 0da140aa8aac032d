package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-mempool/control"
	"github.com/momentics/hioload-mempool/internal/logger"
)

type runOptions struct {
	config  string
	profile string
	ops     int
	pattern string
	seed    uint64
	serve   string
}

var runOpts runOptions

func init() {
	cmd := newRunCmd()
	cmd.Flags().StringVar(&runOpts.config, "config", "", "Profile file (YAML)")
	cmd.Flags().StringVar(&runOpts.profile, "profile", "", "Profile name to build the pool from")
	cmd.Flags().IntVar(&runOpts.ops, "ops", 100000, "Number of alloc/free operations")
	cmd.Flags().StringVar(&runOpts.pattern, "pattern", "fifo", "Free order (fifo, lifo, random)")
	cmd.Flags().Uint64Var(&runOpts.seed, "seed", 1, "Random seed")
	cmd.Flags().StringVar(&runOpts.serve, "serve", "", "Serve /metrics and /debug/state on this address until interrupted")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Drive a pool built from a profile with a synthetic workload",
		Long: `The run command builds a pool from a named profile and performs a
sequence of allocations and frees. Frees release blocks in FIFO, LIFO or
random order. At the end every live block is returned and the pool is closed.

Example:
  mempool-bench run --config pools.yaml --profile entities --ops 1000000
  mempool-bench run --config pools.yaml --profile entities --pattern random --seed 7
  mempool-bench run --config pools.yaml --profile entities --serve :9100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWorkload(ctx, cmd, runOpts)
		},
	}
}

func runWorkload(ctx context.Context, cmd *cobra.Command, opts runOptions) error {
	pat, err := parsePattern(opts.pattern)
	if err != nil {
		return err
	}
	if opts.ops < 0 {
		return fmt.Errorf("ops must not be negative: %d", opts.ops)
	}

	store := control.NewProfileStore()
	if err := store.ReloadFile(opts.config); err != nil {
		return err
	}
	cfg, _ := store.Get(opts.profile)
	p, err := store.NewPool(opts.profile)
	if err != nil {
		return err
	}
	defer p.Close()

	var mu sync.Mutex
	if opts.serve != "" {
		srv := newMetricsServer(opts.serve, lockedStats{mu: &mu, p: p})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.L.Error("metrics server failed", "addr", opts.serve, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.L.Info("serving metrics", "addr", opts.serve)
	}

	logger.L.Info("workload starting",
		"profile", opts.profile, "pattern", string(pat), "ops", opts.ops, "owner", p.Owner())
	w := newWorkload(p, &mu, pat, cfg.ElementCount, opts.seed)
	res, err := w.run(ctx, opts.ops)
	res.Profile = opts.profile
	if err != nil {
		return err
	}
	logger.L.Info("workload finished", "allocs", res.Allocs, "frees", res.Frees, "elapsed", res.Elapsed)

	out := cmd.OutOrStdout()
	if jsonOut {
		if err := printJSON(out, res); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "profile=%s pattern=%s ops=%d allocs=%d frees=%d exhausted=%d peak=%d blobs=%d capacity=%dB elapsed=%s\n",
			res.Profile, res.Pattern, res.Ops, res.Allocs, res.Frees, res.Exhausted,
			res.Peak, res.Blobs, res.Capacity, res.Elapsed)
	}

	if opts.serve != "" {
		<-ctx.Done()
	}
	return nil
}

func newMetricsServer(addr string, src lockedStats) *http.Server {
	metrics := control.NewMetricsRegistry()
	metrics.Register(src)
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics, collectors.NewGoCollector())

	probes := control.NewDebugProbes()
	probes.RegisterPool(src)
	control.RegisterPlatformProbes(probes)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(probes.DumpState())
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
