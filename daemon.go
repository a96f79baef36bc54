package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ssgreg/repeat"
	"golang.org/x/sync/errgroup"

	"github.com/TxnLab/tokenfarm/internal/lib/farm"
	"github.com/TxnLab/tokenfarm/internal/lib/misc"
)

// daemonOverrides are command line values that take precedence over the node config, including
// over later reloads of it.
type daemonOverrides struct {
	epochMinutes int
	metricsAddr  string
}

func (o daemonOverrides) apply(cfg *NodeConfig) {
	if o.epochMinutes > 0 {
		cfg.EpochMinutes = o.epochMinutes
	}
	if o.metricsAddr != "" {
		cfg.MetricsAddr = o.metricsAddr
	}
}

// Daemon issues rewards as the configured owner at every epoch boundary and serves metrics.
type Daemon struct {
	logger    *slog.Logger
	overrides daemonOverrides

	// embed mutex for locking state for members below the mutex
	sync.RWMutex
	cfg *NodeConfig
}

func newDaemon(cfg *NodeConfig, overrides daemonOverrides) *Daemon {
	return &Daemon{
		logger:    App.logger,
		overrides: overrides,
		cfg:       cfg,
	}
}

func (d *Daemon) config() *NodeConfig {
	d.RLock()
	defer d.RUnlock()
	return d.cfg
}

func (d *Daemon) run(ctx context.Context) error {
	d.logger.Info("Starting tokenfarm daemon", "farm", App.deployment.Farm.ID(), "owner", d.config().Owner,
		"epochMinutes", d.config().EpochMinutes)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.EpochIssuer(ctx)
		return nil
	})
	if addr := d.config().MetricsAddr; addr != "" {
		g.Go(func() error {
			return d.serveMetrics(ctx, addr)
		})
	}
	return g.Wait()
}

// EpochIssuer issues rewards at each epoch boundary (wall-clock aligned multiples of the epoch
// length) until ctx is cancelled.
func (d *Daemon) EpochIssuer(ctx context.Context) {
	defer d.logger.Info("Exiting EpochIssuer")
	d.logger.Info("Starting EpochIssuer")

	for {
		waitDur := durationToNextEpoch(time.Now(), d.config().EpochMinutes)
		misc.Infof(d.logger, "next issuance in %v", waitDur.Round(time.Second))
		select {
		case <-ctx.Done():
			return
		case <-time.After(waitDur):
			// Make sure our 'config' is fresh in case the user updated it
			if err := d.refetchConfig(ctx); err != nil {
				misc.Warnf(d.logger, "unable to reload node config, using prior config: %v", err)
			}
			d.issueEpochRewards()
		}
	}
}

func (d *Daemon) issueEpochRewards() {
	owner, err := types.DecodeAddress(d.config().Owner)
	if err != nil {
		misc.Errorf(d.logger, "invalid owner in node config: %v", err)
		return
	}
	if App.deployment.Farm.TotalStaked().IsZero() {
		misc.Infof(d.logger, "nothing staked - skipping issuance")
		return
	}
	receipt, err := issueAndRecord(owner)
	if err != nil {
		if errors.Is(err, farm.ErrInsufficientRewards) {
			misc.Warnf(d.logger, "farm can't fund this epoch: %v", err)
			return
		}
		misc.Errorf(d.logger, "epoch issuance failed: %v", err)
		return
	}
	misc.Infof(d.logger, "epoch issuance complete, receipt:%d, total:%s to %d stakers", receipt.Seq,
		formatRewardDec(receipt.Body.Total), len(receipt.Body.Payouts))
}

func (d *Daemon) refetchConfig(ctx context.Context) error {
	var (
		cfg *NodeConfig
		err error
	)
	err = repeat.Repeat(
		repeat.Fn(func() error {
			cfg, err = LoadNodeConfig()
			if err != nil {
				return repeat.HintTemporary(err)
			}
			return nil
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(10),
		repeat.FnOnError(func(err error) error {
			d.logger.Warn("retrying fetch of node config", "error", err)
			return err
		}),
		repeat.WithDelay(
			repeat.SetContext(ctx),
			repeat.SetContextHintStop(),
			(&repeat.FullJitterBackoffBuilder{
				BaseDelay: 5 * time.Second,
				MaxDelay:  10 * time.Second,
			}).Set(),
		),
	)
	if err != nil {
		return err
	}
	d.overrides.apply(cfg)
	d.Lock()
	d.cfg = cfg
	d.Unlock()
	return nil
}

func (d *Daemon) serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	misc.Infof(d.logger, "serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// durationToNextEpoch returns how long from now until the next wall-clock multiple of the epoch
// length.  At an exact boundary, the next epoch is a full epoch away.
func durationToNextEpoch(now time.Time, epochMinutes int) time.Duration {
	epoch := time.Duration(epochMinutes) * time.Minute
	return now.Truncate(epoch).Add(epoch).Sub(now)
}
