package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationToNextEpoch(t *testing.T) {
	testCases := []struct {
		name           string
		epochMinutes   int
		currentTime    time.Time
		expectedDurMin float64
	}{
		{"11:10:15->12:00:00", 60, time.Date(2024, 1, 1, 11, 10, 15, 0, time.UTC), 49.75},
		{"11:55:15->12:00:00", 60, time.Date(2024, 1, 1, 11, 55, 15, 0, time.UTC), 4.75},
		{"00:00:00->00:15:00", 15, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 15.0},
		{"00:15:30->00:30:00", 15, time.Date(2024, 1, 1, 0, 15, 30, 0, time.UTC), 14.5},
		{"00:30:45->00:45:00", 15, time.Date(2024, 1, 1, 0, 30, 45, 0, time.UTC), 14.25},
		{"00:45:00->01:00:00", 15, time.Date(2024, 1, 1, 0, 45, 0, 0, time.UTC), 15.0},
		{"00:07:30->00:15:00", 15, time.Date(2024, 1, 1, 0, 7, 30, 0, time.UTC), 7.5},
		{"00:15:00->00:30:00", 30, time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC), 15.0},
		{"00:30:00->01:00:00", 60, time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC), 30.0},
		{"01 12:00:00->02 00:00:00", 24 * 60, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), 12 * 60.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actualDur := durationToNextEpoch(tc.currentTime, tc.epochMinutes)

			assert.InDelta(t, tc.expectedDurMin, actualDur.Minutes(), 0.01,
				"case: %s, expected duration of around %f minutes, but got duration of %v", tc.name, tc.expectedDurMin, actualDur)
		})
	}
}

func TestDaemonOverrides(t *testing.T) {
	cfg := &NodeConfig{Owner: "x", EpochMinutes: 60, MetricsAddr: ":9100"}
	daemonOverrides{}.apply(cfg)
	assert.Equal(t, 60, cfg.EpochMinutes)
	assert.Equal(t, ":9100", cfg.MetricsAddr)

	daemonOverrides{epochMinutes: 5, metricsAddr: "127.0.0.1:9999"}.apply(cfg)
	assert.Equal(t, 5, cfg.EpochMinutes)
	assert.Equal(t, "127.0.0.1:9999", cfg.MetricsAddr)
}

func TestRefetchConfigStopsOnCancel(t *testing.T) {
	cfgHome := t.TempDir()
	t.Setenv("HOME", cfgHome)
	t.Setenv("XDG_CONFIG_HOME", cfgHome)

	prior := &NodeConfig{Owner: "x", EpochMinutes: 60}
	d := &Daemon{logger: slog.Default(), cfg: prior}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// no config on disk, so without the cancelled context this would retry for a minute or more
	start := time.Now()
	require.Error(t, d.refetchConfig(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Same(t, prior, d.config())
}
