package transport

import (
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/zoobzio/clockz"

	"github.com/c360/pipekit/metric"
	"github.com/c360/pipekit/record"
)

func errEPIPE() error { return syscall.EPIPE }

func TestStatsInterval(t *testing.T) {
	clock := clockz.NewFakeClock()
	metrics := metric.NewMetrics()
	stats := NewStats(clock, nil, metrics)
	stats.Start()
	defer stats.Stop()

	base := clock.Now().UnixMilli()
	for i := 0; i < 10; i++ {
		stats.Observe(record.Record{
			Meta: map[string]any{"timestamp": float64(base - 50)},
			Data: map[string]any{},
		})
	}

	clock.Advance(1000 * time.Millisecond)
	clock.BlockUntilReady()

	// The reporting goroutine drains the tick asynchronously.
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.Throughput) > 9.0
	}, time.Second, 5*time.Millisecond)
	assert.InDelta(t, 50.0, testutil.ToFloat64(metrics.AvgDelayMs), 1.0)
}

func TestStatsTracksLastTagChain(t *testing.T) {
	clock := clockz.NewFakeClock()
	stats := NewStats(clock, nil, nil)

	stats.Observe(record.Record{
		Meta: map[string]any{"pipeline": []string{"src", "minr", "gat"}},
		Data: map[string]any{},
	})
	stats.mu.Lock()
	defer stats.mu.Unlock()
	assert.Equal(t, "src>minr>gat", stats.lastTags)
}
