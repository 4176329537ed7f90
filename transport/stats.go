package transport

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/c360/pipekit/metric"
	"github.com/c360/pipekit/pkg/timestamp"
	"github.com/c360/pipekit/record"
)

// statsInterval is the reporting period for the verbose throughput stats.
const statsInterval = 1000 * time.Millisecond

// Stats accumulates per-interval throughput counters: records seen,
// summed now-minus-timestamp delay, and the last pipeline tag chain.
type Stats struct {
	mu       sync.Mutex
	records  int64
	delaySum time.Duration
	lastTags string

	clock   clockz.Clock
	logger  *slog.Logger
	metrics *metric.Metrics
	stop    chan struct{}
	stopped sync.Once
}

// NewStats creates an idle stats collector.
func NewStats(clock clockz.Clock, logger *slog.Logger, metrics *metric.Metrics) *Stats {
	return &Stats{
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		stop:    make(chan struct{}),
	}
}

// Observe counts one record. Delay is now - meta.timestamp when the latter
// is numeric.
func (s *Stats) Observe(rec record.Record) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records++
	if ts, ok := rec.Timestamp(); ok {
		s.delaySum += s.clock.Now().Sub(timestamp.FromUnixMs(ts))
	}
	if tags := rec.Pipeline(); len(tags) > 0 {
		s.lastTags = strings.Join(tags, ">")
	}
}

// Start launches the 1000 ms reporting loop. Each tick logs the interval
// and publishes it to prometheus, then resets the counters.
func (s *Stats) Start() {
	ticker := s.clock.NewTicker(statsInterval)
	last := s.clock.Now()
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C():
				now := s.clock.Now()
				s.report(now.Sub(last))
				last = now
			}
		}
	}()
}

// Stop ends the reporting loop.
func (s *Stats) Stop() {
	s.stopped.Do(func() { close(s.stop) })
}

func (s *Stats) report(elapsed time.Duration) {
	s.mu.Lock()
	records := s.records
	delaySum := s.delaySum
	tags := s.lastTags
	s.records = 0
	s.delaySum = 0
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordInterval(records, delaySum, elapsed)
	}
	if s.logger == nil || elapsed <= 0 {
		return
	}
	rate := float64(records) / elapsed.Seconds()
	avgDelay := time.Duration(0)
	if records > 0 {
		avgDelay = delaySum / time.Duration(records)
	}
	s.logger.Info("throughput",
		"rate_msgs", rate,
		"avg_delay_ms", avgDelay.Milliseconds(),
		"pipeline", tags)
}
