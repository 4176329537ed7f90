package delay

import (
	"sort"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/c360/pipekit/errors"
	"github.com/c360/pipekit/pkg/timestamp"
	"github.com/c360/pipekit/record"
)

// Tag is the pipeline tag appended by the delay module.
const Tag = "dly"

// Config is the delay module configuration.
type Config struct {
	// DelayMs is the logical delay added to every record's timestamp.
	DelayMs float64 `json:"delay_ms"`
	// MaxDelayMs caps the effective delay; zero means no cap.
	MaxDelayMs float64 `json:"max_delay_ms"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.DelayMs < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"delay must not be negative")
	}
	return nil
}

// Delay returns the effective logical delay.
func (c *Config) Delay() time.Duration {
	d := c.DelayMs
	if c.MaxDelayMs > 0 && d > c.MaxDelayMs {
		d = c.MaxDelayMs
	}
	return time.Duration(d * float64(time.Millisecond))
}

// Emit receives released records, stamped with their emission timestamp.
type Emit func(rec record.Record)

type entry struct {
	tsOut int64
	rec   record.Record
}

// Delay buffers records until the input watermark covers their emission
// time.
type Delay struct {
	delay     int64
	clock     clockz.Clock
	emit      Emit
	watermark int64
	buffer    []entry // ascending tsOut
}

// New creates a delay processor.
func New(cfg Config, clock clockz.Clock, emit Emit) *Delay {
	return &Delay{
		delay: cfg.Delay().Milliseconds(),
		clock: clock,
		emit:  emit,
	}
}

// Process buffers one record and releases everything the advanced
// watermark now covers. Records without a numeric timestamp take the
// current wall clock as their input time.
func (d *Delay) Process(rec record.Record) {
	tsIn, ok := rec.Timestamp()
	if !ok {
		tsIn = timestamp.ToUnixMs(d.clock.Now())
	}
	d.watermark = timestamp.Max(d.watermark, tsIn)

	buffered := entry{tsOut: tsIn + d.delay, rec: rec.Copy()}
	pos := sort.Search(len(d.buffer), func(i int) bool { return d.buffer[i].tsOut > buffered.tsOut })
	d.buffer = append(d.buffer, entry{})
	copy(d.buffer[pos+1:], d.buffer[pos:])
	d.buffer[pos] = buffered

	d.release()
}

func (d *Delay) release() {
	emitted := 0
	for emitted < len(d.buffer) && d.buffer[emitted].tsOut <= d.watermark {
		e := d.buffer[emitted]
		e.rec.Meta[record.KeyTimestamp] = e.tsOut
		d.emit(e.rec)
		emitted++
	}
	if emitted > 0 {
		d.buffer = append(d.buffer[:0], d.buffer[emitted:]...)
	}
}

// Flush releases the whole buffer regardless of the watermark. Called on
// EOF so the tail of a stream is never lost.
func (d *Delay) Flush() {
	for _, e := range d.buffer {
		e.rec.Meta[record.KeyTimestamp] = e.tsOut
		d.emit(e.rec)
	}
	d.buffer = nil
}

// Pending reports the number of buffered records.
func (d *Delay) Pending() int {
	return len(d.buffer)
}
