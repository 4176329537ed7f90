package transport

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/c360/pipekit/errors"
	"github.com/c360/pipekit/metric"
	"github.com/c360/pipekit/record"
)

// fifoRetryInterval is how often a writer re-attempts to open a FIFO that
// has no reader yet.
const fifoRetryInterval = 500 * time.Millisecond

// WriterConfig wires one write channel.
type WriterConfig struct {
	// Channel identifies the endpoint for policy and diagnostics.
	Channel string
	// Target selects the byte stream: nil for stdout, an *os.File, a
	// numeric file descriptor, or a path.
	Target any
	// EnsureExists creates a missing path target as an empty regular file
	// (with a warning that timing will degrade versus a FIFO).
	EnsureExists bool
	// RDWR opens path targets read-write non-blocking, tolerating FIFOs
	// without readers at open time.
	RDWR bool

	Options  Options
	Globals  Globals
	Protocol Protocol

	Clock      clockz.Clock
	Logger     *slog.Logger
	Metrics    *metric.Metrics
	Stats      *Stats
	Terminator *Terminator
	// VerboseOutput echoes every encoded record to the diagnostic stream.
	VerboseOutput bool
}

// Writer encodes records onto one channel, with lazy FIFO reconnect and
// per-channel error policy.
type Writer struct {
	cfg    WriterConfig
	policy Policy
	enc    encoder

	mu         sync.Mutex
	dst        io.Writer
	closer     io.Closer
	path       string // non-empty for path targets, enables reopen
	reopening  bool
	errOnce    sync.Once
}

// NewWriter resolves the target and policy. Path targets that cannot be
// opened yet (FIFO with no reader) start in the reopen loop rather than
// failing.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Channel == "" {
		cfg.Channel = ChannelStdout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockz.RealClock
	}
	w := &Writer{
		cfg:    cfg,
		policy: ResolvePolicy(cfg.Channel, cfg.Options, cfg.Globals),
		enc:    newEncoder(cfg.Protocol),
	}

	switch target := cfg.Target.(type) {
	case nil:
		w.dst = os.Stdout
	case *os.File:
		w.dst = target
		w.closer = target
	case io.WriteCloser:
		w.dst = target
		w.closer = target
	case io.Writer:
		w.dst = target
	case int:
		f := os.NewFile(uintptr(target), fmt.Sprintf("fd:%d", target))
		w.dst = f
		w.closer = f
	case string:
		w.path = target
		if cfg.EnsureExists {
			ensurePathExists(target, cfg.Logger)
		}
		if err := w.open(); err != nil {
			if !errors.Is(err, syscall.ENXIO) {
				return nil, errors.WrapFatal(err, "Writer", "NewWriter", "open "+target)
			}
			w.scheduleReopen()
		}
	default:
		return nil, errors.WrapInvalid(fmt.Errorf("unsupported target %T", cfg.Target),
			"Writer", "NewWriter", cfg.Channel)
	}

	return w, nil
}

// ensurePathExists creates a missing target as an empty regular file.
func ensurePathExists(path string, log *slog.Logger) {
	if _, err := os.Stat(path); err == nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		if log != nil {
			log.Warn("cannot create target", "path", path, "error", err)
		}
		return
	}
	_ = f.Close()
	if log != nil {
		log.Warn("created regular file for side channel; timing will degrade versus a FIFO",
			"path", path)
	}
}

// open opens the path target. FIFOs are opened non-blocking so an absent
// reader surfaces as ENXIO instead of blocking the module.
func (w *Writer) open() error {
	flags := os.O_WRONLY | syscall.O_NONBLOCK
	if w.cfg.RDWR {
		flags = os.O_RDWR | syscall.O_NONBLOCK
	}
	f, err := os.OpenFile(w.path, flags, 0o644)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.dst = f
	w.closer = f
	w.mu.Unlock()
	return nil
}

// scheduleReopen arms the 500 ms retry loop. Writes are discarded while
// the channel is down.
func (w *Writer) scheduleReopen() {
	w.mu.Lock()
	if w.reopening {
		w.mu.Unlock()
		return
	}
	w.reopening = true
	w.dst = nil
	if w.closer != nil {
		_ = w.closer.Close()
		w.closer = nil
	}
	w.mu.Unlock()

	if w.cfg.Logger != nil {
		w.cfg.Logger.Info("no reader on channel, retrying", "channel", w.cfg.Channel, "path", w.path)
	}

	var attempt func()
	attempt = func() {
		if err := w.open(); err != nil {
			w.cfg.Clock.AfterFunc(fifoRetryInterval, attempt)
			return
		}
		w.mu.Lock()
		w.reopening = false
		w.mu.Unlock()
		if w.cfg.Logger != nil {
			w.cfg.Logger.Info("channel reopened", "channel", w.cfg.Channel, "path", w.path)
		}
	}
	w.cfg.Clock.AfterFunc(fifoRetryInterval, attempt)
}

// Policy returns the resolved channel policy.
func (w *Writer) Policy() Policy {
	return w.policy
}

// Write encodes one record onto the channel.
//
// Broken pipe on an exitOnClose channel terminates the process. Transient
// errors (EPIPE, EAGAIN, ENXIO) on a retry channel are swallowed so the
// caller may keep going; other errors are logged once per target.
func (w *Writer) Write(rec record.Record) error {
	// The wire always carries the canonical shape, whatever the module
	// handed over.
	rec = record.Normalize(rec)

	// Writes from the record loop and from timers interleave; the frame
	// must hit the stream whole.
	w.mu.Lock()
	dst := w.dst
	if dst == nil {
		// Channel is down and the reopen timer owns recovery.
		w.mu.Unlock()
		return nil
	}
	if w.cfg.VerboseOutput && w.cfg.Logger != nil {
		w.cfg.Logger.Info("output", "channel", w.cfg.Channel, "record", EchoJSON(rec))
	}
	err := w.enc.encode(dst, rec)
	w.mu.Unlock()

	if err == nil {
		if w.cfg.Metrics != nil {
			w.cfg.Metrics.RecordWritten(w.cfg.Channel)
		}
		w.cfg.Stats.Observe(rec)
		return nil
	}

	return w.handleWriteError(err)
}

func (w *Writer) handleWriteError(err error) error {
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe) {
		if w.policy.ExitOnClose {
			if w.cfg.Logger != nil {
				w.cfg.Logger.Info("channel closed", "channel", w.cfg.Channel)
			}
			if w.cfg.Terminator != nil {
				w.cfg.Terminator.Terminate(0)
			}
			return err
		}
	}

	if w.policy.Retry && errors.IsTransient(err) {
		if w.cfg.Metrics != nil {
			w.cfg.Metrics.RecordWriteError(w.cfg.Channel, "transient")
		}
		if w.path != "" {
			w.scheduleReopen()
		}
		return nil
	}

	if w.cfg.Metrics != nil {
		w.cfg.Metrics.RecordWriteError(w.cfg.Channel, "error")
	}
	// Attach the stream-level diagnostic once per target; repeated
	// failures on a dead channel should not flood stderr.
	w.errOnce.Do(func() {
		if w.cfg.Logger != nil {
			w.cfg.Logger.Error("write failed", "channel", w.cfg.Channel, "error", err)
		}
	})
	return err
}

// Close releases a path or fd target. Stdout is left open.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closer != nil {
		err := w.closer.Close()
		w.closer = nil
		w.dst = nil
		return err
	}
	return nil
}
