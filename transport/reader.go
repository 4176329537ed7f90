package transport

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/c360/pipekit/errors"
	"github.com/c360/pipekit/metric"
	"github.com/c360/pipekit/record"
)

// Handler consumes one canonical record.
type Handler func(rec record.Record)

// ReaderConfig wires one read channel.
type ReaderConfig struct {
	// Channel identifies the endpoint for policy and diagnostics
	// ("stdin", "side:1", or caller-supplied).
	Channel string
	// Source selects the byte stream: nil for stdin, an *os.File, a
	// numeric file descriptor, or a path. FIFOs and regular files are
	// treated identically.
	Source any
	// Options carries the module's policy overrides.
	Options Options
	// Globals carries the process-wide policy parameters.
	Globals Globals
	Protocol Protocol

	Logger     *slog.Logger
	Metrics    *metric.Metrics
	Stats      *Stats
	Terminator *Terminator
	// VerboseInput echoes every decoded record to the diagnostic stream.
	VerboseInput bool
}

// Reader decodes records from one channel and hands them to a callback.
type Reader struct {
	cfg    ReaderConfig
	policy Policy
	src    io.ReadCloser

	// OnEOF, when set, runs after the stream ends and before the
	// exit-on-close policy fires, giving modules a last chance to flush
	// buffered state.
	OnEOF func()
}

// NewReader resolves the source and policy. Path sources are opened here;
// opening a FIFO for read blocks until a writer appears, so callers
// construct and run side-channel readers in their own goroutine.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	if cfg.Channel == "" {
		cfg.Channel = ChannelStdin
	}
	src, err := resolveSource(cfg.Source)
	if err != nil {
		return nil, errors.WrapFatal(err, "Reader", "NewReader", "open "+cfg.Channel)
	}
	return &Reader{
		cfg:    cfg,
		policy: ResolvePolicy(cfg.Channel, cfg.Options, cfg.Globals),
		src:    src,
	}, nil
}

func resolveSource(source any) (io.ReadCloser, error) {
	switch src := source.(type) {
	case nil:
		return io.NopCloser(os.Stdin), nil
	case *os.File:
		return src, nil
	case io.ReadCloser:
		return src, nil
	case io.Reader:
		return io.NopCloser(src), nil
	case int:
		return os.NewFile(uintptr(src), fmt.Sprintf("fd:%d", src)), nil
	case string:
		return os.Open(src)
	default:
		return nil, fmt.Errorf("unsupported source %T", source)
	}
}

// Policy returns the resolved channel policy.
func (r *Reader) Policy() Policy {
	return r.policy
}

// Run decodes the stream until EOF, invoking the handler with a canonical
// record per frame. Malformed frames are skipped with a diagnostic. On EOF
// with exitOnClose the process terminates per the termination mode;
// otherwise Run returns nil.
func (r *Reader) Run(handler Handler) error {
	dec := newDecoder(r.cfg.Protocol, r.src)
	log := r.cfg.Logger

	for {
		v, err := dec.next()
		if err != nil {
			var skip errSkippable
			if errors.As(err, &skip) {
				if r.cfg.Metrics != nil {
					r.cfg.Metrics.RecordDecodeError(r.cfg.Channel, string(r.cfg.Protocol))
				}
				if log != nil {
					if r.cfg.Protocol == ProtocolMsgpack {
						log.Error("undecodable frame", "channel", r.cfg.Channel, "error", skip.err)
					} else {
						log.Warn("undecodable line", "channel", r.cfg.Channel, "error", skip.err)
					}
				}
				continue
			}
			if err == io.EOF {
				return r.handleEOF()
			}
			// Stream-level error: attach once, never propagate into the
			// module callback.
			if log != nil {
				log.Error("stream error", "channel", r.cfg.Channel, "error", err)
			}
			return r.handleEOF()
		}

		rec := record.Normalize(v)
		if r.cfg.Metrics != nil {
			r.cfg.Metrics.RecordRead(r.cfg.Channel)
		}
		r.cfg.Stats.Observe(rec)
		if r.cfg.VerboseInput && log != nil {
			log.Info("input", "channel", r.cfg.Channel, "record", EchoJSON(rec))
		}
		handler(rec)
	}
}

func (r *Reader) handleEOF() error {
	_ = r.src.Close()
	if r.OnEOF != nil {
		r.OnEOF()
	}
	if r.policy.ExitOnClose {
		if r.cfg.Logger != nil {
			r.cfg.Logger.Info("channel closed", "channel", r.cfg.Channel)
		}
		if r.cfg.Terminator != nil {
			r.cfg.Terminator.Terminate(0)
		}
	}
	return nil
}
