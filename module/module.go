package module

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/zoobzio/clockz"

	"github.com/c360/pipekit/config"
	"github.com/c360/pipekit/errors"
	"github.com/c360/pipekit/logging"
	"github.com/c360/pipekit/metric"
	"github.com/c360/pipekit/record"
	"github.com/c360/pipekit/transport"
)

// Info names a module and its provenance tag.
type Info struct {
	Name string
	Tag  string
}

// Runtime is everything a module body needs to move records.
type Runtime struct {
	Info    Info
	CLI     *config.CLI
	Logger  *slog.Logger
	Clock   clockz.Clock
	Metrics *metric.Metrics
	Stats   *transport.Stats

	Terminator  *transport.Terminator
	Globals     transport.Globals
	InProtocol  transport.Protocol
	OutProtocol transport.Protocol

	VerboseInput  bool
	VerboseOutput bool

	// ConfPath is the --conf value, or empty when the module runs
	// without a configuration file.
	ConfPath string

	mu      sync.Mutex
	closers []io.Closer
}

// RegisterCommonParams declares the universal CLI surface. Called once by
// Run before the module's own registrations.
func RegisterCommonParams() {
	config.RegisterParam(config.ParamSpec{
		Name: "do-tag", Env: "TMCP_DO_TAG", Default: true, Negatable: true,
		Description: "append this module's tag to meta.pipeline",
	})
	config.RegisterParam(config.ParamSpec{
		Name: "verbose", Env: "TMCP_VERBOSE", Negatable: true,
		Description: "enable info-level diagnostics and throughput stats",
	})
	config.RegisterParam(config.ParamSpec{
		Name: "verbose-input", Negatable: true,
		Description: "echo every decoded input record to stderr",
	})
	config.RegisterParam(config.ParamSpec{
		Name: "verbose-output", Negatable: true,
		Description: "echo every encoded output record to stderr",
	})
	config.RegisterParam(config.ParamSpec{
		Name: "verbose-log-level", HasValue: true, Default: "warn",
		Description: "diagnostic level: none, error, warn, info",
	})
	config.RegisterParam(config.ParamSpec{
		Name: "in-protocol", HasValue: true, Default: "ndjson",
		Description: "input wire format: ndjson or msgpack",
	})
	config.RegisterParam(config.ParamSpec{
		Name: "out-protocol", HasValue: true, Default: "ndjson",
		Description: "output wire format: ndjson or msgpack",
	})
	config.RegisterParam(config.ParamSpec{
		Name: "exit-on-close", HasValue: true, Mutable: true,
		Description: "per-channel exit policy, channelId=bool,...",
	})
	config.RegisterParam(config.ParamSpec{
		Name: "retry", HasValue: true, Mutable: true,
		Description: "per-channel retry policy, channelId=bool,...",
	})
	config.RegisterParam(config.ParamSpec{
		Name: "exit-instead-of-kill", Negatable: true, Default: false,
		Description: "terminate with a clean exit instead of signaling the process group",
	})
	config.RegisterParam(config.ParamSpec{
		Name: "config-tag", HasValue: true,
		Description: "subtree selected when loading the configuration file",
	})
	config.RegisterParam(config.ParamSpec{
		Name: "conf", Short: "c", HasValue: true,
		Description: "configuration file path",
	})
	config.RegisterParam(config.ParamSpec{
		Name: "help", Short: "h",
		Description: "print usage and exit",
	})
}

// Run bootstraps a module: parameter registration, CLI resolution, logger,
// stats, signal handling, then the module body. The return value is the
// process exit code.
func Run(info Info, register func(), body func(rt *Runtime) error) int {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	config.SetModuleName(info.Name)
	RegisterCommonParams()
	if register != nil {
		register()
	}

	cli, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			_, _ = fmt.Fprint(os.Stderr, config.Usage())
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n\n%s", info.Name, err, config.Usage())
		return 2
	}

	rt, err := newRuntime(info, cli)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", info.Name, err)
		return 2
	}
	defer rt.Stats.Stop()

	rt.installSignalHandler()

	if err := body(rt); err != nil {
		rt.Logger.Error("module failed", "error", err)
		return 1
	}
	return 0
}

func newRuntime(info Info, cli *config.CLI) (*Runtime, error) {
	record.SetTagging(cli.Bool("do-tag"))

	level := logging.ParseLevel(cli.String("verbose-log-level"))
	if cli.Bool("verbose") {
		level = slog.LevelInfo
	}
	confPath := cli.String("conf")
	logger := logging.Setup(info.Name, confPath, level)

	inProto, err := transport.ParseProtocol(cli.String("in-protocol"))
	if err != nil {
		return nil, err
	}
	outProto, err := transport.ParseProtocol(cli.String("out-protocol"))
	if err != nil {
		return nil, err
	}

	exitOnClose, err := transport.ParseChannelBools(cli.String("exit-on-close"))
	if err != nil {
		return nil, err
	}
	retry, err := transport.ParseChannelBools(cli.String("retry"))
	if err != nil {
		return nil, err
	}

	clock := clockz.RealClock
	metrics := metric.Default().Metrics()
	var stats *transport.Stats
	if cli.Bool("verbose") {
		stats = transport.NewStats(clock, logger, metrics)
		stats.Start()
	} else {
		stats = transport.NewStats(clock, nil, metrics)
	}

	return &Runtime{
		Info:          info,
		CLI:           cli,
		Logger:        logger,
		Clock:         clock,
		Metrics:       metrics,
		Stats:         stats,
		Terminator:    transport.NewTerminator(cli.Bool("exit-instead-of-kill"), logger),
		Globals:       transport.Globals{ExitOnClose: exitOnClose, Retry: retry},
		InProtocol:    inProto,
		OutProtocol:   outProto,
		VerboseInput:  cli.Bool("verbose-input"),
		VerboseOutput: cli.Bool("verbose-output"),
		ConfPath:      confPath,
	}, nil
}

// LoadConfig loads the module's configuration file (--conf) scoped by
// --config-tag or the module's name, or returns nil when no file was
// given.
func (rt *Runtime) LoadConfig() (*config.FileConfig, error) {
	if rt.ConfPath == "" {
		return nil, nil
	}
	return config.LoadFile(rt.CLI, rt.ConfPath, rt.Info.Name)
}

// StdinReader builds the primary input channel.
func (rt *Runtime) StdinReader() (*transport.Reader, error) {
	return transport.NewReader(transport.ReaderConfig{
		Channel:      transport.ChannelStdin,
		Globals:      rt.Globals,
		Protocol:     rt.InProtocol,
		Logger:       rt.Logger,
		Metrics:      rt.Metrics,
		Stats:        rt.Stats,
		Terminator:   rt.Terminator,
		VerboseInput: rt.VerboseInput,
	})
}

// SideReader builds a side input channel over a path. Side channels never
// terminate the process on EOF unless overridden.
func (rt *Runtime) SideReader(channel, path string) (*transport.Reader, error) {
	return transport.NewReader(transport.ReaderConfig{
		Channel:      channel,
		Source:       path,
		Globals:      rt.Globals,
		Protocol:     rt.InProtocol,
		Logger:       rt.Logger,
		Metrics:      rt.Metrics,
		Stats:        rt.Stats,
		Terminator:   rt.Terminator,
		VerboseInput: rt.VerboseInput,
	})
}

// StdoutWriter builds the primary output channel.
func (rt *Runtime) StdoutWriter() (*transport.Writer, error) {
	w, err := transport.NewWriter(transport.WriterConfig{
		Channel:       transport.ChannelStdout,
		Globals:       rt.Globals,
		Protocol:      rt.OutProtocol,
		Clock:         rt.Clock,
		Logger:        rt.Logger,
		Metrics:       rt.Metrics,
		Stats:         rt.Stats,
		Terminator:    rt.Terminator,
		VerboseOutput: rt.VerboseOutput,
	})
	if err == nil {
		rt.RegisterCloser(w)
	}
	return w, err
}

// SideWriter builds a side output channel over a path with retry
// semantics: failures there never disturb the primary chain.
func (rt *Runtime) SideWriter(channel, path string) (*transport.Writer, error) {
	retry := true
	w, err := transport.NewWriter(transport.WriterConfig{
		Channel:       channel,
		Target:        path,
		EnsureExists:  true,
		RDWR:          true,
		Options:       transport.Options{Retry: &retry},
		Globals:       rt.Globals,
		Protocol:      rt.OutProtocol,
		Clock:         rt.Clock,
		Logger:        rt.Logger,
		Metrics:       rt.Metrics,
		Stats:         rt.Stats,
		Terminator:    rt.Terminator,
		VerboseOutput: rt.VerboseOutput,
	})
	if err == nil {
		rt.RegisterCloser(w)
	}
	return w, err
}

// RegisterCloser records an output to close on termination signals.
func (rt *Runtime) RegisterCloser(c io.Closer) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.closers = append(rt.closers, c)
}

// installSignalHandler closes registered outputs and exits when the OS
// asks the module to stop. There is no cooperative cancellation token;
// the operating system provides it.
func (rt *Runtime) installSignalHandler() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-ch
		rt.Logger.Info("received signal", "signal", sig.String())
		rt.mu.Lock()
		for _, c := range rt.closers {
			_ = c.Close()
		}
		rt.mu.Unlock()
		rt.Stats.Stop()
		os.Exit(0)
	}()
}

// Tag appends this module's tag to a record's pipeline.
func (rt *Runtime) Tag(rec record.Record) {
	record.AppendTag(rec.Meta, rt.Info.Tag)
}
