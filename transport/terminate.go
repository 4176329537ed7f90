package transport

import (
	"log/slog"
	"os"
	"sync"
	"syscall"
)

// Terminator ends the process when a fatal channel closure occurs.
//
// The default mode signals the process group with SIGTERM so that FIFO
// readers held by sibling processes are released along with this one. The
// clean-exit mode (--exit-instead-of-kill) calls os.Exit instead; both
// modes exist because some runtimes fail to release FIFO readers on
// graceful exit.
type Terminator struct {
	ExitInsteadOfKill bool
	Logger            *slog.Logger

	once sync.Once
	// exit is swapped out by tests.
	exit func(code int)
	kill func() error
}

// NewTerminator builds a terminator in the given mode.
func NewTerminator(exitInsteadOfKill bool, logger *slog.Logger) *Terminator {
	return &Terminator{
		ExitInsteadOfKill: exitInsteadOfKill,
		Logger:            logger,
		exit:              os.Exit,
		kill:              func() error { return syscall.Kill(0, syscall.SIGTERM) },
	}
}

// Terminate ends the process once; later calls are no-ops so racing
// channel closures cannot double-fire.
func (t *Terminator) Terminate(code int) {
	t.once.Do(func() {
		if t.Logger != nil {
			t.Logger.Info("terminating", "code", code, "clean_exit", t.ExitInsteadOfKill)
		}
		if t.ExitInsteadOfKill {
			t.exit(code)
			return
		}
		if err := t.kill(); err != nil {
			t.exit(code)
		}
	})
}
