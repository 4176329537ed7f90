package transport

import (
	"strconv"
	"strings"

	"github.com/c360/pipekit/errors"
)

// Well-known channel identifiers.
const (
	ChannelStdin  = "stdin"
	ChannelStdout = "stdout"
	ChannelStderr = "stderr"
)

// Policy is the per-channel lifecycle policy.
type Policy struct {
	// ExitOnClose terminates the process on EOF (read) or broken pipe
	// (write).
	ExitOnClose bool
	// Retry swallows transient write errors so the caller may retry.
	Retry bool
}

// Options carries a module's per-operation policy overrides. Nil members
// leave the lower-precedence value in effect.
type Options struct {
	ExitOnClose *bool
	Retry       *bool
	// Linger is the legacy alias: exitOnClose = !linger. It sits between
	// the module option and the global parameter in precedence.
	Linger *bool
}

// Globals holds the process-wide per-channel overrides parsed from the
// --exit-on-close and --retry parameters.
type Globals struct {
	ExitOnClose map[string]bool
	Retry       map[string]bool
}

// ParseChannelBools parses a comma-separated "channelId=bool,..." list.
func ParseChannelBools(s string) (map[string]bool, error) {
	out := map[string]bool{}
	if s == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		id, val, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found || id == "" {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "transport",
				"ParseChannelBools", part)
		}
		b, err := strconv.ParseBool(val)
		if err != nil {
			return nil, errors.WrapInvalid(err, "transport", "ParseChannelBools", part)
		}
		out[id] = b
	}
	return out, nil
}

// builtinDefault returns the default policy for a channel: the standard
// streams terminate the process when they close, side channels do not.
func builtinDefault(channel string) Policy {
	switch channel {
	case ChannelStdin, ChannelStdout, ChannelStderr:
		return Policy{ExitOnClose: true}
	default:
		return Policy{}
	}
}

// ResolvePolicy computes the effective policy for one operation. The same
// rules apply to reads and writes: built-in default, then the module
// option, then the legacy linger alias, then the global parameter.
func ResolvePolicy(channel string, opts Options, globals Globals) Policy {
	p := builtinDefault(channel)
	if opts.ExitOnClose != nil {
		p.ExitOnClose = *opts.ExitOnClose
	}
	if opts.Retry != nil {
		p.Retry = *opts.Retry
	}
	if opts.Linger != nil {
		p.ExitOnClose = !*opts.Linger
	}
	if v, ok := globals.ExitOnClose[channel]; ok {
		p.ExitOnClose = v
	}
	if v, ok := globals.Retry[channel]; ok {
		p.Retry = v
	}
	return p
}
