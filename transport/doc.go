// Package transport moves records over POSIX byte streams: stdin, stdout,
// raw file descriptors, and FIFO or regular-file paths.
//
// Two wire formats are supported, selectable independently per direction:
// line-delimited JSON (one document per line; malformed lines warn and are
// skipped, a partial final line is flushed as a last decode attempt at
// EOF) and contiguous self-delimiting MessagePack objects (decode errors
// are logged at error level and the stream continues).
//
// Every endpoint is a channel with two policy bits. exitOnClose terminates
// the process on EOF (read side) or broken pipe (write side); retry
// swallows the transient write errno family (EPIPE, EAGAIN, ENXIO) so the
// caller may reopen. Policy resolution is deterministic:
//
//	built-in default < module option < legacy linger alias < global parameter
//
// stdin, stdout, and stderr default to exitOnClose; side channels default
// to neither bit.
//
// Writers targeting a FIFO with no reader schedule a reopen every 500 ms
// and silently discard writes until the open succeeds, so a slow consumer
// can attach late without disturbing the primary chain.
package transport
