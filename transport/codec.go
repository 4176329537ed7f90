package transport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/c360/pipekit/errors"
	"github.com/c360/pipekit/record"
)

// Protocol selects a wire format.
type Protocol string

const (
	// ProtocolNDJSON is one JSON document per newline-terminated line.
	ProtocolNDJSON Protocol = "ndjson"
	// ProtocolMsgpack is contiguous self-delimiting MessagePack objects.
	ProtocolMsgpack Protocol = "msgpack"
)

// ParseProtocol validates a protocol parameter value.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(s) {
	case ProtocolNDJSON, ProtocolMsgpack:
		return Protocol(s), nil
	case "":
		return ProtocolNDJSON, nil
	default:
		return "", errors.WrapInvalid(errors.ErrInvalidConfig, "transport", "ParseProtocol", s)
	}
}

// decoder yields raw decoded values from a byte stream. io.EOF marks a
// clean end of stream; errSkippable marks one bad frame.
type decoder interface {
	next() (any, error)
}

// errSkippable wraps a per-frame decode error the reader should log and
// skip without ending the stream.
type errSkippable struct{ err error }

func (e errSkippable) Error() string { return e.err.Error() }
func (e errSkippable) Unwrap() error { return e.err }

func newDecoder(p Protocol, r io.Reader) decoder {
	switch p {
	case ProtocolMsgpack:
		return &msgpackDecoder{dec: msgpack.NewDecoder(r)}
	default:
		return &ndjsonDecoder{scan: newLineScanner(r)}
	}
}

// ndjsonDecoder reads newline-delimited JSON documents. A partial line at
// EOF is flushed as a final decode attempt.
type ndjsonDecoder struct {
	scan *bufio.Scanner
	done bool
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	scan := bufio.NewScanner(r)
	// Records can be large; a single line must fit in the buffer.
	scan.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return scan
}

func (d *ndjsonDecoder) next() (any, error) {
	if d.done {
		return nil, io.EOF
	}
	for {
		if !d.scan.Scan() {
			d.done = true
			if err := d.scan.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		line := bytes.TrimSpace(d.scan.Bytes())
		if len(line) == 0 {
			continue
		}
		var v any
		if err := json.Unmarshal(line, &v); err != nil {
			return nil, errSkippable{errors.WrapInvalid(err, "transport", "decode", "parse line")}
		}
		return v, nil
	}
}

// msgpackDecoder reads contiguous MessagePack objects.
type msgpackDecoder struct {
	dec *msgpack.Decoder
}

func (d *msgpackDecoder) next() (any, error) {
	v, err := d.dec.DecodeInterfaceLoose()
	if err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, errSkippable{errors.WrapInvalid(err, "transport", "decode", "parse object")}
	}
	return v, nil
}

// encoder writes records in a wire format.
type encoder interface {
	encode(w io.Writer, rec record.Record) error
}

func newEncoder(p Protocol) encoder {
	switch p {
	case ProtocolMsgpack:
		return msgpackEncoder{}
	default:
		return ndjsonEncoder{}
	}
}

type ndjsonEncoder struct{}

func (ndjsonEncoder) encode(w io.Writer, rec record.Record) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return errors.WrapInvalid(err, "transport", "encode", "marshal record")
	}
	buf = append(buf, '\n')
	_, err = w.Write(buf)
	return err
}

type msgpackEncoder struct{}

func (msgpackEncoder) encode(w io.Writer, rec record.Record) error {
	buf, err := msgpack.Marshal(rec)
	if err != nil {
		return errors.WrapInvalid(err, "transport", "encode", "marshal record")
	}
	_, err = w.Write(buf)
	return err
}

// EchoJSON renders a record as printable JSON for the verbose echo modes.
func EchoJSON(rec record.Record) string {
	buf, err := json.Marshal(rec)
	if err != nil {
		return "<unencodable record>"
	}
	return string(buf)
}
