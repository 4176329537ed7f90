package split

import (
	"github.com/c360/pipekit/record"
	"github.com/c360/pipekit/transport"
)

// Tag is the pipeline tag appended by the split module.
const Tag = "spl"

// Tee fans one record out to a primary writer and N side writers.
type Tee struct {
	primary *transport.Writer
	sides   []*transport.Writer
}

// New creates a tee over the given writers.
func New(primary *transport.Writer, sides []*transport.Writer) *Tee {
	return &Tee{primary: primary, sides: sides}
}

// Process writes one record everywhere. Side errors are already absorbed
// by the writers' retry policy; the primary error is returned so the
// caller can stop on a dead stdout.
func (t *Tee) Process(rec record.Record) error {
	for _, side := range t.sides {
		_ = side.Write(rec)
	}
	return t.primary.Write(rec)
}
