package inject

import (
	"github.com/c360/pipekit/errors"
	"github.com/c360/pipekit/record"
)

// Tag is the pipeline tag appended by the inject module.
const Tag = "inj"

// Config is the inject module configuration.
type Config struct {
	// Fields are the key/value pairs written into every record's data.
	Fields map[string]any `json:"fields"`
	// Override replaces values already present in the record.
	Override bool `json:"override"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if len(c.Fields) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "no fields")
	}
	return nil
}

// Inject stamps configured fields onto records.
type Inject struct {
	cfg Config
}

// New creates an inject processor.
func New(cfg Config) *Inject {
	return &Inject{cfg: cfg}
}

// Process annotates one record in place.
func (in *Inject) Process(rec record.Record) record.Record {
	for k, v := range in.cfg.Fields {
		if !in.cfg.Override {
			if _, present := rec.Data[k]; present {
				continue
			}
		}
		rec.Data[k] = record.CopyValue(v)
	}
	return rec
}
