package record

import (
	"sync/atomic"

	"github.com/c360/pipekit/pkg/timestamp"
)

// taggingEnabled is the process-wide tag switch (--do-tag). It is a
// process-level service rather than a parameter threaded through every
// call: NewMeta, AppendTag and Normalize consult it directly.
var taggingEnabled atomic.Bool

func init() {
	taggingEnabled.Store(true)
}

// SetTagging enables or disables provenance tagging for the process.
func SetTagging(enabled bool) {
	taggingEnabled.Store(enabled)
}

// TaggingEnabled reports whether provenance tagging is active.
func TaggingEnabled() bool {
	return taggingEnabled.Load()
}

// NewMeta builds a meta map stamped with the current wall-clock time in
// milliseconds. When tagging is enabled the pipeline is initialized with
// the creating module's tag.
func NewMeta(tag string) map[string]any {
	meta := map[string]any{KeyTimestamp: timestamp.Now()}
	if TaggingEnabled() {
		meta[KeyPipeline] = []string{tag}
	}
	return meta
}

// AppendTag pushes a tag onto meta.pipeline in place. It is a no-op when
// tagging is disabled; a missing pipeline is created first.
func AppendTag(meta map[string]any, tag string) {
	if !TaggingEnabled() || meta == nil {
		return
	}
	tags, _ := meta[KeyPipeline].([]string)
	meta[KeyPipeline] = append(tags, tag)
}
