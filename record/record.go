package record

// Meta keys recognized by the substrate. All other keys flow through
// untouched.
const (
	KeyTimestamp = "timestamp"
	KeyPipeline  = "pipeline"
)

// Record is the canonical unit of data flowing between modules.
type Record struct {
	Meta map[string]any `json:"meta" msgpack:"meta"`
	Data map[string]any `json:"data" msgpack:"data"`
}

// Normalize converts an arbitrary decoded value into a canonical Record.
// It is idempotent and never fails:
//
//   - A map with "meta" and "data" members keeps them, coercing non-map
//     members to empty maps.
//   - A map without either member becomes the data payload of a record
//     with empty meta.
//   - Any other value (scalar, list, nil) is wrapped as {value: v}.
//
// A present meta.pipeline is always rewritten to a []string, a malformed
// one becoming the empty list. A missing pipeline becomes the empty list
// when tagging is enabled and stays absent when it is disabled. Unknown
// meta and data keys pass through.
func Normalize(v any) Record {
	switch m := v.(type) {
	case Record:
		m.Meta = normalizeMeta(m.Meta)
		if m.Data == nil {
			m.Data = map[string]any{}
		}
		return m
	case map[string]any:
		metaRaw, hasMeta := m["meta"]
		dataRaw, hasData := m["data"]
		if !hasMeta && !hasData {
			return Record{Meta: normalizeMeta(nil), Data: m}
		}
		rec := Record{}
		if meta, ok := metaRaw.(map[string]any); ok {
			rec.Meta = meta
		}
		rec.Meta = normalizeMeta(rec.Meta)
		if data, ok := dataRaw.(map[string]any); ok {
			rec.Data = data
		} else {
			rec.Data = map[string]any{}
		}
		return rec
	default:
		return Record{Meta: normalizeMeta(nil), Data: map[string]any{"value": v}}
	}
}

// normalizeMeta ensures meta is a map and meta.pipeline, when present or
// when tagging is enabled, is an ordered []string.
func normalizeMeta(meta map[string]any) map[string]any {
	if meta == nil {
		meta = map[string]any{}
	}
	if !TaggingEnabled() {
		// Observational tagging only: leave an existing pipeline as-is
		// apart from type coercion, never create one.
		if raw, ok := meta[KeyPipeline]; ok {
			meta[KeyPipeline] = coercePipeline(raw)
		}
		return meta
	}
	meta[KeyPipeline] = coercePipeline(meta[KeyPipeline])
	return meta
}

func coercePipeline(raw any) []string {
	switch p := raw.(type) {
	case []string:
		return p
	case []any:
		tags := make([]string, 0, len(p))
		for _, t := range p {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	default:
		return []string{}
	}
}

// Timestamp returns meta.timestamp as int64 milliseconds and whether it was
// present as a finite numeric value.
func (r Record) Timestamp() (int64, bool) {
	ms, ok := NumericTimestamp(r.Meta[KeyTimestamp])
	return ms, ok
}

// Pipeline returns the record's tag chain, or nil when absent.
func (r Record) Pipeline() []string {
	if tags, ok := r.Meta[KeyPipeline].([]string); ok {
		return tags
	}
	return nil
}

// DeepCopyData returns a copy of m deep enough that primitives, nested
// maps, and lists are independent of the original.
func DeepCopyData(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

// CopyValue returns a deep copy of a single value.
func CopyValue(v any) any {
	return deepCopyValue(v)
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return DeepCopyData(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = deepCopyValue(e)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}

// Copy returns a record whose meta and data are deep copies of r's.
func (r Record) Copy() Record {
	return Record{Meta: DeepCopyData(r.Meta), Data: DeepCopyData(r.Data)}
}
