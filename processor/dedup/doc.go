// Package dedup forwards only records whose data shows a meaningful
// change against the last record that was let through.
//
// The comparison is content-based and meta-blind: timestamps never make
// two records different. Fields can be excluded (ignore_fields) or the
// comparison restricted to a whitelist (check_fields), and numeric values
// compare with a configurable tolerance. Nested maps compare one level
// deep by key set and value equality.
package dedup
