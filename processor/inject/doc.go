// Package inject annotates every record with configured static fields,
// useful for stamping a source name, a unit, or a constant calibration
// value onto a stream.
//
// With override disabled (the default), fields already present in the
// record win and the injected value is ignored; with override enabled the
// configured value always lands.
package inject
