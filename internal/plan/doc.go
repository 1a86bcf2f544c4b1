// Package plan orders segment builds. Segments chain through their previous
// segment, so a segment is stale when its definition changed since its last
// build or when the segment it continues was rebuilt after it.
package plan
