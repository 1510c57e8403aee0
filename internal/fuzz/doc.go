// Package fuzztests houses Go fuzz harnesses for the recording readers and
// the correlation engine. They guard against panics on arbitrary input and
// check the snapshot invariants on arbitrary event streams.
package fuzztests
