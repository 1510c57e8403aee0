// Package correlate attaches context spans to display events.
//
// A Run subscribes to a stream. Context spans (records whose type has
// contextual fields) and display events (records of the queried types) are
// pushed onto a timeline; entries drained from it in timestamp order open and
// close spans per thread, and every display entry is handed to a sink along
// with the spans open on its thread at that point.
//
// Three paths exist:
//
//   - simple: nothing contextual is asked for, records go straight to the
//     table or histogram
//   - display: one row per display event, with discovered context columns
//   - aggregation: contextual group-by, values are extracted while draining
//
// All work happens on the stream's delivery goroutine without locks.
package correlate
