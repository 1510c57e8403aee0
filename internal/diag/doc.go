// Package diag defines the diagnostics reported while a query run is being
// prepared.
//
// Preparation produces findings on two independent channels:
//
//   - syntax (SYN1xxx): the query text itself is malformed,
//     e.g. an empty reference or an aggregate without group-by;
//   - resolution (RES2xxx): the query is well formed but names an
//     event type or field the recording does not know.
//
// A third, informational range (IDX3xxx) reports contextual index
// decisions such as simple-name collisions, and IO4xxx covers recordings
// that could not be opened. Errors on either channel stop
// the affected run before any event is processed; they never interrupt a
// drain that is already under way.
//
// Producers emit through a Reporter; BagReporter collects into a Bag, which
// supports limits, channel filtering, sorting and deduplication.
package diag
