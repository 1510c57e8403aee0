// Package recording reads and writes event recordings.
//
// Supported inputs, chosen by file extension:
//
//	.ctxr       msgpack stream: header (magic, version, types), then records
//	.ctxr.zst   the same stream compressed with zstd
//	.ndjson     a {"types":[...]} line followed by one JSON record per line
//	.otlp.pb    OTLP TracesData; spans become context records
//
// Every reader implements stream.Source.
package recording
