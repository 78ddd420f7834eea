// Package trace records what happened during a multi-boot relay.
//
// A relay produces one ordered stream of events across all boot lifetimes:
// boot starts, console lines, hardware events and per-boot outcomes. Every
// event carries a seq from a single monotonic clock so that console output
// and hardware activity interleave deterministically.
//
// The stream has two renderings:
//   - Render: the human transcript used by golden files and the CLI.
//   - MarshalCanonical: sorted-key, NFC-normalized JSON used for the JSON
//     output format and for Digest.
package trace
