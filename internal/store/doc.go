// Package store keeps a SQLite history of relay runs.
//
// Each relay is stored with its boots and its full event trace:
//   - relays: one row per run (verdict, scenario, trace digest)
//   - boots: one row per boot lifetime (raw reset info, cause, result)
//   - events: the ordered trace, keyed by (relay_id, seq)
//
// A relay is written in a single transaction and never updated afterwards.
//
// # Ordering
//
// All ordering uses logical seq values, never timestamps. Reads always
// include ORDER BY seq ASC so that a stored relay renders exactly like the
// live run did.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
