// Package repositories implements SQLite persistence for the feed and its engagement data.
//
// Key Implementations:
//   - [FeedRepository] : Feed items in display order; implements models.FeedProvider and models.Pager
//   - [ViewRepository] : Per-item view counts fed by settled positions
//   - [InteractionRepository] : Log of forwarded like/comment/share/profile interactions
//   - [EngagementRecorder] : Moves hook callbacks off the control loop into the repositories
//
// Sequence numbers provide stable display ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
