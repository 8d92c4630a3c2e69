// Package models defines the domain types shared by the feed playback core.
//
// The package contains three categories of types:
//
// 1. Feed data supplied by external collaborators
//   - [FeedItem] : One playable entry of the vertical feed
//   - [FeedProvider] : Source of the ordered item list (SQLite, HTTP, S3)
//   - [Pager] : Optional extension for near-end pagination
//
// 2. Playback state
//   - [SlotState] : Lifecycle of one feed position (Unloaded through Error)
//   - [ErrorKind] and [SlotError] : Slot-local failures reported upward
//   - [Window] : The prefetch window around the current position
//   - [ScrollState] : Scroll container state reported by the host
//
// 3. Collaborator contracts
//   - [Decoder], [DecoderFactory] : The decode+render pipeline behind each slot
//   - [Surface] : The single visible render target
//   - [Event], [Interaction] : Notifications flowing out of the core
package models
