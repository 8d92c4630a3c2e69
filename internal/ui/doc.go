// Package ui implements an interactive feed simulator using bubbletea's Elm architecture.
//
// The screen shows a strip of feed positions around the current one with each slot's
// state, its decoder and whether it is bound to the render surface. Keys play the role
// of the host scroll container:
//
//   - j/k drag the feed by a fraction of an item, space releases the drag
//   - l/c/s/p forward like, comment, share and profile interactions
//   - r retries the current slot, R leaves degraded mode
//   - f toggles a simulated decoder fault on the next position, v hides or shows the feed
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// A tick refreshes the controller snapshot so asynchronous preparation shows up without input.
package ui
