// Package tasks replays scripted gesture sessions against a feed controller.
//
// # Scripts
//
// A replay script is a TOML file holding an ordered list of steps:
//
//	name = "fling past a broken clip"
//
//	[[step]]
//	action = "load"
//
//	[[step]]
//	action = "fault"
//	position = 2
//
//	[[step]]
//	action = "swipe"
//	to = 2
//
//	[[step]]
//	action = "expect"
//	current = 2
//	playing = -1
//
// Gesture actions (drag, settling, release, swipe) map onto scroll callbacks.
// Control actions (interact, retry, reset, show, hide, fault, wait) map onto the
// remaining controller operations. An expect step compares a controller snapshot
// against the listed fields; mismatches are collected, not fatal.
//
// # Progress Reporting
//
// [ReplayEngine.Run] emits a [ProgressUpdate] per step on an optional channel.
// Updates use select with default so a slow reader never stalls the replay.
package tasks
