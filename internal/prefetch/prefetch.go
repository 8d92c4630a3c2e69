// Package prefetch decides which feed positions should hold a prepared decoder.
//
// The policy is pure: it computes target windows and plans from positions and slot
// states, and leaves acquisition and eviction to the pool.
package prefetch

import (
	"sort"

	"github.com/desertthunder/reel/internal/models"
)

// DefaultRadius prepares one neighbour on each side of the current position.
const DefaultRadius = 1

// TargetWindow returns {current-radius .. current+radius} intersected with
// [0, feedLength), ascending.
func TargetWindow(current, feedLength, radius int) []int {
	if feedLength <= 0 || current < 0 || current >= feedLength {
		return nil
	}
	radius = max(radius, 0)
	lo := max(current-radius, 0)
	hi := min(current+radius, feedLength-1)

	out := make([]int, 0, hi-lo+1)
	for p := lo; p <= hi; p++ {
		out = append(out, p)
	}
	return out
}

// Order sorts positions for acquisition: current first, then by distance, forward
// before backward at equal distance.
func Order(current int, positions []int) []int {
	out := append([]int(nil), positions...)
	w := models.Window{Current: current}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := w.Distance(out[i]), w.Distance(out[j])
		if di != dj {
			return di < dj
		}
		return out[i] > out[j]
	})
	return out
}

// Plan is the result of comparing a target window with the tracked slots.
type Plan struct {
	Window  models.Window
	Target  []int // every position of the window inside the feed
	Acquire []int // positions to acquire, in [Order]
	Evict   []int // tracked positions outside the window, ascending
}

// Diff computes the acquisitions and evictions that move live onto the window.
// Positions in Error are neither acquired nor evicted here; recovery is an
// explicit re-acquisition.
func Diff(window models.Window, feedLength int, live map[int]models.SlotState) Plan {
	plan := Plan{Window: window, Target: TargetWindow(window.Current, feedLength, window.Radius)}

	var acquire []int
	for _, p := range plan.Target {
		if _, tracked := live[p]; !tracked {
			acquire = append(acquire, p)
		}
	}
	plan.Acquire = Order(window.Current, acquire)

	for p, state := range live {
		if state == models.Error {
			continue
		}
		if !window.Contains(p) || p >= feedLength {
			plan.Evict = append(plan.Evict, p)
		}
	}
	sort.Ints(plan.Evict)
	return plan
}
