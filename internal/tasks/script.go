package tasks

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

// Action names a replay step.
type Action string

const (
	ActionLoad       Action = "load"
	ActionDrag       Action = "drag"
	ActionSettling   Action = "settling"
	ActionRelease    Action = "release"
	ActionSwipe      Action = "swipe"
	ActionInteract   Action = "interact"
	ActionRetry      Action = "retry"
	ActionReset      Action = "reset"
	ActionShow       Action = "show"
	ActionHide       Action = "hide"
	ActionBackground Action = "background"
	ActionFault      Action = "fault"
	ActionWait       Action = "wait"
	ActionExpect     Action = "expect"
)

// Script is a named sequence of replay steps.
type Script struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Steps       []Step `toml:"step"`
}

// Step is one scripted action. Which fields apply depends on Action.
type Step struct {
	Action   Action                 `toml:"action"`
	Offset   float64                `toml:"offset"`   // drag: offset in items
	To       *int                   `toml:"to"`       // swipe: target position
	Position *int                   `toml:"position"` // interact, retry, fault; interact defaults to current
	Kind     models.InteractionKind `toml:"kind"`     // interact
	On       *bool                  `toml:"on"`       // fault: defaults to true
	Ms       int                    `toml:"ms"`       // wait

	// expect
	Current  *int  `toml:"current"`
	Playing  *int  `toml:"playing"`
	Live     []int `toml:"live"`
	Degraded *bool `toml:"degraded"`
	Length   *int  `toml:"length"`
}

func (s Step) String() string {
	switch s.Action {
	case ActionDrag:
		return fmt.Sprintf("drag %.2f", s.Offset)
	case ActionSwipe:
		return fmt.Sprintf("swipe to %d", deref(s.To, -1))
	case ActionInteract:
		if s.Position != nil {
			return fmt.Sprintf("%s on %d", s.Kind, *s.Position)
		}
		return string(s.Kind)
	case ActionRetry, ActionFault:
		return fmt.Sprintf("%s %d", s.Action, deref(s.Position, -1))
	case ActionWait:
		return fmt.Sprintf("wait %dms", s.Ms)
	default:
		return string(s.Action)
	}
}

// LoadScript reads and validates a replay script from path.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(string(data))
}

// ParseScript decodes and validates a replay script. Unknown keys are rejected.
func ParseScript(data string) (*Script, error) {
	var script Script
	md, err := toml.Decode(data, &script)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse script: %v", shared.ErrInvalidInput, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown script keys: %s", shared.ErrInvalidInput, strings.Join(keys, ", "))
	}

	if err := script.Validate(); err != nil {
		return nil, err
	}
	return &script, nil
}

// Validate checks that every step carries the fields its action needs.
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: script has no steps", shared.ErrInvalidInput)
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("%w: step %d: %v", shared.ErrInvalidInput, i+1, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	switch s.Action {
	case ActionLoad, ActionSettling, ActionRelease, ActionReset, ActionShow, ActionHide, ActionBackground, ActionDrag:
	case ActionSwipe:
		if s.To == nil || *s.To < 0 {
			return fmt.Errorf("swipe needs a non-negative \"to\"")
		}
	case ActionInteract:
		if !s.Kind.Valid() {
			return fmt.Errorf("unknown interaction %q", s.Kind)
		}
	case ActionRetry, ActionFault:
		if s.Position == nil {
			return fmt.Errorf("%s needs a \"position\"", s.Action)
		}
	case ActionWait:
		if s.Ms <= 0 {
			return fmt.Errorf("wait needs a positive \"ms\"")
		}
	case ActionExpect:
		if s.Current == nil && s.Playing == nil && s.Live == nil && s.Degraded == nil && s.Length == nil {
			return fmt.Errorf("expect lists no fields")
		}
	case "":
		return fmt.Errorf("missing action")
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	return nil
}

func deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
