package tahoma

import (
	"fmt"
	"math"
	"strconv"
)

// Device-level command names the TaHoma gateway understands.
const (
	CmdOpen                  = "open"
	CmdClose                 = "close"
	CmdSetClosure            = "setClosure"
	CmdSetOrientation        = "setOrientation"
	CmdSetClosureOrientation = "setClosureAndOrientation"
	CmdStop                  = "stop"
	CmdWink                  = "wink"

	// CmdSetClosureLowSpeed replaces the resolved command when a payload
	// asks for low-speed motion. It always carries a single parameter:
	// the target position.
	CmdSetClosureLowSpeed = "setClosureAndLinearSpeed"
)

// Action is a control intent accepted on the command topic.
type Action string

const (
	ActionOpen                        Action = "open"
	ActionClose                       Action = "close"
	ActionCustomPosition              Action = "customPosition"
	ActionCustomRotation              Action = "customRotation"
	ActionCustomOrientation           Action = "customOrientation"
	ActionCustomClosureAndOrientation Action = "customClosureAndOrientation"
	ActionStop                        Action = "stop"
	ActionWink                        Action = "wink"
)

// ControlPayload is the inbound control message. The numeric fields arrive
// as text and are parsed permissively, see parseNumber.
type ControlPayload struct {
	Action      string `json:"action"`
	Position    string `json:"position,omitempty"`
	Orientation string `json:"orientation,omitempty"`
	Repetitions string `json:"repetitions,omitempty"`
	LowSpeed    bool   `json:"lowspeed,omitempty"`
}

// Command is a single device-level command as the gateway consumes it.
type Command struct {
	Name       string    `json:"name"`
	Parameters []float64 `json:"parameters,omitempty"`
}

// ExpectedState is the terminal device condition a command is predicted to
// reach. Instructions without one (stop) are fire-and-forget: the bridge
// never polls for their completion.
type ExpectedState struct {
	Open        *bool    `json:"open,omitempty"`
	Position    *float64 `json:"position,omitempty"`
	Orientation *float64 `json:"orientation,omitempty"`
	Repetitions *float64 `json:"repetitions,omitempty"`
}

// Labels are the human-readable texts shown while a command is in flight and
// once it finished.
type Labels struct {
	Progress string
	Done     string
}

// Instruction is the resolved form of one control payload.
type Instruction struct {
	Command  Command
	Expected *ExpectedState
	Labels   Labels
}

// WireCommand returns the command to put on the wire for this instruction.
// When lowSpeed is set, any command except stop is swapped for the dedicated
// low-speed variant carrying only the target position (0 when the expected
// state has none). Labels and expected state are never affected.
func (in Instruction) WireCommand(lowSpeed bool) Command {
	if !lowSpeed || in.Command.Name == CmdStop {
		return in.Command
	}

	position := 0.0
	if in.Expected != nil && in.Expected.Position != nil {
		position = *in.Expected.Position
	}

	return Command{Name: CmdSetClosureLowSpeed, Parameters: []float64{position}}
}

// Resolve maps a control payload to an instruction. It is pure and
// deterministic; unrecognized actions return ok == false and the caller must
// ignore the payload. Numeric fields are parsed permissively: a malformed
// value becomes NaN and propagates into parameters and expected state
// unchanged instead of being rejected here.
func Resolve(p ControlPayload) (Instruction, bool) {
	switch Action(p.Action) {
	case ActionOpen:
		return Instruction{
			Command:  Command{Name: CmdOpen},
			Expected: &ExpectedState{Open: boolRef(true), Position: numRef(0)},
			Labels:   Labels{Progress: "Opening...", Done: "Open"},
		}, true

	case ActionClose:
		return Instruction{
			Command:  Command{Name: CmdClose},
			Expected: &ExpectedState{Open: boolRef(false), Position: numRef(100)},
			Labels:   Labels{Progress: "Closing...", Done: "Closed"},
		}, true

	case ActionCustomPosition:
		position := parseNumber(p.Position)
		return Instruction{
			Command:  Command{Name: CmdSetClosure, Parameters: []float64{position}},
			Expected: &ExpectedState{Open: boolRef(true), Position: numRef(position)},
			Labels: Labels{
				Progress: fmt.Sprintf("Setting to %s", p.Position),
				Done:     fmt.Sprintf("Set to %s", p.Position),
			},
		}, true

	case ActionCustomRotation, ActionCustomOrientation:
		orientation := parseNumber(p.Orientation)
		return Instruction{
			Command:  Command{Name: CmdSetOrientation, Parameters: []float64{orientation}},
			Expected: &ExpectedState{Orientation: numRef(orientation)},
			Labels: Labels{
				Progress: fmt.Sprintf("Rotating to %s", p.Orientation),
				Done:     fmt.Sprintf("Rotated to %s", p.Orientation),
			},
		}, true

	case ActionCustomClosureAndOrientation:
		position := parseNumber(p.Position)
		orientation := parseNumber(p.Orientation)
		return Instruction{
			Command:  Command{Name: CmdSetClosureOrientation, Parameters: []float64{position, orientation}},
			Expected: &ExpectedState{Position: numRef(position), Orientation: numRef(orientation)},
			Labels: Labels{
				Progress: fmt.Sprintf("Setting to %s, rotating to %s", p.Position, p.Orientation),
				Done:     fmt.Sprintf("Set to %s, rotated to %s", p.Position, p.Orientation),
			},
		}, true

	case ActionStop:
		return Instruction{
			Command: Command{Name: CmdStop},
			Labels:  Labels{Progress: "Stopping...", Done: "Stopped"},
		}, true

	case ActionWink:
		repetitions := parseNumber(p.Repetitions)
		return Instruction{
			Command:  Command{Name: CmdWink, Parameters: []float64{repetitions}},
			Expected: &ExpectedState{Repetitions: numRef(repetitions)},
			Labels:   Labels{Progress: "Winking...", Done: "Winked"},
		}, true
	}

	return Instruction{}, false
}

// parseNumber is the base-10 integer parse applied to the textual numeric
// payload fields. Malformed input yields NaN so the bad value stays visible
// downstream instead of turning into a silent zero.
func parseNumber(s string) float64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return math.NaN()
	}
	return float64(n)
}

func boolRef(v bool) *bool      { return &v }
func numRef(v float64) *float64 { return &v }
