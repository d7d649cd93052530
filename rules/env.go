package rules

import "github.com/nstehr/masp/model"

// ProbeEnv wraps one dry run and exposes helper methods callable from expr
// expressions.
type ProbeEnv struct {
	Result any
	Player model.Position
	Reward model.Position
}

// Direction returns the returned move, or "" when the result is not one.
func (e ProbeEnv) Direction() string {
	s, ok := e.Result.(string)
	if !ok {
		return ""
	}
	if _, ok := model.ParseDirection(s); !ok {
		return ""
	}
	return s
}

func (e ProbeEnv) IsDirection() bool { return e.Direction() != "" }

// IsNoop reports a null/undefined result, the strategy's way of staying put.
func (e ProbeEnv) IsNoop() bool { return e.Result == nil }

func (e ProbeEnv) Aligned() bool { return e.Player == e.Reward }

func (e ProbeEnv) DistanceBefore() int { return model.Manhattan(e.Player, e.Reward) }

// DistanceAfter is the distance once the returned move is applied. A result
// that is not a direction leaves the player where it is.
func (e ProbeEnv) DistanceAfter() int {
	next := e.Player.Step(model.Direction(e.Direction()))
	return model.Manhattan(next, e.Reward)
}
