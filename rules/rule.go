package rules

import "github.com/expr-lang/expr/vm"

// Rule is an expectation about a strategy's dry-run result. The condition
// must hold; when it does not, Message is reported as a finding.
type Rule struct {
	Name         string      // human-readable identifier
	Priority     int         // higher = evaluated first
	ConditionSrc string      // expr source (preserved for logging)
	Message      string      // reported when the condition is false
	program      *vm.Program // compiled bytecode
}

// DefaultRules are the probes every strategy is checked against.
func DefaultRules() []*Rule {
	return []*Rule{
		{
			Name:         "returns-direction",
			Priority:     100,
			ConditionSrc: `IsNoop() || IsDirection()`,
			Message:      "result is neither a direction nor null",
		},
		{
			Name:         "approaches-reward",
			Priority:     50,
			ConditionSrc: `!IsDirection() || DistanceAfter() < DistanceBefore()`,
			Message:      "move does not approach the reward",
		},
	}
}
