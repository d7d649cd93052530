package rules

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Finding is a probe whose condition did not hold.
type Finding struct {
	Rule    string
	Message string
}

func (f Finding) String() string { return f.Rule + ": " + f.Message }

// Engine runs compiled probe rules against a dry run.
type Engine struct {
	rules []*Rule
}

// NewEngine compiles all rule conditions into expr bytecode and sorts by priority.
func NewEngine(rules []*Rule) (*Engine, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &Engine{rules: compiled}, nil
}

// Names returns rule names in evaluation order.
func (e *Engine) Names() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// Evaluate returns a finding for every rule whose condition is false. A
// condition that errors at run time is reported as a finding too.
func (e *Engine) Evaluate(env ProbeEnv) []Finding {
	var findings []Finding
	for _, r := range e.rules {
		result, err := vm.Run(r.program, env)
		if err != nil {
			slog.Warn("probe condition error", "rule", r.Name, "error", err)
			findings = append(findings, Finding{Rule: r.Name, Message: fmt.Sprintf("condition error: %v", err)})
			continue
		}
		if ok, _ := result.(bool); ok {
			continue
		}
		slog.Debug("probe failed", "rule", r.Name, "condition", r.ConditionSrc)
		findings = append(findings, Finding{Rule: r.Name, Message: r.Message})
	}
	return findings
}

// ParseRules builds rules from name → condition pairs supplied by config.
// Names sort alphabetically so evaluation order is stable.
func ParseRules(conditions map[string]string) []*Rule {
	names := make([]string, 0, len(conditions))
	for name := range conditions {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Rule, 0, len(names))
	for _, name := range names {
		out = append(out, &Rule{
			Name:         name,
			ConditionSrc: conditions[name],
			Message:      fmt.Sprintf("condition %q is false", conditions[name]),
		})
	}
	return out
}

func compileRules(rules []*Rule) ([]*Rule, error) {
	for _, r := range rules {
		prog, err := expr.Compile(r.ConditionSrc, expr.Env(ProbeEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.Name, err)
		}
		r.program = prog
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	return rules, nil
}
