package rules

import (
	"testing"

	"github.com/expr-lang/expr"
	"github.com/nstehr/masp/model"
)

func TestDefaultRulesCompile(t *testing.T) {
	engine, err := NewEngine(DefaultRules())
	if err != nil {
		t.Fatalf("NewEngine(DefaultRules()) failed: %v", err)
	}
	if len(engine.rules) != 2 {
		t.Errorf("expected 2 rules, got %d", len(engine.rules))
	}
	// Verify priority ordering (descending).
	for i := 1; i < len(engine.rules); i++ {
		if engine.rules[i].Priority > engine.rules[i-1].Priority {
			t.Errorf("rules not sorted by priority: %s (%d) > %s (%d)",
				engine.rules[i].Name, engine.rules[i].Priority,
				engine.rules[i-1].Name, engine.rules[i-1].Priority)
		}
	}
	for _, r := range DefaultRules() {
		if _, err := expr.Compile(r.ConditionSrc, expr.Env(ProbeEnv{}), expr.AsBool()); err != nil {
			t.Errorf("rule %q failed to compile: %v\ncondition: %s", r.Name, err, r.ConditionSrc)
		}
	}
}

func TestNewEngineRejectsBadCondition(t *testing.T) {
	_, err := NewEngine([]*Rule{{Name: "broken", ConditionSrc: `Result +`}})
	if err == nil {
		t.Fatal("expected compile error for malformed condition")
	}
	_, err = NewEngine([]*Rule{{Name: "not-bool", ConditionSrc: `DistanceAfter()`}})
	if err == nil {
		t.Fatal("expected compile error for non-boolean condition")
	}
}

func TestEvaluateDefaultRules(t *testing.T) {
	engine, err := NewEngine(DefaultRules())
	if err != nil {
		t.Fatal(err)
	}
	player := model.Position{X: 1, Y: 1}
	reward := model.Position{X: 2, Y: 2}

	tests := []struct {
		name   string
		result any
		want   []string
	}{
		{"right approaches", "right", nil},
		{"down approaches", "down", nil},
		{"null is a noop", nil, nil},
		{"left moves away", "left", []string{"approaches-reward"}},
		{"number is not a move", int64(3), []string{"returns-direction"}},
		{"unknown word", "north", []string{"returns-direction"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			findings := engine.Evaluate(ProbeEnv{Result: tc.result, Player: player, Reward: reward})
			if len(findings) != len(tc.want) {
				t.Fatalf("got findings %v, want rules %v", findings, tc.want)
			}
			for i, f := range findings {
				if f.Rule != tc.want[i] {
					t.Errorf("finding %d = %q, want %q", i, f.Rule, tc.want[i])
				}
			}
		})
	}
}

func TestParseRules(t *testing.T) {
	rules := ParseRules(map[string]string{
		"z-last":  `true`,
		"a-first": `Aligned() || IsDirection()`,
	})
	if len(rules) != 2 || rules[0].Name != "a-first" || rules[1].Name != "z-last" {
		t.Fatalf("ParseRules order = %v", rules)
	}
	engine, err := NewEngine(rules)
	if err != nil {
		t.Fatal(err)
	}
	findings := engine.Evaluate(ProbeEnv{Result: nil, Player: model.Position{}, Reward: model.Position{X: 1}})
	if len(findings) != 1 || findings[0].Rule != "a-first" {
		t.Errorf("findings = %v, want a-first", findings)
	}
	if got := engine.Names(); len(got) != 2 {
		t.Errorf("Names() = %v", got)
	}
}
