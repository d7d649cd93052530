// Package sandbox dry-runs untrusted strategy bodies in an isolated
// JavaScript runtime before they are deployed.
package sandbox

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dop251/goja"
	"github.com/nstehr/masp/model"
	"github.com/nstehr/masp/rules"
)

// Sample input for the dry run.
var (
	SamplePlayer = model.Position{X: 1, Y: 1}
	SampleReward = model.Position{X: 2, Y: 2}
)

const (
	harnessName      = "strategy.js"
	maxCallStackSize = 512
)

// Validator compiles and executes a candidate once inside the fixed
// calling convention (px, py, rx, ry). It proves the body runs, not that it
// reaches the reward.
type Validator struct {
	probes  *rules.Engine
	timeout time.Duration
}

// New returns a validator. probes may be nil to skip advisory checks.
func New(probes *rules.Engine, timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Validator{probes: probes, timeout: timeout}
}

// Harness wraps a body in the function the game server will call.
func Harness(body string) string {
	return fmt.Sprintf(`function testStrategy(playerPos, rewardPos) {
    const { x: px, y: py } = playerPos;
    const { x: rx, y: ry } = rewardPos;
%s
}
testStrategy({x: %d, y: %d}, {x: %d, y: %d});
`, body, SamplePlayer.X, SamplePlayer.Y, SampleReward.X, SampleReward.Y)
}

func (v *Validator) Validate(c model.Candidate) model.Validated {
	out := v.validate(c)
	if out.Valid() {
		slog.Info("strategy validated", "origin", c.Origin, "result", out.Result, "findings", out.Findings)
	} else {
		slog.Warn("strategy rejected", "origin", c.Origin, "verdict", out.Verdict, "reason", out.Reason)
	}
	return out
}

func (v *Validator) validate(c model.Candidate) model.Validated {
	if !model.ContainsDirective(c.Source) {
		return model.Validated{Candidate: c, Verdict: model.VerdictNoDirective, Reason: "no movement directive in source"}
	}

	prog, err := goja.Compile(harnessName, Harness(c.Source), false)
	if err != nil {
		return model.Validated{Candidate: c, Verdict: model.VerdictSyntaxError, Reason: err.Error()}
	}

	result, err := v.run(prog)
	if err != nil {
		return model.Validated{Candidate: c, Verdict: model.VerdictRuntimeError, Reason: err.Error()}
	}

	out := model.Validated{Candidate: c, Verdict: model.VerdictValid, Result: result}
	if v.probes != nil {
		for _, f := range v.probes.Evaluate(rules.ProbeEnv{Result: result, Player: SamplePlayer, Reward: SampleReward}) {
			out.Findings = append(out.Findings, f.String())
		}
	}
	return out
}

// run executes prog in a fresh runtime that only has the ECMAScript
// built-ins, minus dynamic code evaluation. The runtime is interrupted
// after the timeout.
func (v *Validator) run(prog *goja.Program) (result any, err error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStackSize)
	lockDown(vm)

	timer := time.AfterFunc(v.timeout, func() {
		vm.Interrupt(errTimeout)
	})
	defer timer.Stop()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runtime panic: %v", r)
		}
	}()

	val, err := vm.RunProgram(prog)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("execution exceeded %s", v.timeout)
		}
		return nil, err
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	return val.Export(), nil
}

var errTimeout = errors.New("strategy timed out")

// lockDown removes every route from a string to code: eval, the Function
// global and the constructor reachable from any function value.
func lockDown(vm *goja.Runtime) {
	global := vm.GlobalObject()
	_ = global.Delete("eval")
	for _, src := range []string{"(function () {})", "(async function () {})"} {
		fn, err := vm.RunString(src)
		if err != nil {
			continue
		}
		if proto := fn.ToObject(vm).Prototype(); proto != nil {
			_ = proto.DefineDataProperty("constructor", goja.Undefined(), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
		}
	}
	_ = global.Delete("Function")
}
