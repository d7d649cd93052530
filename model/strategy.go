package model

import "fmt"

// Origin records where a strategy's source text came from.
type Origin int

const (
	OriginGenerated Origin = iota // produced by the generation backend
	OriginDefault                 // built-in fallback
)

func (o Origin) String() string {
	switch o {
	case OriginGenerated:
		return "generated"
	case OriginDefault:
		return "default"
	}
	return fmt.Sprintf("origin(%d)", int(o))
}

// Candidate is a strategy body awaiting validation. It is passed by value
// and replaced, never mutated.
type Candidate struct {
	Source string
	Origin Origin
}

// Verdict is the outcome of a sandbox dry run.
type Verdict int

const (
	VerdictValid Verdict = iota
	VerdictNoDirective
	VerdictSyntaxError
	VerdictRuntimeError
)

func (v Verdict) String() string {
	switch v {
	case VerdictValid:
		return "valid"
	case VerdictNoDirective:
		return "no_directive"
	case VerdictSyntaxError:
		return "syntax_error"
	case VerdictRuntimeError:
		return "runtime_error"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// Validated is a candidate tagged with its verdict. Only Valid() strategies
// may be deployed.
type Validated struct {
	Candidate
	Verdict Verdict
	Reason  string // empty when valid

	// Result is the value the strategy returned for the sample input.
	Result any
	// Findings are advisory probe failures; they never change Verdict.
	Findings []string
}

func (v Validated) Valid() bool { return v.Verdict == VerdictValid }
