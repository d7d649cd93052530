package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nstehr/masp/llm"
	"github.com/nstehr/masp/model"
)

// DefaultStrategy closes the horizontal gap first, then the vertical one,
// and stays put once aligned. It must always pass the sandbox.
const DefaultStrategy = `// Default strategy: horizontal first, then vertical
if (rx < px) {
    return "left";
} else if (rx > px) {
    return "right";
}
if (ry < py) {
    return "up";
} else if (ry > py) {
    return "down";
}
return null;`

// DefaultCandidate wraps DefaultStrategy.
func DefaultCandidate() model.Candidate {
	return model.Candidate{Source: DefaultStrategy, Origin: model.OriginDefault}
}

// Strategist turns a learned rule catalog into a strategy candidate by
// consulting the generation backend. It never fails: any backend problem
// yields the default strategy.
type Strategist struct {
	generator llm.Generator
	timeout   time.Duration
}

// NewStrategist creates a strategist. A nil generator means the backend is
// unavailable and every call returns the default strategy.
func NewStrategist(generator llm.Generator, timeout time.Duration) *Strategist {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Strategist{generator: generator, timeout: timeout}
}

func (s *Strategist) Author(ctx context.Context, catalog model.Catalog) model.Candidate {
	if s.generator == nil {
		slog.Warn("generation backend unavailable, using default strategy")
		return DefaultCandidate()
	}

	prompt := BuildPrompt(catalog)
	slog.Info("generating strategy", "capabilities", len(catalog), "promptBytes", len(prompt))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.generator.Generate(ctx, prompt)
	c := Decide(out, err)
	switch {
	case err != nil:
		slog.Error("strategy generation failed, using default strategy", "error", err)
	case c.Origin == model.OriginDefault:
		slog.Warn("no strategy found in completion, using default strategy", "completionBytes", len(out))
	default:
		slog.Info("strategy generated", "code", c.Source)
	}
	return c
}

// Decide is the pure fallback decision over a backend call's outcome.
func Decide(output string, err error) model.Candidate {
	if err != nil {
		return DefaultCandidate()
	}
	code, ok := Extract(output)
	if !ok {
		return DefaultCandidate()
	}
	return model.Candidate{Source: code, Origin: model.OriginGenerated}
}

// Extract strips one surrounding markdown fence (with an optional language
// tag) and requires at least one move keyword in what remains.
func Extract(text string) (string, bool) {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		} else {
			text = ""
		}
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if !model.ContainsDirective(text) {
		return "", false
	}
	return text, true
}

// BuildPrompt produces the synthesis request for a catalog. It is
// deterministic: the same catalog always yields the same prompt.
func BuildPrompt(catalog model.Catalog) string {
	var b strings.Builder

	b.WriteString("You are an AI agent that writes game strategies as code. Your task is to write a strategy for a simple grid game.\n\n")

	b.WriteString("Game objective:\n")
	b.WriteString("The player ('P') must collect the reward ('R') on a map surrounded by walls ('#').\n")
	b.WriteString("The map uses coordinates where (0,0) is the top-left corner.\n\n")

	b.WriteString("Rules and tools available (via API):\n")
	b.WriteString(catalog.Render())
	b.WriteString("\n\n")

	b.WriteString("Task:\n")
	b.WriteString("Write a JavaScript function that receives the player position `playerPos` (an object with `x` and `y`) ")
	b.WriteString("and the reward position `rewardPos` (also with `x` and `y`) and returns the next best direction for the player.\n")
	fmt.Fprintf(&b, "Allowed return values: %s, or null when the player is already on the reward.\n\n", quotedDirections())

	b.WriteString("Strategy requirements:\n")
	b.WriteString("- The logic must fit in a single function.\n")
	b.WriteString("- Move along one axis and then the other to reach the reward.\n")
	b.WriteString("- Diagonal moves are not allowed.\n")
	b.WriteString("- Minimize the Manhattan distance to the reward.\n\n")

	b.WriteString("Output format:\n")
	b.WriteString("Return ONLY the body of the JavaScript function, without the `function(...) { ... }` declaration.\n")
	b.WriteString("The variables px, py (player) and rx, ry (reward) are already defined.\n\n")

	b.WriteString("Example body:\n```javascript\n")
	b.WriteString(DefaultStrategy)
	b.WriteString("\n```\n\n")

	b.WriteString("Now write the function body based on your analysis of the game rules.\n")
	return b.String()
}

func quotedDirections() string {
	quoted := make([]string, len(model.Directions))
	for i, d := range model.Directions {
		quoted[i] = `"` + string(d) + `"`
	}
	return strings.Join(quoted, ", ")
}
