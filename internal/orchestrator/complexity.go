package orchestrator

import (
	"fmt"
	"strings"
)

// Complexity grades how much is at stake in a request.
type Complexity string

const (
	Low      Complexity = "low"
	Medium   Complexity = "medium"
	High     Complexity = "high"
	Critical Complexity = "critical"
)

// Levels lists complexities from least to most demanding.
var Levels = []Complexity{Low, Medium, High, Critical}

// ParseComplexity accepts a level name in any case. Empty means Medium.
func ParseComplexity(s string) (Complexity, error) {
	if s == "" {
		return Medium, nil
	}
	c := Complexity(strings.ToLower(strings.TrimSpace(s)))
	for _, l := range Levels {
		if c == l {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid complexity %q: must be one of low, medium, high, critical", s)
}

// Policy is what a complexity level asks of dispatch.
type Policy struct {
	Preferred   []string `json:"preferred"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature float64  `json:"temperature"`
}

// Policies maps each complexity to its policy.
type Policies map[Complexity]Policy

// DefaultPolicies returns the built-in complexity table. Higher complexity
// prefers more capable models, allows longer output and lowers temperature.
func DefaultPolicies() Policies {
	return Policies{
		Low: {
			Preferred:   []string{"ollama-llama2:7b", "llama-cpp-quantized-7b", "ollama-codellama", "openai-gpt-3.5-turbo"},
			MaxTokens:   500,
			Temperature: 0.7,
		},
		Medium: {
			Preferred:   []string{"ollama-llama2:13b", "openai-gpt-3.5-turbo", "ollama-llama2:7b", "llama-cpp-quantized-7b"},
			MaxTokens:   1000,
			Temperature: 0.6,
		},
		High: {
			Preferred:   []string{"openai-gpt-4", "ollama-llama2:13b", "openai-gpt-3.5-turbo", "llama-cpp-quantized-13b"},
			MaxTokens:   2000,
			Temperature: 0.5,
		},
		Critical: {
			Preferred:   []string{"openai-gpt-4", "ollama-llama2:13b", "llama-cpp-quantized-13b"},
			MaxTokens:   3000,
			Temperature: 0.3,
		},
	}
}

// DefaultFallbackChain is consulted after a policy's preferred models.
func DefaultFallbackChain() []string {
	return []string{
		"openai-gpt-4",
		"ollama-llama2:13b",
		"openai-gpt-3.5-turbo",
		"ollama-llama2:7b",
		"llama-cpp-quantized-13b",
		"llama-cpp-quantized-7b",
		"ollama-codellama",
	}
}

// Merge returns a copy of p with every level in overrides replaced.
func (p Policies) Merge(overrides Policies) Policies {
	out := make(Policies, len(p))
	for c, pol := range p {
		out[c] = pol
	}
	for c, pol := range overrides {
		out[c] = pol
	}
	return out
}

// Validate checks that every level is defined and temperature never rises
// with complexity.
func (p Policies) Validate() error {
	prev := -1.0
	for i, c := range Levels {
		pol, ok := p[c]
		if !ok {
			return fmt.Errorf("complexity %s: no policy defined", c)
		}
		if len(pol.Preferred) == 0 {
			return fmt.Errorf("complexity %s: preferred models must not be empty", c)
		}
		if pol.MaxTokens <= 0 {
			return fmt.Errorf("complexity %s: max_tokens must be positive", c)
		}
		if pol.Temperature < 0 || pol.Temperature > 2 {
			return fmt.Errorf("complexity %s: temperature must be within [0, 2]", c)
		}
		if i > 0 && pol.Temperature > prev {
			return fmt.Errorf("complexity %s: temperature %.2f exceeds %s temperature %.2f",
				c, pol.Temperature, Levels[i-1], prev)
		}
		prev = pol.Temperature
	}
	return nil
}
