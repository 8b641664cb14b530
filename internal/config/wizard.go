package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// backendSets are the wizard's backend presets.
var backendSets = []struct {
	Label string
	Kinds map[string]bool
}{
	{Label: "hosted + local (openai, ollama, llama.cpp)", Kinds: map[string]bool{"openai": true, "ollama": true, "llamacpp": true}},
	{Label: "local only (ollama, llama.cpp)", Kinds: map[string]bool{"ollama": true, "llamacpp": true}},
	{Label: "hosted only (openai)", Kinds: map[string]bool{"openai": true}},
}

// RunWizard runs an interactive configuration wizard and saves the result
// to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to insightd! Let's configure the dispatch layer.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Backends.
	labels := make([]string, len(backendSets))
	for i, s := range backendSets {
		labels[i] = s.Label
	}
	setPrompt := promptui.Select{
		Label: "Which generation backends should be registered",
		Items: labels,
	}
	idx, _, err := setPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("backend selection: %w", err)
	}
	cfg.Backends = filterBackends(cfg.Backends, backendSets[idx].Kinds)

	// 2. Server port.
	portPrompt := promptui.Prompt{
		Label:   "HTTP port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			p, err := strconv.Atoi(s)
			if err != nil || p <= 0 || p > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	// 3. Market data upstream.
	mdPrompt := promptui.Prompt{
		Label:   "Market data service URL",
		Default: cfg.MarketData.BaseURL,
	}
	if cfg.MarketData.BaseURL, err = mdPrompt.Run(); err != nil {
		return nil, fmt.Errorf("market data url: %w", err)
	}
	anPrompt := promptui.Prompt{
		Label:   "Analysis engine URL (blank to skip indicators)",
		Default: "",
	}
	an, err := anPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("analysis url: %w", err)
	}
	cfg.MarketData.AnalysisURL = strings.TrimSpace(an)

	// 4. Research notes embedder.
	embPrompt := promptui.Select{
		Label: "Embedding provider for research notes",
		Items: []string{"none", "openai", "ollama"},
	}
	_, emb, err := embPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding selection: %w", err)
	}
	if emb != "none" {
		cfg.Embedding.Provider = emb
	}

	if backendSets[idx].Kinds["openai"] || cfg.Embedding.Provider == "openai" {
		if os.Getenv("OPENAI_API_KEY") == "" {
			fmt.Println("\nNote: Set OPENAI_API_KEY in your environment before running insightd serve.")
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func filterBackends(all []BackendConfig, kinds map[string]bool) []BackendConfig {
	var out []BackendConfig
	for _, b := range all {
		if kinds[b.Kind] {
			out = append(out, b)
		}
	}
	return out
}
