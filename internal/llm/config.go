// Package llm provides the language-model client used for coaching replies
// and for grading, with model tiers selected per task.
package llm

import "fmt"

// ModelTier names a capability level. Each tier maps to one model.
type ModelTier string

const (
	// TierLite is for cheap structured tasks: grading, extraction retries
	TierLite ModelTier = "lite"
	// TierStandard is for conversational replies
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long or difficult conversations
	TierAdvanced ModelTier = "advanced"
)

// Tiers lists the known tiers from cheapest to most capable.
var Tiers = []ModelTier{TierLite, TierStandard, TierAdvanced}

// ParseTier accepts a tier name; the empty string means TierStandard.
func ParseTier(s string) (ModelTier, error) {
	if s == "" {
		return TierStandard, nil
	}
	for _, t := range Tiers {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown model tier %q", s)
}

// Provider identifies the model vendor.
type Provider string

// ProviderGemini is the Google Gemini provider
const ProviderGemini Provider = "gemini"

// Config selects the provider, a model per tier and sampling settings.
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	Temperature float32
	// MaxOutputTokens caps a single reply; zero leaves the provider default.
	MaxOutputTokens int32
}

// DefaultConfig is the Gemini setup used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature: 0.4,
	}
}

// tiers tried, in order, when the requested one has no model
var fallbackOrder = []ModelTier{TierStandard, TierLite}

// GetModel resolves tier to a model name, falling back to the standard and
// then the lite model. It returns "" when no model is configured at all.
func (c *Config) GetModel(tier ModelTier) string {
	for _, t := range append([]ModelTier{tier}, fallbackOrder...) {
		if model := c.Models[t]; model != "" {
			return model
		}
	}
	return ""
}

// WithModel returns a copy of c with model assigned to tier.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := *c
	out.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		out.Models[k] = v
	}
	out.Models[tier] = model
	return &out
}
