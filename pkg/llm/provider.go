package llm

import "strings"

// routeSeparator joins a gateway route and a model, as in "openai/gpt-4o".
const routeSeparator = "/"

// UpstreamModel is the model name sent upstream for alias. model_name replaces
// the alias and provider is prefixed only for gateways that route on it. A
// name that already carries a route is sent unchanged.
func (m ModelConfig) UpstreamModel(alias string) string {
	alias = strings.TrimSpace(alias)
	if strings.Contains(alias, routeSeparator) {
		return alias
	}
	name := strings.TrimSpace(m.ModelName)
	if name == "" {
		name = alias
	}
	switch provider := strings.TrimSpace(m.Provider); {
	case provider == "", strings.Contains(name, routeSeparator):
		return name
	default:
		return provider + routeSeparator + name
	}
}
