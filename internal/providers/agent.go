package providers

import "context"

// AgentClient is the adapter boundary for browser/UI workflow automation.
// The runtime that executes workflows is external; this client only relays
// playbook invocations.
type AgentClient struct{}

func NewAgentClient() *AgentClient {
	return &AgentClient{}
}

func (a *AgentClient) RunPlaybook(ctx context.Context, name string, payload map[string]any) (map[string]any, error) {
	return map[string]any{
		"playbook": name,
		"status":   "not_configured",
		"summary":  "Automation agent runtime is not configured for this deployment.",
		"input":    payload,
	}, nil
}
