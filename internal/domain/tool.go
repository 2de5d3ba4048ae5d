package domain

import "context"

// Tool is the interface for LLM-invocable capabilities (file ops, office
// generation, PDF conversion).
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, error)
}
