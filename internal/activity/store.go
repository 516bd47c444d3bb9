package activity

import "context"

// Store defines the interface for persisting activity events.
type Store interface {
	SaveCompileExecuted(ctx context.Context, event *CompileExecutedEvent) error
	SaveSnippetChanged(ctx context.Context, event *SnippetChangedEvent) error
}
