package activity

import "time"

const (
	TopicCompileExecuted = "compile.executed"
	TopicSnippetChanged  = "snippet.changed"
)

// Snippet change actions.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionImported = "imported"
)

// CompileExecutedEvent is emitted after the judge returns a result.
type CompileExecutedEvent struct {
	UserID        string    `json:"userId,omitempty"`
	Language      string    `json:"language"`
	StatusID      int       `json:"statusId"`
	Status        string    `json:"status"`
	ExecutionTime float64   `json:"executionTime"`
	CodeSize      int       `json:"codeSize"`
	ClientIP      string    `json:"clientIp"`
	ExecutedAt    time.Time `json:"executedAt"`
}

// SnippetChangedEvent is emitted when a user's snippets are written or removed.
type SnippetChangedEvent struct {
	UserID     string    `json:"userId"`
	Action     string    `json:"action"`
	SnippetIDs []string  `json:"snippetIds,omitempty"`
	Count      int       `json:"count"`
	ClientIP   string    `json:"clientIp"`
	ChangedAt  time.Time `json:"changedAt"`
}
