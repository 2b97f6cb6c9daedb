package domain

// Handoff is a short-lived cross-navigation slot: an edit flow stashes
// answers here, and session creation consumes it exactly once (read-once,
// deleted on first read). ExpiresAt is a DynamoDB TTL.
type Handoff struct {
	HandoffID string            `json:"id" dynamodbav:"handoff_id"`
	Flow      FlowKind          `json:"flow" dynamodbav:"flow"`
	Answers   map[string]string `json:"answers" dynamodbav:"answers"`
	ExpiresAt int64             `json:"-" dynamodbav:"expires_at"` // TTL (Unix seconds)
}
