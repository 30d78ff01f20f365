package ledger

import "time"

// Kind discriminates the two line types in the ledger.
type Kind string

const (
	// KindApproval records a newly issued approval.
	KindApproval Kind = "approval"
	// KindConsume records the one permitted state transition: an
	// approval being spent on an action. The approval line itself is
	// never rewritten.
	KindConsume Kind = "consume"
)

// TimeFormat is the fixed timestamp layout used in ledger lines.
// Fixed-width so marshaled lines hash deterministically.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Entry is one line in the hash-chained JSONL ledger. All fields are
// scalars (no map[string]any) to guarantee deterministic json.Marshal
// field order for reproducible hashing.
type Entry struct {
	Kind      Kind   `json:"kind"`
	ID        string `json:"id"`
	Timestamp string `json:"ts"`
	Reason    string `json:"reason,omitempty"`
	IssuedBy  string `json:"issued_by,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Action    string `json:"action,omitempty"`
	PrevHash  string `json:"prev_hash"`
}

// Approval is the assembled state of one approval id: its issuance
// line joined with any later consume line.
type Approval struct {
	ID             string
	Reason         string
	IssuedBy       string
	IssuedAt       time.Time
	ExpiresAt      *time.Time
	Consumed       bool
	ConsumedAt     *time.Time
	ConsumedAction string
}

// Expired reports whether the approval has a deadline in the past.
func (a *Approval) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}
