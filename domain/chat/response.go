package chat

// ResolutionKind discriminates the outcome of intent resolution
type ResolutionKind string

const (
	ResolvedOperation     ResolutionKind = "operation"
	ResolvedClarification ResolutionKind = "clarification"
	ResolvedUnrecognized  ResolutionKind = "unrecognized"
)

// Clarification identifies the missing or invalid field of an otherwise
// well-formed intent, so the caller can prompt the user instead of failing.
type Clarification struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Resolution is the outcome of resolving one utterance. Exactly one of
// Operation/Clarification is set depending on Kind; Unrecognized carries
// only the message.
type Resolution struct {
	Kind          ResolutionKind `json:"kind"`
	Operation     *Operation     `json:"operation,omitempty"`
	Clarification *Clarification `json:"clarification,omitempty"`
	Message       string         `json:"message"`
	QuickActions  []string       `json:"quick_actions,omitempty"`
	Confidence    float64        `json:"confidence"`
}

// Preview is a bounded slice of a Dataset for the channel. Full results are
// never pushed in one message.
type Preview struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows"`
	ShownRows int        `json:"shown_rows"`
}

// Inbound is the message schema received over the channel
type Inbound struct {
	Text string `json:"text"`
}

// AgentResponse is the message schema emitted over the channel
type AgentResponse struct {
	Message      string   `json:"message"`
	MessageHTML  string   `json:"message_html,omitempty"`
	Preview      *Preview `json:"preview,omitempty"`
	QuickActions []string `json:"quick_actions,omitempty"`
	Error        string   `json:"error,omitempty"`
	JobID        string   `json:"job_id,omitempty"`
}
