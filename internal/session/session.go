package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"tabchat/ai"
	"tabchat/domain/chat"
	"tabchat/domain/core"
	"tabchat/domain/table"
	"tabchat/internal/engine"
	"tabchat/internal/export"
	"tabchat/internal/tabular"
)

// State is the session lifecycle state
type State string

const (
	StateCreated State = "created"
	StateActive  State = "active"
	StateExpired State = "expired"
	StateClosed  State = "closed"
)

// HistoryEntry records one applied operation for explanation and undo
type HistoryEntry struct {
	Operation chat.Operation `json:"operation"`
	Summary   string         `json:"summary"`
	AppliedAt time.Time      `json:"applied_at"`
}

// Emitter pushes an unsolicited response to the session's channel, if one is
// open. Emissions are fire-and-forget.
type Emitter func(chat.AgentResponse)

// Session is the unit of isolation: it owns one user's dataset lineage,
// conversation history and lifecycle. All mutation goes through methods
// guarded by its mutex, so utterances for one session are handled strictly
// one at a time while distinct sessions proceed concurrently.
type Session struct {
	mu sync.Mutex

	id           core.SessionID
	state        State
	store        *tabular.Store
	resolver     *ai.Resolver
	coordinator  *export.Coordinator
	history      []HistoryEntry
	conversation []ai.Exchange
	filename     string
	createdAt    time.Time
	lastActivity time.Time
	emit         Emitter
}

// NewSession creates a session in the CREATED state
func NewSession(id core.SessionID, resolver *ai.Resolver, coordinator *export.Coordinator) *Session {
	now := time.Now()
	return &Session{
		id:           id,
		state:        StateCreated,
		store:        tabular.NewStore(),
		resolver:     resolver,
		coordinator:  coordinator,
		createdAt:    now,
		lastActivity: now,
	}
}

func (s *Session) ID() core.SessionID { return s.id }

// Touch updates the last-activity timestamp
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// IsExpired reports whether the session passed the inactivity timeout
func (s *Session) IsExpired(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity) > timeout
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MarkExpired transitions the session to EXPIRED and discards its data
func (s *Session) MarkExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = StateExpired
	s.store = tabular.NewStore()
	s.history = nil
	s.conversation = nil
	s.emit = nil
}

// Close transitions the session to CLOSED. In-flight export jobs keep
// running; they are keyed by job id, independent of the session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
	s.emit = nil
}

// SetEmitter attaches the channel's outbound emitter
func (s *Session) SetEmitter(emit Emitter) {
	s.mu.Lock()
	s.emit = emit
	s.mu.Unlock()
}

// ClearEmitter detaches the channel; further emissions are dropped
func (s *Session) ClearEmitter() {
	s.mu.Lock()
	s.emit = nil
	s.mu.Unlock()
}

// AttachDataset installs a freshly parsed (and cleaned) dataset and
// activates the session.
func (s *Session) AttachDataset(ds *table.Dataset, filename string) (table.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return table.Summary{}, core.ErrSessionClosed
	}
	if s.state == StateExpired {
		return table.Summary{}, core.ErrSessionExpired
	}

	s.store.Load(ds)
	s.filename = filename
	s.state = StateActive
	s.history = nil
	s.lastActivity = time.Now()

	log.Printf("[Session] %s activated with %s: %d rows x %d columns",
		s.id, filename, ds.RowCount(), ds.ColumnCount())
	return table.Summarize(ds), nil
}

// ApplyUtterance is the single entry point for conversational input: it
// resolves the utterance, applies the resulting operation, and returns the
// structured response. The session mutex serializes utterances, so two
// messages from the same channel are never processed concurrently.
func (s *Session) ApplyUtterance(ctx context.Context, text string) chat.AgentResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return chat.AgentResponse{Error: "session is closed", Message: "This session is closed. Create a new one to continue."}
	case StateExpired:
		return chat.AgentResponse{Error: "session expired", Message: "This session expired. Create a new one to continue."}
	}
	s.lastActivity = time.Now()

	dctx := s.datasetContext()
	resolution := s.resolver.Resolve(ctx, text, dctx)

	var response chat.AgentResponse
	switch resolution.Kind {
	case chat.ResolvedUnrecognized:
		response = chat.AgentResponse{
			Message:      resolution.Message,
			QuickActions: resolution.QuickActions,
		}

	case chat.ResolvedClarification:
		response = chat.AgentResponse{
			Message:      resolution.Message,
			QuickActions: resolution.QuickActions,
			Error:        fmt.Sprintf("clarification needed: %s", resolution.Clarification.Field),
		}

	case chat.ResolvedOperation:
		response = s.applyOperation(*resolution.Operation, resolution)
	}

	s.conversation = append(s.conversation, ai.Exchange{User: text, Assistant: response.Message})
	return response
}

// applyOperation must be called with s.mu held
func (s *Session) applyOperation(op chat.Operation, resolution chat.Resolution) chat.AgentResponse {
	result, err := engine.Apply(op, s.store)
	if err != nil {
		// Prior view is retained unchanged; the session stays usable
		log.Printf("[Session] %s operation failed: %v", s.id, err)
		return chat.AgentResponse{
			Message: fmt.Sprintf("I couldn't apply that: %v. The previous view is unchanged.", err),
			Error:   err.Error(),
		}
	}

	s.history = append(s.history, HistoryEntry{
		Operation: op,
		Summary:   result.Summary,
		AppliedAt: time.Now(),
	})

	response := chat.AgentResponse{
		Message:      joinMessages(resolution.Message, result.Summary),
		Preview:      result.Preview,
		QuickActions: resolution.QuickActions,
	}

	if result.Export != nil {
		jobID, err := s.coordinator.Submit(
			result.Export.Snapshot,
			result.Export.Formats,
			result.Export.Title,
			result.Export.Options,
			s.notifyExportDone,
		)
		if err != nil {
			response.Error = err.Error()
			response.Message = joinMessages(resolution.Message, fmt.Sprintf("I couldn't start the export: %v", err))
			return response
		}
		response.JobID = jobID.String()
	}

	return response
}

// notifyExportDone pushes a completion notice over the channel if one is
// still attached; otherwise the client discovers it by polling the job.
func (s *Session) notifyExportDone(status export.JobStatus) {
	s.mu.Lock()
	emit := s.emit
	s.mu.Unlock()
	if emit == nil {
		return
	}

	succeeded, failed := 0, 0
	var errMsg string
	for format, r := range status.Formats {
		if r.State == export.FormatCompleted {
			succeeded++
		} else {
			failed++
			errMsg = fmt.Sprintf("%s: %s", format, r.Error)
		}
	}

	response := chat.AgentResponse{
		JobID:   status.ID,
		Message: fmt.Sprintf("Export finished: %d of %d formats succeeded.", succeeded, succeeded+failed),
	}
	if failed > 0 {
		response.Error = errMsg
	}
	emit(response)
}

// datasetContext must be called with s.mu held
func (s *Session) datasetContext() ai.DatasetContext {
	view, err := s.store.CurrentView()
	if err != nil {
		return ai.DatasetContext{History: s.conversation}
	}
	return ai.DatasetContext{
		Schema:  view.Schema(),
		Summary: table.Summarize(view),
		Sample:  view.SampleRecords(3),
		History: s.conversation,
	}
}

// Info is the session summary exposed over the lifecycle API
type Info struct {
	ID                 string    `json:"session_id"`
	State              State     `json:"state"`
	CreatedAt          time.Time `json:"created_at"`
	LastActivity       time.Time `json:"last_activity"`
	HasData            bool      `json:"has_data"`
	Filename           string    `json:"filename,omitempty"`
	OperationsApplied  int       `json:"operations_applied"`
	ConversationLength int       `json:"conversation_length"`
}

// Summary returns a point-in-time description of the session
func (s *Session) Summary() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:                 s.id.String(),
		State:              s.state,
		CreatedAt:          s.createdAt,
		LastActivity:       s.lastActivity,
		HasData:            s.store.Loaded(),
		Filename:           s.filename,
		OperationsApplied:  len(s.history),
		ConversationLength: len(s.conversation),
	}
}

// History returns a copy of the applied-operation history
func (s *Session) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// CurrentView exposes the live view for handlers (upload ack previews)
func (s *Session) CurrentView() (*table.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.CurrentView()
}

func joinMessages(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
