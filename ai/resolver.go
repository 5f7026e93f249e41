package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"tabchat/domain/chat"
	"tabchat/ports"
)

// MaxHistoryTurns bounds how many past exchanges go to the NLU collaborator
const MaxHistoryTurns = 5

// Resolver turns free-form utterances into validated Operations via the
// external NLU collaborator. The collaborator's output is never trusted
// blindly: every resolved intent is re-validated against the live schema.
type Resolver struct {
	client ports.LLMClient
}

func NewResolver(client ports.LLMClient) *Resolver {
	return &Resolver{client: client}
}

// llmPayload is the closed wire shape expected back from the NLU call.
// Anything that does not match is treated as unrecognized.
type llmPayload struct {
	Message      string         `json:"message"`
	Intent       *intentPayload `json:"intent"`
	QuickActions []string       `json:"quick_actions"`
}

type intentPayload struct {
	Action     string          `json:"action"`
	Parameters json.RawMessage `json:"parameters"`
	Confidence float64         `json:"confidence"`
}

// Resolve maps an utterance to an Operation, a Clarification, or an
// Unrecognized result. It never returns an error: NLU failures degrade to
// the keyword fallback and then to Unrecognized with a retry-safe message.
func (r *Resolver) Resolve(ctx context.Context, utterance string, dctx DatasetContext) chat.Resolution {
	system := BuildSystemPrompt(dctx)

	messages := make([]ports.ChatMessage, 0, MaxHistoryTurns*2+1)
	history := dctx.History
	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}
	for _, ex := range history {
		messages = append(messages,
			ports.ChatMessage{Role: "user", Content: ex.User},
			ports.ChatMessage{Role: "assistant", Content: ex.Assistant},
		)
	}
	messages = append(messages, ports.ChatMessage{Role: "user", Content: utterance})

	content, err := r.client.ChatJSON(ctx, system, messages)
	if err != nil {
		log.Printf("[Resolver] NLU call failed, using keyword fallback: %v", err)
		return r.fallback(utterance, dctx)
	}

	var payload llmPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		log.Printf("[Resolver] Malformed NLU payload, using keyword fallback: %v", err)
		return r.fallback(utterance, dctx)
	}

	if payload.Intent == nil {
		message := payload.Message
		if message == "" {
			message = "I didn't catch a data operation in that. Could you rephrase?"
		}
		return chat.Resolution{
			Kind:         chat.ResolvedUnrecognized,
			Message:      message,
			QuickActions: payload.QuickActions,
		}
	}

	op, err := mapIntent(payload.Intent)
	if err != nil {
		log.Printf("[Resolver] Unknown intent shape: %v", err)
		return chat.Resolution{
			Kind:    chat.ResolvedUnrecognized,
			Message: "I couldn't map that to a supported operation. Try filtering, pivoting, or exporting.",
		}
	}

	normalized, clarification := Validate(op, dctx)
	if clarification != nil {
		return chat.Resolution{
			Kind:          chat.ResolvedClarification,
			Clarification: clarification,
			Message:       fmt.Sprintf("I need one more detail: %s", clarification.Reason),
			Confidence:    payload.Intent.Confidence,
		}
	}

	message := payload.Message
	if message == "" {
		message = "On it."
	}
	return chat.Resolution{
		Kind:         chat.ResolvedOperation,
		Operation:    &normalized,
		Message:      message,
		QuickActions: payload.QuickActions,
		Confidence:   payload.Intent.Confidence,
	}
}

// fallback runs the keyword heuristic and validates its result the same way
func (r *Resolver) fallback(utterance string, dctx DatasetContext) chat.Resolution {
	op, confidence := ExtractIntent(utterance)
	if op == nil {
		return chat.Resolution{
			Kind:         chat.ResolvedUnrecognized,
			Message:      "I'm having trouble understanding right now. Please try again in a moment.",
			QuickActions: []string{"Try again"},
		}
	}

	normalized, clarification := Validate(*op, dctx)
	if clarification != nil {
		return chat.Resolution{
			Kind:          chat.ResolvedClarification,
			Clarification: clarification,
			Message:       fmt.Sprintf("I need one more detail: %s", clarification.Reason),
			Confidence:    confidence,
		}
	}

	return chat.Resolution{
		Kind:       chat.ResolvedOperation,
		Operation:  &normalized,
		Message:    "I'll handle that with local processing.",
		Confidence: confidence,
	}
}

// stringList accepts either a JSON string or an array of strings, since
// models are inconsistent about singular parameters.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*s = nil
		} else {
			*s = []string{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// flexValue accepts a JSON string, number or bool as a string literal
type flexValue string

func (v *flexValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = flexValue(s)
		return nil
	}
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = flexValue(string(raw))
	return nil
}

// mapIntent converts the dynamic intent payload into the closed Operation
// variant. Unknown actions and unparseable parameters are errors, which the
// caller reports as Unrecognized.
func mapIntent(intent *intentPayload) (chat.Operation, error) {
	params := intent.Parameters
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}

	switch chat.Action(intent.Action) {
	case chat.ActionFilter:
		var p struct {
			Column   string     `json:"column"`
			Operator string     `json:"operator"`
			Value    flexValue  `json:"value"`
			Values   stringList `json:"values"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return chat.Operation{}, fmt.Errorf("bad filter parameters: %w", err)
		}
		return chat.Operation{
			Action: chat.ActionFilter,
			Filter: &chat.FilterOp{
				Column:   p.Column,
				Operator: chat.FilterOperator(p.Operator),
				Value:    string(p.Value),
				Values:   p.Values,
			},
		}, nil

	case chat.ActionPivot:
		var p struct {
			Rows    stringList `json:"rows"`
			Columns stringList `json:"columns"`
			Values  string     `json:"values"`
			Agg     string     `json:"agg"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return chat.Operation{}, fmt.Errorf("bad pivot parameters: %w", err)
		}
		return chat.Operation{
			Action: chat.ActionPivot,
			Pivot: &chat.PivotOp{
				Rows:    p.Rows,
				Columns: p.Columns,
				Values:  p.Values,
				Agg:     chat.AggFunc(p.Agg),
			},
		}, nil

	case chat.ActionAggregate:
		var p struct {
			GroupBy stringList `json:"group_by"`
			Values  string     `json:"values"`
			Agg     string     `json:"agg"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return chat.Operation{}, fmt.Errorf("bad aggregate parameters: %w", err)
		}
		return chat.Operation{
			Action: chat.ActionAggregate,
			Aggregate: &chat.AggregateOp{
				GroupBy: p.GroupBy,
				Values:  p.Values,
				Agg:     chat.AggFunc(p.Agg),
			},
		}, nil

	case chat.ActionVisualize:
		var p chat.VisualizeOp
		if err := json.Unmarshal(params, &p); err != nil {
			return chat.Operation{}, fmt.Errorf("bad visualize parameters: %w", err)
		}
		return chat.Operation{Action: chat.ActionVisualize, Visualize: &p}, nil

	case chat.ActionExport:
		var p struct {
			Formats    stringList `json:"formats"`
			SlideStyle string     `json:"slide_style"`
			Title      string     `json:"title"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return chat.Operation{}, fmt.Errorf("bad export parameters: %w", err)
		}
		formats := make([]chat.Format, len(p.Formats))
		for i, f := range p.Formats {
			formats[i] = chat.Format(f)
		}
		return chat.Operation{
			Action: chat.ActionExport,
			Export: &chat.ExportOp{Formats: formats, SlideStyle: p.SlideStyle, Title: p.Title},
		}, nil

	case chat.ActionQuery:
		return chat.Operation{Action: chat.ActionQuery}, nil

	case chat.ActionReset:
		return chat.Operation{Action: chat.ActionReset}, nil

	default:
		return chat.Operation{}, fmt.Errorf("unknown action %q", intent.Action)
	}
}
