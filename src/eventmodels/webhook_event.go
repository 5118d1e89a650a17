package eventmodels

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is an authenticated webhook payload. Fields holds the raw,
// untrusted values exactly as decoded from the request body.
type WebhookEvent struct {
	ID         uuid.UUID
	Name       string
	Fields     map[string]interface{}
	ReceivedAt time.Time
}

func NewWebhookEvent(name string, fields map[string]interface{}, now time.Time) *WebhookEvent {
	return &WebhookEvent{
		ID:         uuid.New(),
		Name:       name,
		Fields:     fields,
		ReceivedAt: now,
	}
}

type ActionResult struct {
	Action string      `json:"action"`
	Result interface{} `json:"result,omitempty"`
	Err    error       `json:"-"`
	Error  string      `json:"error,omitempty"`
}

func NewActionResult(action string, result interface{}, err error) ActionResult {
	r := ActionResult{
		Action: action,
		Result: result,
		Err:    err,
	}

	if err != nil {
		r.Error = err.Error()
	}

	return r
}
