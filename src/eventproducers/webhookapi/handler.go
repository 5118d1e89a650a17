// Package webhookapi is the HTTP ingress: it authenticates webhook payloads
// by their per-event key and hands the remaining fields to the linked
// actions.
package webhookapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
	"github.com/jiaming2012/webhook-bridge/src/eventproducers"
	"github.com/jiaming2012/webhook-bridge/src/eventpubsub"
)

const KeyField = "key"

var (
	ErrMissingKey   = fmt.Errorf("missing webhook key")
	ErrInvalidKey   = fmt.Errorf("invalid webhook key")
	ErrUnknownRoute = fmt.Errorf("unknown terminal")
)

type Publisher interface {
	HasEvent(eventName string) bool
	Publish(ctx context.Context, event *eventmodels.WebhookEvent) ([]eventmodels.ActionResult, error)
}

// QueryService answers the read-only endpoints for one terminal.
type QueryService interface {
	Positions(ctx context.Context, account string) ([]eventmodels.PositionSnapshot, error)
	Orders(ctx context.Context, account string) ([]eventmodels.OrderSnapshot, error)
	AccountInfo(ctx context.Context, account string) (*eventmodels.AccountSnapshot, error)
}

type WebhookResponse struct {
	Event   string                     `json:"event"`
	ID      string                     `json:"id"`
	Results []eventmodels.ActionResult `json:"results"`
}

type queryParams struct {
	Key     string `schema:"key"`
	Account string `schema:"account"`
}

type Handler struct {
	// keys maps an event name to its full "<event>:<secret>" key.
	keys      map[string]string
	publisher Publisher
	terminals map[string]QueryService
	decoder   *schema.Decoder
	now       func() time.Time
}

func NewHandler(keys map[string]string, publisher Publisher, terminals map[string]QueryService) *Handler {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	return &Handler{
		keys:      keys,
		publisher: publisher,
		terminals: terminals,
		decoder:   decoder,
		now:       time.Now,
	}
}

// EventName returns the event part of a "<event>:<secret>" key.
func EventName(key string) string {
	name, _, _ := strings.Cut(key, ":")
	return name
}

// authenticate returns the event a key belongs to.
func (h *Handler) authenticate(key string) (string, error) {
	if key == "" {
		return "", ErrMissingKey
	}

	eventName := EventName(key)
	expected, found := h.keys[eventName]
	if !found || subtle.ConstantTimeCompare([]byte(expected), []byte(key)) != 1 {
		return "", ErrInvalidKey
	}

	return eventName, nil
}

func (h *Handler) authenticateAny(key string) error {
	if key == "" {
		return ErrMissingKey
	}

	expected, found := h.keys[EventName(key)]
	if !found || subtle.ConstantTimeCompare([]byte(expected), []byte(key)) != 1 {
		return ErrInvalidKey
	}

	return nil
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()

	var fields map[string]interface{}
	if err := decoder.Decode(&fields); err != nil {
		eventproducers.SetErrorResponse("decode", http.StatusBadRequest, fmt.Errorf("handleWebhook: failed to decode body: %w", err), w)
		return
	}

	key, _ := fields[KeyField].(string)
	delete(fields, KeyField)

	eventName, err := h.authenticate(key)
	if err != nil {
		log.WithField("remote", r.RemoteAddr).Warnf("handleWebhook: %v", err)
		eventproducers.SetErrorResponse("unauthorized", http.StatusUnauthorized, err, w)
		return
	}

	if !h.publisher.HasEvent(eventName) {
		eventproducers.SetErrorResponse("unknown_event", http.StatusNotFound, fmt.Errorf("no actions linked to %s", eventName), w)
		return
	}

	event := eventmodels.NewWebhookEvent(eventName, fields, h.now())

	log.WithFields(log.Fields{
		"event": eventName,
		"id":    event.ID,
	}).Infof("webhook received: %v", fields)

	results, err := h.publisher.Publish(r.Context(), event)
	if err != nil {
		status, errType := eventproducers.ErrorStatus(err)
		eventproducers.SetErrorResponse(errType, status, err, w)
		return
	}

	// the first failed action decides the status
	status := http.StatusOK
	for _, res := range results {
		if res.Err != nil {
			status, _ = eventproducers.ErrorStatus(res.Err)
			break
		}
	}

	resp := WebhookResponse{
		Event:   eventName,
		ID:      event.ID.String(),
		Results: results,
	}

	if err := eventproducers.SetStatusResponse(&resp, status, w); err != nil {
		log.Errorf("handleWebhook: %v", err)
	}
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, svc QueryService, account string) (interface{}, error)) {
	var params queryParams
	if err := h.decoder.Decode(&params, r.URL.Query()); err != nil {
		eventproducers.SetErrorResponse("decode", http.StatusBadRequest, err, w)
		return
	}

	if err := h.authenticateAny(params.Key); err != nil {
		eventproducers.SetErrorResponse("unauthorized", http.StatusUnauthorized, err, w)
		return
	}

	terminalID := mux.Vars(r)["terminal"]
	svc, found := h.terminals[terminalID]
	if !found {
		eventproducers.SetErrorResponse("not_found", http.StatusNotFound, fmt.Errorf("%s: %w", terminalID, ErrUnknownRoute), w)
		return
	}

	result, err := fn(r.Context(), svc, params.Account)
	if err != nil {
		status, errType := eventproducers.ErrorStatus(err)
		eventproducers.SetErrorResponse(errType, status, err, w)
		return
	}

	if err := eventproducers.SetResponse(&result, w); err != nil {
		log.Errorf("query: %v", err)
	}
}

func (h *Handler) handlePositions(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, func(ctx context.Context, svc QueryService, account string) (interface{}, error) {
		return svc.Positions(ctx, account)
	})
}

func (h *Handler) handleOrders(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, func(ctx context.Context, svc QueryService, account string) (interface{}, error) {
		return svc.Orders(ctx, account)
	})
}

func (h *Handler) handleAccount(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, func(ctx context.Context, svc QueryService, account string) (interface{}, error) {
		return svc.AccountInfo(ctx, account)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	eventproducers.SetResponse(&resp, w)
}

func (h *Handler) SetupHandler(router *mux.Router) {
	handle := func(pattern string, fn http.HandlerFunc, methods ...string) {
		router.Handle(pattern, otelhttp.WithRouteTag(pattern, fn)).Methods(methods...)
	}

	handle("/webhook", h.handleWebhook, http.MethodPost)
	handle("/health", handleHealth, http.MethodGet)
	handle("/terminals/{terminal}/positions", h.handlePositions, http.MethodGet)
	handle("/terminals/{terminal}/orders", h.handleOrders, http.MethodGet)
	handle("/terminals/{terminal}/account", h.handleAccount, http.MethodGet)
}

// EventNames lists the events with a configured key, for logging at startup.
func (h *Handler) EventNames() []string {
	names := make([]string, 0, len(h.keys))
	for name := range h.keys {
		names = append(names, name)
	}

	return names
}

var _ Publisher = (*eventpubsub.Linker)(nil)
