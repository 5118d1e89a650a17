// Package eventpubsub links webhook events to the actions they trigger.
// Actions linked to one event run in link order on a single goroutine;
// separate events are handled concurrently.
package eventpubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
)

var (
	ErrUnknownEvent  = fmt.Errorf("no actions linked to event")
	ErrUnknownAction = fmt.Errorf("action is not registered")
)

type Action interface {
	Name() string
	Run(ctx context.Context, event *eventmodels.WebhookEvent) (interface{}, error)
}

type dispatchRequest struct {
	ctx     context.Context
	event   *eventmodels.WebhookEvent
	results chan []eventmodels.ActionResult
}

type Linker struct {
	bus     EventBus.Bus
	mu      sync.RWMutex
	actions map[string]Action
	links   map[string][]string
}

func NewLinker() *Linker {
	return &Linker{
		bus:     EventBus.New(),
		actions: make(map[string]Action),
		links:   make(map[string][]string),
	}
}

func (l *Linker) Register(actions ...Action) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, a := range actions {
		if _, found := l.actions[a.Name()]; found {
			return fmt.Errorf("Register: action %s already registered", a.Name())
		}

		l.actions[a.Name()] = a
		log.Debugf("registered action %s", a.Name())
	}

	return nil
}

// Link makes eventName trigger actionName after any actions already linked
// to it.
func (l *Linker) Link(actionName, eventName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, found := l.actions[actionName]; !found {
		return fmt.Errorf("Link: %s: %w", actionName, ErrUnknownAction)
	}

	for _, linked := range l.links[eventName] {
		if linked == actionName {
			return fmt.Errorf("Link: %s already linked to %s", actionName, eventName)
		}
	}

	if len(l.links[eventName]) == 0 {
		if err := l.bus.SubscribeAsync(topic(eventName), l.handle, false); err != nil {
			return fmt.Errorf("Link: failed to subscribe to %s: %w", eventName, err)
		}
	}

	l.links[eventName] = append(l.links[eventName], actionName)
	log.Infof("linked %s -> %s", eventName, actionName)

	return nil
}

func (l *Linker) HasEvent(eventName string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.links[eventName]) > 0
}

// Links returns the actions linked to eventName in the order they run.
func (l *Linker) Links(eventName string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]string(nil), l.links[eventName]...)
}

func runAction(ctx context.Context, action Action, event *eventmodels.WebhookEvent) eventmodels.ActionResult {
	result, err := action.Run(ctx, event)
	if err != nil {
		log.WithFields(log.Fields{
			"action": action.Name(),
			"event":  event.Name,
			"id":     event.ID,
		}).Errorf("action failed: %v", err)
	}

	return eventmodels.NewActionResult(action.Name(), result, err)
}

func (l *Linker) handle(req *dispatchRequest) {
	l.mu.RLock()
	names := append([]string(nil), l.links[req.event.Name]...)
	actions := make([]Action, 0, len(names))
	for _, name := range names {
		actions = append(actions, l.actions[name])
	}
	l.mu.RUnlock()

	process := &SyncProcess{}
	for _, a := range actions {
		action := a
		process.Add(action.Name(), func(ctx context.Context) eventmodels.ActionResult {
			return runAction(ctx, action, req.event)
		})
	}

	// actions run to completion even after the publisher stops waiting
	req.results <- process.Run(context.WithoutCancel(req.ctx))
}

// Publish triggers the actions linked to event.Name and waits for all of
// them to finish or for ctx to be done. ctx bounds the wait only; the
// actions run to completion either way.
func (l *Linker) Publish(ctx context.Context, event *eventmodels.WebhookEvent) ([]eventmodels.ActionResult, error) {
	if !l.HasEvent(event.Name) {
		return nil, fmt.Errorf("Publish: %s: %w", event.Name, ErrUnknownEvent)
	}

	req := &dispatchRequest{
		ctx:     ctx,
		event:   event,
		results: make(chan []eventmodels.ActionResult, 1),
	}

	log.WithFields(log.Fields{
		"event": event.Name,
		"id":    event.ID,
	}).Debug("publishing webhook event")

	l.bus.Publish(topic(event.Name), req)

	select {
	case results := <-req.results:
		return results, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("Publish: %s: %w", event.Name, ctx.Err())
	}
}

// Wait blocks until every in-flight event has been handled.
func (l *Linker) Wait() {
	l.bus.WaitAsync()
}
