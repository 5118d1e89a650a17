package terminal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kataras/go-events"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
	"github.com/jiaming2012/webhook-bridge/src/metrics"
)

const (
	SessionConnectedEvent    events.EventName = "session.connected"
	SessionDisconnectedEvent events.EventName = "session.disconnected"
)

// Connector establishes and tears down reachability to one terminal. For the
// HTTP add-on this is a health probe; for file drops it resolves the command
// directory and verifies the terminal process.
type Connector interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// Session is the single live connection to one terminal. Lifecycle calls are
// serialized; IsConnected can be read from any goroutine.
type Session struct {
	TerminalID eventmodels.TerminalID
	Mode       eventmodels.IntegrationMode
	AccountID  string

	connector Connector
	emitter   events.EventEmmiter
	mu        sync.Mutex
	connected atomic.Bool
}

// NewSession returns a disconnected session. emitter may be nil.
func NewSession(terminalID eventmodels.TerminalID, mode eventmodels.IntegrationMode, accountID string, connector Connector, emitter events.EventEmmiter) *Session {
	return &Session{
		TerminalID: terminalID,
		Mode:       mode,
		AccountID:  accountID,
		connector:  connector,
		emitter:    emitter,
	}
}

func (s *Session) IsConnected() bool {
	return s.connected.Load()
}

func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected.Load() {
		return nil
	}

	if err := s.connector.Connect(ctx); err != nil {
		metrics.SetConnected(string(s.TerminalID), false)

		var connErr *eventmodels.ConnectivityError
		if !errors.As(err, &connErr) {
			connErr = eventmodels.NewConnectivityError(s.TerminalID, err)
		}

		log.WithFields(log.Fields{
			"terminal": s.TerminalID,
			"mode":     s.Mode,
		}).Errorf("Connect: %v", connErr)

		return connErr
	}

	s.connected.Store(true)
	metrics.SetConnected(string(s.TerminalID), true)

	log.WithFields(log.Fields{
		"terminal": s.TerminalID,
		"mode":     s.Mode,
		"account":  s.AccountID,
	}).Info("terminal session connected")

	s.emit(SessionConnectedEvent)
	return nil
}

// Disconnect releases the session. Calling it on a disconnected session is a
// no-op. The session is marked disconnected even if teardown fails.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected.Load() {
		return nil
	}

	err := s.connector.Disconnect(ctx)

	s.connected.Store(false)
	metrics.SetConnected(string(s.TerminalID), false)

	log.WithField("terminal", s.TerminalID).Info("terminal session disconnected")
	s.emit(SessionDisconnectedEvent)

	if err != nil {
		return fmt.Errorf("Disconnect: %s: %w", s.TerminalID, err)
	}

	return nil
}

func (s *Session) emit(name events.EventName) {
	if s.emitter != nil {
		s.emitter.Emit(name, s)
	}
}

// WithSession connects s, runs fn and always disconnects afterwards.
func WithSession(ctx context.Context, s *Session, fn func(ctx context.Context) error) (err error) {
	if err = s.Connect(ctx); err != nil {
		return err
	}

	defer func() {
		if dErr := s.Disconnect(ctx); dErr != nil {
			log.Warnf("WithSession: %v", dErr)
			if err == nil {
				err = dErr
			}
		}
	}()

	return fn(ctx)
}
