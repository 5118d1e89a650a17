// Package dispatch routes validated commands to the adapter of the
// configured integration mode. Every call checks the session first; read
// queries against the file-drop mode are refused before the adapter is
// touched. Calls are bounded by the adapters' fixed deadlines only: a
// cancelled caller context does not abort a command in flight.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
	"github.com/jiaming2012/webhook-bridge/src/metrics"
)

const (
	CommandPlace       = "place"
	CommandFlatten     = "flatten"
	CommandPositions   = "positions"
	CommandOrders      = "orders"
	CommandAccountInfo = "account"
)

type SessionState interface {
	IsConnected() bool
}

type Router struct {
	terminalID eventmodels.TerminalID
	mode       eventmodels.IntegrationMode
	session    SessionState
	adapter    Adapter
	tracer     trace.Tracer
}

// New selects the adapter registered for mode. An unknown mode, or one with
// no adapter, is a ConfigurationError.
func New(terminalID eventmodels.TerminalID, mode eventmodels.IntegrationMode, session SessionState, adapters map[eventmodels.IntegrationMode]Adapter) (*Router, error) {
	key := string(terminalID) + ".mode"

	switch mode {
	case eventmodels.FileDrop, eventmodels.HttpAddOn:
	default:
		return nil, eventmodels.NewConfigurationError(key, string(mode))
	}

	adapter, found := adapters[mode]
	if !found || adapter == nil {
		return nil, eventmodels.NewConfigurationError(key, string(mode))
	}

	if adapter.Mode() != mode {
		return nil, fmt.Errorf("New: adapter for %s reports mode %s: %w", mode, adapter.Mode(), eventmodels.NewConfigurationError(key, string(mode)))
	}

	return &Router{
		terminalID: terminalID,
		mode:       mode,
		session:    session,
		adapter:    adapter,
		tracer:     otel.Tracer("dispatch"),
	}, nil
}

func (r *Router) TerminalID() eventmodels.TerminalID {
	return r.terminalID
}

func (r *Router) Mode() eventmodels.IntegrationMode {
	return r.mode
}

func (r *Router) IsConnected() bool {
	return r.session.IsConnected()
}

func (r *Router) start(ctx context.Context, command string) (context.Context, trace.Span) {
	return r.tracer.Start(context.WithoutCancel(ctx), "Router."+command, trace.WithAttributes(
		attribute.String("terminal", string(r.terminalID)),
		attribute.String("mode", string(r.mode)),
	))
}

func (r *Router) record(span trace.Span, command string, err error) {
	result := metrics.ResultOK

	var connErr *eventmodels.ConnectivityError
	switch {
	case err == nil:
	case errors.Is(err, eventmodels.ErrCapabilityUnavailable):
		result = metrics.ResultUnavailable
	case errors.As(err, &connErr):
		result = metrics.ResultNotSent
	default:
		result = metrics.ResultRejected
	}

	metrics.Commands.WithLabelValues(string(r.terminalID), string(r.mode), command, result).Inc()

	if err != nil && result != metrics.ResultUnavailable {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(attribute.String("result", result))
	span.End()
}

func (r *Router) checkConnected() error {
	if !r.session.IsConnected() {
		return eventmodels.NewConnectivityError(r.terminalID, eventmodels.ErrNotConnected)
	}

	return nil
}

// checkReadable refuses read queries in file-drop mode, which has no
// channel back from the terminal.
func (r *Router) checkReadable(command string) error {
	if r.mode == eventmodels.FileDrop {
		log.WithFields(log.Fields{
			"terminal": r.terminalID,
			"command":  command,
		}).Warn("read queries are not available in file-drop mode")

		return fmt.Errorf("%s: %w", command, eventmodels.ErrCapabilityUnavailable)
	}

	return r.checkConnected()
}

func (r *Router) PlaceOrder(ctx context.Context, order eventmodels.OrderRequest) (result *eventmodels.CommandResult, err error) {
	ctx, span := r.start(ctx, CommandPlace)
	span.SetAttributes(
		attribute.String("symbol", order.Symbol),
		attribute.String("leg", string(order.Role)),
	)
	defer func() { r.record(span, CommandPlace, err) }()

	if err = r.checkConnected(); err != nil {
		log.WithFields(log.Fields{"terminal": r.terminalID, "order": order.String()}).Errorf("PlaceOrder: %v", err)
		return nil, err
	}

	result, err = r.adapter.PlaceOrder(ctx, order)
	if err != nil {
		log.WithFields(log.Fields{
			"terminal": r.terminalID,
			"mode":     r.mode,
			"order":    order.String(),
		}).Errorf("PlaceOrder: %v", err)

		return nil, fmt.Errorf("PlaceOrder: %s: %w", order.Role, err)
	}

	log.WithFields(log.Fields{
		"terminal": r.terminalID,
		"order":    order.String(),
	}).Info("order sent")

	return result, nil
}

func (r *Router) nativeBrackets() bool {
	nb, ok := r.adapter.(nativeBracketer)
	return ok && nb.NativeBrackets()
}

// PlaceBracket sends the entry and then each exit leg. An entry failure
// aborts before any leg is sent. Leg failures do not stop the remaining leg
// and nothing is rolled back: the entry may be live without protection, and
// the returned error names every leg that failed.
func (r *Router) PlaceBracket(ctx context.Context, planned eventmodels.PlannedOrder) (*eventmodels.BracketResult, error) {
	ctx = context.WithoutCancel(ctx)

	result := &eventmodels.BracketResult{
		OcoID:    planned.OcoID(),
		Deferred: planned.Deferred,
	}

	entry := planned.Entry
	if planned.HasBracket() && r.nativeBrackets() {
		var tp, sl *float64
		if planned.TakeProfit != nil {
			tp = planned.TakeProfit.LimitPrice
		}

		if planned.StopLoss != nil {
			sl = planned.StopLoss.StopPrice
		}

		entry = entry.WithAttachedBracket(tp, sl)
	}

	res, err := r.PlaceOrder(ctx, entry)
	if err != nil {
		return result, fmt.Errorf("PlaceBracket: %w", err)
	}

	result.Entry = res

	if !planned.HasBracket() || r.nativeBrackets() {
		return result, nil
	}

	var legErrs []error

	if planned.TakeProfit != nil {
		if result.TakeProfit, err = r.PlaceOrder(ctx, *planned.TakeProfit); err != nil {
			legErrs = append(legErrs, err)
		}
	}

	if planned.StopLoss != nil {
		if result.StopLoss, err = r.PlaceOrder(ctx, *planned.StopLoss); err != nil {
			legErrs = append(legErrs, err)
		}
	}

	if len(legErrs) > 0 {
		log.WithFields(log.Fields{
			"terminal": r.terminalID,
			"oco":      result.OcoID,
			"entry":    planned.Entry.String(),
		}).Errorf("PlaceBracket: entry is live but %d exit leg(s) failed", len(legErrs))

		return result, fmt.Errorf("PlaceBracket: entry placed, exit legs failed: %w", errors.Join(legErrs...))
	}

	return result, nil
}

func (r *Router) Flatten(ctx context.Context, req eventmodels.FlattenRequest) (result *eventmodels.CommandResult, err error) {
	ctx, span := r.start(ctx, CommandFlatten)
	span.SetAttributes(attribute.String("symbol", req.Symbol))
	defer func() { r.record(span, CommandFlatten, err) }()

	if err = r.checkConnected(); err != nil {
		log.WithFields(log.Fields{"terminal": r.terminalID, "symbol": req.Symbol}).Errorf("Flatten: %v", err)
		return nil, err
	}

	result, err = r.adapter.Flatten(ctx, req.Scoped())
	if err != nil {
		log.WithFields(log.Fields{
			"terminal": r.terminalID,
			"account":  req.Account,
			"symbol":   req.Symbol,
		}).Errorf("Flatten: %v", err)

		return nil, fmt.Errorf("Flatten: %w", err)
	}

	log.WithFields(log.Fields{
		"terminal": r.terminalID,
		"account":  req.Account,
		"symbol":   req.Symbol,
		"strategy": req.StrategyTag,
	}).Info("flatten sent")

	return result, nil
}

func (r *Router) GetPositions(ctx context.Context, account string) (positions []eventmodels.PositionSnapshot, err error) {
	ctx, span := r.start(ctx, CommandPositions)
	defer func() { r.record(span, CommandPositions, err) }()

	if err = r.checkReadable("GetPositions"); err != nil {
		return nil, err
	}

	if positions, err = r.adapter.GetPositions(ctx, account); err != nil {
		log.WithField("terminal", r.terminalID).Errorf("GetPositions: %v", err)
		return nil, fmt.Errorf("GetPositions: %w", err)
	}

	return positions, nil
}

func (r *Router) GetOrders(ctx context.Context, account string) (orders []eventmodels.OrderSnapshot, err error) {
	ctx, span := r.start(ctx, CommandOrders)
	defer func() { r.record(span, CommandOrders, err) }()

	if err = r.checkReadable("GetOrders"); err != nil {
		return nil, err
	}

	if orders, err = r.adapter.GetOrders(ctx, account); err != nil {
		log.WithField("terminal", r.terminalID).Errorf("GetOrders: %v", err)
		return nil, fmt.Errorf("GetOrders: %w", err)
	}

	return orders, nil
}

func (r *Router) GetAccountInfo(ctx context.Context, account string) (info *eventmodels.AccountSnapshot, err error) {
	ctx, span := r.start(ctx, CommandAccountInfo)
	defer func() { r.record(span, CommandAccountInfo, err) }()

	if err = r.checkReadable("GetAccountInfo"); err != nil {
		return nil, err
	}

	if info, err = r.adapter.GetAccountInfo(ctx, account); err != nil {
		log.WithField("terminal", r.terminalID).Errorf("GetAccountInfo: %v", err)
		return nil, fmt.Errorf("GetAccountInfo: %w", err)
	}

	return info, nil
}

// LookupInstrument resolves a symbol through the adapter. It is the only
// call the normalizer makes and never sends a command.
func (r *Router) LookupInstrument(ctx context.Context, symbol string) (eventmodels.Instrument, error) {
	if err := r.checkConnected(); err != nil {
		return eventmodels.Instrument{}, err
	}

	return r.adapter.LookupInstrument(context.WithoutCancel(ctx), symbol)
}
