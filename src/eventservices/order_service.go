package eventservices

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/webhook-bridge/src/bracket"
	"github.com/jiaming2012/webhook-bridge/src/dispatch"
	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
	"github.com/jiaming2012/webhook-bridge/src/metrics"
	"github.com/jiaming2012/webhook-bridge/src/normalizer"
	"github.com/jiaming2012/webhook-bridge/src/utils"
)

type OrderServiceConfig struct {
	DefaultAccount string

	// MagicScopedFlatten narrows a flatten to the webhook's magic number when
	// no explicit strategy instance is given, the way MetaTrader experts
	// identify their own positions.
	MagicScopedFlatten bool
}

// SessionConnector is the part of a terminal session the service needs to
// connect on first use.
type SessionConnector interface {
	IsConnected() bool
	Connect(ctx context.Context) error
}

// OrderService turns raw webhook fields into commands for one terminal:
// normalize, plan the bracket, dispatch. A disconnected session is
// connected again before each command. Caller cancellation is ignored once
// a command starts; the adapters' fixed deadlines bound it.
type OrderService struct {
	cfg        OrderServiceConfig
	session    SessionConnector
	router     *dispatch.Router
	normalizer *normalizer.Normalizer
	planner    *bracket.Planner
}

// NewOrderService returns a service for router's terminal. session may be
// nil, in which case a disconnected terminal is never reconnected here.
func NewOrderService(cfg OrderServiceConfig, session SessionConnector, router *dispatch.Router, norm *normalizer.Normalizer, planner *bracket.Planner) *OrderService {
	return &OrderService{
		cfg:        cfg,
		session:    session,
		router:     router,
		normalizer: norm,
		planner:    planner,
	}
}

func (s *OrderService) TerminalID() eventmodels.TerminalID {
	return s.router.TerminalID()
}

func (s *OrderService) Router() *dispatch.Router {
	return s.router
}

func (s *OrderService) recordValidation(err error) {
	var vErr *eventmodels.ValidationError
	if !errors.As(err, &vErr) {
		return
	}

	metrics.ValidationFailures.WithLabelValues(string(s.TerminalID()), string(vErr.Reason)).Inc()

	log.WithFields(log.Fields{
		"terminal": s.TerminalID(),
		"reason":   vErr.Reason,
		"field":    vErr.Field,
		"value":    vErr.Value,
	}).Warn("webhook rejected")
}

// ensureConnected connects a disconnected session. The error is the
// session's ConnectivityError.
func (s *OrderService) ensureConnected(ctx context.Context) error {
	if s.session == nil || s.session.IsConnected() {
		return nil
	}

	log.WithField("terminal", s.TerminalID()).Info("session is down, reconnecting")

	return s.session.Connect(ctx)
}

// Plan validates fields and computes the bracket without sending anything.
func (s *OrderService) Plan(ctx context.Context, fields map[string]interface{}) (eventmodels.PlannedOrder, error) {
	ctx = context.WithoutCancel(ctx)

	if err := s.ensureConnected(ctx); err != nil {
		return eventmodels.PlannedOrder{}, fmt.Errorf("Plan: %w", err)
	}

	sig, err := s.normalizer.NormalizeSignal(ctx, fields)
	if err != nil {
		s.recordValidation(err)
		return eventmodels.PlannedOrder{}, fmt.Errorf("Plan: %w", err)
	}

	planned, err := s.planner.Plan(sig.Order, sig.Bracket, sig.Instrument, sig.ReferencePrice)
	if err != nil {
		s.recordValidation(err)
		return eventmodels.PlannedOrder{}, fmt.Errorf("Plan: %w", err)
	}

	return planned, nil
}

func (s *OrderService) PlaceFromFields(ctx context.Context, fields map[string]interface{}) (*eventmodels.BracketResult, error) {
	ctx = context.WithoutCancel(ctx)

	planned, err := s.Plan(ctx, fields)
	if err != nil {
		return nil, fmt.Errorf("PlaceFromFields: %w", err)
	}

	result, err := s.router.PlaceBracket(ctx, planned)
	if err != nil {
		return result, fmt.Errorf("PlaceFromFields: %w", err)
	}

	return result, nil
}

// FlattenRequestFromFields builds a flatten for the webhook's symbol. The
// symbol is resolved through the instrument lookup like an order's.
func (s *OrderService) FlattenRequestFromFields(ctx context.Context, fields map[string]interface{}) (eventmodels.FlattenRequest, error) {
	ctx = context.WithoutCancel(ctx)

	if err := s.ensureConnected(ctx); err != nil {
		return eventmodels.FlattenRequest{}, fmt.Errorf("FlattenRequestFromFields: %w", err)
	}

	symbol := utils.ToString(fields["symbol"])
	if symbol == "" {
		err := eventmodels.NewValidationError(eventmodels.UnknownSymbol, "symbol", fields["symbol"])
		s.recordValidation(err)
		return eventmodels.FlattenRequest{}, err
	}

	inst, err := s.router.LookupInstrument(ctx, symbol)
	if err != nil {
		if errors.Is(err, eventmodels.ErrInstrumentNotFound) {
			vErr := eventmodels.NewValidationError(eventmodels.UnknownSymbol, "symbol", symbol)
			s.recordValidation(vErr)
			return eventmodels.FlattenRequest{}, vErr
		}

		return eventmodels.FlattenRequest{}, fmt.Errorf("FlattenRequestFromFields: %w", err)
	}

	req := eventmodels.FlattenRequest{
		Account:            utils.ToString(fields["account"]),
		Symbol:             inst.Symbol,
		StrategyTag:        utils.ToString(fields["strategy"]),
		StrategyInstanceID: utils.ToString(fields["strategy_id"]),
	}

	if req.Account == "" {
		req.Account = s.cfg.DefaultAccount
	}

	if s.cfg.MagicScopedFlatten {
		if _, v, ok := utils.FirstPresent(fields, "magic", "strategy_tag"); ok {
			magic, err := utils.ToInt64(v)
			if err != nil {
				vErr := eventmodels.NewValidationError(eventmodels.MissingMagic, "magic", v)
				s.recordValidation(vErr)
				return eventmodels.FlattenRequest{}, vErr
			}

			tag := strconv.FormatInt(magic, 10)
			if req.StrategyTag == "" {
				req.StrategyTag = tag
			}

			if req.StrategyInstanceID == "" {
				req.StrategyInstanceID = tag
			}
		}
	}

	return req.Scoped(), nil
}

func (s *OrderService) FlattenFromFields(ctx context.Context, fields map[string]interface{}) (*eventmodels.CommandResult, error) {
	ctx = context.WithoutCancel(ctx)

	req, err := s.FlattenRequestFromFields(ctx, fields)
	if err != nil {
		return nil, fmt.Errorf("FlattenFromFields: %w", err)
	}

	result, err := s.router.Flatten(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("FlattenFromFields: %w", err)
	}

	return result, nil
}

func (s *OrderService) account(account string) string {
	if account == "" {
		return s.cfg.DefaultAccount
	}

	return account
}

// readable connects a disconnected session before a read query. File-drop
// terminals are left alone so the router reports the missing capability.
func (s *OrderService) readable(ctx context.Context) error {
	if s.router.Mode() == eventmodels.FileDrop {
		return nil
	}

	return s.ensureConnected(ctx)
}

func (s *OrderService) Positions(ctx context.Context, account string) ([]eventmodels.PositionSnapshot, error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.readable(ctx); err != nil {
		return nil, err
	}

	return s.router.GetPositions(ctx, s.account(account))
}

func (s *OrderService) Orders(ctx context.Context, account string) ([]eventmodels.OrderSnapshot, error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.readable(ctx); err != nil {
		return nil, err
	}

	return s.router.GetOrders(ctx, s.account(account))
}

func (s *OrderService) AccountInfo(ctx context.Context, account string) (*eventmodels.AccountSnapshot, error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.readable(ctx); err != nil {
		return nil, err
	}

	return s.router.GetAccountInfo(ctx, s.account(account))
}
