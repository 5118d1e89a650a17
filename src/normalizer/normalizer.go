// Package normalizer turns untrusted webhook fields into a validated
// eventmodels.OrderRequest. It never sends anything to a terminal; the only
// collaborator it consults is the instrument lookup.
package normalizer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
	"github.com/jiaming2012/webhook-bridge/src/utils"
)

type InstrumentLookup interface {
	LookupInstrument(ctx context.Context, symbol string) (eventmodels.Instrument, error)
}

type Defaults struct {
	Account         string
	TimeInForce     string
	IntegerQuantity bool
}

// Signal is a normalized webhook: the entry order plus everything the
// bracket planner needs.
type Signal struct {
	Order          eventmodels.OrderRequest
	Instrument     eventmodels.Instrument
	Bracket        *eventmodels.BracketSpec
	ReferencePrice *float64
}

type Normalizer struct {
	lookup   InstrumentLookup
	defaults Defaults
	upper    cases.Caser
}

func New(lookup InstrumentLookup, defaults Defaults) *Normalizer {
	if defaults.TimeInForce == "" {
		defaults.TimeInForce = "DAY"
	}

	return &Normalizer{
		lookup:   lookup,
		defaults: defaults,
		upper:    cases.Upper(language.Und),
	}
}

func (n *Normalizer) token(v interface{}) string {
	return n.upper.String(utils.ToString(v))
}

// Normalize validates fields and returns the entry order.
func (n *Normalizer) Normalize(ctx context.Context, fields map[string]interface{}) (eventmodels.OrderRequest, error) {
	sig, err := n.NormalizeSignal(ctx, fields)
	if err != nil {
		return eventmodels.OrderRequest{}, err
	}

	return sig.Order, nil
}

// NormalizeSignal applies the validation rules in order; the first failing
// rule determines the returned ValidationError.
func (n *Normalizer) NormalizeSignal(ctx context.Context, fields map[string]interface{}) (*Signal, error) {
	magic, err := n.magic(fields)
	if err != nil {
		return nil, err
	}

	inst, err := n.instrument(ctx, fields)
	if err != nil {
		return nil, err
	}

	side, err := n.side(fields)
	if err != nil {
		return nil, err
	}

	quantity, err := n.quantity(fields)
	if err != nil {
		return nil, err
	}

	kind, err := n.kind(fields)
	if err != nil {
		return nil, err
	}

	limitPrice, err := optionalPrice(fields, eventmodels.InvalidPrice, "limit_price")
	if err != nil {
		return nil, err
	}

	stopPrice, err := optionalPrice(fields, eventmodels.InvalidPrice, "stop_price")
	if err != nil {
		return nil, err
	}

	if err := requirePrices(kind, limitPrice, stopPrice); err != nil {
		return nil, err
	}

	reference, err := optionalPrice(fields, eventmodels.InvalidPrice, "price")
	if err != nil {
		return nil, err
	}

	bracket, err := NormalizeBracket(fields)
	if err != nil {
		return nil, err
	}

	strategyTag := utils.ToString(fields["strategy"])
	if strategyTag == "" {
		strategyTag = strconv.FormatInt(magic, 10)
	}

	account := utils.ToString(fields["account"])
	if account == "" {
		account = n.defaults.Account
	}

	tif := n.token(fields["tif"])
	if tif == "" {
		tif = n.defaults.TimeInForce
	}

	order := eventmodels.OrderRequest{
		Role:               eventmodels.LegEntry,
		Account:            account,
		Symbol:             inst.Symbol,
		Side:               side,
		Quantity:           quantity,
		IntegerQuantity:    n.defaults.IntegerQuantity,
		Kind:               kind,
		LimitPrice:         limitPrice,
		StopPrice:          stopPrice,
		TimeInForce:        tif,
		OcoID:              utils.ToString(fields["oco"]),
		OrderID:            utils.ToString(fields["order_id"]),
		Magic:              magic,
		StrategyTag:        strategyTag,
		StrategyInstanceID: utils.ToString(fields["strategy_id"]),
		Comment:            utils.ToString(fields["comment"]),
	}

	return &Signal{
		Order:          order,
		Instrument:     inst,
		Bracket:        bracket,
		ReferencePrice: reference,
	}, nil
}

func (n *Normalizer) magic(fields map[string]interface{}) (int64, error) {
	key, v, ok := utils.FirstPresent(fields, "magic", "strategy_tag")
	if !ok {
		return 0, eventmodels.NewValidationError(eventmodels.MissingMagic, key, nil)
	}

	magic, err := utils.ToInt64(v)
	if err != nil {
		return 0, eventmodels.NewValidationError(eventmodels.MissingMagic, key, v)
	}

	return magic, nil
}

func (n *Normalizer) instrument(ctx context.Context, fields map[string]interface{}) (eventmodels.Instrument, error) {
	symbol := utils.ToString(fields["symbol"])
	if symbol == "" {
		return eventmodels.Instrument{}, eventmodels.NewValidationError(eventmodels.UnknownSymbol, "symbol", fields["symbol"])
	}

	inst, err := n.lookup.LookupInstrument(ctx, symbol)
	if err != nil {
		if errors.Is(err, eventmodels.ErrInstrumentNotFound) {
			return eventmodels.Instrument{}, eventmodels.NewValidationError(eventmodels.UnknownSymbol, "symbol", symbol)
		}

		return eventmodels.Instrument{}, fmt.Errorf("NormalizeSignal: failed to look up %s: %w", symbol, err)
	}

	if inst.Symbol == "" {
		inst.Symbol = symbol
	}

	return inst, nil
}

func (n *Normalizer) side(fields map[string]interface{}) (eventmodels.Side, error) {
	key, v, _ := utils.FirstPresent(fields, "order_type", "side")

	side := eventmodels.Side(n.token(v))
	if err := side.Validate(); err != nil {
		return "", eventmodels.NewValidationError(eventmodels.InvalidSide, key, v)
	}

	return side, nil
}

func (n *Normalizer) quantity(fields map[string]interface{}) (float64, error) {
	key, v, ok := utils.FirstPresent(fields, "quantity", "volume")
	if !ok {
		return 0, eventmodels.NewValidationError(eventmodels.InvalidQuantity, key, nil)
	}

	q, err := utils.ToFloat64(v)
	if err != nil || q <= 0 {
		return 0, eventmodels.NewValidationError(eventmodels.InvalidQuantity, key, v)
	}

	if n.defaults.IntegerQuantity && q != float64(int64(q)) {
		return 0, eventmodels.NewValidationError(eventmodels.InvalidQuantity, key, v)
	}

	return q, nil
}

func (n *Normalizer) kind(fields map[string]interface{}) (eventmodels.OrderKind, error) {
	v, present := fields["order_kind"]
	if !present || utils.ToString(v) == "" {
		return eventmodels.Market, nil
	}

	token := strings.ReplaceAll(n.token(v), "_", "")
	if token == "STOPMARKET" {
		token = string(eventmodels.Stop)
	}

	kind := eventmodels.OrderKind(token)
	if err := kind.Validate(); err != nil {
		return "", eventmodels.NewValidationError(eventmodels.InvalidOrderKind, "order_kind", v)
	}

	return kind, nil
}

func requirePrices(kind eventmodels.OrderKind, limitPrice, stopPrice *float64) error {
	switch kind {
	case eventmodels.Limit:
		if limitPrice == nil {
			return eventmodels.NewValidationError(eventmodels.InvalidPrice, "limit_price", nil)
		}
	case eventmodels.Stop:
		if stopPrice == nil {
			return eventmodels.NewValidationError(eventmodels.InvalidPrice, "stop_price", nil)
		}
	case eventmodels.StopLimit:
		if limitPrice == nil {
			return eventmodels.NewValidationError(eventmodels.InvalidPrice, "limit_price", nil)
		}

		if stopPrice == nil {
			return eventmodels.NewValidationError(eventmodels.InvalidPrice, "stop_price", nil)
		}
	}

	return nil
}

func optionalPrice(fields map[string]interface{}, reason eventmodels.ValidationReason, keys ...string) (*float64, error) {
	key, v, ok := utils.FirstPresent(fields, keys...)
	if !ok {
		return nil, nil
	}

	f, err := utils.ToFloat64(v)
	if err != nil || f <= 0 {
		return nil, eventmodels.NewValidationError(reason, key, v)
	}

	return &f, nil
}

// NormalizeBracket extracts absolute (tp, sl) and relative (tp_rel, sl_rel)
// bracket targets. It returns nil when none are present.
func NormalizeBracket(fields map[string]interface{}) (*eventmodels.BracketSpec, error) {
	tp, err := priceTarget(fields, "tp", "tp_rel")
	if err != nil {
		return nil, err
	}

	sl, err := priceTarget(fields, "sl", "sl_rel")
	if err != nil {
		return nil, err
	}

	spec := &eventmodels.BracketSpec{TakeProfit: tp, StopLoss: sl}
	if spec.IsEmpty() {
		return nil, nil
	}

	return spec, nil
}

func priceTarget(fields map[string]interface{}, absoluteKey, relativeKey string) (*eventmodels.PriceTarget, error) {
	absolute, err := optionalPrice(fields, eventmodels.InvalidBracket, absoluteKey)
	if err != nil {
		return nil, err
	}

	relative, err := optionalPrice(fields, eventmodels.InvalidBracket, relativeKey)
	if err != nil {
		return nil, err
	}

	if absolute == nil && relative == nil {
		return nil, nil
	}

	return &eventmodels.PriceTarget{Absolute: absolute, RelativePoints: relative}, nil
}
