// Package bracket derives take-profit and stop-loss legs for an entry order
// and decides how they are linked into a one-cancels-other group.
//
// Terminals that cannot attach exit legs to an unfilled market order get an
// emulated bracket: the legs are sent as independent orders sharing an OCO
// id right after the entry command is accepted. Nothing confirms the entry
// filled first, and a leg that fails leaves the position without that
// protection. This mirrors what the terminals' native protocol allows and is
// kept as is.
package bracket

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
)

const ocoPrefix = "OCO_"

func NewOcoID() string {
	return ocoPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

type Planner struct {
	newOcoID func() string
}

func NewPlanner() *Planner {
	return &Planner{newOcoID: NewOcoID}
}

// NewPlannerWithIDs is used by tests that need deterministic OCO ids.
func NewPlannerWithIDs(newOcoID func() string) *Planner {
	return &Planner{newOcoID: newOcoID}
}

// ReferencePrice is the price relative offsets are measured from: the limit
// price of a limit entry, the trigger of a stop entry, otherwise an explicit
// webhook price or the current quote (ask for buys, bid for sells).
func ReferencePrice(order eventmodels.OrderRequest, inst eventmodels.Instrument, explicit *float64) (float64, bool) {
	switch order.Kind {
	case eventmodels.Limit:
		if order.LimitPrice != nil {
			return *order.LimitPrice, true
		}
	case eventmodels.Stop, eventmodels.StopLimit:
		if order.StopPrice != nil {
			return *order.StopPrice, true
		}
	}

	if explicit != nil && *explicit > 0 {
		return *explicit, true
	}

	return inst.Quote(order.Side)
}

// RoundPrice rounds price to the instrument's decimal digits.
func RoundPrice(price float64, digits int) float64 {
	f, _ := decimal.NewFromFloat(price).Round(int32(digits)).Float64()
	return f
}

// OffsetPrice returns ref moved by points*point in direction dir (+1 or -1),
// rounded to digits.
func OffsetPrice(ref, points, point float64, dir int, digits int) float64 {
	distance := decimal.NewFromFloat(points).Mul(decimal.NewFromFloat(point))

	p := decimal.NewFromFloat(ref)
	if dir > 0 {
		p = p.Add(distance)
	} else {
		p = p.Sub(distance)
	}

	f, _ := p.Round(int32(digits)).Float64()
	return f
}

func resolveTarget(target *eventmodels.PriceTarget, field string, ref float64, dir int, inst eventmodels.Instrument) (*float64, error) {
	if !target.IsSet() {
		return nil, nil
	}

	var price float64
	if target.Absolute != nil {
		price = RoundPrice(*target.Absolute, inst.Digits)
	} else {
		price = OffsetPrice(ref, *target.RelativePoints, inst.Point, dir, inst.Digits)
	}

	if price <= 0 {
		return nil, eventmodels.NewValidationError(eventmodels.InvalidBracket, field, price)
	}

	return &price, nil
}

func exitLeg(entry eventmodels.OrderRequest, role eventmodels.LegRole, kind eventmodels.OrderKind, ocoID string) *eventmodels.OrderRequest {
	return &eventmodels.OrderRequest{
		Role:               role,
		Account:            entry.Account,
		Symbol:             entry.Symbol,
		Side:               entry.Side.Opposite(),
		Quantity:           entry.Quantity,
		IntegerQuantity:    entry.IntegerQuantity,
		Kind:               kind,
		TimeInForce:        entry.TimeInForce,
		OcoID:              ocoID,
		Magic:              entry.Magic,
		StrategyTag:        entry.StrategyTag,
		StrategyInstanceID: entry.StrategyInstanceID,
		Comment:            entry.Comment,
	}
}

// Plan computes the exit legs for order. Without any take-profit or
// stop-loss the entry is returned unchanged.
func (p *Planner) Plan(order eventmodels.OrderRequest, spec *eventmodels.BracketSpec, inst eventmodels.Instrument, explicitRef *float64) (eventmodels.PlannedOrder, error) {
	if spec.IsEmpty() {
		return eventmodels.PlannedOrder{Entry: order}, nil
	}

	var ref float64
	if spec.NeedsReference() {
		var ok bool
		if ref, ok = ReferencePrice(order, inst, explicitRef); !ok {
			return eventmodels.PlannedOrder{}, eventmodels.NewValidationError(eventmodels.MissingReferencePrice, "price", nil)
		}
	}

	tpDir := 1
	if order.Side == eventmodels.Sell {
		tpDir = -1
	}

	tp, err := resolveTarget(spec.TakeProfit, "tp", ref, tpDir, inst)
	if err != nil {
		return eventmodels.PlannedOrder{}, err
	}

	sl, err := resolveTarget(spec.StopLoss, "sl", ref, -tpDir, inst)
	if err != nil {
		return eventmodels.PlannedOrder{}, err
	}

	ocoID := p.newOcoID()
	planned := eventmodels.PlannedOrder{
		Entry:    order,
		OcoGroup: &eventmodels.OcoGroup{ID: ocoID},
		Deferred: order.Kind == eventmodels.Market,
	}

	if planned.Deferred {
		log.Infof("Plan: %s %s is a market entry, exit legs follow as a separate OCO pair (%s)", order.Side, order.Symbol, ocoID)
	} else {
		planned.Entry.OcoID = ocoID
		planned.OcoGroup.Legs = append(planned.OcoGroup.Legs, planned.Entry)
	}

	if tp != nil {
		planned.TakeProfit = exitLeg(order, eventmodels.LegTakeProfit, eventmodels.Limit, ocoID)
		planned.TakeProfit.LimitPrice = tp
		planned.OcoGroup.Legs = append(planned.OcoGroup.Legs, *planned.TakeProfit)
	}

	if sl != nil {
		planned.StopLoss = exitLeg(order, eventmodels.LegStopLoss, eventmodels.Stop, ocoID)
		planned.StopLoss.StopPrice = sl
		planned.OcoGroup.Legs = append(planned.OcoGroup.Legs, *planned.StopLoss)
	}

	return planned, nil
}
