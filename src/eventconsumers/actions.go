package eventconsumers

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
	"github.com/jiaming2012/webhook-bridge/src/eventpubsub"
	"github.com/jiaming2012/webhook-bridge/src/eventservices"
	"github.com/jiaming2012/webhook-bridge/src/utils"
)

const (
	PlaceOrderSuffix   = "PlaceOrder"
	FlattenSuffix      = "Flatten"
	PositionInfoSuffix = "PositionInfo"
	OrderInfoSuffix    = "OrderInfo"
	AccountInfoSuffix  = "AccountInfo"
	PrintDataSuffix    = "PrintData"
)

type actionFunc func(ctx context.Context, event *eventmodels.WebhookEvent) (interface{}, error)

type action struct {
	name string
	fn   actionFunc
}

func (a *action) Name() string {
	return a.name
}

func (a *action) Run(ctx context.Context, event *eventmodels.WebhookEvent) (interface{}, error) {
	return a.fn(ctx, event)
}

func NewPlaceOrderAction(name string, svc *eventservices.OrderService) eventpubsub.Action {
	return &action{name: name, fn: func(ctx context.Context, event *eventmodels.WebhookEvent) (interface{}, error) {
		result, err := svc.PlaceFromFields(ctx, event.Fields)
		if err != nil {
			return result, fmt.Errorf("%s: %w", name, err)
		}

		log.WithFields(log.Fields{
			"action": name,
			"event":  event.ID,
			"oco":    result.OcoID,
		}).Info("order placed")

		return result, nil
	}}
}

func NewFlattenAction(name string, svc *eventservices.OrderService) eventpubsub.Action {
	return &action{name: name, fn: func(ctx context.Context, event *eventmodels.WebhookEvent) (interface{}, error) {
		result, err := svc.FlattenFromFields(ctx, event.Fields)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		return result, nil
	}}
}

func NewPositionInfoAction(name string, svc *eventservices.OrderService) eventpubsub.Action {
	return &action{name: name, fn: func(ctx context.Context, event *eventmodels.WebhookEvent) (interface{}, error) {
		positions, err := svc.Positions(ctx, utils.ToString(event.Fields["account"]))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		log.Infof("%s: %d open position(s)", name, len(positions))
		return positions, nil
	}}
}

func NewOrderInfoAction(name string, svc *eventservices.OrderService) eventpubsub.Action {
	return &action{name: name, fn: func(ctx context.Context, event *eventmodels.WebhookEvent) (interface{}, error) {
		orders, err := svc.Orders(ctx, utils.ToString(event.Fields["account"]))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		log.Infof("%s: %d working order(s)", name, len(orders))
		return orders, nil
	}}
}

func NewAccountInfoAction(name string, svc *eventservices.OrderService) eventpubsub.Action {
	return &action{name: name, fn: func(ctx context.Context, event *eventmodels.WebhookEvent) (interface{}, error) {
		info, err := svc.AccountInfo(ctx, utils.ToString(event.Fields["account"]))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		log.WithFields(log.Fields{
			"account": info.Name,
			"balance": info.Balance,
		}).Infof("%s", name)

		return info, nil
	}}
}

// NewPrintDataAction logs the webhook payload and returns it unchanged.
func NewPrintDataAction(name string) eventpubsub.Action {
	return &action{name: name, fn: func(ctx context.Context, event *eventmodels.WebhookEvent) (interface{}, error) {
		log.WithFields(log.Fields{
			"event": event.Name,
			"id":    event.ID,
		}).Infof("%s: %v", name, event.Fields)

		return event.Fields, nil
	}}
}

// TerminalActions returns the actions for one terminal, named with the
// terminal's prefix, e.g. NtPlaceOrder or MtFlatten.
func TerminalActions(prefix string, svc *eventservices.OrderService) []eventpubsub.Action {
	return []eventpubsub.Action{
		NewPlaceOrderAction(prefix+PlaceOrderSuffix, svc),
		NewFlattenAction(prefix+FlattenSuffix, svc),
		NewPositionInfoAction(prefix+PositionInfoSuffix, svc),
		NewOrderInfoAction(prefix+OrderInfoSuffix, svc),
		NewAccountInfoAction(prefix+AccountInfoSuffix, svc),
		NewPrintDataAction(prefix + PrintDataSuffix),
	}
}
