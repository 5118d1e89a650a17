package addon

import (
	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
)

type placeOrderDTO struct {
	Account    string                `json:"account"`
	Symbol     string                `json:"symbol"`
	Action     eventmodels.Side      `json:"action"`
	Quantity   float64               `json:"quantity"`
	OrderType  eventmodels.OrderKind `json:"orderType"`
	LimitPrice *float64              `json:"limitPrice"`
	StopPrice  *float64              `json:"stopPrice"`
	Tif        string                `json:"tif"`
	Oco        string                `json:"oco"`
	OrderID    string                `json:"orderId"`
	Strategy   string                `json:"strategy"`
	StrategyID string                `json:"strategyId"`
	TP         *float64              `json:"tp"`
	SL         *float64              `json:"sl"`
	Magic      int64                 `json:"magic,omitempty"`
	Comment    string                `json:"comment,omitempty"`
}

func newPlaceOrderDTO(order eventmodels.OrderRequest) placeOrderDTO {
	return placeOrderDTO{
		Account:    order.Account,
		Symbol:     order.Symbol,
		Action:     order.Side,
		Quantity:   order.Quantity,
		OrderType:  order.Kind,
		LimitPrice: order.LimitPrice,
		StopPrice:  order.StopPrice,
		Tif:        order.TimeInForce,
		Oco:        order.OcoID,
		OrderID:    order.OrderID,
		Strategy:   order.StrategyTag,
		StrategyID: order.StrategyInstanceID,
		TP:         order.TakeProfit,
		SL:         order.StopLoss,
		Magic:      order.Magic,
		Comment:    order.Comment,
	}
}

type flattenDTO struct {
	Account    string `json:"account"`
	Symbol     string `json:"symbol"`
	Strategy   string `json:"strategy"`
	StrategyID string `json:"strategyId"`
}

func newFlattenDTO(req eventmodels.FlattenRequest) flattenDTO {
	req = req.Scoped()

	return flattenDTO{
		Account:    req.Account,
		Symbol:     req.Symbol,
		Strategy:   req.StrategyTag,
		StrategyID: req.StrategyInstanceID,
	}
}

// errorDTO is what the add-on returns, sometimes with status 200, when a
// request could not be carried out.
type errorDTO struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}
