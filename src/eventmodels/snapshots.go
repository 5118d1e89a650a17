package eventmodels

type PositionSnapshot struct {
	Instrument     string  `json:"instrument" csv:"instrument"`
	Quantity       float64 `json:"quantity" csv:"quantity"`
	AveragePrice   float64 `json:"averagePrice" csv:"average_price"`
	MarketPosition string  `json:"marketPosition" csv:"market_position"`
	UnrealizedPnL  float64 `json:"unrealizedPnL" csv:"unrealized_pnl"`
}

type OrderSnapshot struct {
	OrderID     string  `json:"orderId" csv:"order_id"`
	Name        string  `json:"name" csv:"name"`
	Instrument  string  `json:"instrument" csv:"instrument"`
	OrderAction string  `json:"orderAction" csv:"order_action"`
	OrderType   string  `json:"orderType" csv:"order_type"`
	Quantity    float64 `json:"quantity" csv:"quantity"`
	LimitPrice  float64 `json:"limitPrice" csv:"limit_price"`
	StopPrice   float64 `json:"stopPrice" csv:"stop_price"`
	OrderState  string  `json:"orderState" csv:"order_state"`
	Oco         string  `json:"oco" csv:"oco"`
	TimeInForce string  `json:"timeInForce" csv:"time_in_force"`
}

type AccountSnapshot struct {
	Name          string  `json:"name" csv:"name"`
	Balance       float64 `json:"balance" csv:"balance"`
	RealizedPnL   float64 `json:"realizedPnL" csv:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealizedPnL" csv:"unrealized_pnl"`
	PositionCount int     `json:"positionCount" csv:"position_count"`
}
