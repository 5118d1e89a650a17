package eventmodels

import "fmt"

// OrderRequest is a single, fully validated order leg. It is built by the
// normalizer or the bracket planner and passed around by value.
type OrderRequest struct {
	Role               LegRole
	Account            string
	Symbol             string
	Side               Side
	Quantity           float64
	IntegerQuantity    bool
	Kind               OrderKind
	LimitPrice         *float64
	StopPrice          *float64
	TimeInForce        string
	OcoID              string
	OrderID            string
	Magic              int64
	StrategyTag        string
	StrategyInstanceID string
	Comment            string

	// Only populated when the add-on builds the bracket itself.
	TakeProfit *float64
	StopLoss   *float64
}

func (o OrderRequest) String() string {
	return fmt.Sprintf("%s %s %v %s %s (account=%s, oco=%s)", o.Role, o.Side, o.Quantity, o.Symbol, o.Kind, o.Account, o.OcoID)
}

// WithAttachedBracket returns a copy of o carrying absolute tp/sl prices.
func (o OrderRequest) WithAttachedBracket(tp, sl *float64) OrderRequest {
	o.TakeProfit = tp
	o.StopLoss = sl
	return o
}

func Float64Ptr(v float64) *float64 {
	return &v
}
