package eventmodels

type LegRole string

const (
	LegEntry      LegRole = "entry"
	LegTakeProfit LegRole = "take_profit"
	LegStopLoss   LegRole = "stop_loss"
)
