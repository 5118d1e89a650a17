package eventmodels

import "fmt"

type OrderKind string

const (
	Market    OrderKind = "MARKET"
	Limit     OrderKind = "LIMIT"
	Stop      OrderKind = "STOP"
	StopLimit OrderKind = "STOPLIMIT"
)

func (k OrderKind) Validate() error {
	switch k {
	case Market, Limit, Stop, StopLimit:
		return nil
	default:
		return fmt.Errorf("invalid order kind: %s", k)
	}
}
