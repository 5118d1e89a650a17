package eventmodels

type PlannedOrder struct {
	Entry      OrderRequest
	TakeProfit *OrderRequest
	StopLoss   *OrderRequest
	OcoGroup   *OcoGroup

	// Deferred is set for market entries: the exit legs are sent as standalone
	// orders right after the entry command is accepted, without waiting for a
	// fill. Until the terminal fills the entry the legs are unlinked from it.
	Deferred bool
}

func (p PlannedOrder) HasBracket() bool {
	return p.TakeProfit != nil || p.StopLoss != nil
}

func (p PlannedOrder) Legs() []OrderRequest {
	legs := []OrderRequest{p.Entry}
	if p.TakeProfit != nil {
		legs = append(legs, *p.TakeProfit)
	}

	if p.StopLoss != nil {
		legs = append(legs, *p.StopLoss)
	}

	return legs
}

func (p PlannedOrder) OcoID() string {
	if p.OcoGroup == nil {
		return ""
	}

	return p.OcoGroup.ID
}
