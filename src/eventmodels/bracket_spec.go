package eventmodels

// PriceTarget is either an absolute price, a distance in points from the
// entry reference price, or both. Absolute wins when both are set.
type PriceTarget struct {
	Absolute       *float64
	RelativePoints *float64
}

func (p *PriceTarget) IsSet() bool {
	return p != nil && (p.Absolute != nil || p.RelativePoints != nil)
}

func (p *PriceTarget) NeedsReference() bool {
	return p.IsSet() && p.Absolute == nil
}

type BracketSpec struct {
	TakeProfit *PriceTarget
	StopLoss   *PriceTarget
}

func (b *BracketSpec) IsEmpty() bool {
	return b == nil || (!b.TakeProfit.IsSet() && !b.StopLoss.IsSet())
}

func (b *BracketSpec) NeedsReference() bool {
	return b != nil && (b.TakeProfit.NeedsReference() || b.StopLoss.NeedsReference())
}
