package eventmodels

import "fmt"

var ErrInstrumentNotFound = fmt.Errorf("instrument not found")

type Instrument struct {
	Symbol string  `json:"symbol" yaml:"symbol"`
	Point  float64 `json:"point" yaml:"point"`
	Digits int     `json:"digits" yaml:"digits"`
	Bid    float64 `json:"bid" yaml:"bid"`
	Ask    float64 `json:"ask" yaml:"ask"`
}

func (i Instrument) Validate() error {
	if i.Symbol == "" {
		return fmt.Errorf("instrument symbol is empty")
	}

	if i.Point <= 0 {
		return fmt.Errorf("instrument %s: point must be positive, got %v", i.Symbol, i.Point)
	}

	if i.Digits < 0 {
		return fmt.Errorf("instrument %s: digits must not be negative, got %d", i.Symbol, i.Digits)
	}

	return nil
}

// Quote returns the price a market order on side would execute against.
func (i Instrument) Quote(side Side) (float64, bool) {
	price := i.Bid
	if side == Buy {
		price = i.Ask
	}

	return price, price > 0
}
