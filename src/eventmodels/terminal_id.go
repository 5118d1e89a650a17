package eventmodels

type TerminalID string

const (
	NinjaTrader TerminalID = "ninjatrader"
	MetaTrader  TerminalID = "metatrader"
)
