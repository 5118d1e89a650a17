package dispatch

import (
	"context"

	"github.com/jiaming2012/webhook-bridge/src/adapters/addon"
	"github.com/jiaming2012/webhook-bridge/src/adapters/filedrop"
	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
	"github.com/jiaming2012/webhook-bridge/src/terminal"
)

// Adapter is one integration mode's way of talking to a terminal.
type Adapter interface {
	terminal.Connector
	Mode() eventmodels.IntegrationMode
	PlaceOrder(ctx context.Context, order eventmodels.OrderRequest) (*eventmodels.CommandResult, error)
	Flatten(ctx context.Context, req eventmodels.FlattenRequest) (*eventmodels.CommandResult, error)
	GetPositions(ctx context.Context, account string) ([]eventmodels.PositionSnapshot, error)
	GetOrders(ctx context.Context, account string) ([]eventmodels.OrderSnapshot, error)
	GetAccountInfo(ctx context.Context, account string) (*eventmodels.AccountSnapshot, error)
	LookupInstrument(ctx context.Context, symbol string) (eventmodels.Instrument, error)
}

// nativeBracketer is implemented by adapters that can attach take-profit
// and stop-loss prices to the entry request.
type nativeBracketer interface {
	NativeBrackets() bool
}

type InstrumentLookup interface {
	LookupInstrument(ctx context.Context, symbol string) (eventmodels.Instrument, error)
}

type AdapterConfig struct {
	TerminalID eventmodels.TerminalID
	Mode       eventmodels.IntegrationMode
	FileDrop   filedrop.Config
	Resolver   filedrop.DirectoryResolver
	Checker    terminal.ProcessChecker
	AddOn      addon.Config
	Catalog    InstrumentLookup
}

// NewAdapter builds the adapter for cfg.Mode. There is no fallback: an
// unknown mode is a ConfigurationError.
func NewAdapter(cfg AdapterConfig) (Adapter, error) {
	switch cfg.Mode {
	case eventmodels.FileDrop:
		fdCfg := cfg.FileDrop
		fdCfg.TerminalID = cfg.TerminalID
		return filedrop.New(fdCfg, cfg.Resolver, cfg.Checker, cfg.Catalog), nil
	case eventmodels.HttpAddOn:
		aoCfg := cfg.AddOn
		aoCfg.TerminalID = cfg.TerminalID
		return addon.New(aoCfg, cfg.Catalog), nil
	default:
		return nil, eventmodels.NewConfigurationError(string(cfg.TerminalID)+".mode", string(cfg.Mode))
	}
}
