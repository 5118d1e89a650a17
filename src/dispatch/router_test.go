package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/webhook-bridge/src/adapters/filedrop"
	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
	"github.com/jiaming2012/webhook-bridge/src/terminal"
)

type fakeSession bool

func (s fakeSession) IsConnected() bool { return bool(s) }

type fakeAdapter struct {
	mode     eventmodels.IntegrationMode
	native   bool
	failLegs map[eventmodels.LegRole]error
	placed   []eventmodels.OrderRequest
	flattens []eventmodels.FlattenRequest
	reads    int
}

func (a *fakeAdapter) Connect(ctx context.Context) error    { return nil }
func (a *fakeAdapter) Disconnect(ctx context.Context) error { return nil }
func (a *fakeAdapter) Mode() eventmodels.IntegrationMode    { return a.mode }
func (a *fakeAdapter) NativeBrackets() bool                 { return a.native }

func (a *fakeAdapter) PlaceOrder(ctx context.Context, order eventmodels.OrderRequest) (*eventmodels.CommandResult, error) {
	a.placed = append(a.placed, order)
	if err := a.failLegs[order.Role]; err != nil {
		return nil, err
	}

	return &eventmodels.CommandResult{Role: order.Role, Command: "PLACE"}, nil
}

func (a *fakeAdapter) Flatten(ctx context.Context, req eventmodels.FlattenRequest) (*eventmodels.CommandResult, error) {
	a.flattens = append(a.flattens, req)
	return &eventmodels.CommandResult{Command: "CLOSEPOSITION"}, nil
}

func (a *fakeAdapter) GetPositions(ctx context.Context, account string) ([]eventmodels.PositionSnapshot, error) {
	a.reads++
	return []eventmodels.PositionSnapshot{{Instrument: "ES 12-25", Quantity: 1}}, nil
}

func (a *fakeAdapter) GetOrders(ctx context.Context, account string) ([]eventmodels.OrderSnapshot, error) {
	a.reads++
	return nil, nil
}

func (a *fakeAdapter) GetAccountInfo(ctx context.Context, account string) (*eventmodels.AccountSnapshot, error) {
	a.reads++
	return &eventmodels.AccountSnapshot{Name: account}, nil
}

func (a *fakeAdapter) LookupInstrument(ctx context.Context, symbol string) (eventmodels.Instrument, error) {
	return eventmodels.Instrument{Symbol: symbol, Point: 0.25, Digits: 2}, nil
}

func newFakeRouter(t *testing.T, adapter *fakeAdapter, connected bool) *Router {
	r, err := New(eventmodels.NinjaTrader, adapter.mode, fakeSession(connected), map[eventmodels.IntegrationMode]Adapter{adapter.mode: adapter})
	require.NoError(t, err)
	return r
}

func plannedBracket() eventmodels.PlannedOrder {
	entry := eventmodels.OrderRequest{Role: eventmodels.LegEntry, Account: "Sim101", Symbol: "ES 12-25", Side: eventmodels.Buy, Quantity: 1, Kind: eventmodels.Market}
	tp := eventmodels.OrderRequest{Role: eventmodels.LegTakeProfit, Account: "Sim101", Symbol: "ES 12-25", Side: eventmodels.Sell, Quantity: 1, Kind: eventmodels.Limit, LimitPrice: eventmodels.Float64Ptr(6010), OcoID: "OCO_1"}
	sl := eventmodels.OrderRequest{Role: eventmodels.LegStopLoss, Account: "Sim101", Symbol: "ES 12-25", Side: eventmodels.Sell, Quantity: 1, Kind: eventmodels.Stop, StopPrice: eventmodels.Float64Ptr(5990), OcoID: "OCO_1"}

	return eventmodels.PlannedOrder{
		Entry:      entry,
		TakeProfit: &tp,
		StopLoss:   &sl,
		OcoGroup:   &eventmodels.OcoGroup{ID: "OCO_1", Legs: []eventmodels.OrderRequest{tp, sl}},
		Deferred:   true,
	}
}

func TestNew(t *testing.T) {
	adapters := map[eventmodels.IntegrationMode]Adapter{
		eventmodels.FileDrop: &fakeAdapter{mode: eventmodels.FileDrop},
	}

	t.Run("unknown mode", func(t *testing.T) {
		_, err := New(eventmodels.NinjaTrader, "Carrier-Pigeon", fakeSession(true), adapters)

		var cfgErr *eventmodels.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, "Carrier-Pigeon", cfgErr.Value)
	})

	t.Run("no adapter for mode", func(t *testing.T) {
		_, err := New(eventmodels.NinjaTrader, eventmodels.HttpAddOn, fakeSession(true), adapters)

		var cfgErr *eventmodels.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("adapter mode mismatch", func(t *testing.T) {
		_, err := New(eventmodels.NinjaTrader, eventmodels.HttpAddOn, fakeSession(true), map[eventmodels.IntegrationMode]Adapter{
			eventmodels.HttpAddOn: &fakeAdapter{mode: eventmodels.FileDrop},
		})

		var cfgErr *eventmodels.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("unknown adapter mode", func(t *testing.T) {
		_, err := NewAdapter(AdapterConfig{TerminalID: eventmodels.MetaTrader, Mode: "ATI2"})

		var cfgErr *eventmodels.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, "metatrader.mode", cfgErr.Key)
	})

	t.Run("adapter factory", func(t *testing.T) {
		a, err := NewAdapter(AdapterConfig{TerminalID: eventmodels.MetaTrader, Mode: eventmodels.FileDrop, Resolver: filedrop.StaticResolver(t.TempDir())})
		require.NoError(t, err)
		require.Equal(t, eventmodels.FileDrop, a.Mode())

		a, err = NewAdapter(AdapterConfig{TerminalID: eventmodels.MetaTrader, Mode: eventmodels.HttpAddOn})
		require.NoError(t, err)
		require.Equal(t, eventmodels.HttpAddOn, a.Mode())
	})
}

func TestCapabilityGate(t *testing.T) {
	ctx := context.Background()

	root := t.TempDir()
	incoming := filepath.Join(root, filedrop.DefaultIncomingDir)
	require.NoError(t, os.Mkdir(incoming, 0o755))

	adapter := filedrop.New(filedrop.Config{TerminalID: eventmodels.NinjaTrader}, filedrop.StaticResolver(root), nil, nil)
	session := terminal.NewSession(eventmodels.NinjaTrader, eventmodels.FileDrop, "Sim101", adapter, nil)
	require.NoError(t, session.Connect(ctx))
	defer session.Disconnect(ctx)

	r, err := New(eventmodels.NinjaTrader, eventmodels.FileDrop, session, map[eventmodels.IntegrationMode]Adapter{eventmodels.FileDrop: adapter})
	require.NoError(t, err)

	positions, err := r.GetPositions(ctx, "Sim101")
	require.ErrorIs(t, err, eventmodels.ErrCapabilityUnavailable)
	require.Nil(t, positions)

	_, err = r.GetOrders(ctx, "Sim101")
	require.ErrorIs(t, err, eventmodels.ErrCapabilityUnavailable)

	_, err = r.GetAccountInfo(ctx, "Sim101")
	require.ErrorIs(t, err, eventmodels.ErrCapabilityUnavailable)

	var connErr *eventmodels.ConnectivityError
	require.False(t, errors.As(err, &connErr))

	entries, err := os.ReadDir(incoming)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCapabilityGateBeforeConnectivity(t *testing.T) {
	adapter := &fakeAdapter{mode: eventmodels.FileDrop}
	r := newFakeRouter(t, adapter, false)

	_, err := r.GetPositions(context.Background(), "Sim101")
	require.ErrorIs(t, err, eventmodels.ErrCapabilityUnavailable)
	require.Equal(t, 0, adapter.reads)
}

func TestDisconnected(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{mode: eventmodels.HttpAddOn}
	r := newFakeRouter(t, adapter, false)

	var connErr *eventmodels.ConnectivityError

	_, err := r.PlaceOrder(ctx, plannedBracket().Entry)
	require.ErrorAs(t, err, &connErr)
	require.ErrorIs(t, err, eventmodels.ErrNotConnected)

	_, err = r.PlaceBracket(ctx, plannedBracket())
	require.ErrorAs(t, err, &connErr)

	_, err = r.Flatten(ctx, eventmodels.FlattenRequest{Account: "Sim101", Symbol: "ES 12-25"})
	require.ErrorAs(t, err, &connErr)

	_, err = r.GetPositions(ctx, "Sim101")
	require.ErrorAs(t, err, &connErr)

	_, err = r.LookupInstrument(ctx, "ES 12-25")
	require.ErrorAs(t, err, &connErr)

	require.Empty(t, adapter.placed)
	require.Empty(t, adapter.flattens)
	require.Equal(t, 0, adapter.reads)
}

func TestPlaceBracket(t *testing.T) {
	ctx := context.Background()

	t.Run("entry then legs", func(t *testing.T) {
		adapter := &fakeAdapter{mode: eventmodels.FileDrop}
		r := newFakeRouter(t, adapter, true)

		res, err := r.PlaceBracket(ctx, plannedBracket())
		require.NoError(t, err)
		require.Equal(t, "OCO_1", res.OcoID)
		require.True(t, res.Deferred)
		require.NotNil(t, res.Entry)
		require.NotNil(t, res.TakeProfit)
		require.NotNil(t, res.StopLoss)

		require.Len(t, adapter.placed, 3)
		require.Equal(t, eventmodels.LegEntry, adapter.placed[0].Role)
		require.Equal(t, eventmodels.LegTakeProfit, adapter.placed[1].Role)
		require.Equal(t, eventmodels.LegStopLoss, adapter.placed[2].Role)
	})

	t.Run("entry without bracket", func(t *testing.T) {
		adapter := &fakeAdapter{mode: eventmodels.FileDrop}
		r := newFakeRouter(t, adapter, true)

		res, err := r.PlaceBracket(ctx, eventmodels.PlannedOrder{Entry: plannedBracket().Entry})
		require.NoError(t, err)
		require.Empty(t, res.OcoID)
		require.Len(t, adapter.placed, 1)
	})

	t.Run("entry failure aborts", func(t *testing.T) {
		rejection := &eventmodels.BrokerRejection{Command: "PlaceOrder", StatusCode: 500, Body: "down"}
		adapter := &fakeAdapter{mode: eventmodels.HttpAddOn, failLegs: map[eventmodels.LegRole]error{eventmodels.LegEntry: rejection}}
		r := newFakeRouter(t, adapter, true)

		res, err := r.PlaceBracket(ctx, plannedBracket())
		require.ErrorIs(t, err, rejection)
		require.Nil(t, res.Entry)
		require.Len(t, adapter.placed, 1)
	})

	t.Run("failed leg leaves entry live and still sends the other leg", func(t *testing.T) {
		rejection := &eventmodels.BrokerRejection{Command: "PlaceOrder", StatusCode: 200, Body: "Instrument not found"}
		adapter := &fakeAdapter{mode: eventmodels.HttpAddOn, failLegs: map[eventmodels.LegRole]error{eventmodels.LegTakeProfit: rejection}}
		r := newFakeRouter(t, adapter, true)

		res, err := r.PlaceBracket(ctx, plannedBracket())
		require.Error(t, err)
		require.ErrorIs(t, err, rejection)

		require.NotNil(t, res.Entry)
		require.Nil(t, res.TakeProfit)
		require.NotNil(t, res.StopLoss)
		require.Len(t, adapter.placed, 3)
	})

	t.Run("native brackets send one request", func(t *testing.T) {
		adapter := &fakeAdapter{mode: eventmodels.HttpAddOn, native: true}
		r := newFakeRouter(t, adapter, true)

		res, err := r.PlaceBracket(ctx, plannedBracket())
		require.NoError(t, err)
		require.NotNil(t, res.Entry)
		require.Nil(t, res.TakeProfit)

		require.Len(t, adapter.placed, 1)
		require.Equal(t, 6010.0, *adapter.placed[0].TakeProfit)
		require.Equal(t, 5990.0, *adapter.placed[0].StopLoss)
	})
}

func TestFlattenScope(t *testing.T) {
	adapter := &fakeAdapter{mode: eventmodels.FileDrop}
	r := newFakeRouter(t, adapter, true)

	_, err := r.Flatten(context.Background(), eventmodels.FlattenRequest{Account: "Sim101", Symbol: "ES 12-25", StrategyInstanceID: "abc"})
	require.NoError(t, err)
	require.Equal(t, eventmodels.FlattenRequest{Account: "Sim101", Symbol: "ES 12-25"}, adapter.flattens[0])
}

func TestReads(t *testing.T) {
	adapter := &fakeAdapter{mode: eventmodels.HttpAddOn}
	r := newFakeRouter(t, adapter, true)

	positions, err := r.GetPositions(context.Background(), "Sim101")
	require.NoError(t, err)
	require.Len(t, positions, 1)

	info, err := r.GetAccountInfo(context.Background(), "Sim101")
	require.NoError(t, err)
	require.Equal(t, "Sim101", info.Name)
	require.Equal(t, 2, adapter.reads)
}
