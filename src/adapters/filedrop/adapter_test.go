package filedrop

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
	"github.com/jiaming2012/webhook-bridge/src/terminal"
)

func newTestAdapter(t *testing.T, processRunning bool) (*Adapter, string) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, DefaultIncomingDir), 0o755))

	checker := terminal.ProcessCheckerFunc(func(ctx context.Context, name string) (bool, error) {
		return processRunning, nil
	})

	a := New(Config{TerminalID: eventmodels.NinjaTrader, ProcessName: "NinjaTrader.exe"}, StaticResolver(root), checker, nil)
	return a, filepath.Join(root, DefaultIncomingDir)
}

func readCommandFiles(t *testing.T, dir string) []string {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var lines []string
	for _, e := range entries {
		require.True(t, strings.HasPrefix(e.Name(), "oif"), e.Name())
		require.True(t, strings.HasSuffix(e.Name(), ".txt"), e.Name())

		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		lines = append(lines, string(data))
	}

	return lines
}

func TestAdapterConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves incoming directory", func(t *testing.T) {
		a, incoming := newTestAdapter(t, true)

		require.Equal(t, "", a.IncomingDir())
		require.NoError(t, a.Connect(ctx))
		require.Equal(t, incoming, a.IncomingDir())

		require.NoError(t, a.Disconnect(ctx))
		require.Equal(t, "", a.IncomingDir())
	})

	t.Run("missing incoming directory", func(t *testing.T) {
		a := New(Config{TerminalID: eventmodels.NinjaTrader}, StaticResolver(t.TempDir()), nil, nil)

		err := a.Connect(ctx)
		var connErr *eventmodels.ConnectivityError
		require.ErrorAs(t, err, &connErr)
	})

	t.Run("incoming check can be skipped", func(t *testing.T) {
		a := New(Config{TerminalID: eventmodels.NinjaTrader, SkipIncomingCheck: true}, StaticResolver(t.TempDir()), nil, nil)
		require.NoError(t, a.Connect(ctx))
	})

	t.Run("process not running", func(t *testing.T) {
		a, _ := newTestAdapter(t, false)

		err := a.Connect(ctx)
		var connErr *eventmodels.ConnectivityError
		require.ErrorAs(t, err, &connErr)
		require.Contains(t, err.Error(), "NinjaTrader.exe")
	})

	t.Run("unresolved root", func(t *testing.T) {
		a := New(Config{TerminalID: eventmodels.MetaTrader}, StaticResolver(""), nil, nil)

		err := a.Connect(ctx)
		var connErr *eventmodels.ConnectivityError
		require.ErrorAs(t, err, &connErr)
		require.Equal(t, eventmodels.MetaTrader, connErr.TerminalID)
	})
}

func TestAdapterCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("one file per command", func(t *testing.T) {
		a, incoming := newTestAdapter(t, true)
		require.NoError(t, a.Connect(ctx))

		order := eventmodels.OrderRequest{
			Role:        eventmodels.LegEntry,
			Account:     "Sim101",
			Symbol:      "ES 12-25",
			Side:        eventmodels.Sell,
			Quantity:    1,
			Kind:        eventmodels.Market,
			TimeInForce: "DAY",
		}

		res, err := a.PlaceOrder(ctx, order)
		require.NoError(t, err)
		require.Equal(t, CommandPlace, res.Command)
		require.Equal(t, eventmodels.LegEntry, res.Role)
		require.FileExists(t, res.Path)

		_, err = a.PlaceOrder(ctx, order)
		require.NoError(t, err)

		res, err = a.Flatten(ctx, eventmodels.FlattenRequest{Account: "Sim101", Symbol: "ES 12-25"})
		require.NoError(t, err)
		require.Equal(t, CommandClosePosition, res.Command)

		lines := readCommandFiles(t, incoming)
		require.Len(t, lines, 3)
		require.Contains(t, lines, "CLOSEPOSITION;Sim101;ES 12-25;;;;;;;;;;")
		require.Contains(t, lines, "PLACE;Sim101;ES 12-25;SELL;1;MARKET;;;DAY;;;;")
	})

	t.Run("not connected", func(t *testing.T) {
		a, incoming := newTestAdapter(t, true)

		_, err := a.PlaceOrder(ctx, eventmodels.OrderRequest{Side: eventmodels.Buy, Quantity: 1, Kind: eventmodels.Market})
		require.ErrorIs(t, err, eventmodels.ErrNotConnected)

		var rejection *eventmodels.BrokerRejection
		require.True(t, errors.As(err, &rejection))
		require.Empty(t, readCommandFiles(t, incoming))
	})

	t.Run("reads are unavailable", func(t *testing.T) {
		a, _ := newTestAdapter(t, true)
		require.NoError(t, a.Connect(ctx))

		_, err := a.GetPositions(ctx, "Sim101")
		require.ErrorIs(t, err, eventmodels.ErrCapabilityUnavailable)

		_, err = a.GetOrders(ctx, "Sim101")
		require.ErrorIs(t, err, eventmodels.ErrCapabilityUnavailable)

		_, err = a.GetAccountInfo(ctx, "Sim101")
		require.ErrorIs(t, err, eventmodels.ErrCapabilityUnavailable)
	})

	t.Run("lookup without catalog", func(t *testing.T) {
		a, _ := newTestAdapter(t, true)

		_, err := a.LookupInstrument(ctx, "XAUUSD")
		require.ErrorIs(t, err, eventmodels.ErrInstrumentNotFound)
	})
}
