package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/webhook-bridge/src/config"
	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
)

func TestParseFields(t *testing.T) {
	fields, err := parseFields([]string{"symbol=XAUUSD", "order_type=sell", "volume=0.1", "comment=a=b"})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"symbol":     "XAUUSD",
		"order_type": "sell",
		"volume":     "0.1",
		"comment":    "a=b",
	}, fields)

	_, err = parseFields([]string{"XAUUSD"})
	require.ErrorIs(t, err, ErrMalformedField)

	_, err = parseFields([]string{"=1"})
	require.ErrorIs(t, err, ErrMalformedField)
}

func TestEnableOnly(t *testing.T) {
	t.Run("targets one terminal", func(t *testing.T) {
		cfg := config.Default()
		cfg.MetaTrader.Enabled = true
		cfg.MetaTrader.Root = t.TempDir()
		cfg.NinjaTrader.Root = t.TempDir()
		cfg.Links = []config.Link{{Action: "MtPlaceOrder", Event: "WebhookReceivedMtOrder"}}

		require.NoError(t, enableOnly(cfg, eventmodels.NinjaTrader))
		require.True(t, cfg.NinjaTrader.Enabled)
		require.False(t, cfg.MetaTrader.Enabled)
		require.Nil(t, cfg.Links)
	})

	t.Run("unknown terminal", func(t *testing.T) {
		err := enableOnly(config.Default(), "ctrader")

		var cfgErr *eventmodels.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})
}
