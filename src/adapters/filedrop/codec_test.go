package filedrop

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
)

func TestEncodePlace(t *testing.T) {
	t.Run("market entry", func(t *testing.T) {
		line, err := EncodePlace(eventmodels.OrderRequest{
			Account:     "Sim101",
			Symbol:      "ES 12-25",
			Side:        eventmodels.Buy,
			Quantity:    2,
			Kind:        eventmodels.Market,
			TimeInForce: "DAY",
			StrategyTag: "42",
		})

		require.NoError(t, err)
		require.Equal(t, "PLACE;Sim101;ES 12-25;BUY;2;MARKET;;;DAY;;;42;", line)
		require.Len(t, strings.Split(line, ";"), Segments)
	})

	t.Run("take profit leg", func(t *testing.T) {
		line, err := EncodePlace(eventmodels.OrderRequest{
			Account:            "Sim101",
			Symbol:             "XAUUSD",
			Side:               eventmodels.Buy,
			Quantity:           0.1,
			Kind:               eventmodels.Limit,
			LimitPrice:         eventmodels.Float64Ptr(2640.5),
			TimeInForce:        "GTC",
			OcoID:              "OCO_1a2b3c4d",
			StrategyTag:        "202220001",
			StrategyInstanceID: "s-1",
		})

		require.NoError(t, err)
		require.Equal(t, "PLACE;Sim101;XAUUSD;BUY;0.1;LIMIT;2640.5;;GTC;OCO_1a2b3c4d;;202220001;s-1", line)
	})

	t.Run("stop limit carries both prices", func(t *testing.T) {
		line, err := EncodePlace(eventmodels.OrderRequest{
			Account:     "Sim101",
			Symbol:      "NQ 12-25",
			Side:        eventmodels.Sell,
			Quantity:    1,
			Kind:        eventmodels.StopLimit,
			LimitPrice:  eventmodels.Float64Ptr(20100.25),
			StopPrice:   eventmodels.Float64Ptr(20101),
			TimeInForce: "DAY",
			OrderID:     "my-order",
		})

		require.NoError(t, err)
		segments := strings.Split(line, ";")
		require.Len(t, segments, Segments)
		require.Equal(t, "STOPLIMIT", segments[5])
		require.Equal(t, "20100.25", segments[6])
		require.Equal(t, "20101", segments[7])
		require.Equal(t, "my-order", segments[10])
	})

	t.Run("reserved character rejected", func(t *testing.T) {
		_, err := EncodePlace(eventmodels.OrderRequest{
			Account:  "Sim;101",
			Symbol:   "ES 12-25",
			Side:     eventmodels.Buy,
			Quantity: 1,
			Kind:     eventmodels.Market,
		})

		require.ErrorIs(t, err, ErrReservedCharacter)
	})
}

func TestEncodeClosePosition(t *testing.T) {
	t.Run("account and symbol only", func(t *testing.T) {
		line, err := EncodeClosePosition(eventmodels.FlattenRequest{
			Account: "Sim101",
			Symbol:  "ES 12-25",
		})

		require.NoError(t, err)
		require.Equal(t, "CLOSEPOSITION;Sim101;ES 12-25;;;;;;;;;;", line)
		require.Len(t, strings.Split(line, ";"), Segments)
	})

	t.Run("scoped to a strategy instance", func(t *testing.T) {
		line, err := EncodeClosePosition(eventmodels.FlattenRequest{
			Account:            "Sim101",
			Symbol:             "ES 12-25",
			StrategyTag:        "42",
			StrategyInstanceID: "abc",
		})

		require.NoError(t, err)
		require.Equal(t, "CLOSEPOSITION;Sim101;ES 12-25;;;;;;;;;42;abc", line)
		require.Len(t, strings.Split(line, ";"), Segments)
	})

	t.Run("tag without instance is not scoped", func(t *testing.T) {
		line, err := EncodeClosePosition(eventmodels.FlattenRequest{
			Account:     "Sim101",
			Symbol:      "ES 12-25",
			StrategyTag: "42",
		})

		require.NoError(t, err)
		require.Equal(t, "CLOSEPOSITION;Sim101;ES 12-25;;;;;;;;;;", line)
	})
}
