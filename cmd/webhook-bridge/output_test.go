package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
)

func TestRender(t *testing.T) {
	positions := []eventmodels.PositionSnapshot{
		{Instrument: "ES 12-25", Quantity: 2, AveragePrice: 6012.25, MarketPosition: "Long", UnrealizedPnL: 125},
	}

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderPositions(&buf, FormatCSV, positions))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		require.Equal(t, "instrument,quantity,average_price,market_position,unrealized_pnl", lines[0])
		require.Equal(t, "ES 12-25,2,6012.25,Long,125", lines[1])
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderPositions(&buf, FormatJSON, positions))

		var decoded []eventmodels.PositionSnapshot
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Equal(t, positions, decoded)
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderAccount(&buf, FormatTable, &eventmodels.AccountSnapshot{Name: "Sim101", Balance: 100000}))

		out := buf.String()
		require.Contains(t, out, "balance")
		require.Contains(t, out, "Sim101")
		require.Contains(t, out, "100000")
	})

	t.Run("commands", func(t *testing.T) {
		var buf bytes.Buffer
		err := renderCommands(&buf, FormatCSV, &eventmodels.CommandResult{Role: eventmodels.LegEntry, Command: "PLACE", Path: "/nt/incoming/oif1.txt"})
		require.NoError(t, err)
		require.Equal(t, "role,command,path\nentry,PLACE,/nt/incoming/oif1.txt\n", buf.String())
	})

	t.Run("unknown format", func(t *testing.T) {
		err := renderOrders(&bytes.Buffer{}, "xml", nil)
		require.ErrorIs(t, err, ErrUnknownFormat)
	})
}
