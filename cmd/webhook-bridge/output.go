package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
)

const (
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatJSON  = "json"
)

var ErrUnknownFormat = fmt.Errorf("unknown output format")

type commandRow struct {
	Role    string `csv:"role"`
	Command string `csv:"command"`
	Path    string `csv:"path"`
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// render writes rows in format. header and toRow are only used for tables.
func render[T any](w io.Writer, format string, rows []T, header []string, toRow func(T) []string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case FormatCSV:
		if err := gocsv.Marshal(rows, w); err != nil {
			return fmt.Errorf("render: failed to write csv: %w", err)
		}

		return nil
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.SetHeader(header)
		table.SetAutoFormatHeaders(false)

		for _, r := range rows {
			table.Append(toRow(r))
		}

		table.Render()
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func renderPositions(w io.Writer, format string, positions []eventmodels.PositionSnapshot) error {
	header := []string{"instrument", "market_position", "quantity", "average_price", "unrealized_pnl"}
	return render(w, format, positions, header, func(p eventmodels.PositionSnapshot) []string {
		return []string{p.Instrument, p.MarketPosition, formatFloat(p.Quantity), formatFloat(p.AveragePrice), formatFloat(p.UnrealizedPnL)}
	})
}

func renderOrders(w io.Writer, format string, orders []eventmodels.OrderSnapshot) error {
	header := []string{"order_id", "instrument", "action", "type", "quantity", "limit", "stop", "state", "oco", "tif"}
	return render(w, format, orders, header, func(o eventmodels.OrderSnapshot) []string {
		return []string{o.OrderID, o.Instrument, o.OrderAction, o.OrderType, formatFloat(o.Quantity), formatFloat(o.LimitPrice), formatFloat(o.StopPrice), o.OrderState, o.Oco, o.TimeInForce}
	})
}

func renderAccount(w io.Writer, format string, info *eventmodels.AccountSnapshot) error {
	header := []string{"name", "balance", "realized_pnl", "unrealized_pnl", "positions"}
	return render(w, format, []eventmodels.AccountSnapshot{*info}, header, func(a eventmodels.AccountSnapshot) []string {
		return []string{a.Name, formatFloat(a.Balance), formatFloat(a.RealizedPnL), formatFloat(a.UnrealizedPnL), strconv.Itoa(a.PositionCount)}
	})
}

func renderCommands(w io.Writer, format string, results ...*eventmodels.CommandResult) error {
	if format == FormatJSON {
		return render(w, format, results, nil, nil)
	}

	rows := make([]commandRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, commandRow{Role: string(r.Role), Command: r.Command, Path: r.Path})
	}

	return render(w, format, rows, []string{"role", "command", "path"}, func(r commandRow) []string {
		return []string{r.Role, r.Command, r.Path}
	})
}
