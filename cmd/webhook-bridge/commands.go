package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jiaming2012/webhook-bridge/src/bridge"
	"github.com/jiaming2012/webhook-bridge/src/config"
	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
	"github.com/jiaming2012/webhook-bridge/src/terminal"
)

var ErrMalformedField = fmt.Errorf("field must look like key=value")

// parseFields turns key=value arguments into the same field map a webhook
// body produces.
func parseFields(args []string) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, len(args))
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedField, arg)
		}

		fields[key] = strings.TrimSpace(value)
	}

	return fields, nil
}

// enableOnly enables the named terminal and disables the other one, so a
// one-shot command only touches the terminal it targets.
func enableOnly(cfg *config.Config, id eventmodels.TerminalID) error {
	found := false
	for _, t := range cfg.Terminals() {
		t.Enabled = t.ID == id
		found = found || t.Enabled
	}

	if !found {
		return eventmodels.NewConfigurationError("terminal", string(id))
	}

	cfg.Links = nil
	return cfg.Validate()
}

type terminalRun func(ctx context.Context, w io.Writer, format string, t *bridge.Terminal, args []string) error

// terminalCommand runs fn inside a session scoped to the command.
func terminalCommand(use, short string, fn terminalRun) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			id, _ := cmd.Flags().GetString("terminal")
			format, _ := cmd.Flags().GetString("format")

			if err := enableOnly(cfg, eventmodels.TerminalID(id)); err != nil {
				return err
			}

			b, err := bridge.New(cfg, bridge.Options{})
			if err != nil {
				return err
			}

			t, err := b.Terminal(eventmodels.TerminalID(id))
			if err != nil {
				return err
			}

			return terminal.WithSession(cmd.Context(), t.Session, func(ctx context.Context) error {
				return fn(ctx, cmd.OutOrStdout(), format, t, args)
			})
		},
	}
}

func runPlace(ctx context.Context, w io.Writer, format string, t *bridge.Terminal, args []string) error {
	fields, err := parseFields(args)
	if err != nil {
		return err
	}

	result, err := t.Service.PlaceFromFields(ctx, fields)
	if result != nil {
		if renderErr := renderCommands(w, format, result.Legs()...); renderErr != nil {
			return renderErr
		}
	}

	return err
}

func runFlatten(ctx context.Context, w io.Writer, format string, t *bridge.Terminal, args []string) error {
	fields, err := parseFields(args)
	if err != nil {
		return err
	}

	result, err := t.Service.FlattenFromFields(ctx, fields)
	if err != nil {
		return err
	}

	return renderCommands(w, format, result)
}

func accountArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}

	return ""
}

func runPositions(ctx context.Context, w io.Writer, format string, t *bridge.Terminal, args []string) error {
	positions, err := t.Service.Positions(ctx, accountArg(args))
	if err != nil {
		return err
	}

	return renderPositions(w, format, positions)
}

func runOrders(ctx context.Context, w io.Writer, format string, t *bridge.Terminal, args []string) error {
	orders, err := t.Service.Orders(ctx, accountArg(args))
	if err != nil {
		return err
	}

	return renderOrders(w, format, orders)
}

func runAccount(ctx context.Context, w io.Writer, format string, t *bridge.Terminal, args []string) error {
	info, err := t.Service.AccountInfo(ctx, accountArg(args))
	if err != nil {
		return err
	}

	return renderAccount(w, format, info)
}

func addTerminalCommands(root *cobra.Command) {
	cmds := []*cobra.Command{
		terminalCommand("place key=value...", "Place an order, with an optional bracket, from webhook-style fields", runPlace),
		terminalCommand("flatten key=value...", "Close the position in a symbol", runFlatten),
		terminalCommand("positions [account]", "List open positions", runPositions),
		terminalCommand("orders [account]", "List working orders", runOrders),
		terminalCommand("account [account]", "Show account balance and PnL", runAccount),
	}

	for _, cmd := range cmds {
		cmd.Flags().String("terminal", string(eventmodels.NinjaTrader), "Target terminal: ninjatrader or metatrader.")
		cmd.Flags().String("format", FormatTable, "Output format: table, csv or json.")
		root.AddCommand(cmd)
	}
}
