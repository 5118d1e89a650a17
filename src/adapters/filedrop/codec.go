package filedrop

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
)

const (
	CommandPlace         = "PLACE"
	CommandClosePosition = "CLOSEPOSITION"

	// Segments is the number of ';'-separated fields in every command line.
	Segments = 13

	separator = ";"
)

var ErrReservedCharacter = fmt.Errorf("value contains a reserved character")

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPrice(p *float64) string {
	if p == nil {
		return ""
	}

	return formatNumber(*p)
}

func join(segments []string) (string, error) {
	if len(segments) != Segments {
		return "", fmt.Errorf("join: expected %d segments, got %d", Segments, len(segments))
	}

	for i, s := range segments {
		if strings.ContainsAny(s, ";\r\n") {
			return "", fmt.Errorf("segment %d %q: %w", i, s, ErrReservedCharacter)
		}
	}

	return strings.Join(segments, separator), nil
}

// EncodePlace renders one order leg as a PLACE line:
//
//	PLACE;account;symbol;side;qty;kind;limit;stop;tif;oco;orderId;strategyTag;strategyInstanceId
func EncodePlace(order eventmodels.OrderRequest) (string, error) {
	line, err := join([]string{
		CommandPlace,
		order.Account,
		order.Symbol,
		string(order.Side),
		formatNumber(order.Quantity),
		string(order.Kind),
		formatPrice(order.LimitPrice),
		formatPrice(order.StopPrice),
		order.TimeInForce,
		order.OcoID,
		order.OrderID,
		order.StrategyTag,
		order.StrategyInstanceID,
	})
	if err != nil {
		return "", fmt.Errorf("EncodePlace: %w", err)
	}

	return line, nil
}

// EncodeClosePosition renders a flatten request. The strategy segments are
// only filled when the request is scoped to one strategy instance.
func EncodeClosePosition(req eventmodels.FlattenRequest) (string, error) {
	req = req.Scoped()

	segments := make([]string, Segments)
	segments[0] = CommandClosePosition
	segments[1] = req.Account
	segments[2] = req.Symbol
	segments[11] = req.StrategyTag
	segments[12] = req.StrategyInstanceID

	line, err := join(segments)
	if err != nil {
		return "", fmt.Errorf("EncodeClosePosition: %w", err)
	}

	return line, nil
}
