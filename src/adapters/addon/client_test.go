package addon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/webhook-bridge/src/catalog"
	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]interface{}
}

func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) (*httptest.Server, *[]recordedRequest) {
	var requests []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
		if r.Body != nil && r.Method == http.MethodPost {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&rec.Body))
		}
		requests = append(requests, rec)

		h, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"Not found"}`))
			return
		}

		h(w, r)
	}))

	t.Cleanup(srv.Close)
	return srv, &requests
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func newTestClient(srv *httptest.Server, cat InstrumentLookup) *Client {
	return New(Config{TerminalID: eventmodels.NinjaTrader, BaseURL: srv.URL + "/"}, cat)
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy", func(t *testing.T) {
		srv, _ := newTestServer(t, map[string]http.HandlerFunc{
			"GET /health": respond(200, `{"status":"ok"}`),
		})

		require.NoError(t, newTestClient(srv, nil).Connect(ctx))
	})

	t.Run("unhealthy", func(t *testing.T) {
		srv, _ := newTestServer(t, map[string]http.HandlerFunc{
			"GET /health": respond(503, `starting`),
		})

		err := newTestClient(srv, nil).Connect(ctx)

		var connErr *eventmodels.ConnectivityError
		require.ErrorAs(t, err, &connErr)

		var rejection *eventmodels.BrokerRejection
		require.ErrorAs(t, err, &rejection)
		require.Equal(t, 503, rejection.StatusCode)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv, _ := newTestServer(t, nil)
		c := newTestClient(srv, nil)
		srv.Close()

		var connErr *eventmodels.ConnectivityError
		require.ErrorAs(t, c.Connect(ctx), &connErr)
	})
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()

	order := eventmodels.OrderRequest{
		Role:        eventmodels.LegTakeProfit,
		Account:     "Sim101",
		Symbol:      "ES 12-25",
		Side:        eventmodels.Sell,
		Quantity:    2,
		Kind:        eventmodels.Limit,
		LimitPrice:  eventmodels.Float64Ptr(6010.25),
		TimeInForce: "DAY",
		OcoID:       "OCO_12345678",
		StrategyTag: "42",
	}

	t.Run("accepted", func(t *testing.T) {
		srv, requests := newTestServer(t, map[string]http.HandlerFunc{
			"POST /order/place": respond(200, `{"success":true,"orderId":"abc","oco":""}`),
		})

		res, err := newTestClient(srv, nil).PlaceOrder(ctx, order)
		require.NoError(t, err)
		require.Equal(t, CommandPlaceOrder, res.Command)
		require.Equal(t, eventmodels.LegTakeProfit, res.Role)
		require.Equal(t, "abc", res.Response["orderId"])

		require.Len(t, *requests, 1)
		body := (*requests)[0].Body
		require.Equal(t, "Sim101", body["account"])
		require.Equal(t, "ES 12-25", body["symbol"])
		require.Equal(t, "SELL", body["action"])
		require.Equal(t, 2.0, body["quantity"])
		require.Equal(t, "LIMIT", body["orderType"])
		require.Equal(t, 6010.25, body["limitPrice"])
		require.Nil(t, body["stopPrice"])
		require.Equal(t, "OCO_12345678", body["oco"])
		require.Equal(t, "42", body["strategy"])

		tp, present := body["tp"]
		require.True(t, present)
		require.Nil(t, tp)
	})

	t.Run("attached bracket", func(t *testing.T) {
		srv, requests := newTestServer(t, map[string]http.HandlerFunc{
			"POST /order/place": respond(200, `{"success":true}`),
		})

		_, err := newTestClient(srv, nil).PlaceOrder(ctx, order.WithAttachedBracket(eventmodels.Float64Ptr(6000), eventmodels.Float64Ptr(6020)))
		require.NoError(t, err)

		body := (*requests)[0].Body
		require.Equal(t, 6000.0, body["tp"])
		require.Equal(t, 6020.0, body["sl"])
	})

	t.Run("success false with status 200", func(t *testing.T) {
		srv, _ := newTestServer(t, map[string]http.HandlerFunc{
			"POST /order/place": respond(200, `{"success":false,"error":"Account not found"}`),
		})

		_, err := newTestClient(srv, nil).PlaceOrder(ctx, order)

		var rejection *eventmodels.BrokerRejection
		require.ErrorAs(t, err, &rejection)
		require.Equal(t, CommandPlaceOrder, rejection.Command)
		require.Equal(t, "Account not found", rejection.Body)
	})

	t.Run("server error", func(t *testing.T) {
		srv, _ := newTestServer(t, map[string]http.HandlerFunc{
			"POST /order/place": respond(500, `{"error":"Object reference not set"}`),
		})

		_, err := newTestClient(srv, nil).PlaceOrder(ctx, order)

		var rejection *eventmodels.BrokerRejection
		require.ErrorAs(t, err, &rejection)
		require.Equal(t, 500, rejection.StatusCode)
		require.Contains(t, rejection.Body, "Object reference not set")
	})
}

func TestFlatten(t *testing.T) {
	ctx := context.Background()

	srv, requests := newTestServer(t, map[string]http.HandlerFunc{
		"POST /position/flatten": respond(200, `{"success":true,"orderId":"x","quantity":2,"cancelledOrders":2}`),
	})
	c := newTestClient(srv, nil)

	res, err := c.Flatten(ctx, eventmodels.FlattenRequest{Account: "Sim101", Symbol: "ES 12-25", StrategyTag: "42"})
	require.NoError(t, err)
	require.Equal(t, 2.0, res.Response["cancelledOrders"])

	body := (*requests)[0].Body
	require.Equal(t, "ES 12-25", body["symbol"])
	require.Equal(t, "", body["strategy"])
	require.Equal(t, "", body["strategyId"])

	_, err = c.Flatten(ctx, eventmodels.FlattenRequest{Account: "Sim101", Symbol: "ES 12-25", StrategyTag: "42", StrategyInstanceID: "abc"})
	require.NoError(t, err)

	body = (*requests)[1].Body
	require.Equal(t, "42", body["strategy"])
	require.Equal(t, "abc", body["strategyId"])
}

func TestQueries(t *testing.T) {
	ctx := context.Background()

	srv, requests := newTestServer(t, map[string]http.HandlerFunc{
		"GET /positions": respond(200, `[{"instrument":"ES 12-25","quantity":2,"averagePrice":6001.5,"marketPosition":"Long","unrealizedPnL":125}]`),
		"GET /orders":    respond(200, `[{"orderId":"1","name":"Profit target","instrument":"ES 12-25","orderAction":"Sell","orderType":"Limit","quantity":2,"limitPrice":6010,"stopPrice":0,"orderState":"Working","oco":"OCO_1","timeInForce":"Day"}]`),
		"GET /account":   respond(200, `{"name":"Sim101","balance":100000,"realizedPnL":-50,"unrealizedPnL":125,"positionCount":1}`),
	})
	c := newTestClient(srv, nil)

	positions, err := c.GetPositions(ctx, "Sim101")
	require.NoError(t, err)
	require.Equal(t, []eventmodels.PositionSnapshot{{
		Instrument:     "ES 12-25",
		Quantity:       2,
		AveragePrice:   6001.5,
		MarketPosition: "Long",
		UnrealizedPnL:  125,
	}}, positions)
	require.Equal(t, "account=Sim101", (*requests)[0].Query)

	orders, err := c.GetOrders(ctx, "Sim101")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, "OCO_1", orders[0].Oco)
	require.Equal(t, 6010.0, orders[0].LimitPrice)

	info, err := c.GetAccountInfo(ctx, "Sim101")
	require.NoError(t, err)
	require.Equal(t, &eventmodels.AccountSnapshot{
		Name:          "Sim101",
		Balance:       100000,
		RealizedPnL:   -50,
		UnrealizedPnL: 125,
		PositionCount: 1,
	}, info)

	t.Run("error object instead of array", func(t *testing.T) {
		srv, _ := newTestServer(t, map[string]http.HandlerFunc{
			"GET /positions": respond(200, `{"error":"Account not found"}`),
		})

		_, err := newTestClient(srv, nil).GetPositions(ctx, "Nope")

		var rejection *eventmodels.BrokerRejection
		require.ErrorAs(t, err, &rejection)
		require.Equal(t, "Account not found", rejection.Body)
	})
}

func TestLookupInstrument(t *testing.T) {
	ctx := context.Background()

	cat, err := catalog.NewStaticCatalog(eventmodels.Instrument{Symbol: "XAUUSD", Point: 0.01, Digits: 2, Bid: 2650.5, Ask: 2650.8})
	require.NoError(t, err)

	t.Run("served by the add-on", func(t *testing.T) {
		srv, requests := newTestServer(t, map[string]http.HandlerFunc{
			"GET /instrument": respond(200, `{"symbol":"XAUUSD","point":0.01,"digits":2,"bid":2700.1,"ask":2700.4}`),
		})

		inst, err := newTestClient(srv, cat).LookupInstrument(ctx, "XAUUSD")
		require.NoError(t, err)
		require.Equal(t, 2700.1, inst.Bid)
		require.Equal(t, "symbol=XAUUSD", (*requests)[0].Query)
	})

	t.Run("falls back to the catalog on 404", func(t *testing.T) {
		srv, _ := newTestServer(t, nil)

		inst, err := newTestClient(srv, cat).LookupInstrument(ctx, "XAUUSD")
		require.NoError(t, err)
		require.Equal(t, 2650.5, inst.Bid)

		_, err = newTestClient(srv, cat).LookupInstrument(ctx, "EURUSD")
		require.ErrorIs(t, err, eventmodels.ErrInstrumentNotFound)
	})

	t.Run("no catalog", func(t *testing.T) {
		srv, _ := newTestServer(t, nil)

		_, err := newTestClient(srv, nil).LookupInstrument(ctx, "XAUUSD")
		require.ErrorIs(t, err, eventmodels.ErrInstrumentNotFound)
	})

	t.Run("other failures propagate", func(t *testing.T) {
		srv, _ := newTestServer(t, map[string]http.HandlerFunc{
			"GET /instrument": respond(500, `boom`),
		})

		_, err := newTestClient(srv, cat).LookupInstrument(ctx, "XAUUSD")

		var rejection *eventmodels.BrokerRejection
		require.ErrorAs(t, err, &rejection)
	})
}
