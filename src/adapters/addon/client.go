// Package addon is the JSON-over-HTTP client for the add-on API that runs
// inside the trading terminal.
package addon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
)

const (
	HealthTimeout = 2 * time.Second
	ReadTimeout   = 5 * time.Second
	WriteTimeout  = 10 * time.Second
)

const (
	CommandHealth      = "Health"
	CommandPlaceOrder  = "PlaceOrder"
	CommandFlatten     = "Flatten"
	CommandPositions   = "GetPositions"
	CommandOrders      = "GetOrders"
	CommandAccountInfo = "GetAccountInfo"
	CommandInstrument  = "LookupInstrument"
)

type InstrumentLookup interface {
	LookupInstrument(ctx context.Context, symbol string) (eventmodels.Instrument, error)
}

type Config struct {
	TerminalID eventmodels.TerminalID
	BaseURL    string

	// NativeBrackets lets the add-on build take-profit and stop-loss legs
	// from the entry request instead of receiving them as separate orders.
	NativeBrackets bool
}

func BaseURL(host string, port int) string {
	return fmt.Sprintf("http://%s:%d", host, port)
}

type Client struct {
	cfg       Config
	transport *http.Transport
	health    *http.Client
	read      *http.Client
	write     *http.Client
	catalog   InstrumentLookup
}

// New returns a client for the add-on at cfg.BaseURL. catalog is consulted
// when the add-on does not know a symbol; it may be nil.
func New(cfg Config, catalog InstrumentLookup) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	transport := http.DefaultTransport.(*http.Transport).Clone()
	traced := otelhttp.NewTransport(transport)

	return &Client{
		cfg:       cfg,
		transport: transport,
		health:    &http.Client{Timeout: HealthTimeout, Transport: traced},
		read:      &http.Client{Timeout: ReadTimeout, Transport: traced},
		write:     &http.Client{Timeout: WriteTimeout, Transport: traced},
		catalog:   catalog,
	}
}

func (c *Client) Mode() eventmodels.IntegrationMode {
	return eventmodels.HttpAddOn
}

func (c *Client) NativeBrackets() bool {
	return c.cfg.NativeBrackets
}

func (c *Client) do(ctx context.Context, client *http.Client, method, command, path string, query url.Values, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to marshal request: %w", command, err)
		}

		body = bytes.NewReader(data)
	}

	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", command, err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, &eventmodels.BrokerRejection{Command: command, Cause: err}
	}

	defer res.Body.Close()

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &eventmodels.BrokerRejection{Command: command, StatusCode: res.StatusCode, Cause: err}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &eventmodels.BrokerRejection{
			Command:    command,
			StatusCode: res.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	return respBody, nil
}

// checkError reports an add-on error embedded in a 2xx body: either
// "success": false or an object carrying only "error".
func checkError(command string, body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var dto errorDTO
	if err := json.Unmarshal(trimmed, &dto); err != nil {
		return &eventmodels.BrokerRejection{Command: command, StatusCode: http.StatusOK, Body: string(trimmed), Cause: err}
	}

	failed := (dto.Success != nil && !*dto.Success) || (dto.Success == nil && dto.Error != "")
	if !failed {
		return nil
	}

	msg := dto.Error
	if msg == "" {
		msg = string(trimmed)
	}

	return &eventmodels.BrokerRejection{Command: command, StatusCode: http.StatusOK, Body: msg}
}

func (c *Client) Connect(ctx context.Context) error {
	if _, err := c.do(ctx, c.health, http.MethodGet, CommandHealth, "/health", nil, nil); err != nil {
		return eventmodels.NewConnectivityError(c.cfg.TerminalID, fmt.Errorf("add-on at %s is not healthy: %w", c.cfg.BaseURL, err))
	}

	log.Infof("connected to %s add-on at %s", c.cfg.TerminalID, c.cfg.BaseURL)
	return nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	c.transport.CloseIdleConnections()
	return nil
}

func (c *Client) command(ctx context.Context, command, path string, role eventmodels.LegRole, payload interface{}) (*eventmodels.CommandResult, error) {
	body, err := c.do(ctx, c.write, http.MethodPost, command, path, nil, payload)
	if err != nil {
		return nil, err
	}

	if err := checkError(command, body); err != nil {
		return nil, err
	}

	var response map[string]interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &eventmodels.BrokerRejection{Command: command, StatusCode: http.StatusOK, Body: string(body), Cause: err}
	}

	return &eventmodels.CommandResult{
		Role:     role,
		Command:  command,
		Path:     path,
		Response: response,
	}, nil
}

func (c *Client) PlaceOrder(ctx context.Context, order eventmodels.OrderRequest) (*eventmodels.CommandResult, error) {
	return c.command(ctx, CommandPlaceOrder, "/order/place", order.Role, newPlaceOrderDTO(order))
}

func (c *Client) Flatten(ctx context.Context, req eventmodels.FlattenRequest) (*eventmodels.CommandResult, error) {
	return c.command(ctx, CommandFlatten, "/position/flatten", "", newFlattenDTO(req))
}

func (c *Client) query(ctx context.Context, command, path, account string, out interface{}) error {
	body, err := c.do(ctx, c.read, http.MethodGet, command, path, url.Values{"account": {account}}, nil)
	if err != nil {
		return err
	}

	if err := checkError(command, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &eventmodels.BrokerRejection{Command: command, StatusCode: http.StatusOK, Body: string(body), Cause: err}
	}

	return nil
}

func (c *Client) GetPositions(ctx context.Context, account string) ([]eventmodels.PositionSnapshot, error) {
	var positions []eventmodels.PositionSnapshot
	if err := c.query(ctx, CommandPositions, "/positions", account, &positions); err != nil {
		return nil, err
	}

	return positions, nil
}

func (c *Client) GetOrders(ctx context.Context, account string) ([]eventmodels.OrderSnapshot, error) {
	var orders []eventmodels.OrderSnapshot
	if err := c.query(ctx, CommandOrders, "/orders", account, &orders); err != nil {
		return nil, err
	}

	return orders, nil
}

func (c *Client) GetAccountInfo(ctx context.Context, account string) (*eventmodels.AccountSnapshot, error) {
	var info eventmodels.AccountSnapshot
	if err := c.query(ctx, CommandAccountInfo, "/account", account, &info); err != nil {
		return nil, err
	}

	return &info, nil
}

// LookupInstrument asks the add-on for symbol metadata and a current quote.
// Add-ons that do not serve /instrument, or do not know the symbol, answer
// 404 and the static catalog is used instead.
func (c *Client) LookupInstrument(ctx context.Context, symbol string) (eventmodels.Instrument, error) {
	body, err := c.do(ctx, c.read, http.MethodGet, CommandInstrument, "/instrument", url.Values{"symbol": {symbol}}, nil)
	if err != nil {
		var rejection *eventmodels.BrokerRejection
		if errors.As(err, &rejection) && rejection.StatusCode == http.StatusNotFound {
			return c.lookupCatalog(ctx, symbol)
		}

		return eventmodels.Instrument{}, err
	}

	if err := checkError(CommandInstrument, body); err != nil {
		return eventmodels.Instrument{}, err
	}

	var inst eventmodels.Instrument
	if err := json.Unmarshal(body, &inst); err != nil {
		return eventmodels.Instrument{}, &eventmodels.BrokerRejection{Command: CommandInstrument, StatusCode: http.StatusOK, Body: string(body), Cause: err}
	}

	if err := inst.Validate(); err != nil {
		return eventmodels.Instrument{}, &eventmodels.BrokerRejection{Command: CommandInstrument, StatusCode: http.StatusOK, Body: string(body), Cause: err}
	}

	return inst, nil
}

func (c *Client) lookupCatalog(ctx context.Context, symbol string) (eventmodels.Instrument, error) {
	if c.catalog == nil {
		return eventmodels.Instrument{}, fmt.Errorf("LookupInstrument: %s: %w", symbol, eventmodels.ErrInstrumentNotFound)
	}

	return c.catalog.LookupInstrument(ctx, symbol)
}
