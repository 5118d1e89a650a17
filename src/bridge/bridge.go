// Package bridge assembles the per-terminal stacks described by a
// config.Config and links their actions to webhook events.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/kataras/go-events"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/webhook-bridge/src/adapters/addon"
	"github.com/jiaming2012/webhook-bridge/src/adapters/filedrop"
	"github.com/jiaming2012/webhook-bridge/src/bracket"
	"github.com/jiaming2012/webhook-bridge/src/catalog"
	"github.com/jiaming2012/webhook-bridge/src/config"
	"github.com/jiaming2012/webhook-bridge/src/dispatch"
	"github.com/jiaming2012/webhook-bridge/src/eventconsumers"
	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
	"github.com/jiaming2012/webhook-bridge/src/eventproducers/webhookapi"
	"github.com/jiaming2012/webhook-bridge/src/eventpubsub"
	"github.com/jiaming2012/webhook-bridge/src/eventservices"
	"github.com/jiaming2012/webhook-bridge/src/normalizer"
	"github.com/jiaming2012/webhook-bridge/src/terminal"
)

var ErrTerminalDisabled = fmt.Errorf("terminal is not enabled")

// Terminal is everything wired for one enabled terminal.
type Terminal struct {
	Config  *config.TerminalConfig
	Session *terminal.Session
	Router  *dispatch.Router
	Service *eventservices.OrderService
}

type Options struct {
	// Checker replaces the host process check. Nil uses gopsutil.
	Checker terminal.ProcessChecker

	// NewOcoID replaces the random OCO id generator.
	NewOcoID func() string
}

type Bridge struct {
	cfg       *config.Config
	catalog   *catalog.StaticCatalog
	emitter   events.EventEmmiter
	linker    *eventpubsub.Linker
	terminals map[eventmodels.TerminalID]*Terminal
	order     []eventmodels.TerminalID
}

func New(cfg *config.Config, opts Options) (*Bridge, error) {
	b := &Bridge{
		cfg:       cfg,
		emitter:   events.New(),
		linker:    eventpubsub.NewLinker(),
		terminals: make(map[eventmodels.TerminalID]*Terminal),
	}

	if cfg.InstrumentsFile != "" {
		cat, err := catalog.LoadStaticCatalog(cfg.InstrumentsFile)
		if err != nil {
			return nil, fmt.Errorf("bridge.New: %w", err)
		}

		log.Infof("loaded %d instrument(s) from %s", cat.Len(), cfg.InstrumentsFile)
		b.catalog = cat
	}

	b.emitter.On(terminal.SessionConnectedEvent, func(args ...interface{}) {
		logSessionEvent(terminal.SessionConnectedEvent, args)
	})

	b.emitter.On(terminal.SessionDisconnectedEvent, func(args ...interface{}) {
		logSessionEvent(terminal.SessionDisconnectedEvent, args)
	})

	if err := b.linker.Register(eventconsumers.NewPrintDataAction(eventconsumers.PrintDataSuffix)); err != nil {
		return nil, fmt.Errorf("bridge.New: %w", err)
	}

	for _, tc := range cfg.EnabledTerminals() {
		t, err := b.buildTerminal(tc, opts)
		if err != nil {
			return nil, fmt.Errorf("bridge.New: %s: %w", tc.ID, err)
		}

		if err := b.linker.Register(eventconsumers.TerminalActions(tc.Prefix, t.Service)...); err != nil {
			return nil, fmt.Errorf("bridge.New: %w", err)
		}

		b.terminals[tc.ID] = t
		b.order = append(b.order, tc.ID)
	}

	for _, link := range cfg.EffectiveLinks() {
		if err := b.linker.Link(link.Action, link.Event); err != nil {
			return nil, fmt.Errorf("bridge.New: %w", err)
		}
	}

	return b, nil
}

func logSessionEvent(name events.EventName, args []interface{}) {
	for _, arg := range args {
		if s, ok := arg.(*terminal.Session); ok {
			log.WithFields(log.Fields{
				"terminal": s.TerminalID,
				"mode":     s.Mode,
				"account":  s.AccountID,
			}).Debugf("%s", name)
		}
	}
}

func (b *Bridge) buildTerminal(tc *config.TerminalConfig, opts Options) (*Terminal, error) {
	var lookup dispatch.InstrumentLookup
	if b.catalog != nil {
		lookup = b.catalog
	}

	processName := ""
	if tc.CheckProcess {
		processName = tc.ProcessName
	}

	adapter, err := dispatch.NewAdapter(dispatch.AdapterConfig{
		TerminalID: tc.ID,
		Mode:       tc.Mode,
		FileDrop: filedrop.Config{
			IncomingDir: tc.IncomingDir,
			ProcessName: processName,
		},
		Resolver: filedrop.StaticResolver(tc.Root),
		Checker:  opts.Checker,
		AddOn: addon.Config{
			BaseURL:        addon.BaseURL(tc.AddOnHost, tc.AddOnPort),
			NativeBrackets: tc.NativeBrackets,
		},
		Catalog: lookup,
	})
	if err != nil {
		return nil, err
	}

	session := terminal.NewSession(tc.ID, tc.Mode, tc.Account, adapter, b.emitter)

	router, err := dispatch.New(tc.ID, tc.Mode, session, map[eventmodels.IntegrationMode]dispatch.Adapter{tc.Mode: adapter})
	if err != nil {
		return nil, err
	}

	norm := normalizer.New(router, normalizer.Defaults{
		Account:         tc.Account,
		TimeInForce:     tc.TimeInForce,
		IntegerQuantity: tc.IntegerQuantity,
	})

	planner := bracket.NewPlanner()
	if opts.NewOcoID != nil {
		planner = bracket.NewPlannerWithIDs(opts.NewOcoID)
	}

	svc := eventservices.NewOrderService(eventservices.OrderServiceConfig{
		DefaultAccount:     tc.Account,
		MagicScopedFlatten: tc.MagicScopedFlatten,
	}, session, router, norm, planner)

	log.WithFields(log.Fields{
		"terminal": tc.ID,
		"mode":     tc.Mode,
		"account":  tc.Account,
	}).Info("terminal configured")

	return &Terminal{
		Config:  tc,
		Session: session,
		Router:  router,
		Service: svc,
	}, nil
}

func (b *Bridge) Linker() *eventpubsub.Linker {
	return b.linker
}

// Terminal returns the stack for id, or ErrTerminalDisabled.
func (b *Bridge) Terminal(id eventmodels.TerminalID) (*Terminal, error) {
	t, found := b.terminals[id]
	if !found {
		return nil, fmt.Errorf("%s: %w", id, ErrTerminalDisabled)
	}

	return t, nil
}

// Terminals returns the enabled terminals in configuration order.
func (b *Bridge) Terminals() []*Terminal {
	out := make([]*Terminal, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.terminals[id])
	}

	return out
}

// QueryServices exposes each terminal's read operations by terminal id.
func (b *Bridge) QueryServices() map[string]webhookapi.QueryService {
	out := make(map[string]webhookapi.QueryService, len(b.terminals))
	for id, t := range b.terminals {
		out[string(id)] = t.Service
	}

	return out
}

// Connect opens every terminal session. A terminal that cannot be reached
// stays disconnected and is retried by its next command, which fails with a
// ConnectivityError while the terminal is still down. The returned error
// joins every failure.
func (b *Bridge) Connect(ctx context.Context) error {
	var errs error
	for _, t := range b.Terminals() {
		if err := t.Session.Connect(ctx); err != nil {
			log.WithField("terminal", t.Config.ID).Warnf("connect failed: %v", err)
			errs = errors.Join(errs, err)
		}
	}

	return errs
}

// Close waits for in-flight webhook events and disconnects every session.
func (b *Bridge) Close(ctx context.Context) error {
	b.linker.Wait()

	var errs error
	for _, t := range b.Terminals() {
		if err := t.Session.Disconnect(ctx); err != nil {
			errs = errors.Join(errs, err)
		}
	}

	return errs
}
