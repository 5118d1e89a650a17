// Package config builds the bridge configuration once at startup: defaults,
// then an optional YAML file, then environment overrides. Nothing else in
// the module reads the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/jiaming2012/webhook-bridge/src/eventconsumers"
	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
	"github.com/jiaming2012/webhook-bridge/src/eventpubsub"
	"github.com/jiaming2012/webhook-bridge/src/utils"
)

const (
	DefaultWebhookPort = 5000
	DefaultLogLevel    = "info"
)

type TerminalConfig struct {
	ID     eventmodels.TerminalID `yaml:"-"`
	Prefix string                 `yaml:"-"`
	// EnvPrefix names the environment overrides, e.g. NT_MODE or MT5_MODE.
	EnvPrefix string `yaml:"-"`

	Enabled            bool                        `yaml:"enabled"`
	Mode               eventmodels.IntegrationMode `yaml:"mode"`
	Account            string                      `yaml:"account"`
	TimeInForce        string                      `yaml:"tif"`
	IntegerQuantity    bool                        `yaml:"integer_quantity"`
	MagicScopedFlatten bool                        `yaml:"magic_scoped_flatten"`

	Root         string `yaml:"root"`
	IncomingDir  string `yaml:"incoming_dir"`
	CheckProcess bool   `yaml:"check_process"`
	ProcessName  string `yaml:"process_name"`

	AddOnHost      string `yaml:"addon_host"`
	AddOnPort      int    `yaml:"addon_port"`
	NativeBrackets bool   `yaml:"native_brackets"`
}

type Link struct {
	Action string `yaml:"action"`
	Event  string `yaml:"event"`
}

type Config struct {
	WebhookPort     int    `yaml:"webhook_port"`
	WebhookKeysFile string `yaml:"webhook_keys_file"`
	InstrumentsFile string `yaml:"instruments_file"`
	LogLevel        string `yaml:"log_level"`
	OtelEnabled     bool   `yaml:"otel_enabled"`

	NinjaTrader TerminalConfig `yaml:"ninjatrader"`
	MetaTrader  TerminalConfig `yaml:"metatrader"`

	// Links are applied in order; actions linked to the same event run in
	// the order listed. Empty means DefaultLinks.
	Links []Link `yaml:"links"`
}

func defaultNinjaTraderRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, "Documents", "NinjaTrader 8")
}

func Default() *Config {
	return &Config{
		WebhookPort: DefaultWebhookPort,
		LogLevel:    DefaultLogLevel,
		NinjaTrader: TerminalConfig{
			ID:              eventmodels.NinjaTrader,
			Prefix:          "Nt",
			EnvPrefix:       "NT",
			Mode:            eventmodels.FileDrop,
			Account:         "Sim101",
			TimeInForce:     "DAY",
			IntegerQuantity: true,
			Root:            defaultNinjaTraderRoot(),
			CheckProcess:    true,
			ProcessName:     "NinjaTrader.exe",
			AddOnHost:       "localhost",
			AddOnPort:       8181,
		},
		MetaTrader: TerminalConfig{
			ID:                 eventmodels.MetaTrader,
			Prefix:             "Mt",
			EnvPrefix:          "MT5",
			Mode:               eventmodels.FileDrop,
			TimeInForce:        "DAY",
			MagicScopedFlatten: true,
			CheckProcess:       true,
			ProcessName:        "terminal64.exe",
			AddOnHost:          "localhost",
			AddOnPort:          8182,
		},
	}
}

// Terminals returns both terminal configurations, enabled or not.
func (c *Config) Terminals() []*TerminalConfig {
	return []*TerminalConfig{&c.NinjaTrader, &c.MetaTrader}
}

func (c *Config) EnabledTerminals() []*TerminalConfig {
	var enabled []*TerminalConfig
	for _, t := range c.Terminals() {
		if t.Enabled {
			enabled = append(enabled, t)
		}
	}

	return enabled
}

// Load reads BRIDGE_ENV_FILE (or .env), then BRIDGE_CONFIG when set, then
// the environment overrides, and validates the result.
func Load() (*Config, error) {
	if err := utils.LoadEnvFile(utils.GetEnv("BRIDGE_ENV_FILE", "")); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	cfg := Default()

	if path := utils.GetEnv("BRIDGE_CONFIG", ""); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	return cfg, nil
}

// LoadFile overlays the YAML document at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("LoadFile: failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("LoadFile: failed to unmarshal %s: %w", path, err)
	}

	log.Infof("config: loaded %s", path)
	return nil
}

func (c *Config) ApplyEnv() {
	c.WebhookPort = utils.GetEnvInt("WEBHOOK_PORT", c.WebhookPort)
	c.WebhookKeysFile = utils.GetEnv("WEBHOOK_KEYS_FILE", c.WebhookKeysFile)
	c.InstrumentsFile = utils.GetEnv("INSTRUMENTS_FILE", c.InstrumentsFile)
	c.LogLevel = utils.GetEnv("LOG_LEVEL", c.LogLevel)
	c.OtelEnabled = utils.GetEnvBool("OTEL_ENABLED", c.OtelEnabled)

	for _, t := range c.Terminals() {
		t.applyEnv()
	}
}

func (t *TerminalConfig) applyEnv() {
	key := func(name string) string {
		return t.EnvPrefix + "_" + name
	}

	t.Enabled = utils.GetEnvBool(key("ENABLED"), t.Enabled)
	t.Mode = eventmodels.IntegrationMode(utils.GetEnv(key("MODE"), string(t.Mode)))
	t.AddOnHost = utils.GetEnv(key("ADDON_HOST"), t.AddOnHost)
	t.AddOnPort = utils.GetEnvInt(key("ADDON_PORT"), t.AddOnPort)
	t.Account = utils.GetEnv(key("ACCOUNT"), t.Account)
	t.CheckProcess = utils.GetEnvBool(key("CHECK_PROCESS"), t.CheckProcess)
	t.Root = utils.GetEnv(key("ROOT"), t.Root)
}

// Validate canonicalises every terminal mode and checks that enabled
// terminals have what their mode needs.
func (c *Config) Validate() error {
	if c.WebhookPort <= 0 || c.WebhookPort > 65535 {
		return eventmodels.NewConfigurationError("webhook_port", fmt.Sprint(c.WebhookPort))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return eventmodels.NewConfigurationError("log_level", c.LogLevel)
	}

	for _, t := range c.Terminals() {
		if err := t.validate(); err != nil {
			return err
		}
	}

	for _, link := range c.Links {
		if link.Action == "" || link.Event == "" {
			return eventmodels.NewConfigurationError("links", fmt.Sprintf("%s -> %s", link.Event, link.Action))
		}
	}

	return nil
}

func (t *TerminalConfig) validate() error {
	mode, err := eventmodels.ParseIntegrationMode(fmt.Sprintf("%s.mode", t.ID), string(t.Mode))
	if err != nil {
		return err
	}

	t.Mode = mode

	if !t.Enabled {
		return nil
	}

	switch t.Mode {
	case eventmodels.FileDrop:
		if strings.TrimSpace(t.Root) == "" {
			return eventmodels.NewConfigurationError(fmt.Sprintf("%s.root", t.ID), t.Root)
		}
	case eventmodels.HttpAddOn:
		if t.AddOnHost == "" {
			return eventmodels.NewConfigurationError(fmt.Sprintf("%s.addon_host", t.ID), t.AddOnHost)
		}

		if t.AddOnPort <= 0 || t.AddOnPort > 65535 {
			return eventmodels.NewConfigurationError(fmt.Sprintf("%s.addon_port", t.ID), fmt.Sprint(t.AddOnPort))
		}
	}

	return nil
}

// DefaultLinks wires each enabled terminal's actions to its webhook events.
// On the order event, flatten runs before place so a new signal reverses
// rather than stacks.
func DefaultLinks(cfg *Config) []Link {
	links := []Link{
		{Action: eventconsumers.PrintDataSuffix, Event: eventpubsub.WebhookReceived},
	}

	if cfg.NinjaTrader.Enabled {
		p := cfg.NinjaTrader.Prefix
		links = append(links,
			Link{Action: p + eventconsumers.FlattenSuffix, Event: eventpubsub.WebhookReceivedNtOrder},
			Link{Action: p + eventconsumers.PlaceOrderSuffix, Event: eventpubsub.WebhookReceivedNtOrder},
			Link{Action: p + eventconsumers.FlattenSuffix, Event: eventpubsub.WebhookReceivedNtFlatten},
			Link{Action: p + eventconsumers.PositionInfoSuffix, Event: eventpubsub.WebhookReceivedNtInfo},
		)
	}

	if cfg.MetaTrader.Enabled {
		p := cfg.MetaTrader.Prefix
		links = append(links,
			Link{Action: p + eventconsumers.FlattenSuffix, Event: eventpubsub.WebhookReceivedMtOrder},
			Link{Action: p + eventconsumers.PlaceOrderSuffix, Event: eventpubsub.WebhookReceivedMtOrder},
			Link{Action: p + eventconsumers.FlattenSuffix, Event: eventpubsub.WebhookReceivedMtFlatten},
			Link{Action: p + eventconsumers.AccountInfoSuffix, Event: eventpubsub.WebhookReceivedMtBalance},
		)
	}

	return links
}

// EffectiveLinks returns the configured links, or DefaultLinks when none
// are configured.
func (c *Config) EffectiveLinks() []Link {
	if len(c.Links) > 0 {
		return c.Links
	}

	return DefaultLinks(c)
}
