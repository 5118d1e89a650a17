package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
)

type keysYAML struct {
	Keys []string `yaml:"keys"`
}

// GenerateWebhookKey returns "<eventName>:<6 hex>".
func GenerateWebhookKey(eventName string) string {
	secret := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s:%s", eventName, secret[:6])
}

func parseKeys(keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		eventName, secret, found := strings.Cut(strings.TrimSpace(key), ":")
		if !found || eventName == "" || secret == "" {
			return nil, eventmodels.NewConfigurationError("webhook_keys", key)
		}

		out[eventName] = strings.TrimSpace(key)
	}

	return out, nil
}

// LoadWebhookKeys returns one key per event in events, keyed by event name.
// Keys are read from path when it exists; events without a key get a
// generated one, and the file is rewritten so the keys survive a restart.
// An empty path keeps generated keys in memory only.
func LoadWebhookKeys(path string, events []string) (map[string]string, error) {
	keys := map[string]string{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Infof("webhook keys: %s not found, generating", path)
		case err != nil:
			return nil, fmt.Errorf("LoadWebhookKeys: failed to read %s: %w", path, err)
		default:
			var doc keysYAML
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return nil, fmt.Errorf("LoadWebhookKeys: failed to unmarshal %s: %w", path, err)
			}

			if keys, err = parseKeys(doc.Keys); err != nil {
				return nil, fmt.Errorf("LoadWebhookKeys: %s: %w", path, err)
			}
		}
	}

	generated := false
	for _, eventName := range events {
		if _, found := keys[eventName]; found {
			continue
		}

		keys[eventName] = GenerateWebhookKey(eventName)
		generated = true

		log.WithField("event", eventName).Infof("generated webhook key %s", keys[eventName])
	}

	if generated && path != "" {
		if err := SaveWebhookKeys(path, keys); err != nil {
			return nil, fmt.Errorf("LoadWebhookKeys: %w", err)
		}
	}

	return keys, nil
}

func SaveWebhookKeys(path string, keys map[string]string) error {
	doc := keysYAML{Keys: make([]string, 0, len(keys))}
	for _, key := range keys {
		doc.Keys = append(doc.Keys, key)
	}

	sort.Strings(doc.Keys)

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("SaveWebhookKeys: failed to marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("SaveWebhookKeys: failed to write %s: %w", path, err)
	}

	return nil
}

// LinkedEvents returns the distinct events named by links, in first-seen
// order.
func LinkedEvents(links []Link) []string {
	seen := map[string]bool{}

	var events []string
	for _, link := range links {
		if seen[link.Event] {
			continue
		}

		seen[link.Event] = true
		events = append(events, link.Event)
	}

	return events
}
