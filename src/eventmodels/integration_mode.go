package eventmodels

import "strings"

type IntegrationMode string

const (
	FileDrop  IntegrationMode = "FileDrop"
	HttpAddOn IntegrationMode = "HttpAddOn"
)

// ParseIntegrationMode accepts the canonical names as well as the legacy
// ATI / ADDON tokens. An unknown value is a ConfigurationError.
func ParseIntegrationMode(key, value string) (IntegrationMode, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "FILEDROP", "FILE_DROP", "ATI":
		return FileDrop, nil
	case "HTTPADDON", "HTTP_ADDON", "ADDON":
		return HttpAddOn, nil
	default:
		return "", NewConfigurationError(key, value)
	}
}
