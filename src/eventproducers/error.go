package eventproducers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
)

type ErrorResponse struct {
	Type string `json:"type"`
	Msg  string `json:"message"`
}

func NewErrorResponse(errType string, message string) *ErrorResponse {
	return &ErrorResponse{
		Type: errType,
		Msg:  message,
	}
}

func SetResponse[T any](obj *T, w http.ResponseWriter) error {
	return SetStatusResponse(obj, http.StatusOK, w)
}

func SetStatusResponse[T any](obj *T, statusCode int, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(obj); err != nil {
		return fmt.Errorf("SetResponse: encode: %w", err)
	}

	return nil
}

func SetErrorResponse(errType string, statusCode int, err error, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := NewErrorResponse(errType, err.Error())
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		return encodeErr
	}

	return nil
}

// ErrorStatus maps the bridge's error taxonomy onto an HTTP status and an
// error type for the response body.
func ErrorStatus(err error) (int, string) {
	var (
		vErr      *eventmodels.ValidationError
		connErr   *eventmodels.ConnectivityError
		cfgErr    *eventmodels.ConfigurationError
		rejection *eventmodels.BrokerRejection
	)

	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, eventmodels.ErrCapabilityUnavailable):
		return http.StatusNotImplemented, "capability_unavailable"
	case errors.As(err, &connErr):
		return http.StatusServiceUnavailable, "connectivity"
	case errors.As(err, &rejection):
		return http.StatusBadGateway, "broker_rejection"
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, "configuration"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
