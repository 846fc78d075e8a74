package binance

import (
	"encoding/json"
	"errors"
	"fmt"
)

// APIError is a structured rejection from the venue.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance API error %d: %s", e.Code, e.Message)
}

// Venue codes that mean the requested setting is already in effect.
// These are treated as success by the configuration calls.
const (
	codeMarginTypeUnchanged = -4046
	codeLeverageUnchanged   = -4161
)

// IsAlreadySet reports whether err is a benign "setting already at the
// requested value" rejection.
func IsAlreadySet(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == codeMarginTypeUnchanged || apiErr.Code == codeLeverageUnchanged
}

// parseAPIError decodes a non-2xx response body into an APIError. Bodies
// that do not match the venue's error shape still yield a usable error.
func parseAPIError(status int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
		return &apiErr
	}
	return &APIError{Code: status, Message: string(body)}
}
