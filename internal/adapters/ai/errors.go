package ai

import (
	"context"
	"net/http"

	"hermes/pkg/errors"
)

// classifyStatus maps a vendor HTTP status code onto the common error
// taxonomy. The message should carry the vendor's own error description.
func classifyStatus(provider ProviderName, status int, message string) error {
	var kind error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = errors.ErrProviderAuth
	case status == http.StatusTooManyRequests:
		kind = errors.ErrRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = errors.ErrProviderTimeout
	case status >= 400 && status < 500:
		kind = errors.ErrProviderValidation
	default:
		kind = errors.ErrProviderUnknown
	}

	return errors.Wrapf(kind, "%s API error (%d): %s", provider, status, message)
}

// classifyTransport maps transport-level failures (timeouts, cancellation,
// connection faults) onto the taxonomy.
func classifyTransport(provider ProviderName, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Wrapf(errors.ErrProviderTimeout, "%s request timed out: %v", provider, err)
	case errors.Is(err, context.Canceled):
		return errors.Wrapf(errors.ErrCanceled, "%s request canceled", provider)
	default:
		return errors.Wrapf(errors.ErrProviderUnknown, "%s request failed: %v", provider, err)
	}
}
