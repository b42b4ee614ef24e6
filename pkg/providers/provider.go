// Package providers defines the external verification provider contract and
// its HTTP implementation. Provider internals (registry lookups, sanctions
// databases, biometric liveness) stay behind this boundary.
package providers

import (
	"context"
	"fmt"
	"time"
)

// Invoker is the provider contract data-source nodes call. Implementations
// must respect the timeout and return a ConnectorError or TimeoutError on
// failure; no assumption is made about provider internals.
type Invoker interface {
	Invoke(ctx context.Context, providerID string, payload map[string]any, timeout time.Duration) (map[string]any, error)
}

// ConnectorError reports a transport failure or non-success response from an
// external connector.
type ConnectorError struct {
	ProviderID string
	StatusCode int
	Err        error
}

func (e *ConnectorError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("connector %s returned status %d", e.ProviderID, e.StatusCode)
	}

	return fmt.Sprintf("connector %s failed: %v", e.ProviderID, e.Err)
}

func (e *ConnectorError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that a connector did not answer within its timeout.
type TimeoutError struct {
	ProviderID string
	Timeout    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("connector %s timed out after %s", e.ProviderID, e.Timeout)
}
