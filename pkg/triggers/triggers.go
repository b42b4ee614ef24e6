// Package triggers defines the contract between trigger adapters and the
// execution engine. Adapters are stateless translators: they turn an
// external stimulus (a due schedule, a queued request) into an engine
// invocation and carry no decision logic of their own.
package triggers

import "context"

// Callback is invoked once per triggered execution request.
type Callback func(ctx context.Context, policyID string, inputData map[string]any) error
