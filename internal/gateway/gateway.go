// Package gateway delivers rendered reminder messages to an external chat
// endpoint.
package gateway

import "context"

// Gateway is the outbound delivery contract. Send reports failure through
// the error; the orchestrator never retries within a pass, it simply leaves
// the candidate unmarked so the next scan tries again.
type Gateway interface {
	Send(ctx context.Context, text string) error
}
