package health

import "context"

// HealthPinger is implemented by stores that can cheaply verify connectivity.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}
