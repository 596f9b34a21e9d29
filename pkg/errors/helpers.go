package errors

import "context"

// CheckContext returns a coded error if the context is canceled or timed out,
// giving call sites a single way to honor cancellation at safe boundaries.
func CheckContext(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return Wrap(err, Canceled, operation+" canceled")
	}
	return nil
}
