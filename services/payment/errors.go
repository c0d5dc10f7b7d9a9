package payment

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// classify maps transport failures onto ErrGatewayTimeout so callers can
// tell an unknown outcome apart from a definite rejection.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrGatewayTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w", op, ErrGatewayTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}
