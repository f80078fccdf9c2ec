package telegram

import (
	"context"
	"errors"
	"net"
	"strings"
)

// IsTimeout reports whether err is a network read timeout, as opposed to an
// API-level rejection. Timeouts get dedicated advice at the process boundary
// (re-run with a larger --timeout); every other remote error propagates
// unchanged.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// The bot library flattens transport errors into strings in places.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timed out") || strings.Contains(msg, "timeout exceeded")
}
