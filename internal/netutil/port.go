// Package netutil binds the control API, falling back to alternative
// addresses when the preferred one is taken by another crawler instance.
package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// ErrNoAddress is returned when neither the preferred address nor any
// fallback could be bound.
var ErrNoAddress = errors.New("no available control API address")

// Listen binds preferred, or the first free fallback when preferred is taken
// and fallbacks are allowed. The listener is returned open so no other
// process can take the port between the check and the serve.
func Listen(preferred string, fallbacks []string, allowFallback bool) (net.Listener, error) {
	if preferred != "" {
		ln, err := net.Listen("tcp", preferred)
		if err == nil {
			return ln, nil
		}
		if !allowFallback {
			return nil, fmt.Errorf("bind %s: %w", preferred, err)
		}
		slog.Warn("control API address in use, trying fallbacks", "addr", preferred, "fallbacks", fallbacks)
	}

	for _, addr := range fallbacks {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			slog.Debug("fallback address unavailable", "addr", addr, "error", err)
			continue
		}
		return ln, nil
	}
	return nil, ErrNoAddress
}
