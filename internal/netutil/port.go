package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
)

var (
	// ErrAddrInUse is returned when the preferred address is taken and
	// fallback is disabled.
	ErrAddrInUse = errors.New("bind address in use")
	// ErrNoBindAddr is returned when neither the preferred address nor any
	// candidate can be listened on.
	ErrNoBindAddr = errors.New("no available bind addresses")
)

// SelectBindAddr returns preferred when it can be listened on. Otherwise,
// when autoFallback is set, it returns the first free candidate. Candidates
// equal to preferred or repeated are tried once.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	var tried []string
	seen := make(map[string]bool, len(candidates)+1)

	try := func(addr string) (bool, error) {
		seen[addr] = true
		tried = append(tried, addr)
		ok, err := IsAddrAvailable(addr)
		if err == nil && !ok {
			slog.Debug("bind address busy", "addr", addr)
		}
		return ok, err
	}

	if preferred != "" {
		ok, err := try(preferred)
		if err != nil {
			return "", err
		}
		if ok {
			return preferred, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("%w: %s (set LUNA_PORT_AUTO_FALLBACK=true to try candidates)", ErrAddrInUse, preferred)
		}
	}

	for _, addr := range candidates {
		if addr == "" || seen[addr] {
			continue
		}
		ok, err := try(addr)
		if err != nil {
			return "", err
		}
		if ok {
			if preferred != "" {
				slog.Warn("preferred bind address busy, falling back", "preferred", preferred, "addr", addr)
			}
			return addr, nil
		}
	}

	if len(tried) == 0 {
		return "", ErrNoBindAddr
	}
	return "", fmt.Errorf("%w: tried %s", ErrNoBindAddr, strings.Join(tried, ", "))
}

// IsAddrAvailable returns true when an address can be listened on.
func IsAddrAvailable(addr string) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, nil
	}
	if closeErr := ln.Close(); closeErr != nil {
		return false, closeErr
	}
	return true, nil
}
