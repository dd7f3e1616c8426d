package ipp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// Classified query errors. Use errors.Is to test for them.
var (
	// ErrUnreachable marks connection-level failures: expected, retried silently.
	ErrUnreachable = errors.New("ipp: printer unreachable")
	// ErrProtocol marks malformed or rejected responses.
	ErrProtocol = errors.New("ipp: protocol error")
)

// connection-level errnos treated as "printer not there right now".
var unreachableErrnos = []syscall.Errno{
	syscall.ECONNREFUSED,
	syscall.ETIMEDOUT,
	syscall.EHOSTUNREACH,
	syscall.ENETUNREACH,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
	syscall.EBUSY,
}

// Classify wraps err with ErrUnreachable or ErrProtocol.
// Already classified errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnreachable) || errors.Is(err, ErrProtocol) {
		return err
	}
	if isUnreachable(err) {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return fmt.Errorf("%w: %w", ErrProtocol, err)
}

func isUnreachable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	for _, errno := range unreachableErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
