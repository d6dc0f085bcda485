package cmd

import (
	"context"
	"os/signal"
	"syscall"
)

// interruptContext is canceled on SIGINT or SIGTERM so a blocked manager
// call returns instead of hanging the invocation.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
