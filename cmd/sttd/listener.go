package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// getListener accepts "unix:/path/to/socket" or a TCP "host:port".
func getListener(
	ctx context.Context,
	addr string,
) (net.Listener, error) {
	if path, ok := strings.CutPrefix(addr, "unix:"); ok {
		if _, err := os.Stat(path); err == nil {
			logger.Debugf(ctx, "removing the stale socket '%s'", path)
			if err := os.Remove(path); err != nil {
				return nil, fmt.Errorf("unable to remove the stale socket '%s': %w", path, err)
			}
		}
		l, err := net.Listen("unix", path)
		if err != nil {
			return nil, fmt.Errorf("unable to listen on unix socket '%s': %w", path, err)
		}
		return l, nil
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("unable to listen on '%s': %w", addr, err)
	}
	return l, nil
}
