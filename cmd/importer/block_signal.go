//go:build !zmq

package main

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Builds without the zmq tag fall back to interval polling only.
func startBlockSignal(_ context.Context, addr string, _ *zap.Logger) (<-chan struct{}, error) {
	if addr != "" {
		return nil, errors.New("zmq support not compiled in, rebuild with -tags zmq")
	}
	return nil, nil
}
