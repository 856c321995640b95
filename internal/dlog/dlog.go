// Package dlog provides discovery.Logger implementations beyond the
// package's zero-value std-log fallback: a structured slog adapter for
// general use, and an avalanchego logging.Logger adapter for hosts
// already wired into that stack (the teacher's indexing-subnet-evm
// logs this way, via logging.UserString fields).
package dlog

import (
	"fmt"
	"log/slog"

	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/zap"

	"github.com/containerman17/hdwallet-discovery/internal/discovery"
)

var (
	_ discovery.Logger = Slog{}
	_ discovery.Logger = Avalanche{}
)

// Slog adapts a *slog.Logger to discovery.Logger.
type Slog struct {
	L *slog.Logger
}

func (s Slog) Info(msg string, args ...any)  { s.L.Info(msg, args...) }
func (s Slog) Warn(msg string, args ...any)  { s.L.Warn(msg, args...) }
func (s Slog) Error(msg string, args ...any) { s.L.Error(msg, args...) }

// Avalanche adapts an avalanchego logging.Logger to discovery.Logger,
// translating the args ...any key/value pairs into logging.UserString
// fields the way indexing-subnet-evm's IndexingVM does.
type Avalanche struct {
	L logging.Logger
}

func (a Avalanche) Info(msg string, args ...any)  { a.L.Info(msg, toFields(args)...) }
func (a Avalanche) Warn(msg string, args ...any)  { a.L.Warn(msg, toFields(args)...) }
func (a Avalanche) Error(msg string, args ...any) { a.L.Error(msg, toFields(args)...) }

func toFields(args []any) []zap.Field {
	fields := make([]zap.Field, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", args[i])
		}
		fields = append(fields, logging.UserString(key, fmt.Sprintf("%v", args[i+1])))
	}
	return fields
}
