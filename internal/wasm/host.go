package wasm

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// HostFunctionsImpl implements host functions for compiler modules.
type HostFunctionsImpl struct {
	logger *zap.Logger
}

// NewHostFunctions creates a new host functions implementation.
func NewHostFunctions(logger *zap.Logger) *HostFunctionsImpl {
	return &HostFunctionsImpl{
		logger: logger.With(zap.String("component", "wasm-host")),
	}
}

// logMessage is called by compiler modules to log messages.
// Signature: log_message(level, ptr, length)
// level: 0 = debug, 1 = info, 2 = warn, 3 = error
func (h *HostFunctionsImpl) logMessage(ctx context.Context, mod api.Module, level uint32, ptr uint32, length uint32) {
	msg, ok := mod.Memory().Read(ptr, length)
	if !ok {
		h.logger.Error("Failed to read log message from Wasm memory",
			zap.String("module", mod.Name()),
			zap.Uint32("ptr", ptr),
			zap.Uint32("length", length),
		)
		return
	}

	fields := []zap.Field{zap.String("module", mod.Name())}
	switch level {
	case 0:
		h.logger.Debug(string(msg), fields...)
	case 1:
		h.logger.Info(string(msg), fields...)
	case 2:
		h.logger.Warn(string(msg), fields...)
	case 3:
		h.logger.Error(string(msg), fields...)
	default:
		h.logger.Info(string(msg), fields...)
	}
}

// export registers the host functions on the env module builder.
func (h *HostFunctionsImpl) export(builder wazero.HostModuleBuilder) wazero.HostModuleBuilder {
	return builder.NewFunctionBuilder().
		WithFunc(h.logMessage).
		WithParameterNames("level", "ptr", "length").
		Export(ImportLogMessage)
}
