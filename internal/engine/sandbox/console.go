package sandbox

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dop251/goja"
)

const consoleBinding = "console"

var consoleLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"log":   slog.LevelInfo,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// newConsole builds a console object whose methods write to logger.
func newConsole(vm *goja.Runtime, logger *slog.Logger) (*goja.Object, error) {
	obj := vm.NewObject()
	for name, level := range consoleLevels {
		err := obj.Set(name, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			logger.Log(context.Background(), level, strings.Join(parts, " "), "method", "console."+name)
			return goja.Undefined()
		})
		if err != nil {
			return nil, err
		}
	}
	return obj, nil
}
