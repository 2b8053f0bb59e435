package bootstrap

import (
	"go.uber.org/zap"

	luainject "github.com/hexpatch/lua-injector"
)

// Guard wraps a host-invoked compile entry so an unrecoverable fault inside
// the injector is logged with full context through the process log before
// the fault propagates. No recovery is attempted: the point is diagnosis,
// not continuation.
func Guard(log *zap.Logger, fn luainject.LoadFunc) luainject.LoadFunc {
	return func(l luainject.State, src []byte, name string, mode string) luainject.Status {
		defer func() {
			if r := recover(); r != nil {
				log.Error("injector crashed",
					zap.Any("panic", r),
					zap.String("chunk", name),
					zap.Stack("stack"))
				panic(r)
			}
		}()
		return fn(l, src, name, mode)
	}
}
