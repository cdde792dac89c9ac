//go:build cgo

package engine

import (
	"context"
	"runtime/cgo"
	"unsafe"
)

// contextFromHandle recovers the context registered for an inference call.
// A deleted or foreign handle yields false instead of panicking inside a C callback.
func contextFromHandle(userData unsafe.Pointer) (ctx context.Context, ok bool) {
	if userData == nil {
		return nil, false
	}
	handle := *(*cgo.Handle)(userData)
	if handle == 0 {
		return nil, false
	}
	defer func() {
		if recover() != nil {
			ctx, ok = nil, false
		}
	}()
	ctx, ok = handle.Value().(context.Context)
	return ctx, ok
}

func shouldAbort(userData unsafe.Pointer) bool {
	ctx, ok := contextFromHandle(userData)
	if !ok {
		return false
	}
	return ctx.Err() != nil
}
