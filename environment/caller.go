package environment

import (
	"context"

	"github.com/wippyai/sz-runtime/errors"
	"github.com/wippyai/sz-runtime/native"
)

// caller is the plumbing every hub shares: run one native call under the
// handle's serialization discipline and convert its return code into a
// structured error through the owning subsystem's exception channel.
type caller struct {
	handle *native.Handle
	sub    errors.Subsystem
}

func (c caller) text(ctx context.Context, fn func(native.API) native.StringResult) (string, error) {
	var out string
	err := c.handle.Call(ctx, func(api native.API) error {
		res := fn(api)
		if err := c.handle.Check(c.sub, res.ReturnCode); err != nil {
			return err
		}
		out = res.Response
		return nil
	})
	return out, err
}

func (c caller) long(ctx context.Context, fn func(native.API) native.LongResult) (int64, error) {
	var out int64
	err := c.handle.Call(ctx, func(api native.API) error {
		res := fn(api)
		if err := c.handle.Check(c.sub, res.ReturnCode); err != nil {
			return err
		}
		out = res.Value
		return nil
	})
	return out, err
}

func (c caller) opaque(ctx context.Context, fn func(native.API) native.HandleResult) (uintptr, error) {
	var out uintptr
	err := c.handle.Call(ctx, func(api native.API) error {
		res := fn(api)
		if err := c.handle.Check(c.sub, res.ReturnCode); err != nil {
			return err
		}
		out = res.Handle
		return nil
	})
	return out, err
}

func (c caller) rc(ctx context.Context, fn func(native.API) int64) error {
	return c.handle.Call(ctx, func(api native.API) error {
		return c.handle.Check(c.sub, fn(api))
	})
}
