package native

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/sz-runtime/errors"
)

// lastErrorBufSize is the fixed buffer handed to the library when draining a
// subsystem's last exception. The library fills it C-style and truncates
// longer messages.
const lastErrorBufSize = 4096

// Handle owns one initialized span of the native library. Every call from
// every hub funnels through its lock; the library is not reentrant, so two
// calls must never overlap. Destroy waits out the in-flight call, flips the
// liveness flag and tears the library down, after which all calls fail with
// a not-ready error instead of reaching freed native state.
//
// Call families are brought up lazily. Each family's init runs at most once
// per handle; a failed init is remembered and handed to every later caller
// of that family.
type Handle struct {
	api        API
	name       string
	settings   string
	verbose    bool
	generation uint64

	mu        sync.Mutex
	destroyed atomic.Bool

	engine     subsystem
	config     subsystem
	configMgr  subsystem
	product    subsystem
	diagnostic subsystem
}

type subsystem struct {
	once sync.Once
	err  error
}

// NewHandle wraps api in the serialization and liveness discipline. No
// native call is made until a subsystem is first used. The generation tags
// everything issued through this handle; environments bump it on each
// bring-up so resources from a torn-down span are recognizable.
func NewHandle(api API, name, settings string, verbose bool, generation uint64) *Handle {
	return &Handle{
		api:        api,
		name:       name,
		settings:   settings,
		verbose:    verbose,
		generation: generation,
	}
}

// Name returns the instance name the library was initialized with.
func (h *Handle) Name() string { return h.name }

// Settings returns the settings document the library was initialized with.
func (h *Handle) Settings() string { return h.settings }

// Verbose reports whether native verbose logging was requested.
func (h *Handle) Verbose() bool { return h.verbose }

// Generation returns the bring-up ordinal of this handle.
func (h *Handle) Generation() uint64 { return h.generation }

// IsDestroyed reports whether Destroy has begun on this handle.
func (h *Handle) IsDestroyed() bool { return h.destroyed.Load() }

func (h *Handle) verboseFlag() int64 {
	if h.verbose {
		return 1
	}
	return 0
}

// Call runs fn under the native serialization lock. fn receives the raw
// driver and must not retain it past the call. The liveness check repeats
// after the lock is acquired, so a call that was parked behind Destroy fails
// with a not-ready error rather than running against a torn-down library.
func (h *Handle) Call(ctx context.Context, fn func(API) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.destroyed.Load() {
		return errors.NotReady("environment")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed.Load() {
		return errors.NotReady("environment")
	}
	return fn(h.api)
}

// Check converts a native return code into a structured error, draining the
// subsystem's last exception when the code is nonzero. It reads exception
// state and therefore must run while the call lock is held, inside a Call
// closure.
func (h *Handle) Check(sub errors.Subsystem, rc int64) error {
	if rc == 0 {
		return nil
	}
	buf := make([]byte, lastErrorBufSize)
	var code int64
	switch sub {
	case errors.SubsystemConfig:
		h.api.ConfigLastError(buf)
		code = h.api.ConfigLastErrorCode()
		h.api.ConfigClearLastError()
	case errors.SubsystemConfigMgr:
		h.api.ConfigMgrLastError(buf)
		code = h.api.ConfigMgrLastErrorCode()
		h.api.ConfigMgrClearLastError()
	case errors.SubsystemProduct:
		h.api.ProductLastError(buf)
		code = h.api.ProductLastErrorCode()
		h.api.ProductClearLastError()
	case errors.SubsystemDiagnostic:
		h.api.DiagnosticLastError(buf)
		code = h.api.DiagnosticLastErrorCode()
		h.api.DiagnosticClearLastError()
	default:
		h.api.EngineLastError(buf)
		code = h.api.EngineLastErrorCode()
		h.api.EngineClearLastError()
	}
	err := errors.FromRecord(sub, code, errors.Sanitize(buf))
	Logger().Debug("native call failed",
		zap.String("subsystem", string(sub)),
		zap.Int64("rc", rc),
		zap.Error(err))
	return err
}

// EnsureEngine brings up the resolution engine. The first caller runs the
// init, everyone else waits on it; a failure is stored and returned to all
// later callers unchanged.
func (h *Handle) EnsureEngine(ctx context.Context) error {
	h.engine.once.Do(func() {
		h.engine.err = h.Call(ctx, func(api API) error {
			return h.Check(errors.SubsystemEngine, api.EngineInit(h.name, h.settings, h.verboseFlag()))
		})
		h.logBringUp("engine", h.engine.err)
	})
	return h.engine.err
}

// EnsureEngineWithConfigID brings up the resolution engine pinned to the
// given configuration instead of the repository default. It shares the
// engine's once guard with EnsureEngine, whichever runs first wins.
func (h *Handle) EnsureEngineWithConfigID(ctx context.Context, configID int64) error {
	h.engine.once.Do(func() {
		h.engine.err = h.Call(ctx, func(api API) error {
			return h.Check(errors.SubsystemEngine, api.EngineInitWithConfigID(h.name, h.settings, configID, h.verboseFlag()))
		})
		h.logBringUp("engine", h.engine.err)
	})
	return h.engine.err
}

// EnsureConfig brings up the configuration editing family.
func (h *Handle) EnsureConfig(ctx context.Context) error {
	h.config.once.Do(func() {
		h.config.err = h.Call(ctx, func(api API) error {
			return h.Check(errors.SubsystemConfig, api.ConfigInit(h.name, h.settings, h.verboseFlag()))
		})
		h.logBringUp("config", h.config.err)
	})
	return h.config.err
}

// EnsureConfigManager brings up the configuration registry family.
func (h *Handle) EnsureConfigManager(ctx context.Context) error {
	h.configMgr.once.Do(func() {
		h.configMgr.err = h.Call(ctx, func(api API) error {
			return h.Check(errors.SubsystemConfigMgr, api.ConfigMgrInit(h.name, h.settings, h.verboseFlag()))
		})
		h.logBringUp("configmgr", h.configMgr.err)
	})
	return h.configMgr.err
}

// EnsureProduct brings up the product information family.
func (h *Handle) EnsureProduct(ctx context.Context) error {
	h.product.once.Do(func() {
		h.product.err = h.Call(ctx, func(api API) error {
			return h.Check(errors.SubsystemProduct, api.ProductInit(h.name, h.settings, h.verboseFlag()))
		})
		h.logBringUp("product", h.product.err)
	})
	return h.product.err
}

// EnsureDiagnostic brings up the repository diagnostics family.
func (h *Handle) EnsureDiagnostic(ctx context.Context) error {
	h.diagnostic.once.Do(func() {
		h.diagnostic.err = h.Call(ctx, func(api API) error {
			return h.Check(errors.SubsystemDiagnostic, api.DiagnosticInit(h.name, h.settings, h.verboseFlag()))
		})
		h.logBringUp("diagnostic", h.diagnostic.err)
	})
	return h.diagnostic.err
}

func (h *Handle) logBringUp(family string, err error) {
	if err != nil {
		Logger().Warn("native subsystem init failed",
			zap.String("subsystem", family),
			zap.Uint64("generation", h.generation),
			zap.Error(err))
		return
	}
	Logger().Debug("native subsystem initialized",
		zap.String("subsystem", family),
		zap.Uint64("generation", h.generation))
}

// Destroy tears down every native call family and retires the handle. It
// holds the call lock for the whole teardown, so an in-flight call completes
// first and calls arriving afterwards fail with a not-ready error. Destroy
// is idempotent; only the first call reaches the library.
//
// Families are torn down in reverse dependency order with the engine last,
// mirroring bring-up. Destroying a family that was never brought up is
// harmless. Exception state is cleared at the end so a later bring-up on
// the same process starts clean.
func (h *Handle) Destroy() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed.Swap(true) {
		return nil
	}

	h.api.DiagnosticDestroy()
	h.api.ProductDestroy()
	h.api.ConfigMgrDestroy()
	h.api.ConfigDestroy()
	h.api.EngineDestroy()

	h.api.EngineClearLastError()
	h.api.ConfigClearLastError()
	h.api.ConfigMgrClearLastError()
	h.api.ProductClearLastError()
	h.api.DiagnosticClearLastError()

	Logger().Debug("native handle destroyed",
		zap.Uint64("generation", h.generation))
	return nil
}
