// Package environment owns the lifecycle of the native entity-resolution
// library inside a process. An Environment wraps the single native handle,
// hands out typed hubs for the library's call families (Engine, Product,
// ConfigManager, Diagnostic) and tears everything down on Destroy.
//
// The native library holds process-wide state, so at most one Environment is
// live per process. Initialize claims the slot, Destroy releases it, and a
// later Initialize starts a new generation over the same library. Hubs and
// configuration documents obtained from a destroyed Environment stay safe to
// call but every call reports a not-ready error; nothing ever reaches freed
// native state.
package environment

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	szruntime "github.com/wippyai/sz-runtime"
	"github.com/wippyai/sz-runtime/errors"
	"github.com/wippyai/sz-runtime/native"
	"github.com/wippyai/sz-runtime/settings"
)

// State is the lifecycle position of an Environment.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Process singleton slot. The generation counter only moves forward; each
// successful Initialize claims the next ordinal.
var (
	slotMu     sync.Mutex
	current    *Environment
	generation uint64
)

// Option adjusts how an Environment is built.
type Option func(*options)

type options struct {
	api      native.API
	configID szruntime.ConfigID
}

// WithAPI selects the native driver backing the Environment. Without it the
// process default driver installed through native.SetDefault is used.
func WithAPI(api native.API) Option {
	return func(o *options) { o.api = api }
}

// WithConfigID pins the engine to a specific registered configuration instead
// of the repository default. The pin applies on the engine's first use.
func WithConfigID(id szruntime.ConfigID) Option {
	return func(o *options) { o.configID = id }
}

// Environment is one live span of the native library. Obtain it through
// Initialize or GetInstance, never construct it directly.
type Environment struct {
	name     string
	settings string
	verbose  bool
	configID szruntime.ConfigID

	handle *native.Handle
	state  atomic.Int32

	mu         sync.Mutex
	engine     *Engine
	product    *Product
	configMgr  *ConfigManager
	diagnostic *Diagnostic
}

// Initialize brings up a new Environment and claims the process slot. It
// fails when a live Environment already exists, when the settings document
// does not parse or misses required sections, or when no native driver is
// available. The native call families themselves come up lazily on first hub
// use, so a repository with no registered configuration can still initialize
// and bootstrap one through the ConfigManager hub.
func Initialize(name, settings string, verbose bool, opts ...Option) (*Environment, error) {
	slotMu.Lock()
	defer slotMu.Unlock()
	return initializeLocked(name, settings, verbose, opts)
}

func initializeLocked(name, settingsJSON string, verbose bool, opts []Option) (*Environment, error) {
	if current != nil && !current.IsDestroyed() {
		return nil, errors.Initialization("an environment is already initialized in this process", nil)
	}
	if err := validateSettings(settingsJSON); err != nil {
		return nil, errors.Initialization("settings document rejected", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	api := o.api
	if api == nil {
		api = native.Default()
	}
	if api == nil {
		return nil, errors.Initialization("no native driver installed", nil)
	}

	generation++
	env := &Environment{
		name:     name,
		settings: settingsJSON,
		verbose:  verbose,
		configID: o.configID,
		handle:   native.NewHandle(api, name, settingsJSON, verbose, generation),
	}
	env.state.Store(int32(StateInitializing))
	current = env
	env.state.Store(int32(StateReady))

	native.Logger().Info("environment initialized",
		zap.String("name", name),
		zap.Uint64("generation", generation))
	return env, nil
}

func validateSettings(raw string) error {
	doc, err := settings.Parse(raw)
	if err != nil {
		return err
	}
	return doc.Validate()
}

// GetInstance returns the live Environment when one exists with the same
// settings document and verbosity (the instance name may differ), or brings
// up a new one when the slot is free. A live Environment with conflicting
// parameters is a config error; destroy it first.
func GetInstance(name, settings string, verbose bool, opts ...Option) (*Environment, error) {
	slotMu.Lock()
	defer slotMu.Unlock()
	if current != nil && !current.IsDestroyed() {
		if current.settings != settings || current.verbose != verbose {
			return nil, errors.Config("an active environment exists with different settings", nil)
		}
		return current, nil
	}
	return initializeLocked(name, settings, verbose, opts)
}

// Existing returns the live Environment, or a not-ready error when none is
// initialized.
func Existing() (*Environment, error) {
	slotMu.Lock()
	defer slotMu.Unlock()
	if current == nil || current.IsDestroyed() {
		return nil, errors.NotReady("environment")
	}
	return current, nil
}

// Name returns the instance name the Environment was initialized with.
func (e *Environment) Name() string { return e.name }

// Settings returns the settings document the Environment was initialized
// with.
func (e *Environment) Settings() string { return e.settings }

// Verbose reports whether native verbose logging was requested.
func (e *Environment) Verbose() bool { return e.verbose }

// Generation returns the bring-up ordinal of this Environment. Generations
// increase across the process lifetime, one per successful Initialize.
func (e *Environment) Generation() uint64 { return e.handle.Generation() }

// State returns the current lifecycle state.
func (e *Environment) State() State { return State(e.state.Load()) }

// IsDestroyed reports whether Destroy has run.
func (e *Environment) IsDestroyed() bool { return e.State() == StateDestroyed }

func (e *Environment) ready() error {
	if e.State() != StateReady {
		return errors.NotReady("environment")
	}
	return nil
}

// ensureEngine brings the engine family up, honoring a WithConfigID pin.
func (e *Environment) ensureEngine(ctx context.Context) error {
	if e.configID != 0 {
		return e.handle.EnsureEngineWithConfigID(ctx, int64(e.configID))
	}
	return e.handle.EnsureEngine(ctx)
}

// Engine returns the entity-resolution hub, bringing the engine family up on
// first use. With a pinned configuration (WithConfigID) the pin applies here.
func (e *Environment) Engine(ctx context.Context) (*Engine, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.ensureEngine(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.engine == nil {
		e.engine = &Engine{caller{e.handle, errors.SubsystemEngine}}
	}
	return e.engine, nil
}

// ConfigManager returns the configuration registry hub. Both the registry and
// the document-editing families come up here; the manager hands out editable
// configuration documents, so it needs them together.
func (e *Environment) ConfigManager(ctx context.Context) (*ConfigManager, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.handle.EnsureConfigManager(ctx); err != nil {
		return nil, err
	}
	if err := e.handle.EnsureConfig(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.configMgr == nil {
		e.configMgr = &ConfigManager{
			caller: caller{e.handle, errors.SubsystemConfigMgr},
			editor: caller{e.handle, errors.SubsystemConfig},
		}
	}
	return e.configMgr, nil
}

// Product returns the product information hub.
func (e *Environment) Product(ctx context.Context) (*Product, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.handle.EnsureProduct(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.product == nil {
		e.product = &Product{caller{e.handle, errors.SubsystemProduct}}
	}
	return e.product, nil
}

// Diagnostic returns the repository diagnostics hub.
func (e *Environment) Diagnostic(ctx context.Context) (*Diagnostic, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.handle.EnsureDiagnostic(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.diagnostic == nil {
		e.diagnostic = &Diagnostic{caller{e.handle, errors.SubsystemDiagnostic}}
	}
	return e.diagnostic, nil
}

// Reinitialize switches the engine to another registered configuration. The
// engine family must already be up; unknown ids are not-found errors.
func (e *Environment) Reinitialize(ctx context.Context, configID szruntime.ConfigID) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.ensureEngine(ctx); err != nil {
		return err
	}
	return e.handle.Call(ctx, func(api native.API) error {
		return e.handle.Check(errors.SubsystemEngine, api.EngineReinit(int64(configID)))
	})
}

// ActiveConfigID returns the configuration id the engine is currently running
// on.
func (e *Environment) ActiveConfigID(ctx context.Context) (szruntime.ConfigID, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := e.ensureEngine(ctx); err != nil {
		return 0, err
	}
	var id szruntime.ConfigID
	err := e.handle.Call(ctx, func(api native.API) error {
		res := api.EngineGetActiveConfigID()
		if err := e.handle.Check(errors.SubsystemEngine, res.ReturnCode); err != nil {
			return err
		}
		id = szruntime.ConfigID(res.Value)
		return nil
	})
	return id, err
}

// Destroy tears down the native library and releases the process slot. It
// serializes with in-flight hub calls, so a call that already entered the
// native boundary completes first. Destroy is idempotent; hubs and documents
// from this Environment report not-ready errors afterwards.
func (e *Environment) Destroy() error {
	slotMu.Lock()
	defer slotMu.Unlock()

	if State(e.state.Swap(int32(StateDestroyed))) == StateDestroyed {
		return nil
	}
	err := e.handle.Destroy()
	if current == e {
		current = nil
	}
	native.Logger().Info("environment destroyed",
		zap.String("name", e.name),
		zap.Uint64("generation", e.handle.Generation()))
	return err
}
