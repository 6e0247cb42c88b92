package environment

import (
	"context"

	szruntime "github.com/wippyai/sz-runtime"
	"github.com/wippyai/sz-runtime/native"
)

// ConfigManager is the configuration registry hub. It creates editable
// configuration documents, persists them into the repository registry and
// moves the default-configuration pointer.
//
// Registration always mints a fresh id: registering byte-identical content
// twice yields two distinct ids, and ids are never reused, not even across
// process restarts. The registry is a log, not a set.
type ConfigManager struct {
	caller        // registry family
	editor caller // document editing family
}

// CreateConfig returns a new configuration document seeded from the engine's
// baseline template.
func (m *ConfigManager) CreateConfig(ctx context.Context) (*Config, error) {
	h, err := m.editor.opaque(ctx, func(api native.API) native.HandleResult {
		return api.ConfigCreate()
	})
	if err != nil {
		return nil, err
	}
	return newConfig(m.editor, h), nil
}

// CreateConfigFromID returns an editable document loaded from a registered
// configuration. Unknown ids are not-found errors.
func (m *ConfigManager) CreateConfigFromID(ctx context.Context, id szruntime.ConfigID) (*Config, error) {
	definition, err := m.text(ctx, func(api native.API) native.StringResult {
		return api.ConfigMgrGetConfig(int64(id))
	})
	if err != nil {
		return nil, err
	}
	return m.CreateConfigFromDefinition(ctx, definition)
}

// CreateConfigFromDefinition returns an editable document loaded from a
// literal configuration definition.
func (m *ConfigManager) CreateConfigFromDefinition(ctx context.Context, definition string) (*Config, error) {
	h, err := m.editor.opaque(ctx, func(api native.API) native.HandleResult {
		return api.ConfigLoad(definition)
	})
	if err != nil {
		return nil, err
	}
	return newConfig(m.editor, h), nil
}

// RegisterConfig persists a configuration definition in the registry and
// returns its freshly minted id.
func (m *ConfigManager) RegisterConfig(ctx context.Context, definition, comment string) (szruntime.ConfigID, error) {
	id, err := m.long(ctx, func(api native.API) native.LongResult {
		return api.ConfigMgrRegisterConfig(definition, comment)
	})
	return szruntime.ConfigID(id), err
}

// GetConfigRegistry returns the JSON inventory of registered configurations.
func (m *ConfigManager) GetConfigRegistry(ctx context.Context) (string, error) {
	return m.text(ctx, func(api native.API) native.StringResult {
		return api.ConfigMgrGetConfigRegistry()
	})
}

// GetDefaultConfigID returns the repository's default configuration id, zero
// when none has been set.
func (m *ConfigManager) GetDefaultConfigID(ctx context.Context) (szruntime.ConfigID, error) {
	id, err := m.long(ctx, func(api native.API) native.LongResult {
		return api.ConfigMgrGetDefaultConfigID()
	})
	return szruntime.ConfigID(id), err
}

// SetDefaultConfigID points the repository default at a registered
// configuration. Unknown ids are not-found errors.
func (m *ConfigManager) SetDefaultConfigID(ctx context.Context, id szruntime.ConfigID) error {
	return m.rc(ctx, func(api native.API) int64 {
		return api.ConfigMgrSetDefaultConfigID(int64(id))
	})
}

// ReplaceDefaultConfigID swaps the default pointer from current to
// replacement, failing when the stored default no longer matches current.
// Use it instead of SetDefaultConfigID when racing writers are possible.
func (m *ConfigManager) ReplaceDefaultConfigID(ctx context.Context, current, replacement szruntime.ConfigID) error {
	return m.rc(ctx, func(api native.API) int64 {
		return api.ConfigMgrReplaceDefaultConfigID(int64(current), int64(replacement))
	})
}

// SetDefaultConfig registers a definition and makes it the default in one
// step, returning the new id.
func (m *ConfigManager) SetDefaultConfig(ctx context.Context, definition, comment string) (szruntime.ConfigID, error) {
	id, err := m.RegisterConfig(ctx, definition, comment)
	if err != nil {
		return 0, err
	}
	if err := m.SetDefaultConfigID(ctx, id); err != nil {
		return 0, err
	}
	return id, nil
}
