package emulator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func newMgrReady(t *testing.T) *Emulator {
	t.Helper()
	e := New()
	require.Zero(t, e.ConfigMgrInit("test", testSettings(t), 0))
	return e
}

func TestConfigMgrRegisterConfig_FreshIDs(t *testing.T) {
	e := newMgrReady(t)

	first := e.ConfigMgrRegisterConfig(templateConfig, "one")
	require.Zero(t, first.ReturnCode)
	require.Positive(t, first.Value)

	// registering the identical definition again yields a new id,
	// the registry is a log, not a set
	second := e.ConfigMgrRegisterConfig(templateConfig, "two")
	require.Zero(t, second.ReturnCode)
	require.Greater(t, second.Value, first.Value)
}

func TestConfigMgrRegisterConfig_RejectsInvalid(t *testing.T) {
	e := newMgrReady(t)
	res := e.ConfigMgrRegisterConfig("not json", "bad")
	require.NotZero(t, res.ReturnCode)
	require.EqualValues(t, 7220, e.ConfigMgrLastErrorCode())
}

func TestConfigMgrGetConfig(t *testing.T) {
	e := newMgrReady(t)
	reg := e.ConfigMgrRegisterConfig(templateConfig, "get me")
	require.Zero(t, reg.ReturnCode)

	got := e.ConfigMgrGetConfig(reg.Value)
	require.Zero(t, got.ReturnCode)
	require.JSONEq(t, templateConfig, got.Response)

	missing := e.ConfigMgrGetConfig(reg.Value + 100)
	require.NotZero(t, missing.ReturnCode)
	require.EqualValues(t, 7331, e.ConfigMgrLastErrorCode())
}

func TestConfigMgrGetConfigRegistry(t *testing.T) {
	e := newMgrReady(t)
	first := e.ConfigMgrRegisterConfig(templateConfig, "first")
	require.Zero(t, first.ReturnCode)
	second := e.ConfigMgrRegisterConfig(templateConfig, "second")
	require.Zero(t, second.ReturnCode)

	res := e.ConfigMgrGetConfigRegistry()
	require.Zero(t, res.ReturnCode)

	var registry struct {
		Configs []struct {
			ConfigID int64  `json:"CONFIG_ID"`
			Comments string `json:"CONFIG_COMMENTS"`
			Created  string `json:"SYS_CREATE_DT"`
		} `json:"CONFIGS"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Response), &registry))
	require.Len(t, registry.Configs, 2)
	require.Equal(t, first.Value, registry.Configs[0].ConfigID)
	require.Equal(t, "first", registry.Configs[0].Comments)
	require.NotEmpty(t, registry.Configs[0].Created)
	require.Equal(t, second.Value, registry.Configs[1].ConfigID)
}

func TestConfigMgrDefaultConfigID(t *testing.T) {
	e := newMgrReady(t)

	def := e.ConfigMgrGetDefaultConfigID()
	require.Zero(t, def.ReturnCode)
	require.Zero(t, def.Value)

	reg := e.ConfigMgrRegisterConfig(templateConfig, "default")
	require.Zero(t, reg.ReturnCode)
	require.Zero(t, e.ConfigMgrSetDefaultConfigID(reg.Value))

	def = e.ConfigMgrGetDefaultConfigID()
	require.Zero(t, def.ReturnCode)
	require.Equal(t, reg.Value, def.Value)

	// the default must point at a registered configuration
	require.NotZero(t, e.ConfigMgrSetDefaultConfigID(reg.Value+100))
	require.EqualValues(t, 7331, e.ConfigMgrLastErrorCode())
}

func TestConfigMgrReplaceDefaultConfigID(t *testing.T) {
	e := newMgrReady(t)
	first := e.ConfigMgrRegisterConfig(templateConfig, "first")
	require.Zero(t, first.ReturnCode)
	second := e.ConfigMgrRegisterConfig(templateConfig, "second")
	require.Zero(t, second.ReturnCode)
	require.Zero(t, e.ConfigMgrSetDefaultConfigID(first.Value))

	// guarded swap with a stale expectation fails
	require.NotZero(t, e.ConfigMgrReplaceDefaultConfigID(second.Value, first.Value))
	require.EqualValues(t, 7245, e.ConfigMgrLastErrorCode())
	e.ConfigMgrClearLastError()

	// the replacement must exist
	require.NotZero(t, e.ConfigMgrReplaceDefaultConfigID(first.Value, second.Value+100))
	require.EqualValues(t, 7331, e.ConfigMgrLastErrorCode())

	require.Zero(t, e.ConfigMgrReplaceDefaultConfigID(first.Value, second.Value))
	def := e.ConfigMgrGetDefaultConfigID()
	require.Equal(t, second.Value, def.Value)
}

func TestConfigMgrOps_RequireInit(t *testing.T) {
	e := New()
	res := e.ConfigMgrGetDefaultConfigID()
	require.NotZero(t, res.ReturnCode)
	require.EqualValues(t, 50, e.ConfigMgrLastErrorCode())
}
