package emulator

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/sz-runtime/settings"
)

func testSettings(t *testing.T) string {
	t.Helper()
	return settings.New(settings.SQLiteConnection(filepath.Join(t.TempDir(), "repo.db"))).String()
}

// bootstrap registers the template configuration as the repository default
// and returns its id.
func bootstrap(t *testing.T, e *Emulator, raw string) int64 {
	t.Helper()
	require.Zero(t, e.ConfigMgrInit("test", raw, 0))
	require.Zero(t, e.ConfigInit("test", raw, 0))

	ch := e.ConfigCreate()
	require.Zero(t, ch.ReturnCode)
	exported := e.ConfigExport(ch.Handle)
	require.Zero(t, exported.ReturnCode)
	require.Zero(t, e.ConfigClose(ch.Handle))

	reg := e.ConfigMgrRegisterConfig(exported.Response, "bootstrap")
	require.Zero(t, reg.ReturnCode)
	require.Zero(t, e.ConfigMgrSetDefaultConfigID(reg.Value))
	return reg.Value
}

// newReady returns an emulator with every family initialized against a fresh
// repository seeded with the template configuration.
func newReady(t *testing.T) (*Emulator, string) {
	t.Helper()
	e := New()
	raw := testSettings(t)
	bootstrap(t, e, raw)
	require.Zero(t, e.EngineInit("test", raw, 0))
	return e, raw
}

func lastEngineError(e *Emulator) string {
	buf := make([]byte, 1024)
	e.EngineLastError(buf)
	if i := strings.IndexByte(string(buf), 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}

func TestEngineInit_InvalidSettings(t *testing.T) {
	e := New()
	rc := e.EngineInit("test", "this is not json", 0)
	require.NotZero(t, rc)
	require.EqualValues(t, 7220, e.EngineLastErrorCode())
	require.True(t, strings.HasPrefix(lastEngineError(e), "7220E|"))
}

func TestEngineInit_MissingSettingsKey(t *testing.T) {
	e := New()
	rc := e.EngineInit("test", `{"PIPELINE":{"CONFIGPATH":"/a","RESOURCEPATH":"/b","SUPPORTPATH":"/c"},"SQL":{}}`, 0)
	require.NotZero(t, rc)
	require.EqualValues(t, 7220, e.EngineLastErrorCode())
}

func TestEngineInit_UnsupportedScheme(t *testing.T) {
	e := New()
	raw := settings.New("postgresql://user:pw@db-host:5432/er").String()
	rc := e.EngineInit("test", raw, 0)
	require.NotZero(t, rc)
	require.EqualValues(t, 1005, e.EngineLastErrorCode())
}

func TestEngineInit_NoDefaultConfig(t *testing.T) {
	e := New()
	rc := e.EngineInit("test", testSettings(t), 0)
	require.NotZero(t, rc)
	require.EqualValues(t, 7221, e.EngineLastErrorCode())
	require.Contains(t, lastEngineError(e), "No engine configuration registered")
}

func TestEngineInit_Repeated(t *testing.T) {
	e, raw := newReady(t)
	require.Zero(t, e.EngineInit("test", raw, 0))
}

func TestEngineInitWithConfigID_Pins(t *testing.T) {
	e := New()
	raw := testSettings(t)
	id := bootstrap(t, e, raw)

	// register a second config so the default and the pin differ
	second := e.ConfigMgrRegisterConfig(templateConfig, "second")
	require.Zero(t, second.ReturnCode)

	require.Zero(t, e.EngineInitWithConfigID("test", raw, second.Value, 0))
	active := e.EngineGetActiveConfigID()
	require.Zero(t, active.ReturnCode)
	require.Equal(t, second.Value, active.Value)
	require.NotEqual(t, id, active.Value)
}

func TestEngineReinit_SwitchesActiveConfig(t *testing.T) {
	e, _ := newReady(t)
	second := e.ConfigMgrRegisterConfig(templateConfig, "second")
	require.Zero(t, second.ReturnCode)

	require.Zero(t, e.EngineReinit(second.Value))
	active := e.EngineGetActiveConfigID()
	require.Equal(t, second.Value, active.Value)

	rc := e.EngineReinit(99999)
	require.NotZero(t, rc)
	require.EqualValues(t, 7331, e.EngineLastErrorCode())
}

func TestEngineDestroy_GuardsLaterCalls(t *testing.T) {
	e, raw := newReady(t)
	require.Zero(t, e.EngineDestroy())

	res := e.EngineStats()
	require.NotZero(t, res.ReturnCode)
	require.EqualValues(t, 48, e.EngineLastErrorCode())

	// the config manager family stayed up, so the engine can come back
	require.Zero(t, e.EngineInit("test", raw, 0))
	require.Zero(t, e.EngineStats().ReturnCode)
}

func TestPersistence_AcrossEmulators(t *testing.T) {
	raw := settings.New(settings.SQLiteConnection(filepath.Join(t.TempDir(), "repo.db"))).String()

	first := New()
	id := bootstrap(t, first, raw)
	require.Zero(t, first.EngineInit("test", raw, 0))
	add := first.EngineAddRecord("TEST", "1001", `{"NAME_FULL":"Ann Example"}`, 0)
	require.Zero(t, add.ReturnCode)

	require.Zero(t, first.EngineDestroy())
	require.Zero(t, first.ConfigDestroy())
	require.Zero(t, first.ConfigMgrDestroy())
	require.Empty(t, first.RepositoryPath())

	second := New()
	require.Zero(t, second.ConfigMgrInit("test", raw, 0))
	def := second.ConfigMgrGetDefaultConfigID()
	require.Zero(t, def.ReturnCode)
	require.Equal(t, id, def.Value)

	// config ids keep climbing after a restart, old ids are never reissued
	reg := second.ConfigMgrRegisterConfig(templateConfig, "after restart")
	require.Zero(t, reg.ReturnCode)
	require.Greater(t, reg.Value, id)

	require.Zero(t, second.EngineInit("test", raw, 0))
	got := second.EngineGetRecord("TEST", "1001", 0)
	require.Zero(t, got.ReturnCode)
	require.Contains(t, got.Response, "Ann Example")
}

func TestRepositoryPath(t *testing.T) {
	e, _ := newReady(t)
	require.NotEmpty(t, e.RepositoryPath())
	require.True(t, strings.HasSuffix(e.RepositoryPath(), "repo.db"))
}

func TestProduct_VersionAndLicense(t *testing.T) {
	e := New()

	res := e.ProductVersion()
	require.NotZero(t, res.ReturnCode)
	require.EqualValues(t, 67, e.ProductLastErrorCode())
	e.ProductClearLastError()
	require.Zero(t, e.ProductLastErrorCode())

	require.Zero(t, e.ProductInit("test", testSettings(t), 0))
	res = e.ProductVersion()
	require.Zero(t, res.ReturnCode)

	var version map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Response), &version))
	require.Equal(t, "Senzing SDK", version["PRODUCT_NAME"])

	lic := e.ProductLicense()
	require.Zero(t, lic.ReturnCode)
	var license map[string]any
	require.NoError(t, json.Unmarshal([]byte(lic.Response), &license))
	require.Equal(t, "EVAL", license["licenseType"])
}

func TestDiagnostic_RepositoryOps(t *testing.T) {
	e, raw := newReady(t)
	require.Zero(t, e.DiagnosticInit("test", raw, 0))

	info := e.DiagnosticGetRepositoryInfo()
	require.Zero(t, info.ReturnCode)
	require.Contains(t, info.Response, "sqlite3")
	require.Contains(t, info.Response, "repo.db")

	perf := e.DiagnosticCheckRepositoryPerformance(3)
	require.Zero(t, perf.ReturnCode)
	require.Contains(t, perf.Response, "numRecordsInserted")

	bad := e.DiagnosticCheckRepositoryPerformance(0)
	require.NotZero(t, bad.ReturnCode)
	require.EqualValues(t, 2, e.DiagnosticLastErrorCode())

	feat := e.DiagnosticGetFeature(7)
	require.Zero(t, feat.ReturnCode)
	require.Contains(t, feat.Response, `"LIB_FEAT_ID":7`)

	add := e.EngineAddRecord("TEST", "p1", `{"NAME_FULL":"Purge Me"}`, 0)
	require.Zero(t, add.ReturnCode)
	require.Zero(t, e.DiagnosticPurgeRepository())
	got := e.EngineGetRecord("TEST", "p1", 0)
	require.NotZero(t, got.ReturnCode)
	require.EqualValues(t, 33, e.EngineLastErrorCode())
}

func TestExceptions_PerFamilyChannels(t *testing.T) {
	e := New()

	// trip the engine channel only
	require.NotZero(t, e.EngineReinit(1))
	require.EqualValues(t, 48, e.EngineLastErrorCode())
	require.Zero(t, e.ConfigMgrLastErrorCode())
	require.Zero(t, e.ConfigLastErrorCode())

	e.EngineClearLastError()
	require.Zero(t, e.EngineLastErrorCode())
	require.Equal(t, "", lastEngineError(e))
}
