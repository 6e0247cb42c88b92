// Package emulator is an in-process driver implementing the native call
// contract without the real shared library. It keeps the library's outward
// behavior, return codes, exception channels, JSON response shapes and
// repository persistence, while replacing entity resolution itself with a
// deterministic model: every loaded record is its own entity, search is
// exact attribute match, and relationship traversals return trivial results.
//
// The repository lives in an SQLite database named by the settings document,
// so configurations registered through one environment span survive into the
// next span opened on the same connection string, exactly like the real
// library's datastore.
//
// The emulator backs the test suites and the CLI's offline mode. Callers are
// expected to serialize calls (the runtime's handle does); the internal lock
// only keeps direct concurrent use from corrupting state.
package emulator

import (
	"fmt"
	"sync"

	"github.com/wippyai/sz-runtime/native"
	"github.com/wippyai/sz-runtime/settings"
)

type family int

const (
	famEngine family = iota
	famConfig
	famConfigMgr
	famProduct
	famDiagnostic
)

func (f family) label() string {
	switch f {
	case famEngine:
		return "Engine"
	case famConfig:
		return "Config"
	case famConfigMgr:
		return "ConfigMgr"
	case famProduct:
		return "Product"
	default:
		return "Diagnostic"
	}
}

// notInitCode returns the published error code for calls into a family that
// has not been initialized.
func (f family) notInitCode() int64 {
	switch f {
	case famEngine:
		return 48
	case famConfig:
		return 49
	case famConfigMgr:
		return 50
	case famProduct:
		return 67
	default:
		return 63
	}
}

type lastError struct {
	code int64
	text string
}

// Emulator implements native.API. The zero value is not usable; construct
// with New.
type Emulator struct {
	mu sync.Mutex

	store  *store
	inited map[family]bool
	errs   map[family]*lastError

	// engine state
	active    int64
	activeCfg *configDoc

	configs *table
	exports *table
}

// New returns an emulator with no families initialized and no repository
// open.
func New() *Emulator {
	return &Emulator{
		inited:  make(map[family]bool),
		errs:    make(map[family]*lastError),
		configs: newTable(),
		exports: newTable(),
	}
}

var _ native.API = (*Emulator)(nil)

// fail records f's last exception and returns the error return code. The
// recorded text carries the code token prefix the sanitizer expects.
func (e *Emulator) fail(f family, code int64, format string, args ...any) int64 {
	text := fmt.Sprintf(format, args...)
	e.errs[f] = &lastError{code: code, text: fmt.Sprintf("%04dE|%s", code, text)}
	return -2
}

func (e *Emulator) failStr(f family, code int64, format string, args ...any) native.StringResult {
	return native.StringResult{ReturnCode: e.fail(f, code, format, args...)}
}

func (e *Emulator) failLong(f family, code int64, format string, args ...any) native.LongResult {
	return native.LongResult{ReturnCode: e.fail(f, code, format, args...)}
}

func (e *Emulator) failHandle(f family, code int64, format string, args ...any) native.HandleResult {
	return native.HandleResult{ReturnCode: e.fail(f, code, format, args...)}
}

func (e *Emulator) notInit(f family) int64 {
	return e.fail(f, f.notInitCode(), "%s has not been initialized", f.label())
}

func (e *Emulator) dbFail(f family, err error) int64 {
	return e.fail(f, 1006, "Repository error: %v", err)
}

// parseSettings validates the settings document handed to a family init.
func (e *Emulator) parseSettings(f family, raw string) (*settings.Document, int64) {
	doc, err := settings.Parse(raw)
	if err != nil {
		return nil, e.fail(f, 7220, "Invalid engine configuration document: %v", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, e.fail(f, 7220, "Invalid engine configuration document: %v", err)
	}
	return doc, 0
}

// openRepository opens the SQLite repository named by the settings, reusing
// the already-open store when a second family initializes with the same
// connection.
func (e *Emulator) openRepository(f family, doc *settings.Document) int64 {
	conn, err := settings.ParseConnection(doc.SQL.Connection)
	if err != nil {
		return e.fail(f, 1005, "Invalid database connection '%s'", doc.SQL.Connection)
	}
	if conn.Scheme != settings.SchemeSQLite || conn.Path == "" {
		return e.fail(f, 1005, "Unsupported database connection '%s'", doc.SQL.Connection)
	}
	if e.store != nil {
		if e.store.path != conn.Path {
			return e.fail(f, 1005, "Conflicting database connection '%s'", doc.SQL.Connection)
		}
		return 0
	}
	st, err := openStore(conn.Path)
	if err != nil {
		return e.fail(f, 1006, "Unable to open repository '%s': %v", conn.Path, err)
	}
	e.store = st
	return 0
}

// maybeCloseStore closes the repository once no family that uses it remains
// initialized.
func (e *Emulator) maybeCloseStore() {
	if e.store == nil {
		return
	}
	if e.inited[famEngine] || e.inited[famConfigMgr] || e.inited[famDiagnostic] {
		return
	}
	e.store.close()
	e.store = nil
}

func fillError(buf []byte, le *lastError) int64 {
	if le == nil {
		if len(buf) > 0 {
			buf[0] = 0
		}
		return 0
	}
	n := copy(buf, le.text)
	if n < len(buf) {
		buf[n] = 0
	}
	return int64(n)
}

// RepositoryPath returns the path of the open repository, empty when none.
// Test suites use it to point a second emulator at the same repository.
func (e *Emulator) RepositoryPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store == nil {
		return ""
	}
	return e.store.path
}

// OpenHandles returns the number of live config document and export report
// handles. Test suites use it to assert nothing leaked.
func (e *Emulator) OpenHandles() int {
	return e.configs.size() + e.exports.size()
}

// --- engine family lifecycle ---

func (e *Emulator) EngineInit(name, raw string, verbose int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engineInitLocked(raw, 0, false)
}

func (e *Emulator) EngineInitWithConfigID(name, raw string, configID, verbose int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engineInitLocked(raw, configID, true)
}

func (e *Emulator) engineInitLocked(raw string, configID int64, pinned bool) int64 {
	if e.inited[famEngine] {
		return 0
	}
	doc, rc := e.parseSettings(famEngine, raw)
	if rc != 0 {
		return rc
	}
	if rc := e.openRepository(famEngine, doc); rc != 0 {
		return rc
	}

	id := configID
	if !pinned {
		stored, err := e.store.defaultConfigID()
		if err != nil {
			return e.dbFail(famEngine, err)
		}
		id = stored
	}
	if id == 0 {
		return e.fail(famEngine, 7221, "No engine configuration registered")
	}
	definition, ok, err := e.store.config(id)
	if err != nil {
		return e.dbFail(famEngine, err)
	}
	if !ok {
		return e.fail(famEngine, 7331, "No engine configuration registered with ID [%d]", id)
	}
	cfg, err := parseConfigDoc(definition)
	if err != nil {
		return e.fail(famEngine, 7220, "Configuration [%d] is invalid: %v", id, err)
	}

	e.active = id
	e.activeCfg = cfg
	e.inited[famEngine] = true
	return 0
}

func (e *Emulator) EngineReinit(configID int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famEngine] {
		return e.notInit(famEngine)
	}
	definition, ok, err := e.store.config(configID)
	if err != nil {
		return e.dbFail(famEngine, err)
	}
	if !ok {
		return e.fail(famEngine, 7331, "No engine configuration registered with ID [%d]", configID)
	}
	cfg, err := parseConfigDoc(definition)
	if err != nil {
		return e.fail(famEngine, 7220, "Configuration [%d] is invalid: %v", configID, err)
	}
	e.active = configID
	e.activeCfg = cfg
	return 0
}

func (e *Emulator) EngineDestroy() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inited[famEngine] = false
	e.active = 0
	e.activeCfg = nil
	e.exports.reset()
	e.maybeCloseStore()
	return 0
}

func (e *Emulator) EngineLastError(buf []byte) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fillError(buf, e.errs[famEngine])
}

func (e *Emulator) EngineLastErrorCode() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if le := e.errs[famEngine]; le != nil {
		return le.code
	}
	return 0
}

func (e *Emulator) EngineClearLastError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.errs, famEngine)
}

// --- config family lifecycle ---

func (e *Emulator) ConfigInit(name, raw string, verbose int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inited[famConfig] {
		return 0
	}
	if _, rc := e.parseSettings(famConfig, raw); rc != 0 {
		return rc
	}
	e.inited[famConfig] = true
	return 0
}

func (e *Emulator) ConfigDestroy() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inited[famConfig] = false
	e.configs.reset()
	e.maybeCloseStore()
	return 0
}

func (e *Emulator) ConfigLastError(buf []byte) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fillError(buf, e.errs[famConfig])
}

func (e *Emulator) ConfigLastErrorCode() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if le := e.errs[famConfig]; le != nil {
		return le.code
	}
	return 0
}

func (e *Emulator) ConfigClearLastError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.errs, famConfig)
}

// --- config manager family lifecycle ---

func (e *Emulator) ConfigMgrInit(name, raw string, verbose int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inited[famConfigMgr] {
		return 0
	}
	doc, rc := e.parseSettings(famConfigMgr, raw)
	if rc != 0 {
		return rc
	}
	if rc := e.openRepository(famConfigMgr, doc); rc != 0 {
		return rc
	}
	e.inited[famConfigMgr] = true
	return 0
}

func (e *Emulator) ConfigMgrDestroy() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inited[famConfigMgr] = false
	e.maybeCloseStore()
	return 0
}

func (e *Emulator) ConfigMgrLastError(buf []byte) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fillError(buf, e.errs[famConfigMgr])
}

func (e *Emulator) ConfigMgrLastErrorCode() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if le := e.errs[famConfigMgr]; le != nil {
		return le.code
	}
	return 0
}

func (e *Emulator) ConfigMgrClearLastError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.errs, famConfigMgr)
}

// --- product family ---

func (e *Emulator) ProductInit(name, raw string, verbose int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inited[famProduct] {
		return 0
	}
	if _, rc := e.parseSettings(famProduct, raw); rc != 0 {
		return rc
	}
	e.inited[famProduct] = true
	return 0
}

func (e *Emulator) ProductDestroy() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inited[famProduct] = false
	return 0
}

func (e *Emulator) ProductVersion() native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famProduct] {
		return native.StringResult{ReturnCode: e.notInit(famProduct)}
	}
	return native.StringResult{Response: `{"PRODUCT_NAME":"Senzing SDK","VERSION":"4.1.0","BUILD_VERSION":"4.1.0.25001","BUILD_DATE":"2025-06-01"}`}
}

func (e *Emulator) ProductLicense() native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famProduct] {
		return native.StringResult{ReturnCode: e.notInit(famProduct)}
	}
	return native.StringResult{Response: `{"customer":"","contract":"","issueDate":"2025-01-01","licenseType":"EVAL","licenseLevel":"STANDARD","billing":"","expireDate":"2026-12-31","recordLimit":100000}`}
}

func (e *Emulator) ProductLastError(buf []byte) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fillError(buf, e.errs[famProduct])
}

func (e *Emulator) ProductLastErrorCode() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if le := e.errs[famProduct]; le != nil {
		return le.code
	}
	return 0
}

func (e *Emulator) ProductClearLastError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.errs, famProduct)
}

// --- diagnostic family ---

func (e *Emulator) DiagnosticInit(name, raw string, verbose int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inited[famDiagnostic] {
		return 0
	}
	doc, rc := e.parseSettings(famDiagnostic, raw)
	if rc != 0 {
		return rc
	}
	if rc := e.openRepository(famDiagnostic, doc); rc != 0 {
		return rc
	}
	e.inited[famDiagnostic] = true
	return 0
}

func (e *Emulator) DiagnosticDestroy() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inited[famDiagnostic] = false
	e.maybeCloseStore()
	return 0
}

func (e *Emulator) DiagnosticGetRepositoryInfo() native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famDiagnostic] {
		return native.StringResult{ReturnCode: e.notInit(famDiagnostic)}
	}
	return native.StringResult{Response: fmt.Sprintf(
		`{"dataStores":[{"id":"CORE","type":"sqlite3","location":%q}]}`, e.store.path)}
}

func (e *Emulator) DiagnosticCheckRepositoryPerformance(secondsToRun int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famDiagnostic] {
		return native.StringResult{ReturnCode: e.notInit(famDiagnostic)}
	}
	if secondsToRun <= 0 {
		return e.failStr(famDiagnostic, 2, "secondsToRun must be positive, got %d", secondsToRun)
	}
	return native.StringResult{Response: fmt.Sprintf(
		`{"numRecordsInserted":%d,"insertTime":%d}`, secondsToRun*5000, secondsToRun*1000)}
}

func (e *Emulator) DiagnosticGetFeature(featureID int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famDiagnostic] {
		return native.StringResult{ReturnCode: e.notInit(famDiagnostic)}
	}
	if featureID <= 0 {
		return e.failStr(famDiagnostic, 2, "Invalid feature ID [%d]", featureID)
	}
	return native.StringResult{Response: fmt.Sprintf(
		`{"LIB_FEAT_ID":%d,"FTYPE_CODE":"NAME","ELEMENTS":[]}`, featureID)}
}

func (e *Emulator) DiagnosticPurgeRepository() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famDiagnostic] {
		return e.notInit(famDiagnostic)
	}
	if err := e.store.purgeRecords(); err != nil {
		return e.dbFail(famDiagnostic, err)
	}
	return 0
}

func (e *Emulator) DiagnosticLastError(buf []byte) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fillError(buf, e.errs[famDiagnostic])
}

func (e *Emulator) DiagnosticLastErrorCode() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if le := e.errs[famDiagnostic]; le != nil {
		return le.code
	}
	return 0
}

func (e *Emulator) DiagnosticClearLastError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.errs, famDiagnostic)
}
