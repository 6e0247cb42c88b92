// Package native defines the call contract between the runtime and the
// entity-resolution shared library, and the serialized handle through which
// every call is routed.
//
// The API interface mirrors the library's C exports one to one: five call
// families (engine, config, config manager, product, diagnostic), each with
// its own init, destroy and last-exception channel. Drivers implement API;
// the in-process emulator is one such driver, a cgo binding to the real
// library is another. The rest of the runtime never loads symbols itself,
// it talks to whichever API the environment was given.
//
// The library is not reentrant. Handle serializes all calls through a single
// lock and gates them on liveness, so a destroyed handle returns a not-ready
// error instead of reaching freed native state.
package native

import "sync"

// StringResult carries a JSON (or CSV) payload from a native call together
// with the call's return code. The payload is only meaningful when
// ReturnCode is zero.
type StringResult struct {
	Response   string
	ReturnCode int64
}

// LongResult carries an integer value from a native call together with the
// call's return code.
type LongResult struct {
	Value      int64
	ReturnCode int64
}

// HandleResult carries an opaque native resource handle (an in-memory
// configuration or an open export report) together with the call's return
// code. Handles are only valid on the handle generation that produced them.
type HandleResult struct {
	Handle     uintptr
	ReturnCode int64
}

// EngineAPI is the resolution core. Record mutation calls take a flags word;
// when it requests affected-entity info the response carries it, otherwise
// the response is empty.
type EngineAPI interface {
	EngineInit(name, settings string, verbose int64) int64
	EngineInitWithConfigID(name, settings string, configID, verbose int64) int64
	EngineReinit(configID int64) int64
	EngineDestroy() int64

	EnginePrime() int64
	EngineGetActiveConfigID() LongResult
	EngineStats() StringResult

	EngineAddRecord(dataSource, recordID, definition string, flags int64) StringResult
	EngineGetRecordPreview(definition string, flags int64) StringResult
	EngineDeleteRecord(dataSource, recordID string, flags int64) StringResult
	EngineReevaluateRecord(dataSource, recordID string, flags int64) StringResult
	EngineReevaluateEntity(entityID, flags int64) StringResult

	EngineGetEntityByEntityID(entityID, flags int64) StringResult
	EngineGetEntityByRecordID(dataSource, recordID string, flags int64) StringResult
	EngineGetRecord(dataSource, recordID string, flags int64) StringResult
	EngineSearchByAttributes(attributes, searchProfile string, flags int64) StringResult
	EngineWhySearch(attributes string, entityID int64, searchProfile string, flags int64) StringResult

	EngineFindInterestingEntitiesByEntityID(entityID, flags int64) StringResult
	EngineFindInterestingEntitiesByRecordID(dataSource, recordID string, flags int64) StringResult

	// Path and network traversal. Entity lists and data source lists are
	// JSON documents; empty string means no constraint.
	EngineFindPathByEntityID(startEntityID, endEntityID, maxDegrees int64, avoidEntityIDs, requiredDataSources string, flags int64) StringResult
	EngineFindNetworkByEntityID(entityIDs string, maxDegrees, buildOutDegree, maxEntities, flags int64) StringResult

	EngineWhyEntities(entityID1, entityID2, flags int64) StringResult
	EngineWhyRecords(dataSource1, recordID1, dataSource2, recordID2 string, flags int64) StringResult
	EngineWhyRecordInEntity(dataSource, recordID string, flags int64) StringResult
	EngineHowEntityByEntityID(entityID, flags int64) StringResult
	EngineGetVirtualEntityByRecordID(recordKeys string, flags int64) StringResult

	EngineProcessRedoRecord(redoRecord string, flags int64) StringResult
	EngineGetRedoRecord() StringResult
	EngineCountRedoRecords() int64

	// Entity report export. FetchNext returns an empty response with a zero
	// return code once the report is exhausted.
	EngineExportJSONEntityReport(flags int64) HandleResult
	EngineExportCSVEntityReport(columnList string, flags int64) HandleResult
	EngineFetchNext(handle uintptr) StringResult
	EngineCloseExportReport(handle uintptr) int64

	EngineLastError(buf []byte) int64
	EngineLastErrorCode() int64
	EngineClearLastError()
}

// ConfigAPI edits in-memory configuration documents addressed by native
// handles. Data source calls take the library's JSON parameter form,
// {"DSRC_CODE": "..."}.
type ConfigAPI interface {
	ConfigInit(name, settings string, verbose int64) int64
	ConfigDestroy() int64

	ConfigCreate() HandleResult
	ConfigLoad(definition string) HandleResult
	ConfigExport(handle uintptr) StringResult
	ConfigGetDataSourceRegistry(handle uintptr) StringResult
	ConfigRegisterDataSource(handle uintptr, input string) StringResult
	ConfigUnregisterDataSource(handle uintptr, input string) int64
	ConfigClose(handle uintptr) int64

	ConfigLastError(buf []byte) int64
	ConfigLastErrorCode() int64
	ConfigClearLastError()
}

// ConfigManagerAPI reads and writes the configuration registry in the
// repository.
type ConfigManagerAPI interface {
	ConfigMgrInit(name, settings string, verbose int64) int64
	ConfigMgrDestroy() int64

	ConfigMgrGetConfig(configID int64) StringResult
	ConfigMgrGetConfigRegistry() StringResult
	ConfigMgrRegisterConfig(definition, comment string) LongResult
	ConfigMgrGetDefaultConfigID() LongResult
	ConfigMgrSetDefaultConfigID(configID int64) int64
	ConfigMgrReplaceDefaultConfigID(currentID, newID int64) int64

	ConfigMgrLastError(buf []byte) int64
	ConfigMgrLastErrorCode() int64
	ConfigMgrClearLastError()
}

// ProductAPI reports library version and license details.
type ProductAPI interface {
	ProductInit(name, settings string, verbose int64) int64
	ProductDestroy() int64

	ProductVersion() StringResult
	ProductLicense() StringResult

	ProductLastError(buf []byte) int64
	ProductLastErrorCode() int64
	ProductClearLastError()
}

// DiagnosticAPI inspects the repository behind the engine.
type DiagnosticAPI interface {
	DiagnosticInit(name, settings string, verbose int64) int64
	DiagnosticDestroy() int64

	DiagnosticGetRepositoryInfo() StringResult
	DiagnosticCheckRepositoryPerformance(secondsToRun int64) StringResult
	DiagnosticGetFeature(featureID int64) StringResult
	DiagnosticPurgeRepository() int64

	DiagnosticLastError(buf []byte) int64
	DiagnosticLastErrorCode() int64
	DiagnosticClearLastError()
}

// API is the complete native surface a driver must provide.
type API interface {
	EngineAPI
	ConfigAPI
	ConfigManagerAPI
	ProductAPI
	DiagnosticAPI
}

var (
	defaultMu  sync.RWMutex
	defaultAPI API
)

// SetDefault installs the process-wide default driver. Driver packages call
// this during their own setup; the environment falls back to it when no
// explicit driver is supplied.
func SetDefault(api API) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultAPI = api
}

// Default returns the installed process-wide driver, or nil when none has
// been set.
func Default() API {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultAPI
}
