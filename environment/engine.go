package environment

import (
	"context"
	"encoding/json"

	szruntime "github.com/wippyai/sz-runtime"
	"github.com/wippyai/sz-runtime/native"
)

// Engine is the entity-resolution hub: loading and retrieving records,
// searching, graph traversal, why/how analysis, redo processing and entity
// report exports. Responses are the native library's JSON payloads, shaped by
// the Flags value passed per call.
//
// Engine is safe for concurrent use; all calls serialize on the owning
// Environment's native handle. After the Environment is destroyed every
// method returns a not-ready error.
type Engine struct {
	caller
}

// PrimeEngine pre-loads the engine's in-memory caches so the first real
// operation does not pay the warm-up cost.
func (g *Engine) PrimeEngine(ctx context.Context) error {
	return g.rc(ctx, func(api native.API) int64 {
		return api.EnginePrime()
	})
}

// GetStats returns workload statistics for this engine span.
func (g *Engine) GetStats(ctx context.Context) (string, error) {
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineStats()
	})
}

// AddRecord loads a record into its data source. The definition's
// DATA_SOURCE and RECORD_ID, when present, must agree with the key. Loading
// the same key again replaces the record. With szruntime.WithInfo the
// response names the affected entities, otherwise it is empty.
func (g *Engine) AddRecord(ctx context.Context, key szruntime.RecordKey, definition string, flags szruntime.Flags) (string, error) {
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineAddRecord(key.DataSource, key.RecordID, definition, int64(flags))
	})
}

// GetRecordPreview reports the features the engine would extract from a
// record definition without loading it.
func (g *Engine) GetRecordPreview(ctx context.Context, definition string, flags szruntime.Flags) (string, error) {
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineGetRecordPreview(definition, int64(flags))
	})
}

// DeleteRecord removes a record. Deleting a record that is not loaded is a
// no-op success.
func (g *Engine) DeleteRecord(ctx context.Context, key szruntime.RecordKey, flags szruntime.Flags) (string, error) {
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineDeleteRecord(key.DataSource, key.RecordID, int64(flags))
	})
}

// GetRecord returns a loaded record as the engine stores it.
func (g *Engine) GetRecord(ctx context.Context, key szruntime.RecordKey, flags szruntime.Flags) (string, error) {
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineGetRecord(key.DataSource, key.RecordID, int64(flags))
	})
}

// ReevaluateRecord reruns resolution for one record.
func (g *Engine) ReevaluateRecord(ctx context.Context, key szruntime.RecordKey, flags szruntime.Flags) (string, error) {
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineReevaluateRecord(key.DataSource, key.RecordID, int64(flags))
	})
}

// ReevaluateEntity reruns resolution for every record of an entity.
func (g *Engine) ReevaluateEntity(ctx context.Context, id szruntime.EntityID, flags szruntime.Flags) (string, error) {
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineReevaluateEntity(int64(id), int64(flags))
	})
}

// SearchByAttributes finds entities matching a JSON attribute document. The
// search profile selects a server-defined scoring profile; empty means the
// default.
func (g *Engine) SearchByAttributes(ctx context.Context, attributes, searchProfile string, flags szruntime.Flags) (string, error) {
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineSearchByAttributes(attributes, searchProfile, int64(flags))
	})
}

// WhySearch explains how a search attribute document relates to one entity.
func (g *Engine) WhySearch(ctx context.Context, attributes string, id szruntime.EntityID, searchProfile string, flags szruntime.Flags) (string, error) {
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineWhySearch(attributes, int64(id), searchProfile, int64(flags))
	})
}

// GetEntity returns a resolved entity addressed directly by id or through
// one of its records.
func (g *Engine) GetEntity(ctx context.Context, ref szruntime.EntityRef, flags szruntime.Flags) (string, error) {
	if key, ok := ref.Record(); ok {
		return g.text(ctx, func(api native.API) native.StringResult {
			return api.EngineGetEntityByRecordID(key.DataSource, key.RecordID, int64(flags))
		})
	}
	id, _ := ref.EntityID()
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineGetEntityByEntityID(int64(id), int64(flags))
	})
}

// FindInterestingEntities reports entities flagged as interesting relative to
// the referenced one.
func (g *Engine) FindInterestingEntities(ctx context.Context, ref szruntime.EntityRef, flags szruntime.Flags) (string, error) {
	if key, ok := ref.Record(); ok {
		return g.text(ctx, func(api native.API) native.StringResult {
			return api.EngineFindInterestingEntitiesByRecordID(key.DataSource, key.RecordID, int64(flags))
		})
	}
	id, _ := ref.EntityID()
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineFindInterestingEntitiesByEntityID(int64(id), int64(flags))
	})
}

// FindPath searches for a relationship path between two entities, at most
// maxDegrees hops long. Entities in avoid are sidestepped (excluded outright
// with szruntime.FindPathStrictAvoid); when requiredDataSources is non-empty
// the path must touch an entity holding a record from one of them.
func (g *Engine) FindPath(ctx context.Context, start, end szruntime.EntityID, maxDegrees int64, avoid []szruntime.EntityID, requiredDataSources []string, flags szruntime.Flags) (string, error) {
	avoidJSON := entityListJSON(avoid)
	requiredJSON := dataSourceListJSON(requiredDataSources)
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineFindPathByEntityID(int64(start), int64(end), maxDegrees, avoidJSON, requiredJSON, int64(flags))
	})
}

// FindNetwork returns the relationship network around a set of entities.
func (g *Engine) FindNetwork(ctx context.Context, ids []szruntime.EntityID, maxDegrees, buildOutDegree, maxEntities int64, flags szruntime.Flags) (string, error) {
	listJSON := entityListJSON(ids)
	if listJSON == "" {
		listJSON = `{"ENTITIES":[]}`
	}
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineFindNetworkByEntityID(listJSON, maxDegrees, buildOutDegree, maxEntities, int64(flags))
	})
}

// WhyEntities explains the relationship between two resolved entities.
func (g *Engine) WhyEntities(ctx context.Context, first, second szruntime.EntityID, flags szruntime.Flags) (string, error) {
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineWhyEntities(int64(first), int64(second), int64(flags))
	})
}

// WhyRecords explains how two records relate.
func (g *Engine) WhyRecords(ctx context.Context, first, second szruntime.RecordKey, flags szruntime.Flags) (string, error) {
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineWhyRecords(first.DataSource, first.RecordID, second.DataSource, second.RecordID, int64(flags))
	})
}

// WhyRecordInEntity explains why a record belongs to its resolved entity.
func (g *Engine) WhyRecordInEntity(ctx context.Context, key szruntime.RecordKey, flags szruntime.Flags) (string, error) {
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineWhyRecordInEntity(key.DataSource, key.RecordID, int64(flags))
	})
}

// HowEntity reconstructs the resolution steps that assembled an entity.
func (g *Engine) HowEntity(ctx context.Context, id szruntime.EntityID, flags szruntime.Flags) (string, error) {
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineHowEntityByEntityID(int64(id), int64(flags))
	})
}

// GetVirtualEntity resolves a hypothetical entity from a set of records
// without persisting anything.
func (g *Engine) GetVirtualEntity(ctx context.Context, keys []szruntime.RecordKey, flags szruntime.Flags) (string, error) {
	listJSON := recordKeyListJSON(keys)
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineGetVirtualEntityByRecordID(listJSON, int64(flags))
	})
}

// ProcessRedoRecord applies one queued redo record.
func (g *Engine) ProcessRedoRecord(ctx context.Context, redoRecord string, flags szruntime.Flags) (string, error) {
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineProcessRedoRecord(redoRecord, int64(flags))
	})
}

// GetRedoRecord pops the next queued redo record, empty when the queue is
// empty.
func (g *Engine) GetRedoRecord(ctx context.Context) (string, error) {
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineGetRedoRecord()
	})
}

// CountRedoRecords returns the number of queued redo records.
func (g *Engine) CountRedoRecords(ctx context.Context) (int64, error) {
	var count int64
	err := g.handle.Call(ctx, func(api native.API) error {
		n := api.EngineCountRedoRecords()
		if n < 0 {
			return g.handle.Check(g.sub, n)
		}
		count = n
		return nil
	})
	return count, err
}

// ExportJSONEntityReport opens an export of all resolved entities, one JSON
// document per FetchNext line. Close the handle when done.
func (g *Engine) ExportJSONEntityReport(ctx context.Context, flags szruntime.Flags) (szruntime.ExportHandle, error) {
	h, err := g.opaque(ctx, func(api native.API) native.HandleResult {
		return api.EngineExportJSONEntityReport(int64(flags))
	})
	return szruntime.ExportHandle(h), err
}

// ExportCSVEntityReport opens a CSV export restricted to the given columns;
// empty or "*" selects all of them. The first FetchNext line is the header.
func (g *Engine) ExportCSVEntityReport(ctx context.Context, columnList string, flags szruntime.Flags) (szruntime.ExportHandle, error) {
	h, err := g.opaque(ctx, func(api native.API) native.HandleResult {
		return api.EngineExportCSVEntityReport(columnList, int64(flags))
	})
	return szruntime.ExportHandle(h), err
}

// FetchNext returns the next line of an open export, empty at the end of the
// report.
func (g *Engine) FetchNext(ctx context.Context, h szruntime.ExportHandle) (string, error) {
	return g.text(ctx, func(api native.API) native.StringResult {
		return api.EngineFetchNext(uintptr(h))
	})
}

// CloseExport releases an export handle. The handle is invalid afterwards.
func (g *Engine) CloseExport(ctx context.Context, h szruntime.ExportHandle) error {
	return g.rc(ctx, func(api native.API) int64 {
		return api.EngineCloseExportReport(uintptr(h))
	})
}

// entityListJSON renders ids as the native entity list document, empty for an
// empty set so the native call reads it as "no constraint".
func entityListJSON(ids []szruntime.EntityID) string {
	if len(ids) == 0 {
		return ""
	}
	type item struct {
		EntityID int64 `json:"ENTITY_ID"`
	}
	list := struct {
		Entities []item `json:"ENTITIES"`
	}{Entities: make([]item, 0, len(ids))}
	for _, id := range ids {
		list.Entities = append(list.Entities, item{EntityID: int64(id)})
	}
	out, err := json.Marshal(list)
	if err != nil {
		return ""
	}
	return string(out)
}

func dataSourceListJSON(codes []string) string {
	if len(codes) == 0 {
		return ""
	}
	list := struct {
		DataSources []string `json:"DATA_SOURCES"`
	}{DataSources: codes}
	out, err := json.Marshal(list)
	if err != nil {
		return ""
	}
	return string(out)
}

func recordKeyListJSON(keys []szruntime.RecordKey) string {
	type item struct {
		DataSource string `json:"DATA_SOURCE"`
		RecordID   string `json:"RECORD_ID"`
	}
	list := struct {
		Records []item `json:"RECORDS"`
	}{Records: make([]item, 0, len(keys))}
	for _, k := range keys {
		list.Records = append(list.Records, item{DataSource: k.DataSource, RecordID: k.RecordID})
	}
	out, err := json.Marshal(list)
	if err != nil {
		return `{"RECORDS":[]}`
	}
	return string(out)
}
