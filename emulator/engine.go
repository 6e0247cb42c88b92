package emulator

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	szruntime "github.com/wippyai/sz-runtime"
	"github.com/wippyai/sz-runtime/native"
)

// The emulator's resolution model: every loaded record is its own entity,
// with the entity id minted by the repository on first insert. Search is
// exact attribute match, why and how calls describe that one-record world,
// and path or network traversal returns the trivial result for existing
// entities. Deterministic by construction, which is what the test suites
// need from it.

func (e *Emulator) needEngine() int64 {
	if e.inited[famEngine] {
		return 0
	}
	return e.notInit(famEngine)
}

func hasWithInfo(flags int64) bool {
	return szruntime.Flags(flags).Has(szruntime.WithInfo)
}

func marshalJSON(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(out)
}

func parseRecordData(data string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return map[string]any{}
	}
	return m
}

func entityName(row recordRow) string {
	data := parseRecordData(row.Data)
	for _, key := range []string{"NAME_FULL", "PRIMARY_NAME_FULL", "NAME_ORG"} {
		if s, ok := data[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func entitySummary(row recordRow) map[string]any {
	return map[string]any{
		"RESOLVED_ENTITY": map[string]any{
			"ENTITY_ID":   row.EntityID,
			"ENTITY_NAME": entityName(row),
			"RECORDS": []any{map[string]any{
				"DATA_SOURCE": row.DataSource,
				"RECORD_ID":   row.RecordID,
				"JSON_DATA":   parseRecordData(row.Data),
			}},
		},
	}
}

func entityResponse(row recordRow) string {
	m := entitySummary(row)
	m["RELATED_ENTITIES"] = []any{}
	return marshalJSON(m)
}

func infoResponse(dataSource, recordID string, affected []int64) string {
	ids := make([]any, 0, len(affected))
	for _, id := range affected {
		ids = append(ids, map[string]any{"ENTITY_ID": id})
	}
	m := map[string]any{"AFFECTED_ENTITIES": ids}
	if dataSource != "" {
		m["DATA_SOURCE"] = dataSource
		m["RECORD_ID"] = recordID
	}
	return marshalJSON(m)
}

func (e *Emulator) EnginePrime() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.needEngine()
}

func (e *Emulator) EngineGetActiveConfigID() native.LongResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.LongResult{ReturnCode: rc}
	}
	return native.LongResult{Value: e.active}
}

func (e *Emulator) EngineStats() native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	n, err := e.store.countRecords()
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	return native.StringResult{Response: fmt.Sprintf(
		`{"workload":{"apiVersion":"4.1.0","loadedRecords":%d,"addedRecords":%d,"reevaluations":0,"deletedRecords":0}}`, n, n)}
}

func (e *Emulator) EngineAddRecord(dataSource, recordID, definition string, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	if dataSource == "" || recordID == "" {
		return e.failStr(famEngine, 2, "Data source code and record ID are required")
	}
	data := map[string]any{}
	if err := json.Unmarshal([]byte(definition), &data); err != nil {
		return e.failStr(famEngine, 2, "Invalid record definition: %v", err)
	}
	if ds, ok := data["DATA_SOURCE"].(string); ok && ds != dataSource {
		return e.failStr(famEngine, 23, "Conflicting DATA_SOURCE values '%s' and '%s'", dataSource, ds)
	}
	if rid, ok := data["RECORD_ID"].(string); ok && rid != recordID {
		return e.failStr(famEngine, 23, "Conflicting RECORD_ID values '%s' and '%s'", recordID, rid)
	}
	if _, ok := e.activeCfg.find(dataSource); !ok {
		return e.failStr(famEngine, 27, "Unknown DATA_SOURCE value '%s'", dataSource)
	}
	entityID, err := e.store.upsertRecord(dataSource, recordID, definition)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	if !hasWithInfo(flags) {
		return native.StringResult{}
	}
	return native.StringResult{Response: infoResponse(dataSource, recordID, []int64{entityID})}
}

func (e *Emulator) EngineGetRecordPreview(definition string, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	data := map[string]any{}
	if err := json.Unmarshal([]byte(definition), &data); err != nil {
		return e.failStr(famEngine, 2, "Invalid record definition: %v", err)
	}
	return native.StringResult{Response: `{"FEATURES":{}}`}
}

func (e *Emulator) EngineDeleteRecord(dataSource, recordID string, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	if dataSource == "" || recordID == "" {
		return e.failStr(famEngine, 2, "Data source code and record ID are required")
	}
	if _, ok := e.activeCfg.find(dataSource); !ok {
		return e.failStr(famEngine, 27, "Unknown DATA_SOURCE value '%s'", dataSource)
	}
	row, existed, err := e.store.record(dataSource, recordID)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	// deleting an absent record is not an error
	if existed {
		if _, err := e.store.deleteRecord(dataSource, recordID); err != nil {
			return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
		}
	}
	if !hasWithInfo(flags) {
		return native.StringResult{}
	}
	var affected []int64
	if existed {
		affected = []int64{row.EntityID}
	}
	return native.StringResult{Response: infoResponse(dataSource, recordID, affected)}
}

func (e *Emulator) EngineReevaluateRecord(dataSource, recordID string, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	row, ok, err := e.store.record(dataSource, recordID)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	if !ok {
		return e.failStr(famEngine, 33, "Unknown record: dsrc[%s], record[%s]", dataSource, recordID)
	}
	if !hasWithInfo(flags) {
		return native.StringResult{}
	}
	return native.StringResult{Response: infoResponse(dataSource, recordID, []int64{row.EntityID})}
}

func (e *Emulator) EngineReevaluateEntity(entityID, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	_, ok, err := e.store.entity(entityID)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	if !ok {
		return e.failStr(famEngine, 37, "Unknown resolved entity value '%d'", entityID)
	}
	if !hasWithInfo(flags) {
		return native.StringResult{}
	}
	return native.StringResult{Response: infoResponse("", "", []int64{entityID})}
}

func (e *Emulator) EngineGetEntityByEntityID(entityID, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	row, ok, err := e.store.entity(entityID)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	if !ok {
		return e.failStr(famEngine, 37, "Unknown resolved entity value '%d'", entityID)
	}
	return native.StringResult{Response: entityResponse(row)}
}

func (e *Emulator) EngineGetEntityByRecordID(dataSource, recordID string, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	row, ok, err := e.store.record(dataSource, recordID)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	if !ok {
		return e.failStr(famEngine, 33, "Unknown record: dsrc[%s], record[%s]", dataSource, recordID)
	}
	return native.StringResult{Response: entityResponse(row)}
}

func (e *Emulator) EngineGetRecord(dataSource, recordID string, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	row, ok, err := e.store.record(dataSource, recordID)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	if !ok {
		return e.failStr(famEngine, 33, "Unknown record: dsrc[%s], record[%s]", dataSource, recordID)
	}
	return native.StringResult{Response: marshalJSON(map[string]any{
		"DATA_SOURCE": row.DataSource,
		"RECORD_ID":   row.RecordID,
		"JSON_DATA":   parseRecordData(row.Data),
	})}
}

func (e *Emulator) EngineSearchByAttributes(attributes, searchProfile string, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	attrs := map[string]any{}
	if err := json.Unmarshal([]byte(attributes), &attrs); err != nil {
		return e.failStr(famEngine, 2, "Invalid search attributes: %v", err)
	}
	if len(attrs) == 0 {
		return e.failStr(famEngine, 2, "No search attributes provided")
	}
	rows, err := e.store.records()
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}

	matches := make([]any, 0)
	for _, row := range rows {
		data := parseRecordData(row.Data)
		if matchesAttributes(data, attrs) {
			matches = append(matches, map[string]any{
				"MATCH_INFO": map[string]any{
					"MATCH_LEVEL_CODE": "RESOLVED",
					"MATCH_KEY":        "+EXACT",
				},
				"ENTITY": entitySummary(row),
			})
		}
	}
	return native.StringResult{Response: marshalJSON(map[string]any{
		"RESOLVED_ENTITIES": matches,
	})}
}

// matchesAttributes reports whether every search attribute is present in the
// record with the same value. Values compare after string normalization, so
// a numeric 1001 matches the string "1001".
func matchesAttributes(data, attrs map[string]any) bool {
	for k, want := range attrs {
		have, ok := data[k]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", have) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

func (e *Emulator) EngineWhySearch(attributes string, entityID int64, searchProfile string, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	attrs := map[string]any{}
	if err := json.Unmarshal([]byte(attributes), &attrs); err != nil {
		return e.failStr(famEngine, 2, "Invalid search attributes: %v", err)
	}
	row, ok, err := e.store.entity(entityID)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	if !ok {
		return e.failStr(famEngine, 37, "Unknown resolved entity value '%d'", entityID)
	}
	key := ""
	if matchesAttributes(parseRecordData(row.Data), attrs) {
		key = "+EXACT"
	}
	return native.StringResult{Response: marshalJSON(map[string]any{
		"WHY_RESULTS": []any{map[string]any{
			"ENTITY_ID":  entityID,
			"MATCH_INFO": map[string]any{"WHY_KEY": key},
		}},
		"ENTITIES": []any{entitySummary(row)},
	})}
}

func (e *Emulator) EngineFindInterestingEntitiesByEntityID(entityID, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	if _, ok, err := e.store.entity(entityID); err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	} else if !ok {
		return e.failStr(famEngine, 37, "Unknown resolved entity value '%d'", entityID)
	}
	return native.StringResult{Response: `{"INTERESTING_ENTITIES":{"ENTITIES":[]}}`}
}

func (e *Emulator) EngineFindInterestingEntitiesByRecordID(dataSource, recordID string, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	if _, ok, err := e.store.record(dataSource, recordID); err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	} else if !ok {
		return e.failStr(famEngine, 33, "Unknown record: dsrc[%s], record[%s]", dataSource, recordID)
	}
	return native.StringResult{Response: `{"INTERESTING_ENTITIES":{"ENTITIES":[]}}`}
}

type entityIDList struct {
	Entities []struct {
		EntityID int64 `json:"ENTITY_ID"`
	} `json:"ENTITIES"`
}

type dataSourceList struct {
	DataSources []string `json:"DATA_SOURCES"`
}

func (e *Emulator) EngineFindPathByEntityID(startEntityID, endEntityID, maxDegrees int64, avoidEntityIDs, requiredDataSources string, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	start, ok, err := e.store.entity(startEntityID)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	if !ok {
		return e.failStr(famEngine, 37, "Unknown resolved entity value '%d'", startEntityID)
	}
	end, ok, err := e.store.entity(endEntityID)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	if !ok {
		return e.failStr(famEngine, 37, "Unknown resolved entity value '%d'", endEntityID)
	}

	avoided := map[int64]bool{}
	if avoidEntityIDs != "" {
		var list entityIDList
		if err := json.Unmarshal([]byte(avoidEntityIDs), &list); err != nil {
			return e.failStr(famEngine, 2, "Invalid avoid entity list: %v", err)
		}
		for _, it := range list.Entities {
			avoided[it.EntityID] = true
		}
	}
	required := map[string]bool{}
	if requiredDataSources != "" {
		var list dataSourceList
		if err := json.Unmarshal([]byte(requiredDataSources), &list); err != nil {
			return e.failStr(famEngine, 2, "Invalid required data source list: %v", err)
		}
		for _, ds := range list.DataSources {
			required[ds] = true
		}
	}

	// Trivial path model: directly connected endpoints, unless a strict
	// avoidance or a required data source rules the pair out.
	path := []int64{startEntityID}
	if endEntityID != startEntityID {
		path = append(path, endEntityID)
	}
	strict := szruntime.Flags(flags).Has(szruntime.FindPathStrictAvoid)
	if strict && (avoided[startEntityID] || avoided[endEntityID]) {
		path = nil
	}
	if len(required) > 0 && !required[start.DataSource] && !required[end.DataSource] {
		path = nil
	}
	if maxDegrees < 1 && endEntityID != startEntityID {
		path = nil
	}

	pathIDs := make([]any, 0, len(path))
	for _, id := range path {
		pathIDs = append(pathIDs, id)
	}
	entities := []any{entitySummary(start)}
	if endEntityID != startEntityID {
		entities = append(entities, entitySummary(end))
	}
	return native.StringResult{Response: marshalJSON(map[string]any{
		"ENTITY_PATHS": []any{map[string]any{
			"START_ENTITY_ID": startEntityID,
			"END_ENTITY_ID":   endEntityID,
			"ENTITIES":        pathIDs,
		}},
		"ENTITIES": entities,
	})}
}

func (e *Emulator) EngineFindNetworkByEntityID(entityIDs string, maxDegrees, buildOutDegree, maxEntities, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	var list entityIDList
	if err := json.Unmarshal([]byte(entityIDs), &list); err != nil {
		return e.failStr(famEngine, 2, "Invalid entity list: %v", err)
	}
	if len(list.Entities) == 0 {
		return e.failStr(famEngine, 2, "Entity list is empty")
	}

	entities := make([]any, 0, len(list.Entities))
	for _, it := range list.Entities {
		row, ok, err := e.store.entity(it.EntityID)
		if err != nil {
			return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
		}
		if !ok {
			return e.failStr(famEngine, 37, "Unknown resolved entity value '%d'", it.EntityID)
		}
		if maxEntities > 0 && int64(len(entities)) >= maxEntities {
			continue
		}
		entities = append(entities, entitySummary(row))
	}
	return native.StringResult{Response: marshalJSON(map[string]any{
		"ENTITY_PATHS": []any{},
		"ENTITIES":     entities,
	})}
}

func (e *Emulator) EngineWhyEntities(entityID1, entityID2, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	row1, ok, err := e.store.entity(entityID1)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	if !ok {
		return e.failStr(famEngine, 37, "Unknown resolved entity value '%d'", entityID1)
	}
	row2, ok, err := e.store.entity(entityID2)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	if !ok {
		return e.failStr(famEngine, 37, "Unknown resolved entity value '%d'", entityID2)
	}

	key := ""
	if entityID1 == entityID2 {
		key = "+SAME_ENTITY"
	}
	entities := []any{entitySummary(row1)}
	if entityID1 != entityID2 {
		entities = append(entities, entitySummary(row2))
	}
	return native.StringResult{Response: marshalJSON(map[string]any{
		"WHY_RESULTS": []any{map[string]any{
			"ENTITY_ID":   entityID1,
			"ENTITY_ID_2": entityID2,
			"MATCH_INFO":  map[string]any{"WHY_KEY": key},
		}},
		"ENTITIES": entities,
	})}
}

func (e *Emulator) EngineWhyRecords(dataSource1, recordID1, dataSource2, recordID2 string, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	row1, ok, err := e.store.record(dataSource1, recordID1)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	if !ok {
		return e.failStr(famEngine, 33, "Unknown record: dsrc[%s], record[%s]", dataSource1, recordID1)
	}
	row2, ok, err := e.store.record(dataSource2, recordID2)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	if !ok {
		return e.failStr(famEngine, 33, "Unknown record: dsrc[%s], record[%s]", dataSource2, recordID2)
	}

	key := ""
	if row1.EntityID == row2.EntityID {
		key = "+SAME_ENTITY"
	}
	entities := []any{entitySummary(row1)}
	if row1.EntityID != row2.EntityID {
		entities = append(entities, entitySummary(row2))
	}
	return native.StringResult{Response: marshalJSON(map[string]any{
		"WHY_RESULTS": []any{map[string]any{
			"INTERNAL_ID":   row1.EntityID,
			"ENTITY_ID":     row1.EntityID,
			"INTERNAL_ID_2": row2.EntityID,
			"ENTITY_ID_2":   row2.EntityID,
			"MATCH_INFO":    map[string]any{"WHY_KEY": key},
		}},
		"ENTITIES": entities,
	})}
}

func (e *Emulator) EngineWhyRecordInEntity(dataSource, recordID string, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	row, ok, err := e.store.record(dataSource, recordID)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	if !ok {
		return e.failStr(famEngine, 33, "Unknown record: dsrc[%s], record[%s]", dataSource, recordID)
	}
	return native.StringResult{Response: marshalJSON(map[string]any{
		"WHY_RESULTS": []any{map[string]any{
			"INTERNAL_ID": row.EntityID,
			"ENTITY_ID":   row.EntityID,
			"MATCH_INFO":  map[string]any{"WHY_KEY": "+SAME_ENTITY"},
		}},
		"ENTITIES": []any{entitySummary(row)},
	})}
}

func (e *Emulator) EngineHowEntityByEntityID(entityID, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	row, ok, err := e.store.entity(entityID)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	if !ok {
		return e.failStr(famEngine, 37, "Unknown resolved entity value '%d'", entityID)
	}
	return native.StringResult{Response: marshalJSON(map[string]any{
		"HOW_RESULTS": map[string]any{
			"RESOLUTION_STEPS": []any{},
			"FINAL_STATE": map[string]any{
				"NEED_REEVALUATION": 0,
				"VIRTUAL_ENTITIES": []any{map[string]any{
					"VIRTUAL_ENTITY_ID": "V1",
					"MEMBER_RECORDS": []any{map[string]any{
						"INTERNAL_ID": row.EntityID,
						"RECORDS": []any{map[string]any{
							"DATA_SOURCE": row.DataSource,
							"RECORD_ID":   row.RecordID,
						}},
					}},
				}},
			},
		},
	})}
}

type recordKeyList struct {
	Records []struct {
		DataSource string `json:"DATA_SOURCE"`
		RecordID   string `json:"RECORD_ID"`
	} `json:"RECORDS"`
}

func (e *Emulator) EngineGetVirtualEntityByRecordID(recordKeys string, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	var list recordKeyList
	if err := json.Unmarshal([]byte(recordKeys), &list); err != nil {
		return e.failStr(famEngine, 2, "Invalid record key list: %v", err)
	}
	if len(list.Records) == 0 {
		return e.failStr(famEngine, 2, "Record key list is empty")
	}

	var members []any
	var first recordRow
	for i, key := range list.Records {
		row, ok, err := e.store.record(key.DataSource, key.RecordID)
		if err != nil {
			return native.StringResult{ReturnCode: e.dbFail(famEngine, err)}
		}
		if !ok {
			return e.failStr(famEngine, 33, "Unknown record: dsrc[%s], record[%s]", key.DataSource, key.RecordID)
		}
		if i == 0 {
			first = row
		}
		members = append(members, map[string]any{
			"DATA_SOURCE": row.DataSource,
			"RECORD_ID":   row.RecordID,
			"JSON_DATA":   parseRecordData(row.Data),
		})
	}
	return native.StringResult{Response: marshalJSON(map[string]any{
		"RESOLVED_ENTITY": map[string]any{
			"ENTITY_ID":   first.EntityID,
			"ENTITY_NAME": entityName(first),
			"RECORDS":     members,
		},
	})}
}

func (e *Emulator) EngineProcessRedoRecord(redoRecord string, flags int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	if redoRecord == "" {
		return e.failStr(famEngine, 2, "Redo record is required")
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(redoRecord), &data); err != nil {
		return e.failStr(famEngine, 2, "Invalid redo record: %v", err)
	}
	if !hasWithInfo(flags) {
		return native.StringResult{}
	}
	return native.StringResult{Response: `{"AFFECTED_ENTITIES":[]}`}
}

func (e *Emulator) EngineGetRedoRecord() native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	// the one-record-one-entity model never queues redo work
	return native.StringResult{}
}

func (e *Emulator) EngineCountRedoRecords() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return rc
	}
	return 0
}

// exportReport is a consumed-once line iterator behind an export handle.
type exportReport struct {
	lines []string
	pos   int
}

func (e *Emulator) EngineExportJSONEntityReport(flags int64) native.HandleResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.HandleResult{ReturnCode: rc}
	}
	rows, err := e.store.records()
	if err != nil {
		return native.HandleResult{ReturnCode: e.dbFail(famEngine, err)}
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, entityResponse(row)+"\n")
	}
	return native.HandleResult{Handle: e.exports.put(&exportReport{lines: lines})}
}

// exportColumns is the full CSV column set; an empty request means all of
// them.
var exportColumns = []string{
	"RESOLVED_ENTITY_ID", "RESOLVED_ENTITY_NAME", "RELATED_ENTITY_ID",
	"MATCH_LEVEL", "MATCH_KEY", "DATA_SOURCE", "RECORD_ID",
}

func (e *Emulator) EngineExportCSVEntityReport(columnList string, flags int64) native.HandleResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.HandleResult{ReturnCode: rc}
	}
	columns := exportColumns
	if columnList != "" && columnList != "*" {
		columns = nil
		for _, c := range strings.Split(columnList, ",") {
			c = strings.TrimSpace(c)
			known := false
			for _, k := range exportColumns {
				if c == k {
					known = true
					break
				}
			}
			if !known {
				return e.failHandle(famEngine, 2, "Invalid export column '%s'", c)
			}
			columns = append(columns, c)
		}
	}
	rows, err := e.store.records()
	if err != nil {
		return native.HandleResult{ReturnCode: e.dbFail(famEngine, err)}
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	w.Write(columns)
	for _, row := range rows {
		values := make([]string, 0, len(columns))
		for _, c := range columns {
			switch c {
			case "RESOLVED_ENTITY_ID":
				values = append(values, fmt.Sprintf("%d", row.EntityID))
			case "RESOLVED_ENTITY_NAME":
				values = append(values, entityName(row))
			case "MATCH_LEVEL":
				values = append(values, "0")
			case "DATA_SOURCE":
				values = append(values, row.DataSource)
			case "RECORD_ID":
				values = append(values, row.RecordID)
			default:
				values = append(values, "")
			}
		}
		w.Write(values)
	}
	w.Flush()

	lines := make([]string, 0)
	for _, line := range strings.SplitAfter(b.String(), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return native.HandleResult{Handle: e.exports.put(&exportReport{lines: lines})}
}

func (e *Emulator) EngineFetchNext(handle uintptr) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	v, ok := e.exports.get(handle)
	if !ok {
		return e.failStr(famEngine, 2, "Invalid export handle [%d]", handle)
	}
	report := v.(*exportReport)
	if report.pos >= len(report.lines) {
		return native.StringResult{}
	}
	line := report.lines[report.pos]
	report.pos++
	return native.StringResult{Response: line}
}

func (e *Emulator) EngineCloseExportReport(handle uintptr) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rc := e.needEngine(); rc != 0 {
		return rc
	}
	if !e.exports.drop(handle) {
		return e.fail(famEngine, 2, "Invalid export handle [%d]", handle)
	}
	return 0
}
