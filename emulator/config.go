package emulator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wippyai/sz-runtime/native"
)

// templateConfig is the baseline configuration issued by ConfigCreate. It
// carries the two data sources every fresh repository knows about and the
// version block readers expect in an exported definition.
const templateConfig = `{"G2_CONFIG":{` +
	`"CFG_DSRC":[` +
	`{"DSRC_ID":1,"DSRC_CODE":"TEST","DSRC_DESC":"Test data source","DSRC_RELY":1,"RETENTION_LEVEL":"Remain_As_Is"},` +
	`{"DSRC_ID":2,"DSRC_CODE":"SEARCH","DSRC_DESC":"Search data source","DSRC_RELY":1,"RETENTION_LEVEL":"Remain_As_Is"}],` +
	`"CONFIG_BASE_VERSION":{"VERSION":"4.1.0","BUILD_VERSION":"4.1.0.25001","BUILD_DATE":"2025-06-01",` +
	`"COMPATIBILITY_VERSION":{"CONFIG_VERSION":"11"}}}}`

// configDoc is a parsed, editable configuration document. The full document
// is retained so sections this emulator does not model survive a load and
// export round trip; only the data source registry is interpreted.
type configDoc struct {
	root map[string]any
}

// parseConfigDoc validates and wraps a configuration definition. The
// document must be a JSON object with a G2_CONFIG section; CFG_DSRC entries
// must carry unique, nonempty DSRC_CODE values.
func parseConfigDoc(definition string) (*configDoc, error) {
	var root map[string]any
	if err := json.Unmarshal([]byte(definition), &root); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	g2, ok := root["G2_CONFIG"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing G2_CONFIG section")
	}
	raw, ok := g2["CFG_DSRC"]
	if !ok {
		g2["CFG_DSRC"] = []any{}
		return &configDoc{root: root}, nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("CFG_DSRC is not an array")
	}
	seen := make(map[string]bool, len(entries))
	for i, it := range entries {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("CFG_DSRC entry %d is not an object", i)
		}
		code, _ := m["DSRC_CODE"].(string)
		if code == "" {
			return nil, fmt.Errorf("CFG_DSRC entry %d has no DSRC_CODE", i)
		}
		if seen[code] {
			return nil, fmt.Errorf("duplicate DSRC_CODE '%s'", code)
		}
		seen[code] = true
	}
	return &configDoc{root: root}, nil
}

func (d *configDoc) g2() map[string]any {
	return d.root["G2_CONFIG"].(map[string]any)
}

func (d *configDoc) sources() []any {
	arr, _ := d.g2()["CFG_DSRC"].([]any)
	return arr
}

type dataSource struct {
	ID   int64  `json:"DSRC_ID"`
	Code string `json:"DSRC_CODE"`
}

// dataSources returns the registry entries in document order.
func (d *configDoc) dataSources() []dataSource {
	entries := d.sources()
	out := make([]dataSource, 0, len(entries))
	for _, it := range entries {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		ds := dataSource{}
		ds.Code, _ = m["DSRC_CODE"].(string)
		if f, ok := m["DSRC_ID"].(float64); ok {
			ds.ID = int64(f)
		}
		out = append(out, ds)
	}
	return out
}

func (d *configDoc) find(code string) (dataSource, bool) {
	for _, ds := range d.dataSources() {
		if ds.Code == code {
			return ds, true
		}
	}
	return dataSource{}, false
}

// register appends a data source and returns its assigned id. Custom
// sources are numbered from 1001 upward, above the template's built-ins.
func (d *configDoc) register(code string) int64 {
	next := int64(1001)
	for _, ds := range d.dataSources() {
		if ds.ID >= next {
			next = ds.ID + 1
		}
	}
	entry := map[string]any{
		"DSRC_ID":         next,
		"DSRC_CODE":       code,
		"DSRC_DESC":       code,
		"DSRC_RELY":       float64(1),
		"RETENTION_LEVEL": "Remain_As_Is",
	}
	d.g2()["CFG_DSRC"] = append(d.sources(), any(entry))
	return next
}

// unregister removes a data source, reporting whether it was present.
func (d *configDoc) unregister(code string) bool {
	entries := d.sources()
	kept := make([]any, 0, len(entries))
	removed := false
	for _, it := range entries {
		if m, ok := it.(map[string]any); ok {
			if c, _ := m["DSRC_CODE"].(string); c == code {
				removed = true
				continue
			}
		}
		kept = append(kept, it)
	}
	d.g2()["CFG_DSRC"] = kept
	return removed
}

// export renders the document as compact JSON.
func (d *configDoc) export() string {
	out, err := json.Marshal(d.root)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// registryJSON renders the data source registry response.
func (d *configDoc) registryJSON() string {
	var b strings.Builder
	b.WriteString(`{"DATA_SOURCES":[`)
	for i, ds := range d.dataSources() {
		if i > 0 {
			b.WriteByte(',')
		}
		entry, _ := json.Marshal(ds)
		b.Write(entry)
	}
	b.WriteString(`]}`)
	return b.String()
}

// --- config family operations ---

func (e *Emulator) ConfigCreate() native.HandleResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famConfig] {
		return native.HandleResult{ReturnCode: e.notInit(famConfig)}
	}
	doc, err := parseConfigDoc(templateConfig)
	if err != nil {
		return e.failHandle(famConfig, 7220, "Template configuration is invalid: %v", err)
	}
	return native.HandleResult{Handle: e.configs.put(doc)}
}

func (e *Emulator) ConfigLoad(definition string) native.HandleResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famConfig] {
		return native.HandleResult{ReturnCode: e.notInit(famConfig)}
	}
	doc, err := parseConfigDoc(definition)
	if err != nil {
		return e.failHandle(famConfig, 7220, "Configuration document is invalid: %v", err)
	}
	return native.HandleResult{Handle: e.configs.put(doc)}
}

// configByHandle resolves a config handle, recording the exception on miss.
func (e *Emulator) configByHandle(h uintptr) (*configDoc, int64) {
	v, ok := e.configs.get(h)
	if !ok {
		return nil, e.fail(famConfig, 2, "Invalid config handle [%d]", h)
	}
	return v.(*configDoc), 0
}

func (e *Emulator) ConfigExport(h uintptr) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famConfig] {
		return native.StringResult{ReturnCode: e.notInit(famConfig)}
	}
	doc, rc := e.configByHandle(h)
	if rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	return native.StringResult{Response: doc.export()}
}

func (e *Emulator) ConfigGetDataSourceRegistry(h uintptr) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famConfig] {
		return native.StringResult{ReturnCode: e.notInit(famConfig)}
	}
	doc, rc := e.configByHandle(h)
	if rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	return native.StringResult{Response: doc.registryJSON()}
}

// dsrcInput is the JSON parameter form shared by the data source calls.
type dsrcInput struct {
	Code string `json:"DSRC_CODE"`
}

func (e *Emulator) ConfigRegisterDataSource(h uintptr, input string) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famConfig] {
		return native.StringResult{ReturnCode: e.notInit(famConfig)}
	}
	doc, rc := e.configByHandle(h)
	if rc != 0 {
		return native.StringResult{ReturnCode: rc}
	}
	var in dsrcInput
	if err := json.Unmarshal([]byte(input), &in); err != nil || in.Code == "" {
		return e.failStr(famConfig, 2, "DSRC_CODE is required: %s", input)
	}
	if ds, ok := doc.find(in.Code); ok {
		// repeated registration is not an error, the existing id is returned
		return native.StringResult{Response: fmt.Sprintf(`{"DSRC_ID":%d}`, ds.ID)}
	}
	id := doc.register(in.Code)
	return native.StringResult{Response: fmt.Sprintf(`{"DSRC_ID":%d}`, id)}
}

func (e *Emulator) ConfigUnregisterDataSource(h uintptr, input string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famConfig] {
		return e.notInit(famConfig)
	}
	doc, rc := e.configByHandle(h)
	if rc != 0 {
		return rc
	}
	var in dsrcInput
	if err := json.Unmarshal([]byte(input), &in); err != nil || in.Code == "" {
		return e.fail(famConfig, 2, "DSRC_CODE is required: %s", input)
	}
	doc.unregister(in.Code)
	return 0
}

func (e *Emulator) ConfigClose(h uintptr) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famConfig] {
		return e.notInit(famConfig)
	}
	if !e.configs.drop(h) {
		return e.fail(famConfig, 2, "Invalid config handle [%d]", h)
	}
	return 0
}
