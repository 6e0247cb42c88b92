package emulator

import (
	"encoding/json"
	"strings"

	"github.com/wippyai/sz-runtime/native"
)

func (e *Emulator) ConfigMgrGetConfig(configID int64) native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famConfigMgr] {
		return native.StringResult{ReturnCode: e.notInit(famConfigMgr)}
	}
	definition, ok, err := e.store.config(configID)
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famConfigMgr, err)}
	}
	if !ok {
		return e.failStr(famConfigMgr, 7331, "No engine configuration registered with ID [%d]", configID)
	}
	return native.StringResult{Response: definition}
}

func (e *Emulator) ConfigMgrGetConfigRegistry() native.StringResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famConfigMgr] {
		return native.StringResult{ReturnCode: e.notInit(famConfigMgr)}
	}
	infos, err := e.store.configRegistry()
	if err != nil {
		return native.StringResult{ReturnCode: e.dbFail(famConfigMgr, err)}
	}

	type entry struct {
		ID      int64  `json:"CONFIG_ID"`
		Comment string `json:"CONFIG_COMMENTS"`
		Created string `json:"SYS_CREATE_DT"`
	}
	var b strings.Builder
	b.WriteString(`{"CONFIGS":[`)
	for i, info := range infos {
		if i > 0 {
			b.WriteByte(',')
		}
		raw, _ := json.Marshal(entry{ID: info.ID, Comment: info.Comment, Created: info.Created})
		b.Write(raw)
	}
	b.WriteString(`]}`)
	return native.StringResult{Response: b.String()}
}

// ConfigMgrRegisterConfig stores a definition under a fresh id. Identical
// definitions registered twice get two distinct ids; the registry is a log,
// not a set.
func (e *Emulator) ConfigMgrRegisterConfig(definition, comment string) native.LongResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famConfigMgr] {
		return native.LongResult{ReturnCode: e.notInit(famConfigMgr)}
	}
	if _, err := parseConfigDoc(definition); err != nil {
		return e.failLong(famConfigMgr, 7220, "Configuration document is invalid: %v", err)
	}
	id, err := e.store.registerConfig(definition, comment)
	if err != nil {
		return native.LongResult{ReturnCode: e.dbFail(famConfigMgr, err)}
	}
	return native.LongResult{Value: id}
}

func (e *Emulator) ConfigMgrGetDefaultConfigID() native.LongResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famConfigMgr] {
		return native.LongResult{ReturnCode: e.notInit(famConfigMgr)}
	}
	id, err := e.store.defaultConfigID()
	if err != nil {
		return native.LongResult{ReturnCode: e.dbFail(famConfigMgr, err)}
	}
	return native.LongResult{Value: id}
}

func (e *Emulator) ConfigMgrSetDefaultConfigID(configID int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famConfigMgr] {
		return e.notInit(famConfigMgr)
	}
	if _, ok, err := e.store.config(configID); err != nil {
		return e.dbFail(famConfigMgr, err)
	} else if !ok {
		return e.fail(famConfigMgr, 7331, "No engine configuration registered with ID [%d]", configID)
	}
	if err := e.store.setDefaultConfigID(configID); err != nil {
		return e.dbFail(famConfigMgr, err)
	}
	return 0
}

// ConfigMgrReplaceDefaultConfigID is the guarded move: it only succeeds when
// the caller's view of the current default still holds.
func (e *Emulator) ConfigMgrReplaceDefaultConfigID(currentID, newID int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited[famConfigMgr] {
		return e.notInit(famConfigMgr)
	}
	if _, ok, err := e.store.config(newID); err != nil {
		return e.dbFail(famConfigMgr, err)
	} else if !ok {
		return e.fail(famConfigMgr, 7331, "No engine configuration registered with ID [%d]", newID)
	}
	stored, err := e.store.defaultConfigID()
	if err != nil {
		return e.dbFail(famConfigMgr, err)
	}
	if stored != currentID {
		return e.fail(famConfigMgr, 7245,
			"Current default configuration ID [%d] does not match expected [%d]", stored, currentID)
	}
	if err := e.store.setDefaultConfigID(newID); err != nil {
		return e.dbFail(famConfigMgr, err)
	}
	return 0
}
