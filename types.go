package szruntime

import "fmt"

// ConfigID identifies a configuration persisted in the repository registry.
// IDs are assigned by the repository at registration and are never reused,
// even across re-registration of identical content.
type ConfigID int64

// EntityID identifies a resolved entity
type EntityID int64

// FeatureID identifies a feature value stored in the repository
type FeatureID int64

// ExportHandle identifies an open export report. Handles are only valid
// between the export call that produced them and CloseExport.
type ExportHandle int64

// RecordKey identifies a source record by data source code and record id
type RecordKey struct {
	DataSource string
	RecordID   string
}

func (k RecordKey) String() string {
	return k.DataSource + ":" + k.RecordID
}

// EntityRef addresses a resolved entity either directly by entity id or
// indirectly through one of its constituent records.
type EntityRef struct {
	id       EntityID
	record   RecordKey
	byRecord bool
}

// ByEntityID references the entity with the given resolved id
func ByEntityID(id EntityID) EntityRef {
	return EntityRef{id: id}
}

// ByRecord references the entity that holds the given record
func ByRecord(dataSource, recordID string) EntityRef {
	return EntityRef{
		record:   RecordKey{DataSource: dataSource, RecordID: recordID},
		byRecord: true,
	}
}

// EntityID returns the direct entity id, ok is false for record references
func (r EntityRef) EntityID() (EntityID, bool) {
	return r.id, !r.byRecord
}

// Record returns the record key, ok is false for direct id references
func (r EntityRef) Record() (RecordKey, bool) {
	return r.record, r.byRecord
}

func (r EntityRef) String() string {
	if r.byRecord {
		return "record " + r.record.String()
	}
	return fmt.Sprintf("entity %d", r.id)
}
