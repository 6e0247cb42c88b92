package szruntime

import "testing"

func TestEntityRef(t *testing.T) {
	byID := ByEntityID(42)
	if id, ok := byID.EntityID(); !ok || id != 42 {
		t.Errorf("EntityID() = %d, %v", id, ok)
	}
	if _, ok := byID.Record(); ok {
		t.Error("id reference should not expose a record key")
	}
	if got := byID.String(); got != "entity 42" {
		t.Errorf("String() = %q", got)
	}

	byRec := ByRecord("CUSTOMERS", "1001")
	if _, ok := byRec.EntityID(); ok {
		t.Error("record reference should not expose an entity id")
	}
	key, ok := byRec.Record()
	if !ok || key.DataSource != "CUSTOMERS" || key.RecordID != "1001" {
		t.Errorf("Record() = %+v, %v", key, ok)
	}
	if got := byRec.String(); got != "record CUSTOMERS:1001" {
		t.Errorf("String() = %q", got)
	}
}
