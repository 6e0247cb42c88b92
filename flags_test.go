package szruntime

import (
	"strings"
	"testing"
)

func TestFlags_Composites(t *testing.T) {
	tests := []struct {
		name string
		got  Flags
		want Flags
	}{
		{
			name: "ExportIncludeAllEntities",
			got:  ExportIncludeAllEntities,
			want: ExportIncludeMultiRecordEntities | ExportIncludeSingleRecordEntities,
		},
		{
			name: "EntityIncludeAllRelations",
			got:  EntityIncludeAllRelations,
			want: EntityIncludePossiblySameRelations | EntityIncludePossiblyRelatedRelations |
				EntityIncludeNameOnlyRelations | EntityIncludeDisclosedRelations,
		},
		{
			name: "SearchIncludeAllEntities",
			got:  SearchIncludeAllEntities,
			want: SearchIncludeResolved | SearchIncludePossiblySame |
				SearchIncludePossiblyRelated | SearchIncludeNameOnly,
		},
		{
			name: "ExportDefaultFlags",
			got:  ExportDefaultFlags,
			want: ExportIncludeAllEntities | EntityDefaultFlags,
		},
		{
			name: "WhySearchDefaultFlags",
			got:  WhySearchDefaultFlags,
			want: IncludeFeatureScores | SearchIncludeRequestDetails | SearchIncludeStats,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %#x, want %#x", uint64(tt.got), uint64(tt.want))
			}
		})
	}
}

func TestFlags_SearchAliasesShareExportBits(t *testing.T) {
	if SearchIncludeResolved != ExportIncludeMultiRecordEntities {
		t.Error("SearchIncludeResolved must alias bit 0")
	}
	if SearchIncludeNameOnly != ExportIncludeNameOnly {
		t.Error("SearchIncludeNameOnly must alias bit 3")
	}
}

func TestFlags_Has(t *testing.T) {
	fl := EntityDefaultFlags

	if !fl.Has(EntityIncludeEntityName) {
		t.Error("entity defaults should include entity name")
	}
	if !fl.Has(EntityIncludeAllRelations) {
		t.Error("entity defaults should include all relation bits")
	}
	if fl.Has(WithInfo) {
		t.Error("entity defaults should not include WithInfo")
	}
	if !NoFlags.Has(NoFlags) {
		t.Error("empty set contains the empty set")
	}
}

func TestFlags_WithInfoVariants(t *testing.T) {
	for _, fl := range []Flags{AddRecordAllFlags, DeleteRecordAllFlags, ReevaluateRecordAllFlags, RedoAllFlags} {
		if fl != WithInfo {
			t.Errorf("info variant = %#x, want WithInfo", uint64(fl))
		}
	}
	for _, fl := range []Flags{AddRecordDefaultFlags, DeleteRecordDefaultFlags, RedoDefaultFlags} {
		if fl != NoFlags {
			t.Errorf("default = %#x, want NoFlags", uint64(fl))
		}
	}
}

func TestFlags_String(t *testing.T) {
	if got := NoFlags.String(); got != "none" {
		t.Errorf("NoFlags.String() = %q, want none", got)
	}

	s := (EntityIncludeEntityName | WithInfo).String()
	if !strings.Contains(s, "EntityIncludeEntityName") || !strings.Contains(s, "WithInfo") {
		t.Errorf("String() = %q, missing names", s)
	}

	// unnamed bit still prints
	if got := (Flags(1) << 17).String(); got != "bit17" {
		t.Errorf("String() = %q, want bit17", got)
	}
}
