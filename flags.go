package szruntime

import (
	"strconv"
	"strings"
)

// Flags is the 64-bit option set passed to engine operations. The bit
// positions match the native library's published flag values, so Flags can be
// handed to the native boundary unchanged.
type Flags uint64

// Primitive flag bits. Bits 0-3 double as search result inclusion flags, see
// the Search aliases below.
const (
	// Export flags (bits 0-5)
	ExportIncludeMultiRecordEntities  Flags = 1 << 0
	ExportIncludePossiblySame         Flags = 1 << 1
	ExportIncludePossiblyRelated      Flags = 1 << 2
	ExportIncludeNameOnly             Flags = 1 << 3
	ExportIncludeDisclosed            Flags = 1 << 4
	ExportIncludeSingleRecordEntities Flags = 1 << 5

	// Entity relation flags (bits 6-9)
	EntityIncludePossiblySameRelations    Flags = 1 << 6
	EntityIncludePossiblyRelatedRelations Flags = 1 << 7
	EntityIncludeNameOnlyRelations        Flags = 1 << 8
	EntityIncludeDisclosedRelations       Flags = 1 << 9

	// Entity feature flags (bits 10-11)
	EntityIncludeAllFeatures            Flags = 1 << 10
	EntityIncludeRepresentativeFeatures Flags = 1 << 11

	// Entity name and record flags (bits 12-16, 18; bit 17 is unused)
	EntityIncludeEntityName         Flags = 1 << 12
	EntityIncludeRecordSummary      Flags = 1 << 13
	EntityIncludeRecordData         Flags = 1 << 14
	EntityIncludeRecordMatchingInfo Flags = 1 << 15
	EntityIncludeRecordJSONData     Flags = 1 << 16
	EntityIncludeRecordFeatures     Flags = 1 << 18

	// Related entity flags (bits 19-22)
	EntityIncludeRelatedEntityName    Flags = 1 << 19
	EntityIncludeRelatedMatchingInfo  Flags = 1 << 20
	EntityIncludeRelatedRecordSummary Flags = 1 << 21
	EntityIncludeRelatedRecordData    Flags = 1 << 22

	// Internal/feature flags (bits 23-24)
	EntityIncludeInternalFeatures Flags = 1 << 23
	EntityIncludeFeatureStats     Flags = 1 << 24

	// Find path flags (bits 25, 30)
	FindPathStrictAvoid         Flags = 1 << 25
	FindPathIncludeMatchingInfo Flags = 1 << 30

	// Scoring and stats flags (bits 26-27)
	IncludeFeatureScores Flags = 1 << 26
	SearchIncludeStats   Flags = 1 << 27

	// Record type flags (bits 28-29)
	EntityIncludeRecordTypes        Flags = 1 << 28
	EntityIncludeRelatedRecordTypes Flags = 1 << 29

	// Additional entity record flags (bits 31, 35-36, 39)
	EntityIncludeRecordUnmappedData   Flags = 1 << 31
	EntityIncludeRecordFeatureDetails Flags = 1 << 35
	EntityIncludeRecordFeatureStats   Flags = 1 << 36
	EntityIncludeRecordDates          Flags = 1 << 39

	// Search and network flags (bits 32-34, 37-38)
	SearchIncludeAllCandidates     Flags = 1 << 32
	FindNetworkIncludeMatchingInfo Flags = 1 << 33
	IncludeMatchKeyDetails         Flags = 1 << 34
	SearchIncludeRequest           Flags = 1 << 37
	SearchIncludeRequestDetails    Flags = 1 << 38

	// With info flag (bit 62)
	WithInfo Flags = 1 << 62
)

// Search flags that alias export flags (bits 0-3)
const (
	SearchIncludeResolved        = ExportIncludeMultiRecordEntities
	SearchIncludePossiblySame    = ExportIncludePossiblySame
	SearchIncludePossiblyRelated = ExportIncludePossiblyRelated
	SearchIncludeNameOnly        = ExportIncludeNameOnly
)

// Composite flags
const (
	NoFlags Flags = 0

	ExportIncludeAllEntities = ExportIncludeMultiRecordEntities |
		ExportIncludeSingleRecordEntities

	ExportIncludeAllHavingRelationships = ExportIncludePossiblySame |
		ExportIncludePossiblyRelated |
		ExportIncludeNameOnly |
		ExportIncludeDisclosed

	EntityIncludeAllRelations = EntityIncludePossiblySameRelations |
		EntityIncludePossiblyRelatedRelations |
		EntityIncludeNameOnlyRelations |
		EntityIncludeDisclosedRelations

	SearchIncludeAllEntities = SearchIncludeResolved |
		SearchIncludePossiblySame |
		SearchIncludePossiblyRelated |
		SearchIncludeNameOnly

	RecordAllFlags = EntityIncludeInternalFeatures |
		EntityIncludeRecordFeatures |
		EntityIncludeRecordFeatureDetails |
		EntityIncludeRecordFeatureStats |
		EntityIncludeRecordDates |
		EntityIncludeRecordJSONData |
		EntityIncludeRecordUnmappedData

	RecordPreviewAllFlags = EntityIncludeInternalFeatures |
		EntityIncludeRecordFeatures |
		EntityIncludeRecordFeatureDetails |
		EntityIncludeRecordFeatureStats |
		EntityIncludeRecordJSONData |
		EntityIncludeRecordUnmappedData

	EntityCoreFlags = EntityIncludeRepresentativeFeatures |
		EntityIncludeEntityName |
		EntityIncludeRecordSummary |
		EntityIncludeRecordData |
		EntityIncludeRecordMatchingInfo
)

// Operation defaults
const (
	RecordDefaultFlags        = EntityIncludeRecordJSONData
	RecordPreviewDefaultFlags = EntityIncludeRecordFeatureDetails

	EntityDefaultFlags = EntityCoreFlags |
		EntityIncludeAllRelations |
		EntityIncludeRelatedEntityName |
		EntityIncludeRelatedRecordSummary |
		EntityIncludeRelatedMatchingInfo

	EntityBriefDefaultFlags = EntityIncludeAllRelations |
		EntityIncludeRecordMatchingInfo |
		EntityIncludeRelatedMatchingInfo

	ExportDefaultFlags = ExportIncludeAllEntities | EntityDefaultFlags

	FindPathDefaultFlags = FindPathIncludeMatchingInfo |
		EntityIncludeEntityName |
		EntityIncludeRecordSummary

	FindNetworkDefaultFlags = FindNetworkIncludeMatchingInfo |
		EntityIncludeEntityName |
		EntityIncludeRecordSummary

	SearchByAttributesAll = SearchIncludeAllEntities |
		SearchIncludeStats |
		EntityIncludeRepresentativeFeatures |
		EntityIncludeEntityName |
		EntityIncludeRecordSummary |
		IncludeFeatureScores

	SearchByAttributesStrong = SearchIncludeResolved |
		SearchIncludePossiblySame |
		SearchIncludeStats |
		EntityIncludeRepresentativeFeatures |
		EntityIncludeEntityName |
		EntityIncludeRecordSummary |
		IncludeFeatureScores

	SearchByAttributesMinimalAll    = SearchIncludeAllEntities | SearchIncludeStats
	SearchByAttributesMinimalStrong = SearchIncludeResolved |
		SearchIncludePossiblySame |
		SearchIncludeStats

	SearchByAttributesDefaultFlags = SearchByAttributesAll

	WhyEntitiesDefaultFlags       = IncludeFeatureScores
	WhyRecordsDefaultFlags        = IncludeFeatureScores
	WhyRecordInEntityDefaultFlags = IncludeFeatureScores
	WhySearchDefaultFlags         = IncludeFeatureScores |
		SearchIncludeRequestDetails |
		SearchIncludeStats

	HowEntityDefaultFlags = IncludeFeatureScores
	HowAllFlags           = IncludeMatchKeyDetails | IncludeFeatureScores

	VirtualEntityDefaultFlags = EntityCoreFlags
	VirtualEntityAllFlags     = EntityIncludeAllFeatures |
		EntityIncludeRepresentativeFeatures |
		EntityIncludeEntityName |
		EntityIncludeRecordSummary |
		EntityIncludeRecordTypes |
		EntityIncludeRecordData |
		EntityIncludeRecordMatchingInfo |
		EntityIncludeRecordDates |
		EntityIncludeRecordJSONData |
		EntityIncludeRecordUnmappedData |
		EntityIncludeRecordFeatures |
		EntityIncludeRecordFeatureDetails |
		EntityIncludeRecordFeatureStats |
		EntityIncludeInternalFeatures |
		EntityIncludeFeatureStats

	AddRecordDefaultFlags        = NoFlags
	AddRecordAllFlags            = WithInfo
	DeleteRecordDefaultFlags     = NoFlags
	DeleteRecordAllFlags         = WithInfo
	ReevaluateRecordDefaultFlags = NoFlags
	ReevaluateRecordAllFlags     = WithInfo
	ReevaluateEntityDefaultFlags = NoFlags
	ReevaluateEntityAllFlags     = WithInfo
	RedoDefaultFlags             = NoFlags
	RedoAllFlags                 = WithInfo

	FindInterestingEntitiesDefaultFlags = NoFlags
)

// Has reports whether all bits of f are set
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}

var flagNames = map[Flags]string{
	ExportIncludeMultiRecordEntities:      "ExportIncludeMultiRecordEntities",
	ExportIncludePossiblySame:             "ExportIncludePossiblySame",
	ExportIncludePossiblyRelated:          "ExportIncludePossiblyRelated",
	ExportIncludeNameOnly:                 "ExportIncludeNameOnly",
	ExportIncludeDisclosed:                "ExportIncludeDisclosed",
	ExportIncludeSingleRecordEntities:     "ExportIncludeSingleRecordEntities",
	EntityIncludePossiblySameRelations:    "EntityIncludePossiblySameRelations",
	EntityIncludePossiblyRelatedRelations: "EntityIncludePossiblyRelatedRelations",
	EntityIncludeNameOnlyRelations:        "EntityIncludeNameOnlyRelations",
	EntityIncludeDisclosedRelations:       "EntityIncludeDisclosedRelations",
	EntityIncludeAllFeatures:              "EntityIncludeAllFeatures",
	EntityIncludeRepresentativeFeatures:   "EntityIncludeRepresentativeFeatures",
	EntityIncludeEntityName:               "EntityIncludeEntityName",
	EntityIncludeRecordSummary:            "EntityIncludeRecordSummary",
	EntityIncludeRecordData:               "EntityIncludeRecordData",
	EntityIncludeRecordMatchingInfo:       "EntityIncludeRecordMatchingInfo",
	EntityIncludeRecordJSONData:           "EntityIncludeRecordJSONData",
	EntityIncludeRecordFeatures:           "EntityIncludeRecordFeatures",
	EntityIncludeRelatedEntityName:        "EntityIncludeRelatedEntityName",
	EntityIncludeRelatedMatchingInfo:      "EntityIncludeRelatedMatchingInfo",
	EntityIncludeRelatedRecordSummary:     "EntityIncludeRelatedRecordSummary",
	EntityIncludeRelatedRecordData:        "EntityIncludeRelatedRecordData",
	EntityIncludeInternalFeatures:         "EntityIncludeInternalFeatures",
	EntityIncludeFeatureStats:             "EntityIncludeFeatureStats",
	FindPathStrictAvoid:                   "FindPathStrictAvoid",
	IncludeFeatureScores:                  "IncludeFeatureScores",
	SearchIncludeStats:                    "SearchIncludeStats",
	EntityIncludeRecordTypes:              "EntityIncludeRecordTypes",
	EntityIncludeRelatedRecordTypes:       "EntityIncludeRelatedRecordTypes",
	FindPathIncludeMatchingInfo:           "FindPathIncludeMatchingInfo",
	EntityIncludeRecordUnmappedData:       "EntityIncludeRecordUnmappedData",
	SearchIncludeAllCandidates:            "SearchIncludeAllCandidates",
	FindNetworkIncludeMatchingInfo:        "FindNetworkIncludeMatchingInfo",
	IncludeMatchKeyDetails:                "IncludeMatchKeyDetails",
	EntityIncludeRecordFeatureDetails:     "EntityIncludeRecordFeatureDetails",
	EntityIncludeRecordFeatureStats:       "EntityIncludeRecordFeatureStats",
	SearchIncludeRequest:                  "SearchIncludeRequest",
	SearchIncludeRequestDetails:           "SearchIncludeRequestDetails",
	EntityIncludeRecordDates:              "EntityIncludeRecordDates",
	WithInfo:                              "WithInfo",
}

// String lists the set bits by name in ascending bit order
func (fl Flags) String() string {
	if fl == 0 {
		return "none"
	}
	var parts []string
	for bit := 0; bit < 64; bit++ {
		f := Flags(1) << bit
		if fl&f == 0 {
			continue
		}
		if name, ok := flagNames[f]; ok {
			parts = append(parts, name)
		} else {
			parts = append(parts, "bit"+strconv.Itoa(bit))
		}
	}
	return strings.Join(parts, "|")
}
