package models

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// assignID fills an empty string primary key before insert.
func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// JSONMap encodes v as a JSON column value. Unencodable input yields "{}".
func JSONMap(v any) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("{}")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}

// DecodeMap reads a JSON object column. Empty or invalid input yields an empty map.
func DecodeMap(raw datatypes.JSON) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// DecodeStrings reads a JSON array-of-strings column.
func DecodeStrings(raw datatypes.JSON) []string {
	var out []string
	if len(raw) == 0 {
		return []string{}
	}
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []string{}
	}
	return out
}
