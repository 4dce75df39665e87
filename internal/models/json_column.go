package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// scanJSON decodes a JSON column into dst. It reports false for SQL NULL so
// the caller can pick its own empty value.
func scanJSON(column string, src, dst any) (bool, error) {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return false, nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return false, fmt.Errorf("%s: unsupported column type %T", column, src)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("%s: %w", column, err)
	}
	return true, nil
}

func jsonValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
