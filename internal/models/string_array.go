package models

import (
	"database/sql/driver"
	"slices"
	"strings"
)

// StringArray is a []string stored as a JSON column. NULL reads back as empty.
type StringArray []string

func (s *StringArray) Scan(src any) error {
	var out []string
	ok, err := scanJSON("StringArray", src, &out)
	if err != nil {
		return err
	}
	if !ok || out == nil {
		out = []string{}
	}
	*s = out
	return nil
}

func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return jsonValue([]string(s))
}

func (s StringArray) Join(sep string) string { return strings.Join(s, sep) }

func (s StringArray) Contains(v string) bool { return slices.Contains(s, v) }
