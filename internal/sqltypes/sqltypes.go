// Package sqltypes holds value types shared by records that store structured
// data in single sqlite columns.
package sqltypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONStringSlice stores a list of strings as a JSON array. A nil slice is
// written as an empty array rather than null so existing rows always decode.
type JSONStringSlice []string

func (s JSONStringSlice) Value() (driver.Value, error) {
	if s == nil || len(s) == 0 {
		return "[]", nil
	}

	return json.Marshal(s)
}

func (s *JSONStringSlice) Scan(src interface{}) error {
	switch src := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		if err := json.Unmarshal(src, s); err != nil {
			return fmt.Errorf("sqltypes.JSONStringSlice: could not decode input (%T) as JSON: %w", src, err)
		}
		return nil
	case string:
		if err := json.Unmarshal([]byte(src), s); err != nil {
			return fmt.Errorf("sqltypes.JSONStringSlice: could not decode input (%T) as JSON: %w", src, err)
		}
		return nil
	default:
		return fmt.Errorf("sqltypes.JSONStringSlice: could not scan input type of %T", src)
	}
}
