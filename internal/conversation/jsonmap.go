package conversation

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a JSON object column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(v any) error {
	var b []byte
	switch t := v.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case []byte:
		b = t
	case string:
		b = []byte(t)
	default:
		return fmt.Errorf("jsonmap: cannot scan %T", v)
	}
	if len(b) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(b, m)
}
