package crm

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Number is a numeric field as the CRM API returns it. Form values are
// stored verbatim upstream, so the same field can arrive as 1200, "1200"
// or null depending on how the record was created.
type Number struct {
	Value float64
	Valid bool
}

func NumberOf(v float64) Number {
	return Number{Value: v, Valid: true}
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		if v, ok := ParseNumber(raw); ok {
			*n = NumberOf(v)
		}
		return nil
	}

	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		// booleans and objects are left unset
		return nil
	}
	*n = NumberOf(v)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n Number) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// Truthy reports whether the value would display as set. Zero counts as unset.
func (n Number) Truthy() bool {
	return n.Valid && n.Value != 0
}

func ParseNumber(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
