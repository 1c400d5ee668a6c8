package facts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmount(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"json number", 1200000.0, 1200000},
		{"int", 50000, 50000},
		{"int64", int64(75000), 75000},
		{"float32", float32(2.5), 2.5},
		{"json.Number", json.Number("123456.78"), 123456.78},
		{"plain string", "90000", 90000},
		{"string with commas", "12,50,000", 1250000},
		{"padded string", "  42000 ", 42000},
		{"garbage string", "around fifty thousand", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
		{"map", map[string]any{"amount": 1}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Amount(tc.in))
		})
	}
}
