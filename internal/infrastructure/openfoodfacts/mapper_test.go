package openfoodfacts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalFloat(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  *float64
	}{
		{"nil", nil, nil},
		{"float", 12.5, floatPtr(12.5)},
		{"int", 3, floatPtr(3)},
		{"numeric string", "4.2", floatPtr(4.2)},
		{"padded string", " 7 ", floatPtr(7)},
		{"json number", json.Number("530"), floatPtr(530)},
		{"blank string", "  ", nil},
		{"garbage string", "n/a", nil},
		{"zero", 0.0, floatPtr(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := optionalFloat(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestMapToProductRecord_NovaGroup(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  *int
	}{
		{"valid int", 4, intPtr(4)},
		{"valid string", "1", intPtr(1)},
		{"out of range", 5, nil},
		{"fractional", 2.5, nil},
		{"missing", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := MapToProductRecord(Product{Code: "1", NovaGroup: tt.input})
			if tt.want == nil {
				assert.Nil(t, record.NovaGroup)
				return
			}
			require.NotNil(t, record.NovaGroup)
			assert.Equal(t, *tt.want, *record.NovaGroup)
		})
	}
}

func TestMapToProductRecord_ZeroIsNotAbsent(t *testing.T) {
	record := MapToProductRecord(Product{
		Code: "42",
		Nutriments: map[string]interface{}{
			NutrimentCarbohydrates: 0,
			NutrimentFiber:         "0",
		},
	})

	require.NotNil(t, record.Nutrients.Carbohydrates)
	assert.Equal(t, 0.0, *record.Nutrients.Carbohydrates)
	require.NotNil(t, record.Nutrients.Fiber)
	assert.Equal(t, 2, record.Nutrients.Populated())
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
