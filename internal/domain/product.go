package domain

// NutrientColumn identifies one per-100g nutrient field of a product record
type NutrientColumn string

const (
	ColumnEnergyKcal    NutrientColumn = "energy_kcal_value"
	ColumnCarbohydrates NutrientColumn = "carbohydrates_value"
	ColumnSugars        NutrientColumn = "sugars_value"
	ColumnFat           NutrientColumn = "fat_value"
	ColumnSaturatedFat  NutrientColumn = "saturated_fat_value"
	ColumnProteins      NutrientColumn = "proteins_value"
	ColumnFiber         NutrientColumn = "fiber_value"
	ColumnSalt          NutrientColumn = "salt_value"
	ColumnSodium        NutrientColumn = "sodium_value"
)

// NutrientColumns lists every nutrient column in snapshot order
var NutrientColumns = []NutrientColumn{
	ColumnEnergyKcal,
	ColumnCarbohydrates,
	ColumnSugars,
	ColumnFat,
	ColumnSaturatedFat,
	ColumnProteins,
	ColumnFiber,
	ColumnSalt,
	ColumnSodium,
}

// ParseNutrientColumn resolves a column name, returning false if it is unknown
func ParseNutrientColumn(name string) (NutrientColumn, bool) {
	for _, col := range NutrientColumns {
		if string(col) == name {
			return col, true
		}
	}
	return "", false
}

// Nutrients holds per-100g nutrient values. A nil field means the value is absent.
type Nutrients struct {
	EnergyKcal    *float64 `json:"energyKcal,omitempty"`
	Carbohydrates *float64 `json:"carbohydrates,omitempty"`
	Sugars        *float64 `json:"sugars,omitempty"`
	Fat           *float64 `json:"fat,omitempty"`
	SaturatedFat  *float64 `json:"saturatedFat,omitempty"`
	Proteins      *float64 `json:"proteins,omitempty"`
	Fiber         *float64 `json:"fiber,omitempty"`
	Salt          *float64 `json:"salt,omitempty"`
	Sodium        *float64 `json:"sodium,omitempty"`
}

// Get returns the value of a column, or nil when absent
func (n Nutrients) Get(col NutrientColumn) *float64 {
	switch col {
	case ColumnEnergyKcal:
		return n.EnergyKcal
	case ColumnCarbohydrates:
		return n.Carbohydrates
	case ColumnSugars:
		return n.Sugars
	case ColumnFat:
		return n.Fat
	case ColumnSaturatedFat:
		return n.SaturatedFat
	case ColumnProteins:
		return n.Proteins
	case ColumnFiber:
		return n.Fiber
	case ColumnSalt:
		return n.Salt
	case ColumnSodium:
		return n.Sodium
	}
	return nil
}

// With returns a copy of n with col set to a fresh pointer holding value.
// The receiver is left untouched.
func (n Nutrients) With(col NutrientColumn, value float64) Nutrients {
	v := &value
	switch col {
	case ColumnEnergyKcal:
		n.EnergyKcal = v
	case ColumnCarbohydrates:
		n.Carbohydrates = v
	case ColumnSugars:
		n.Sugars = v
	case ColumnFat:
		n.Fat = v
	case ColumnSaturatedFat:
		n.SaturatedFat = v
	case ColumnProteins:
		n.Proteins = v
	case ColumnFiber:
		n.Fiber = v
	case ColumnSalt:
		n.Salt = v
	case ColumnSodium:
		n.Sodium = v
	}
	return n
}

// Populated counts the nutrient columns that carry a value
func (n Nutrients) Populated() int {
	count := 0
	for _, col := range NutrientColumns {
		if n.Get(col) != nil {
			count++
		}
	}
	return count
}

// ProductRecord is one catalog entry
type ProductRecord struct {
	ProductCode    string    `json:"productCode"`
	ProductName    string    `json:"productName"`
	Brand          string    `json:"brand,omitempty"`
	Nutrients      Nutrients `json:"nutrients"`
	NovaGroup      *int      `json:"novaGroup,omitempty"`      // 1-4, 4 = ultra-processed
	NutritionScore *float64  `json:"nutritionScore,omitempty"` // Nutri-Score points
	NutritionGrade string    `json:"nutritionGrade,omitempty"` // Nutri-Score letter a-e
}

// Float64 returns a pointer to v
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v
func Int(v int) *int { return &v }
