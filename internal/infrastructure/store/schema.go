package store

import (
	"fmt"
	"strings"
)

const (
	tableProductInfo    = "product_info"
	tableNutrientInfo   = "nutrient_info"
	tableDerivedMetrics = "derived_metrics"
)

// schema creates the three tables; DOUBLE PRECISION and BOOLEAN are accepted by both drivers
var schema = []string{
	`CREATE TABLE IF NOT EXISTS product_info (
		product_code TEXT PRIMARY KEY,
		product_name TEXT,
		brand        TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS nutrient_info (
		product_code        TEXT PRIMARY KEY REFERENCES product_info (product_code),
		energy_kcal_value   DOUBLE PRECISION,
		carbohydrates_value DOUBLE PRECISION,
		sugars_value        DOUBLE PRECISION,
		fat_value           DOUBLE PRECISION,
		saturated_fat_value DOUBLE PRECISION,
		proteins_value      DOUBLE PRECISION,
		fiber_value         DOUBLE PRECISION,
		salt_value          DOUBLE PRECISION,
		sodium_value        DOUBLE PRECISION,
		nova_group          INTEGER,
		nutrition_score     DOUBLE PRECISION,
		nutrition_grade     TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS derived_metrics (
		product_code        TEXT PRIMARY KEY REFERENCES product_info (product_code),
		calorie_category    TEXT NOT NULL,
		sugar_category      TEXT NOT NULL,
		sugar_to_carb_ratio DOUBLE PRECISION,
		is_ultra_processed  BOOLEAN NOT NULL,
		health_risk_score   TEXT NOT NULL,
		brand_size          TEXT NOT NULL
	)`,
}

// dialect covers the syntax differences between the supported drivers
type dialect struct {
	driver string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

var (
	sqliteDialect   = dialect{driver: "sqlite"}
	postgresDialect = dialect{driver: "postgres", numbered: true}
)

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "", "sqlite":
		return sqliteDialect, nil
	case "postgres":
		return postgresDialect, nil
	}
	return dialect{}, fmt.Errorf("unsupported storage driver %q", driver)
}

// insert builds an INSERT statement for the given columns
func (d dialect) insert(table string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		if d.numbered {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		} else {
			placeholders[i] = "?"
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
}
