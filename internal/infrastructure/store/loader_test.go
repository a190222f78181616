package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/chococrunch/pipeline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Driver: "sqlite", DataDir: t.TempDir()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func engineeredFixture() domain.EngineeredDataset {
	return domain.EngineeredDataset{Records: []domain.EngineeredRecord{
		{
			ProductRecord: domain.ProductRecord{
				ProductCode: "3046920022606",
				ProductName: "Excellence 70%",
				Brand:       "Lindt",
				Nutrients: domain.Nutrients{
					EnergyKcal:    domain.Float64(566),
					Carbohydrates: domain.Float64(34),
					Sugars:        domain.Float64(29),
					Fat:           domain.Float64(41),
				},
				NovaGroup:      domain.Int(4),
				NutritionGrade: "e",
			},
			CalorieCategory:  domain.CategoryHigh,
			SugarCategory:    domain.CategoryHigh,
			SugarToCarbRatio: domain.Float64(29.0 / 34.0),
			IsUltraProcessed: true,
			HealthRiskScore:  domain.RiskHigh,
			BrandSize:        domain.BrandMajor,
		},
		{
			ProductRecord: domain.ProductRecord{
				ProductCode: "0000000000017",
				ProductName: "Cocoa nibs",
				Nutrients: domain.Nutrients{
					EnergyKcal:    domain.Float64(240),
					Carbohydrates: domain.Float64(0),
					Sugars:        domain.Float64(0),
				},
			},
			CalorieCategory: domain.CategoryLow,
			SugarCategory:   domain.CategoryLow,
			HealthRiskScore: domain.RiskLow,
			BrandSize:       domain.BrandMinor,
		},
	}}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestOpen_CreatesDefaultSQLiteFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(context.Background(), Config{Driver: "sqlite", DataDir: dir}, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.FileExists(t, filepath.Join(dir, "database", "chococrunch.db"))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"}, nil)
	assert.Error(t, err)
}

func TestStore_Load(t *testing.T) {
	s := openTestStore(t)
	ds := engineeredFixture()

	result, err := s.Load(context.Background(), ds)

	require.NoError(t, err)
	assert.Equal(t, domain.LoadResult{Products: 2, Nutrients: 2, DerivedMetrics: 2}, result)
	assert.Equal(t, 2, countRows(t, s.DB(), tableProductInfo))
	assert.Equal(t, 2, countRows(t, s.DB(), tableNutrientInfo))
	assert.Equal(t, 2, countRows(t, s.DB(), tableDerivedMetrics))

	var (
		brand    sql.NullString
		risk     string
		ratio    sql.NullFloat64
		ultra    bool
		sodium   sql.NullFloat64
		nova     sql.NullInt64
		category string
	)
	row := s.DB().QueryRow(`
		SELECT p.brand, d.health_risk_score, d.sugar_to_carb_ratio, d.is_ultra_processed,
		       n.sodium_value, n.nova_group, d.calorie_category
		FROM product_info p
		JOIN nutrient_info n ON n.product_code = p.product_code
		JOIN derived_metrics d ON d.product_code = p.product_code
		WHERE p.product_code = ?`, "3046920022606")
	require.NoError(t, row.Scan(&brand, &risk, &ratio, &ultra, &sodium, &nova, &category))

	assert.Equal(t, "Lindt", brand.String)
	assert.Equal(t, string(domain.RiskHigh), risk)
	assert.True(t, ratio.Valid)
	assert.InDelta(t, 29.0/34.0, ratio.Float64, 1e-12)
	assert.True(t, ultra)
	assert.False(t, sodium.Valid)
	assert.Equal(t, int64(4), nova.Int64)
	assert.Equal(t, string(domain.CategoryHigh), category)

	var nibRatio sql.NullFloat64
	require.NoError(t, s.DB().QueryRow(
		`SELECT sugar_to_carb_ratio FROM derived_metrics WHERE product_code = ?`, "0000000000017").Scan(&nibRatio))
	assert.False(t, nibRatio.Valid, "undefined ratio is stored as NULL")
}

func TestStore_LoadReplacesPreviousContents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Load(ctx, engineeredFixture())
	require.NoError(t, err)

	smaller := engineeredFixture()
	smaller.Records = smaller.Records[:1]
	result, err := s.Load(ctx, smaller)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Products)
	assert.Equal(t, 1, countRows(t, s.DB(), tableProductInfo))
	assert.Equal(t, 1, countRows(t, s.DB(), tableDerivedMetrics))
}

func TestStore_LoadRejectsDuplicateCodes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Load(ctx, engineeredFixture())
	require.NoError(t, err)

	dup := engineeredFixture()
	dup.Records = append(dup.Records, dup.Records[0])
	_, err = s.Load(ctx, dup)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate product code")
	assert.Equal(t, 2, countRows(t, s.DB(), tableProductInfo), "previous load stays intact")
}

func TestDialect_Insert(t *testing.T) {
	columns := []string{"a", "b"}

	assert.Equal(t, "INSERT INTO t (a, b) VALUES (?, ?)", sqliteDialect.insert("t", columns))
	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2)", postgresDialect.insert("t", columns))
}
