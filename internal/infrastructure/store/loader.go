package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chococrunch/pipeline/internal/domain"
	"github.com/chococrunch/pipeline/pkg/logger"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Config holds relational store settings
type Config struct {
	Driver  string // "sqlite" or "postgres"
	DSN     string
	DataDir string // sqlite database location when DSN is empty
}

// DefaultSQLitePath returns the sqlite database location under a data directory
func DefaultSQLitePath(dataDir string) string {
	return filepath.Join(dataDir, "database", "chococrunch.db")
}

// Store loads engineered datasets into product_info, nutrient_info and derived_metrics
type Store struct {
	db      *sql.DB
	dialect dialect
	log     *logger.Logger
}

// Open connects to the configured database and creates missing tables
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*Store, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	dsn := cfg.DSN
	if d == sqliteDialect && dsn == "" {
		dsn = DefaultSQLitePath(cfg.DataDir)
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.driver, err)
	}
	if d == sqliteDialect {
		// a single writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", d.driver, err)
	}

	s := &Store{db: db, dialect: d, log: log.WithField("component", "store")}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.log.WithField("driver", d.driver).Info("relational store ready")
	return s, nil
}

// DB exposes the underlying connection pool
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Load replaces the contents of all three tables with ds inside one transaction.
// Product codes must be present and unique.
func (s *Store) Load(ctx context.Context, ds domain.EngineeredDataset) (domain.LoadResult, error) {
	var result domain.LoadResult

	seen := make(map[string]bool, ds.Len())
	for _, r := range ds.Records {
		if r.ProductCode == "" {
			return result, fmt.Errorf("record without product code")
		}
		if seen[r.ProductCode] {
			return result, fmt.Errorf("duplicate product code %q", r.ProductCode)
		}
		seen[r.ProductCode] = true
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// children first so foreign keys hold throughout
	for _, table := range []string{tableDerivedMetrics, tableNutrientInfo, tableProductInfo} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return result, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if result.Products, err = s.insertAll(ctx, tx, tableProductInfo, productColumns, ds, productArgs); err != nil {
		return domain.LoadResult{}, err
	}
	if result.Nutrients, err = s.insertAll(ctx, tx, tableNutrientInfo, nutrientColumns(), ds, nutrientArgs); err != nil {
		return domain.LoadResult{}, err
	}
	if result.DerivedMetrics, err = s.insertAll(ctx, tx, tableDerivedMetrics, derivedColumns, ds, derivedArgs); err != nil {
		return domain.LoadResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.LoadResult{}, fmt.Errorf("commit: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"products":        result.Products,
		"nutrients":       result.Nutrients,
		"derived_metrics": result.DerivedMetrics,
	}).Info("tables replaced")

	return result, nil
}

func (s *Store) insertAll(
	ctx context.Context,
	tx *sql.Tx,
	table string,
	columns []string,
	ds domain.EngineeredDataset,
	args func(domain.EngineeredRecord) []interface{},
) (int, error) {
	stmt, err := tx.PrepareContext(ctx, s.dialect.insert(table, columns))
	if err != nil {
		return 0, fmt.Errorf("prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for _, r := range ds.Records {
		if _, err := stmt.ExecContext(ctx, args(r)...); err != nil {
			return 0, fmt.Errorf("insert %s %s: %w", table, r.ProductCode, err)
		}
	}
	return ds.Len(), nil
}

var productColumns = []string{"product_code", "product_name", "brand"}

func productArgs(r domain.EngineeredRecord) []interface{} {
	return []interface{}{r.ProductCode, r.ProductName, nullString(r.Brand)}
}

func nutrientColumns() []string {
	columns := []string{"product_code"}
	for _, col := range domain.NutrientColumns {
		columns = append(columns, string(col))
	}
	return append(columns, "nova_group", "nutrition_score", "nutrition_grade")
}

func nutrientArgs(r domain.EngineeredRecord) []interface{} {
	args := []interface{}{r.ProductCode}
	for _, col := range domain.NutrientColumns {
		args = append(args, nullFloat(r.Nutrients.Get(col)))
	}
	return append(args, nullInt(r.NovaGroup), nullFloat(r.NutritionScore), nullString(r.NutritionGrade))
}

var derivedColumns = []string{
	"product_code",
	"calorie_category",
	"sugar_category",
	"sugar_to_carb_ratio",
	"is_ultra_processed",
	"health_risk_score",
	"brand_size",
}

func derivedArgs(r domain.EngineeredRecord) []interface{} {
	return []interface{}{
		r.ProductCode,
		string(r.CalorieCategory),
		string(r.SugarCategory),
		nullFloat(r.SugarToCarbRatio),
		r.IsUltraProcessed,
		string(r.HealthRiskScore),
		string(r.BrandSize),
	}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
