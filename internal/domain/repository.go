package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching encoded responses
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CatalogPage is one page of search results from the product catalog
type CatalogPage struct {
	Page     int
	Products []ProductRecord
}

// CatalogClient defines the interface for paging through the remote product catalog
type CatalogClient interface {
	FetchPage(ctx context.Context, page int) (*CatalogPage, error)
}

// SnapshotStore persists the flat-file snapshot produced by each stage.
// Read methods return ErrSnapshotNotFound when the stage has not written its output.
type SnapshotStore interface {
	Exists(stage Stage) bool
	WriteRaw(ds RawDataset) error
	ReadRaw() (RawDataset, error)
	WriteCleaned(ds CleanedDataset) error
	ReadCleaned() (CleanedDataset, error)
	WriteEngineered(ds EngineeredDataset) error
	ReadEngineered() (EngineeredDataset, error)
	WriteReport(report RunReport) error
	ReadReport() (RunReport, error)
}

// Loader populates the relational store from an engineered snapshot
type Loader interface {
	Load(ctx context.Context, ds EngineeredDataset) (LoadResult, error)
}

// LoadResult counts rows written per table
type LoadResult struct {
	Products       int `json:"products"`
	Nutrients      int `json:"nutrients"`
	DerivedMetrics int `json:"derivedMetrics"`
}
