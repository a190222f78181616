package domain

import "errors"

var (
	// ErrSnapshotNotFound is returned when a stage's input snapshot does not exist
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrCatalogFailure is returned when a catalog page request fails
	ErrCatalogFailure = errors.New("catalog request failed")

	// ErrInvalidConfig is returned when stage configuration is inconsistent
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrRunInProgress is returned when a pipeline run is requested while another is active
	ErrRunInProgress = errors.New("pipeline run already in progress")

	// ErrProductNotFound is returned when a product code is not present in a snapshot
	ErrProductNotFound = errors.New("product not found")
)
