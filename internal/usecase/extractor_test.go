package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/chococrunch/pipeline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatalog serves fixed pages; pages past the end come back empty
type fakeCatalog struct {
	pages    [][]domain.ProductRecord
	failAt   int
	failWith error
	calls    []int
}

func (f *fakeCatalog) FetchPage(ctx context.Context, page int) (*domain.CatalogPage, error) {
	f.calls = append(f.calls, page)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.failAt == page {
		return nil, f.failWith
	}
	if page > len(f.pages) {
		return &domain.CatalogPage{Page: page}, nil
	}
	return &domain.CatalogPage{Page: page, Products: f.pages[page-1]}, nil
}

func productPage(prefix string, n int) []domain.ProductRecord {
	records := make([]domain.ProductRecord, n)
	for i := range records {
		records[i] = domain.ProductRecord{ProductCode: fmt.Sprintf("%s-%d", prefix, i)}
	}
	return records
}

func TestExtractor_StopsAtTarget(t *testing.T) {
	catalog := &fakeCatalog{pages: [][]domain.ProductRecord{
		productPage("p1", 100),
		productPage("p2", 100),
		productPage("p3", 100),
		productPage("p4", 100),
	}}
	extractor := NewExtractor(catalog, nil)

	ds, report := extractor.Extract(context.Background(), 250)

	// whole pages are kept, so 300 rather than 250
	assert.Equal(t, 300, ds.Len())
	assert.Equal(t, []int{1, 2, 3}, catalog.calls)
	assert.Equal(t, domain.StopTargetReached, report.StopReason)
	assert.Equal(t, 3, report.Pages)
	assert.Equal(t, 300, report.Records)
	assert.Equal(t, "p1-0", ds.Records[0].ProductCode)
	assert.Equal(t, "p3-99", ds.Records[299].ProductCode)
}

func TestExtractor_ExactTargetStopsWithoutExtraRequest(t *testing.T) {
	catalog := &fakeCatalog{pages: [][]domain.ProductRecord{
		productPage("p1", 50),
		productPage("p2", 50),
	}}

	ds, report := NewExtractor(catalog, nil).Extract(context.Background(), 100)

	assert.Equal(t, 100, ds.Len())
	assert.Equal(t, []int{1, 2}, catalog.calls)
	assert.Equal(t, domain.StopTargetReached, report.StopReason)
}

func TestExtractor_StopsOnEmptyPage(t *testing.T) {
	catalog := &fakeCatalog{pages: [][]domain.ProductRecord{
		productPage("p1", 100),
		productPage("p2", 40),
	}}

	ds, report := NewExtractor(catalog, nil).Extract(context.Background(), 12000)

	assert.Equal(t, 140, ds.Len())
	assert.Equal(t, []int{1, 2, 3}, catalog.calls)
	assert.Equal(t, domain.StopEmptyPage, report.StopReason)
	assert.Empty(t, report.LastError)
}

func TestExtractor_PageErrorKeepsAccumulatedRecords(t *testing.T) {
	catalog := &fakeCatalog{
		pages: [][]domain.ProductRecord{
			productPage("p1", 100),
			productPage("p2", 100),
			productPage("p3", 100),
		},
		failAt:   3,
		failWith: fmt.Errorf("%w: status 503", domain.ErrCatalogFailure),
	}

	ds, report := NewExtractor(catalog, nil).Extract(context.Background(), 12000)

	assert.Equal(t, 200, ds.Len())
	assert.Equal(t, []int{1, 2, 3}, catalog.calls, "failed page must not be retried")
	assert.Equal(t, domain.StopPageError, report.StopReason)
	assert.Contains(t, report.LastError, "503")
}

func TestExtractor_FirstPageFailureYieldsEmptyDataset(t *testing.T) {
	catalog := &fakeCatalog{failAt: 1, failWith: errors.New("connection refused")}

	ds, report := NewExtractor(catalog, nil).Extract(context.Background(), 10)

	assert.Equal(t, 0, ds.Len())
	assert.Equal(t, domain.StopPageError, report.StopReason)
}

func TestExtractor_Cancelled(t *testing.T) {
	catalog := &fakeCatalog{pages: [][]domain.ProductRecord{productPage("p1", 10)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ds, report := NewExtractor(catalog, nil).Extract(ctx, 100)

	assert.Equal(t, 0, ds.Len())
	assert.Equal(t, domain.StopCancelled, report.StopReason)
}

func TestExtractor_KeepsDuplicates(t *testing.T) {
	page := productPage("dup", 3)
	catalog := &fakeCatalog{pages: [][]domain.ProductRecord{page, page}}

	ds, _ := NewExtractor(catalog, nil).Extract(context.Background(), 100)

	require.Equal(t, 6, ds.Len())
	assert.Equal(t, ds.Records[0].ProductCode, ds.Records[3].ProductCode)
}
