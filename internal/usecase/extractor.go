package usecase

import (
	"context"
	"errors"

	"github.com/chococrunch/pipeline/internal/domain"
	"github.com/chococrunch/pipeline/pkg/logger"
)

// Extractor accumulates catalog pages into a RawDataset
type Extractor struct {
	client domain.CatalogClient
	log    *logger.Logger
}

// NewExtractor creates an extractor over a catalog client.
// Request spacing and timeouts are the client's concern.
func NewExtractor(client domain.CatalogClient, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{
		client: client,
		log:    log.WithField("stage", string(domain.StageExtract)),
	}
}

// Extract requests pages 1, 2, ... until at least targetCount records have been
// accumulated or a page comes back empty. Whole pages are kept, so the result
// exceeds targetCount by less than one page.
//
// A failing page ends extraction like an empty page would; everything gathered
// before it is returned. Pages are not retried and records are not deduplicated.
func (e *Extractor) Extract(ctx context.Context, targetCount int) (domain.RawDataset, domain.ExtractReport) {
	report := domain.ExtractReport{TargetCount: targetCount}
	var records []domain.ProductRecord

	for page := 1; ; page++ {
		if len(records) >= targetCount {
			report.StopReason = domain.StopTargetReached
			break
		}

		result, err := e.client.FetchPage(ctx, page)
		report.Pages++
		if err != nil {
			report.LastError = err.Error()
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				report.StopReason = domain.StopCancelled
			} else {
				report.StopReason = domain.StopPageError
			}
			e.log.WithError(err).WithFields(map[string]interface{}{
				"page":        page,
				"accumulated": len(records),
			}).Warn("catalog page failed, keeping records fetched so far")
			break
		}

		if len(result.Products) == 0 {
			report.StopReason = domain.StopEmptyPage
			break
		}

		records = append(records, result.Products...)
		e.log.WithFields(map[string]interface{}{
			"page":        page,
			"fetched":     len(result.Products),
			"accumulated": len(records),
		}).Debug("page accumulated")
	}

	report.Records = len(records)
	e.log.WithFields(map[string]interface{}{
		"records": report.Records,
		"pages":   report.Pages,
		"reason":  report.StopReason,
	}).Info("extraction finished")

	return domain.RawDataset{Records: records}, report
}
