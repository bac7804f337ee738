package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// StopReason explains why pagination ended.
type StopReason string

// Pagination stop reasons, in the priority they are checked.
const (
	StopEmptyPage    StopReason = "empty_page"
	StopTotalReached StopReason = "total_reached"
	StopMaxPages     StopReason = "max_pages"
	StopError        StopReason = "error"
)

const (
	defaultMaxPages = 10
	defaultPageSize = 100
)

// FetchResult is the outcome of a pagination run. Records is populated even when
// the run aborted, holding everything accumulated before the failure.
type FetchResult struct {
	Records RawDataset
	Pages   int
	Total   int
	Stop    StopReason
}

// Paginator drives a Fetcher page by page until a termination condition holds.
type Paginator struct {
	fetcher  Fetcher
	maxPages int
	logger   *zap.Logger
}

// NewPaginator builds a Paginator bounded by maxPages.
func NewPaginator(fetcher Fetcher, maxPages int, logger *zap.Logger) *Paginator {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Paginator{
		fetcher:  fetcher,
		maxPages: maxPages,
		logger:   logger,
	}
}

// FetchAll requests pages 1..N sequentially and accumulates their records in
// page order. Pagination stops on an empty page, once the API total-count hint
// is reached, or at the configured page bound. Any fetch error aborts the run;
// the partial result is returned together with a *PaginationError.
func (p *Paginator) FetchAll(ctx context.Context, category string, pageSize int) (FetchResult, error) {
	if p.fetcher == nil {
		return FetchResult{Stop: StopError}, fmt.Errorf("paginator has no fetcher")
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	result := FetchResult{Records: RawDataset{}}
	logger := p.logger.With(zap.String("category", category))

	for page := 1; ; page++ {
		resp, err := p.fetcher.Fetch(ctx, PageRequest{
			Category: category,
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			result.Stop = StopError
			logger.Warn("pagination aborted",
				zap.Int("page", page),
				zap.Int("salvaged", len(result.Records)),
				zap.Error(err),
			)
			return result, &PaginationError{Page: page, Err: err}
		}
		result.Pages = page
		if resp.TotalKnown && resp.Total > 0 {
			result.Total = resp.Total
		}

		if len(resp.Records) == 0 {
			result.Stop = StopEmptyPage
			logger.Info("no more records", zap.Int("page", page))
			break
		}
		result.Records = append(result.Records, resp.Records...)
		logger.Debug("page fetched",
			zap.Int("page", page),
			zap.Int("records", len(resp.Records)),
			zap.Int("accumulated", len(result.Records)),
		)

		if result.Total > 0 && len(result.Records) >= result.Total {
			result.Records = result.Records[:result.Total]
			result.Stop = StopTotalReached
			break
		}
		if page >= p.maxPages {
			result.Stop = StopMaxPages
			logger.Info("page bound reached", zap.Int("max_pages", p.maxPages))
			break
		}
	}

	logger.Info("pagination finished",
		zap.Int("pages", result.Pages),
		zap.Int("records", len(result.Records)),
		zap.String("stop", string(result.Stop)),
	)
	return result, nil
}
