package audit

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Repository persists and queries decision records.
type Repository interface {
	Insert(ctx context.Context, rec DecisionRecord) (int64, error)
	Window(ctx context.Context, filters Filters, limit, offset int) ([]DecisionRecord, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service coordinates the decision audit log.
type Service struct {
	repo Repository
}

// NewService constructs the audit service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record persists one decision and returns its ID.
func (s *Service) Record(ctx context.Context, rec DecisionRecord) (int64, error) {
	if s.repo == nil {
		return 0, fmt.Errorf("audit: repository not configured")
	}
	if rec.EventID == "" {
		return 0, fmt.Errorf("audit: event id required")
	}
	return s.repo.Insert(ctx, rec)
}

// Timeline fetches decision records with paging. One extra row is requested
// to detect whether a next page exists.
func (s *Service) Timeline(ctx context.Context, filters Filters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := s.repo.Window(ctx, filters, pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	return Result{
		Rows:   rows,
		Paging: PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext},
	}, nil
}

// Cleanup removes records older than the retention period and returns the
// number of rows deleted.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if s.repo == nil {
		return 0, fmt.Errorf("audit: repository not configured")
	}
	if retention <= 0 {
		return 0, fmt.Errorf("audit: retention must be positive")
	}
	return s.repo.DeleteOlderThan(ctx, time.Now().Add(-retention))
}
