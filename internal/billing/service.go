package billing

import (
	"context"
	"log/slog"

	"github.com/shopbill/shopfront/internal/backend"
)

// BillCreator persists a finished bill.
type BillCreator interface {
	CreateBill(ctx context.Context, token string, in backend.BillInput) (backend.Bill, error)
}

// Invalidator drops cached views that a new bill makes stale.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service submits drafts to the backend.
type Service struct {
	logger       *slog.Logger
	bills        BillCreator
	invalidators []Invalidator
}

// NewService constructs a Service. Every invalidator runs after a successful submission.
func NewService(logger *slog.Logger, bills BillCreator, invalidators ...Invalidator) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, bills: bills, invalidators: invalidators}
}

// Submit validates draft, sends it and clears it on success. On any failure the
// draft is left untouched so the user can retry.
func (s *Service) Submit(ctx context.Context, token string, draft *Draft, in SubmitInput) (backend.Bill, error) {
	payload, err := draft.PrepareSubmission(in)
	if err != nil {
		return backend.Bill{}, err
	}
	bill, err := s.bills.CreateBill(ctx, token, payload)
	if err != nil {
		return backend.Bill{}, err
	}
	draft.Clear()
	for _, inv := range s.invalidators {
		if err := inv.Invalidate(ctx); err != nil {
			s.logger.Warn("invalidate after bill", slog.Any("error", err))
		}
	}
	return bill, nil
}
