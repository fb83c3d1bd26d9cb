// Package dashboard renders the sales statistics for a period and the chart that
// compares every period side by side.
package dashboard

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/shopbill/shopfront/internal/backend"
	"github.com/shopbill/shopfront/internal/platform/cache"
)

// Backend is the statistics surface of the remote API.
type Backend interface {
	Stats(ctx context.Context, token string, period backend.Period) (backend.Stats, error)
}

// Service reads statistics through a versioned cache. Submitting or deleting a bill and
// recording a payment call Invalidate.
type Service struct {
	api    Backend
	cache  *cache.Versioned
	logger *slog.Logger
}

// NewService constructs a Service. A nil cache always reads through.
func NewService(api Backend, c *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, cache: c, logger: logger}
}

// Overview is everything the dashboard page shows.
type Overview struct {
	Period backend.Period
	Stats  backend.Stats
	Bars   []Bar
	Chart  template.HTML
}

// Stats returns the statistics for period.
func (s *Service) Stats(ctx context.Context, token string, period backend.Period) (backend.Stats, error) {
	var stats backend.Stats
	err := s.cache.Fetch(ctx, &stats, func(ctx context.Context) (any, error) {
		return s.api.Stats(ctx, token, period)
	}, "stats", string(period))
	if err != nil {
		return backend.Stats{}, err
	}
	if stats.Period == "" {
		stats.Period = period
	}
	return stats, nil
}

// Overview fetches every period concurrently. A period that fails to load is logged
// and counted as zero; only an expired credential is returned as an error.
func (s *Service) Overview(ctx context.Context, token string, period backend.Period) (Overview, error) {
	all := make([]backend.Stats, len(backend.Periods))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range backend.Periods {
		g.Go(func() error {
			stats, err := s.Stats(gctx, token, p)
			if err != nil {
				if errors.Is(err, backend.ErrUnauthorized) {
					return err
				}
				s.logger.Error("load stats", slog.Any("error", err), slog.String("period", string(p)))
				stats = backend.Stats{Period: p}
			}
			all[i] = stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Overview{Period: period, Stats: backend.Stats{Period: period}}, err
	}

	out := Overview{Period: period, Stats: backend.Stats{Period: period}, Bars: make([]Bar, 0, len(all))}
	for _, stats := range all {
		if stats.Period == period {
			out.Stats = stats
		}
		out.Bars = append(out.Bars, Bar{Label: periodLabel(stats.Period), Sales: stats.TotalSales, Profit: stats.TotalProfit})
	}
	chart, err := Chart(out.Bars, ChartOpts{Title: "Sales and profit by period"})
	if err != nil {
		s.logger.Warn("render chart", slog.Any("error", err))
	} else {
		out.Chart = chart
	}
	return out, nil
}

// Invalidate drops every cached statistic.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

func periodLabel(p backend.Period) string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}
