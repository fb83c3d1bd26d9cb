// Package catalog serves the item list and its create/edit/delete/import/export views.
package catalog

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopbill/shopfront/internal/backend"
	"github.com/shopbill/shopfront/internal/platform/cache"
)

// Backend is the item surface of the remote API.
type Backend interface {
	ListItems(ctx context.Context, token string) ([]backend.Item, error)
	CreateItem(ctx context.Context, token string, in backend.ItemInput) (backend.Item, error)
	UpdateItem(ctx context.Context, token, id string, in backend.ItemInput) (backend.Item, error)
	DeleteItem(ctx context.Context, token, id string) error
	ImportItems(ctx context.Context, token, filename string, file io.Reader) (backend.ImportResult, error)
	ExportItems(ctx context.Context, token string) (backend.Download, error)
}

// Service reads the catalog through a versioned cache and bumps the version after
// every confirmed mutation so the next list re-fetches.
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

// Items returns the full catalog.
func (s *Service) Items(ctx context.Context, token string) ([]backend.Item, error) {
	var items []backend.Item
	err := s.cache.Fetch(ctx, &items, func(ctx context.Context) (any, error) {
		return s.api.ListItems(ctx, token)
	}, "items")
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Item looks one item up by id.
func (s *Service) Item(ctx context.Context, token, id string) (backend.Item, error) {
	items, err := s.Items(ctx, token)
	if err != nil {
		return backend.Item{}, err
	}
	for _, item := range items {
		if item.ID == id {
			return item, nil
		}
	}
	return backend.Item{}, backend.ErrNotFound
}

// Search returns the catalog filtered by query, sorted by name. A failed fetch
// is logged and yields an empty list.
func (s *Service) Search(ctx context.Context, token, query string) ([]backend.Item, error) {
	items, err := s.Items(ctx, token)
	if err != nil {
		s.logger.Error("list items", slog.Any("error", err))
		return nil, err
	}
	out := Filter(items, query)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// Create adds an item.
func (s *Service) Create(ctx context.Context, token string, in backend.ItemInput) (backend.Item, error) {
	item, err := s.api.CreateItem(ctx, token, in)
	if err != nil {
		return backend.Item{}, err
	}
	s.invalidate(ctx)
	return item, nil
}

// Update replaces an item.
func (s *Service) Update(ctx context.Context, token, id string, in backend.ItemInput) (backend.Item, error) {
	item, err := s.api.UpdateItem(ctx, token, id, in)
	if err != nil {
		return backend.Item{}, err
	}
	s.invalidate(ctx)
	return item, nil
}

// Delete removes an item.
func (s *Service) Delete(ctx context.Context, token, id string) error {
	if err := s.api.DeleteItem(ctx, token, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Import uploads a spreadsheet of items.
func (s *Service) Import(ctx context.Context, token, filename string, file io.Reader) (backend.ImportResult, error) {
	res, err := s.api.ImportItems(ctx, token, filename, file)
	if err != nil {
		return backend.ImportResult{}, err
	}
	s.invalidate(ctx)
	return res, nil
}

// Export streams the catalog download. The caller closes the body.
func (s *Service) Export(ctx context.Context, token string) (backend.Download, error) {
	return s.api.ExportItems(ctx, token)
}

// Invalidate drops the cached catalog.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate items cache", slog.Any("error", err))
	}
}

// Filter keeps items whose name contains query, ignoring case. A blank query keeps all.
func Filter(items []backend.Item, query string) []backend.Item {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]backend.Item, 0, len(items))
	for _, item := range items {
		if query == "" || strings.Contains(strings.ToLower(item.Name), query) {
			out = append(out, item)
		}
	}
	return out
}
