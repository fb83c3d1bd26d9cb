package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// ListBills returns submitted bills, newest first, narrowed by filter.
func (c *Client) ListBills(ctx context.Context, token string, filter BillFilter) ([]Bill, error) {
	query := url.Values{}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query.Set("search", search)
	}
	if filter.BillType.Valid() {
		query.Set("bill_type", string(filter.BillType))
	}
	path := "/api/bills"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var bills []Bill
	if err := c.doJSON(ctx, opListBills, http.MethodGet, path, token, nil, &bills); err != nil {
		return nil, err
	}
	return bills, nil
}

// CreateBill submits a finished bill.
func (c *Client) CreateBill(ctx context.Context, token string, in BillInput) (Bill, error) {
	var bill Bill
	if err := c.doJSON(ctx, opCreateBill, http.MethodPost, "/api/bills", token, in, &bill); err != nil {
		return Bill{}, err
	}
	return bill, nil
}

// DeleteBill removes a bill.
func (c *Client) DeleteBill(ctx context.Context, token, id string) error {
	return c.doJSON(ctx, opDeleteBill, http.MethodDelete, "/api/bills/"+url.PathEscape(id), token, nil, nil)
}

// Stats fetches the aggregated dashboard figures for period.
func (c *Client) Stats(ctx context.Context, token string, period Period) (Stats, error) {
	var stats Stats
	path := "/api/bills/stats?period=" + url.QueryEscape(string(period))
	if err := c.doJSON(ctx, opStats, http.MethodGet, path, token, nil, &stats); err != nil {
		return Stats{}, err
	}
	if stats.Period == "" {
		stats.Period = period
	}
	return stats, nil
}
