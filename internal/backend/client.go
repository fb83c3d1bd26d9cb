// Package backend is the typed client for the remote shop API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	opLogin               = "login"
	opVerify              = "verify"
	opListItems           = "list_items"
	opCreateItem          = "create_item"
	opUpdateItem          = "update_item"
	opDeleteItem          = "delete_item"
	opImportItems         = "import_items"
	opExportItems         = "export_items"
	opListBills           = "list_bills"
	opCreateBill          = "create_bill"
	opDeleteBill          = "delete_bill"
	opStats               = "stats"
	opListCreditCustomers = "list_credit_customers"
	opCustomerPayments    = "customer_payments"
	opRecordPayment       = "record_payment"
)

// maxErrorBody bounds how much of an error response is read for its detail.
const maxErrorBody = 64 << 10

// Observer receives one call per completed backend request.
type Observer interface {
	ObserveBackend(op string, status int, elapsed time.Duration)
}

// Options tunes the client. Zero values pick defaults.
type Options struct {
	Timeout  time.Duration
	RPS      float64
	Burst    int
	Observer Observer
	HTTP     *http.Client
}

// Client talks to the shop API under baseURL (the part before /api).
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	observer   Observer
}

// NewClient constructs a Client.
func NewClient(baseURL string, opts Options) *Client {
	httpClient := opts.HTTP
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 10
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		observer:   opts.Observer,
	}
}

type request struct {
	op          string
	method      string
	path        string
	token       string
	body        io.Reader
	contentType string
}

func jsonRequest(op, method, path, token string, payload any) (request, error) {
	req := request{op: op, method: method, path: path, token: token}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return request{}, fmt.Errorf("backend: %s: encode: %w", op, err)
		}
		req.body = bytes.NewReader(data)
		req.contentType = "application/json"
	}
	return req, nil
}

// send performs the request and returns the response for 2xx statuses.
// Non-2xx responses are drained into an *APIError.
func (c *Client) send(ctx context.Context, in request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("backend: %s: %w", in.op, err)
	}
	req, err := http.NewRequestWithContext(ctx, in.method, c.baseURL+in.path, in.body)
	if err != nil {
		return nil, fmt.Errorf("backend: %s: build request: %w", in.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in.contentType != "" {
		req.Header.Set("Content-Type", in.contentType)
	}
	if in.token != "" {
		req.Header.Set("Authorization", "Bearer "+in.token)
	}
	reqID := chimw.GetReqID(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set(chimw.RequestIDHeader, reqID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(in.op, 0, start)
		return nil, fmt.Errorf("backend: %s: %w", in.op, err)
	}
	c.observe(in.op, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() {
			_ = resp.Body.Close()
		}()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{Op: in.op, Status: resp.StatusCode, Detail: parseDetail(body, resp.StatusCode)}
	}
	return resp, nil
}

// do sends the request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, in request, out any) error {
	resp, err := c.send(ctx, in)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: %s: decode: %w", in.op, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path, token string, payload, out any) error {
	req, err := jsonRequest(op, method, path, token, payload)
	if err != nil {
		return err
	}
	return c.do(ctx, req, out)
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveBackend(op, status, time.Since(start))
	}
}
