package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
)

// ListItems returns the full catalog sorted by name.
func (c *Client) ListItems(ctx context.Context, token string) ([]Item, error) {
	var items []Item
	if err := c.doJSON(ctx, opListItems, http.MethodGet, "/api/items", token, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateItem adds an item to the catalog.
func (c *Client) CreateItem(ctx context.Context, token string, in ItemInput) (Item, error) {
	var item Item
	if err := c.doJSON(ctx, opCreateItem, http.MethodPost, "/api/items", token, in, &item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// UpdateItem replaces the editable fields of an item.
func (c *Client) UpdateItem(ctx context.Context, token, id string, in ItemInput) (Item, error) {
	var item Item
	path := "/api/items/" + url.PathEscape(id)
	if err := c.doJSON(ctx, opUpdateItem, http.MethodPut, path, token, in, &item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, token, id string) error {
	return c.doJSON(ctx, opDeleteItem, http.MethodDelete, "/api/items/"+url.PathEscape(id), token, nil, nil)
}

// ImportItems uploads a catalog file (CSV) for bulk create/update.
func (c *Client) ImportItems(ctx context.Context, token, filename string, file io.Reader) (ImportResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return ImportResult{}, fmt.Errorf("backend: %s: %w", opImportItems, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return ImportResult{}, fmt.Errorf("backend: %s: %w", opImportItems, err)
	}
	if err := writer.Close(); err != nil {
		return ImportResult{}, fmt.Errorf("backend: %s: %w", opImportItems, err)
	}

	var out ImportResult
	err = c.do(ctx, request{
		op:          opImportItems,
		method:      http.MethodPost,
		path:        "/api/items/import",
		token:       token,
		body:        body,
		contentType: writer.FormDataContentType(),
	}, &out)
	if err != nil {
		return ImportResult{}, err
	}
	return out, nil
}

// ExportItems opens the catalog export download.
func (c *Client) ExportItems(ctx context.Context, token string) (Download, error) {
	resp, err := c.send(ctx, request{op: opExportItems, method: http.MethodGet, path: "/api/items/export", token: token})
	if err != nil {
		return Download{}, err
	}
	filename := "items.csv"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/csv; charset=utf-8"
	}
	return Download{Filename: filename, ContentType: contentType, Body: resp.Body}, nil
}
