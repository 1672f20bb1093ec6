package tilesvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jask/tileswipe/internal/tile"
)

// Client calls a remote tile service exposing /api/tiles and /api/geojson.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Log     *zap.Logger
}

func NewClient(baseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Log:     log,
	}
}

func (c *Client) LoadTiles(ctx context.Context, req Request) (Response, error) {
	var w wireResponse
	if err := c.post(ctx, "/api/tiles", req, &w); err != nil {
		return Response{}, err
	}
	return w.decode(c.Log), nil
}

func (c *Client) GeoJSON(ctx context.Context, tiles []tile.Child, category string) (json.RawMessage, error) {
	if tiles == nil {
		tiles = []tile.Child{}
	}
	var doc json.RawMessage
	if err := c.post(ctx, "/api/geojson", GeometryRequest{TileIDs: tiles, Category: category}, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode/100 != 2 {
		var e errorBody
		if json.Unmarshal(data, &e) == nil && e.Detail != "" {
			return fmt.Errorf("post %s: %s: %s", path, resp.Status, e.Detail)
		}
		return fmt.Errorf("post %s: %s", path, resp.Status)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

type errorBody struct {
	Detail string `json:"detail"`
}
