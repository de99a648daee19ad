package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// ErrEmptyCollection reports a search that matched nothing. It is the one
// non-fatal failure in the pipeline's taxonomy.
var ErrEmptyCollection = errors.New("no stac items found")

// SearchParams is the subset of the STAC API search body the pipeline uses.
type SearchParams struct {
	Collections []string
	Datetime    string
	Bbox        *orb.Bound
	Query       map[string]map[string]any
	Limit       int
}

func (p SearchParams) body() map[string]any {
	body := map[string]any{
		"collections": p.Collections,
	}

	if p.Datetime != "" {
		body["datetime"] = p.Datetime
	}
	if p.Bbox != nil {
		body["bbox"] = []float64{p.Bbox.Min[0], p.Bbox.Min[1], p.Bbox.Max[0], p.Bbox.Max[1]}
	}
	if len(p.Query) > 0 {
		body["query"] = p.Query
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}
	body["limit"] = limit

	return body
}

// Modifier is applied to every item returned from a search.
type Modifier func(*Item)

// Client searches one STAC API endpoint, following next links.
type Client struct {
	baseURL  string
	http     *http.Client
	modifier Modifier
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithModifier(m Modifier) Option {
	return func(c *Client) { c.modifier = m }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 120 * time.Second},
	}

	for _, o := range opts {
		o(c)
	}

	return c
}

type featureCollection struct {
	Features []*Item `json:"features"`
	Links    []Link  `json:"links"`
}

// Search runs a paged search. It returns ErrEmptyCollection when the catalog
// has nothing for the query.
func (c *Client) Search(ctx context.Context, p SearchParams) ([]*Item, error) {
	var items []*Item

	url := c.baseURL + "/search"
	body := p.body()

	for url != "" {
		fc, err := c.post(ctx, url, body)
		if err != nil {
			return nil, err
		}

		items = append(items, fc.Features...)

		url, body = nextPage(fc.Links)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrEmptyCollection, strings.Join(p.Collections, ","))
	}

	if c.modifier != nil {
		for _, it := range items {
			c.modifier(it)
		}
	}

	return items, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) (*featureCollection, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("search %s: status %d: %s", url, resp.StatusCode, raw)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return &fc, nil
}

func nextPage(links []Link) (string, map[string]any) {
	for _, l := range links {
		if l.Rel != "next" || l.Href == "" {
			continue
		}

		body := l.Body
		if body == nil {
			body = map[string]any{}
		}

		return l.Href, body
	}

	return "", nil
}
