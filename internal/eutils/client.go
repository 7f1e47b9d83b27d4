package eutils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/henrybloomingdale/pubmed-records/internal/ncbi"
)

// Client issues ESearch, EFetch and ELink requests against the pubmed
// database. The embedded BaseClient supplies rate limiting, the tool, email
// and api_key parameters, and the response size guard.
type Client struct {
	*ncbi.BaseClient
}

// NewClient builds a Client with a BaseClient of its own.
func NewClient(opts ...ncbi.Option) *Client {
	return New(ncbi.NewBaseClient(opts...))
}

// New wraps an existing BaseClient so that several clients share one
// limiter.
func New(base *ncbi.BaseClient) *Client {
	return &Client{BaseClient: base}
}

// pubmedParams starts a parameter set for a pubmed-to-pubmed request.
func pubmedParams(kv ...string) url.Values {
	params := url.Values{"db": {"pubmed"}}
	for i := 0; i+1 < len(kv); i += 2 {
		params.Set(kv[i], kv[i+1])
	}
	return params
}

// getJSON requests endpoint with retmode=json and decodes the body into v.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, v any) error {
	params.Set("retmode", "json")
	body, err := c.DoGet(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s response: %w", strings.TrimSuffix(endpoint, ".fcgi"), err)
	}
	return nil
}
