package exercise

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/therealmarv/cnx-epub/core/cache"
	"github.com/therealmarv/cnx-epub/core/errors"
)

// ItemCodePlaceholder is replaced by the exercise tag in URL templates.
const ItemCodePlaceholder = "{itemCode}"

// Client looks exercises up by tag.
type Client struct {
	// URLTemplate is the lookup URL with an {itemCode} placeholder,
	// e.g. https://exercises.openstax.org/api/exercises?q=tag:{itemCode}
	URLTemplate string

	// Token, when set, is sent as a bearer token.
	Token string

	HTTP   *http.Client
	Loader *cache.Loader
}

// NewClient creates a lookup client.
func NewClient(urlTemplate, token string, httpClient *http.Client, loader *cache.Loader) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{URLTemplate: urlTemplate, Token: token, HTTP: httpClient, Loader: loader}
}

// URL returns the lookup URL for tag.
func (c *Client) URL(tag string) string {
	return strings.ReplaceAll(c.URLTemplate, ItemCodePlaceholder, url.PathEscape(tag))
}

// Lookup fetches and decodes the exercises tagged tag.
func (c *Client) Lookup(ctx context.Context, tag string) (*Response, error) {
	target := c.URL(tag)
	body, err := c.Loader.Load(ctx, cache.ExerciseKey(tag, c.Token), func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, target)
	})
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &errors.ParseError{Format: "JSON", Path: target, Message: err.Error(), Err: err}
	}
	return &resp, nil
}

func (c *Client) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &errors.TransportError{Service: "exercises", URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &errors.TransportError{Service: "exercises", URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &errors.TransportError{Service: "exercises", URL: target, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.TransportError{Service: "exercises", URL: target, Err: err}
	}
	return body, nil
}
