package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"quill/internal/logging"
	"quill/internal/models"
)

var (
	ErrRequestFailed = errors.New("request failed")
	ErrNotFound      = errors.New("story not found")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, strings.TrimSpace(e.Body))
}

func (e *StatusError) Is(target error) bool {
	if target == ErrRequestFailed {
		return true
	}
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Client talks to the story service over its small HTTP contract.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. A nil httpClient uses a default
// one without a timeout, since generation streams are long-lived.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the service root this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logging.Debugf("HTTP %s %s", method, path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Errorf("HTTP %s %s failed: %v", method, path, err)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logging.Warnf("HTTP %s %s returned %d", method, path, resp.StatusCode)
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(data)}
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// send issues a request whose response body is ignored.
func (c *Client) send(ctx context.Context, method, path string) error {
	resp, err := c.do(ctx, method, path, nil)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// Generate starts a streaming generation. The caller owns the returned body.
func (c *Client) Generate(ctx context.Context, req models.GenerationRequest) (io.ReadCloser, error) {
	req.Stream = true
	resp, err := c.do(ctx, http.MethodPost, "/generate", req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ListStories returns every story, newest first.
func (c *Client) ListStories(ctx context.Context) ([]models.Item, error) {
	items := []models.Item{}
	if err := c.getJSON(ctx, "/stories", &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ListFavorites returns favorite stories, newest first.
func (c *Client) ListFavorites(ctx context.Context) ([]models.Item, error) {
	items := []models.Item{}
	if err := c.getJSON(ctx, "/favorites", &items); err != nil {
		return nil, err
	}
	return items, nil
}

// List dispatches on scope.
func (c *Client) List(ctx context.Context, scope models.Scope) ([]models.Item, error) {
	if scope == models.ScopeFavorites {
		return c.ListFavorites(ctx)
	}
	return c.ListStories(ctx)
}

// Search returns stories matching term on the server side.
func (c *Client) Search(ctx context.Context, term string) ([]models.Item, error) {
	items := []models.Item{}
	if err := c.getJSON(ctx, "/search?q="+url.QueryEscape(term), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) GetStory(ctx context.Context, id string) (models.Item, error) {
	var it models.Item
	err := c.getJSON(ctx, "/stories/"+url.PathEscape(id), &it)
	return it, err
}

func (c *Client) ToggleFavorite(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodPost, "/stories/"+url.PathEscape(id)+"/favorite")
}

func (c *Client) DeleteStory(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/stories/"+url.PathEscape(id))
}

func (c *Client) Stats(ctx context.Context) (models.Stats, error) {
	var st models.Stats
	err := c.getJSON(ctx, "/stats", &st)
	return st, err
}

type configResponse struct {
	Genres  []string `json:"genres"`
	Tones   []string `json:"tones"`
	Lengths map[string]struct {
		Min   int    `json:"min"`
		Max   int    `json:"max"`
		Label string `json:"label"`
	} `json:"lengths"`
	Languages []string `json:"languages"`
	Examples  []string `json:"examples"`
}

var lengthOrder = []string{"short", "medium", "long"}

// Options fetches the server's option catalogs. Lengths come back as a map,
// so known keys are ordered short/medium/long and unknown ones appended in key order.
func (c *Client) Options(ctx context.Context) (models.Options, error) {
	var cr configResponse
	if err := c.getJSON(ctx, "/config", &cr); err != nil {
		return models.Options{}, err
	}
	opts := models.Options{
		Genres:    cr.Genres,
		Tones:     cr.Tones,
		Languages: cr.Languages,
		Examples:  cr.Examples,
	}
	seen := map[string]bool{}
	for _, key := range lengthOrder {
		if l, ok := cr.Lengths[key]; ok {
			opts.Lengths = append(opts.Lengths, models.LengthOption{Key: key, Label: l.Label, Min: l.Min, Max: l.Max})
			seen[key] = true
		}
	}
	var extra []string
	for key := range cr.Lengths {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		l := cr.Lengths[key]
		opts.Lengths = append(opts.Lengths, models.LengthOption{Key: key, Label: l.Label, Min: l.Min, Max: l.Max})
	}
	return opts, nil
}
