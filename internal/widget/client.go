package widget

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const (
	DefaultCSRFHeader = "X-CSRFToken"
	DefaultCSRFCookie = "aura_csrf"
	SuggestPath       = "/ajax/tag/autocomplete"
)

// RemoteError is a non-success answer from the server.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

// Client talks to the creation and autocomplete endpoints the way the
// browser does: cookies, CSRF header and JSON bodies.
type Client struct {
	BaseURL    *url.URL
	HTTP       *http.Client
	Token      string
	CSRFHeader string
	CSRFCookie string

	csrfMu sync.Mutex
}

func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &Client{
		BaseURL:    u,
		HTTP:       &http.Client{Jar: jar, Timeout: 15 * time.Second},
		CSRFHeader: DefaultCSRFHeader,
		CSRFCookie: DefaultCSRFCookie,
	}, nil
}

func (c *Client) resolve(ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", ref, err)
	}
	return c.BaseURL.ResolveReference(r), nil
}

// FetchCSRF asks the server for a token cookie.
func (c *Client) FetchCSRF(ctx context.Context) error {
	u, err := c.resolve("/auth/csrf")
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &RemoteError{Status: resp.StatusCode}
	}
	if c.csrfToken() == "" {
		return errors.New("server issued no csrf cookie")
	}
	return nil
}

// ensureCSRF fetches a token once; concurrent callers wait for it so the
// header and cookie they send agree.
func (c *Client) ensureCSRF(ctx context.Context) error {
	c.csrfMu.Lock()
	defer c.csrfMu.Unlock()
	if c.csrfToken() != "" {
		return nil
	}
	return c.FetchCSRF(ctx)
}

func (c *Client) csrfToken() string {
	if c.HTTP.Jar == nil {
		return ""
	}
	for _, ck := range c.HTTP.Jar.Cookies(c.BaseURL) {
		if ck.Name == c.CSRFCookie {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", "application/json")
	return c.HTTP.Do(req)
}

type createResponse struct {
	Success bool   `json:"success"`
	ID      FlexID `json:"id"`
	Name    string `json:"name"`
	Created bool   `json:"created"`
	Error   string `json:"error"`
}

// Create posts {name} to createURL, fetching a CSRF cookie first if the
// jar has none.
func (c *Client) Create(ctx context.Context, createURL, name string) (Result, error) {
	if err := c.ensureCSRF(ctx); err != nil {
		return Result{}, fmt.Errorf("csrf: %w", err)
	}
	u, err := c.resolve(createURL)
	if err != nil {
		return Result{}, err
	}
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(c.CSRFHeader, c.csrfToken())
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.do(req)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	defer resp.Body.Close()

	var out createResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return Result{}, &RemoteError{Status: resp.StatusCode}
		}
		return Result{}, fmt.Errorf("decode create response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		return Result{}, &RemoteError{Status: resp.StatusCode, Message: out.Error}
	}
	return Result{ID: string(out.ID), Name: out.Name, Created: out.Created}, nil
}

// Suggest fetches tag names matching term.
func (c *Client) Suggest(ctx context.Context, term string) ([]string, error) {
	u, err := c.resolve(SuggestPath)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("q", term)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("suggest request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{Status: resp.StatusCode}
	}

	var out struct {
		Results []struct {
			Text string `json:"text"`
		} `json:"results"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	names := make([]string, 0, len(out.Results))
	for _, r := range out.Results {
		names = append(names, r.Text)
	}
	return names, nil
}

// FlexID accepts identifiers encoded as JSON numbers or strings.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		str, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*f = FlexID(str)
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("id: not a number or string: %s", s)
	}
	*f = FlexID(s)
	return nil
}
