package journal

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jackpal/bencode-go"
)

// Client reads a remote journal endpoint.
type Client struct {
	client  *http.Client
	baseURL string
}

func NewClient(baseURL string) *Client {
	return &Client{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
	}
}

func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// Scrape returns the known profiles and, when profile is set, its stats.
func (c *Client) Scrape(profile string) ([]string, *Stats, error) {
	params := url.Values{}
	if profile != "" {
		params.Set("profile", profile)
	}

	var resp scrapeResponse
	if err := c.get("/scrape", params, &resp); err != nil {
		return nil, nil, err
	}
	if resp.Failure != "" {
		return nil, nil, fmt.Errorf("journal error: %s", resp.Failure)
	}
	if resp.Stats.Terminations == nil {
		resp.Stats.Terminations = make(map[string]int)
	}
	if resp.Stats.Faults == nil {
		resp.Stats.Faults = make(map[string]int)
	}
	return resp.Profiles, &resp.Stats, nil
}

func (c *Client) Sessions(profile string, limit int) ([]Record, error) {
	params := url.Values{}
	params.Set("profile", profile)
	params.Set("limit", strconv.Itoa(limit))

	var resp sessionsResponse
	if err := c.get("/sessions", params, &resp); err != nil {
		return nil, err
	}
	if resp.Failure != "" {
		return nil, fmt.Errorf("journal error: %s", resp.Failure)
	}
	return resp.Sessions, nil
}

func (c *Client) get(path string, params url.Values, v interface{}) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid journal url: %w", err)
	}
	u.Path = path
	u.RawQuery = params.Encode()

	resp, err := c.client.Get(u.String())
	if err != nil {
		return fmt.Errorf("failed to query journal: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("journal returned status %d", resp.StatusCode)
	}

	if err := bencode.Unmarshal(io.Reader(resp.Body), v); err != nil {
		return fmt.Errorf("failed to decode journal response: %w", err)
	}
	return nil
}
