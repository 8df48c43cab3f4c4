package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"leadsync-engine/internal/domain"
)

// TimeFormat is what the leads endpoint expects for the `since` filter.
const TimeFormat = "2006-01-02 15:04:05"

const leadsPath = "/wp-json/rolling-riches/v1/leads"

type Client struct {
	baseURL  string
	username string
	password string
	hc       *http.Client
}

func New(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		hc:       &http.Client{Timeout: 30 * time.Second},
	}
}

// wireLead tolerates both flat records and the {"raw_data": {...}} wrapper
// some plugin versions emit.
type wireLead struct {
	domain.RawLead
	RawData *domain.RawLead `json:"raw_data"`
}

type leadsResponse struct {
	Leads []wireLead `json:"leads"`
	Total int        `json:"total"`
}

// Fetch returns records signed up at or after since (zero means no time
// filter) with a native id strictly greater than lastID (zero means no id
// filter), at most limit of them. Ordering is whatever the endpoint felt
// like; callers must not rely on it.
func (c *Client) Fetch(ctx context.Context, since time.Time, lastID int64, limit int) ([]domain.RawLead, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(TimeFormat))
	}
	if lastID > 0 {
		q.Set("last_id", strconv.FormatInt(lastID, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+leadsPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "leadsync/1.0")

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source fetch: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source fetch: status %d", res.StatusCode)
	}

	var body leadsResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("source fetch: decode: %w", err)
	}

	out := make([]domain.RawLead, 0, len(body.Leads))
	for _, w := range body.Leads {
		if w.RawData != nil {
			out = append(out, *w.RawData)
			continue
		}
		out = append(out, w.RawLead)
	}
	return out, nil
}

// Ping does a cheap authenticated request so --check can tell credential
// problems from network problems.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Fetch(ctx, time.Now().Add(-24*time.Hour), 0, 1)
	return err
}
