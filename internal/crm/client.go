package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client talks to a GoHighLevel-style contacts API. It classifies responses
// but never touches the ledger; recording the attempt is the caller's job.
type Client struct {
	baseURL    string
	token      string
	locationID string
	apiVersion string
	hc         *http.Client
	limiter    *rate.Limiter
}

func New(baseURL, token, locationID, apiVersion string, perSecond float64) *Client {
	if perSecond <= 0 {
		perSecond = 2
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		locationID: locationID,
		apiVersion: apiVersion,
		hc:         &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Contact is the outbound payload shape.
type Contact struct {
	Email        string
	Phone        string
	FirstName    string
	LastName     string
	Tags         []string
	CustomFields map[string]string
	Source       string
}

func (c *Client) payload(ct Contact, withLocation bool) map[string]any {
	p := map[string]any{"email": ct.Email}
	if withLocation {
		p["locationId"] = c.locationID
	}
	if ct.Phone != "" {
		p["phone"] = ct.Phone
	}
	if ct.FirstName != "" {
		p["firstName"] = ct.FirstName
	}
	if ct.LastName != "" {
		p["lastName"] = ct.LastName
	}
	if len(ct.Tags) > 0 {
		p["tags"] = ct.Tags
	}
	if len(ct.CustomFields) > 0 {
		p["customField"] = ct.CustomFields
	}
	if ct.Source != "" {
		p["source"] = ct.Source
	} else {
		p["source"] = "WordPress Lead Form"
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	var reqBody io.Reader
	var reqJSON string
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, "", err
		}
		reqJSON = string(b)
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, reqJSON, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Version", c.apiVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.hc.Do(req)
	return res, reqJSON, err
}

// Deliver creates the contact, resolving a reported duplicate via
// search-by-email plus update. A duplicate only counts as success when a
// concrete existing contact id was recovered.
func (c *Client) Deliver(ctx context.Context, ct Contact) Result {
	res := c.create(ctx, ct)
	if res.Success || res.Kind != KindDuplicate {
		return res
	}

	id, err := c.SearchByEmail(ctx, ct.Email)
	if err != nil {
		res.ErrorMessage = fmt.Sprintf("duplicate reported; lookup failed: %v", err)
		return res
	}
	if id == "" {
		res.ErrorMessage = "duplicate reported but no existing contact found"
		return res
	}

	upd := c.update(ctx, id, ct)
	if upd.Success {
		upd.ContactID = id
		return upd
	}
	// keep the id for diagnostics even though the update failed
	upd.ContactID = id
	return upd
}

func (c *Client) create(ctx context.Context, ct Contact) Result {
	out := Result{AttemptedAt: time.Now().UTC()}

	res, reqJSON, err := c.do(ctx, http.MethodPost, "/contacts/", c.payload(ct, true))
	out.RequestBody = reqJSON
	if err != nil {
		out.Kind = KindTransport
		out.ErrorMessage = err.Error()
		return out
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	out.StatusCode = res.StatusCode
	out.ResponseBody = string(raw)

	switch {
	case res.StatusCode == http.StatusOK || res.StatusCode == http.StatusCreated:
		out.Success = true
		out.ContactID = extractContactID(raw)

	case res.StatusCode == http.StatusUnprocessableEntity:
		if strings.Contains(strings.ToLower(out.ResponseBody), "duplicate") {
			out.Kind = KindDuplicate
			out.ErrorMessage = "duplicate contact"
			// some API versions hand back the existing id right here
			if id := extractContactID(raw); id != "" {
				out.Success = true
				out.ContactID = id
				out.Kind = KindNone
			}
		} else {
			out.Kind = KindPayload
			out.ErrorMessage = "validation error"
		}

	case res.StatusCode == http.StatusUnauthorized:
		out.Kind = KindAuth
		out.ErrorMessage = "authentication failed - check access token"

	case res.StatusCode == http.StatusBadRequest:
		out.Kind = KindPayload
		out.ErrorMessage = "bad request - check payload format"

	default:
		out.Kind = KindAPI
		out.ErrorMessage = fmt.Sprintf("API error: %d", res.StatusCode)
	}

	return out
}

func (c *Client) update(ctx context.Context, contactID string, ct Contact) Result {
	out := Result{AttemptedAt: time.Now().UTC()}

	res, reqJSON, err := c.do(ctx, http.MethodPut, "/contacts/"+contactID, c.payload(ct, false))
	out.RequestBody = reqJSON
	if err != nil {
		out.Kind = KindTransport
		out.ErrorMessage = err.Error()
		return out
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	out.StatusCode = res.StatusCode
	out.ResponseBody = string(raw)

	switch res.StatusCode {
	case http.StatusOK:
		out.Success = true
	case http.StatusUnauthorized:
		out.Kind = KindAuth
		out.ErrorMessage = "authentication failed - check access token"
	default:
		out.Kind = KindAPI
		out.ErrorMessage = fmt.Sprintf("update failed: %d", res.StatusCode)
	}
	return out
}

// SearchByEmail returns the id of the contact whose email matches exactly, or
// "" when there is none.
func (c *Client) SearchByEmail(ctx context.Context, email string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/contacts/", nil)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Set("locationId", c.locationID)
	q.Set("query", email)
	q.Set("limit", "1")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Version", c.apiVersion)
	req.Header.Set("Accept", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("contact search: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("contact search: status %d", res.StatusCode)
	}

	var body struct {
		Contacts []struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"contacts"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("contact search: decode: %w", err)
	}

	for _, ct := range body.Contacts {
		if strings.EqualFold(ct.Email, email) {
			return ct.ID, nil
		}
	}
	return "", nil
}

// Ping verifies token and location by fetching the location record.
func (c *Client) Ping(ctx context.Context) error {
	res, _, err := c.do(ctx, http.MethodGet, "/locations/"+c.locationID, nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("crm ping: status %d", res.StatusCode)
	}
	return nil
}

func extractContactID(raw []byte) string {
	var body struct {
		ID      string `json:"id"`
		Contact struct {
			ID string `json:"id"`
		} `json:"contact"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Contact.ID != "" {
		return body.Contact.ID
	}
	return body.ID
}
