// Package people wraps the Google People API and the OAuth flow used
// to link a Google account.
package people

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/contactbook/contactbook-api/core"
)

const (
	defaultBaseURL = "https://people.googleapis.com/v1"

	// personFields matches what the mobile client renders.
	personFields = "names,emailAddresses,phoneNumbers,photos,organizations,addresses,biographies"

	pageSize = 1000
)

// Client fetches contacts from the Google People API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL overrides the People API endpoint. Tests point this at a
// local server.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a People API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// connectionsResponse is the slice of the People API payload we read.
type connectionsResponse struct {
	Connections   []person `json:"connections"`
	NextPageToken string   `json:"nextPageToken"`
}

type person struct {
	ResourceName   string       `json:"resourceName"`
	Names          []nameField  `json:"names"`
	EmailAddresses []valueField `json:"emailAddresses"`
	PhoneNumbers   []valueField `json:"phoneNumbers"`
	Photos         []urlField   `json:"photos"`
	Organizations  []orgField   `json:"organizations"`
	Addresses      []addrField  `json:"addresses"`
	Biographies    []valueField `json:"biographies"`
}

type nameField struct {
	DisplayName string `json:"displayName"`
}

type valueField struct {
	Value string `json:"value"`
}

type urlField struct {
	URL string `json:"url"`
}

type orgField struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

type addrField struct {
	FormattedValue string `json:"formattedValue"`
}

// Connections fetches the user's contacts with the given Google access
// token, following pagination, and returns them normalized.
func (c *Client) Connections(ctx context.Context, accessToken string) ([]core.Contact, error) {
	var contacts []core.Contact
	pageToken := ""

	for {
		page, err := c.fetchPage(ctx, accessToken, pageToken)
		if err != nil {
			return nil, err
		}
		contacts = normalize(page.Connections, contacts)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	c.logger.Info("fetched google contacts", zap.Int("count", len(contacts)))
	return contacts, nil
}

func (c *Client) fetchPage(ctx context.Context, accessToken, pageToken string) (*connectionsResponse, error) {
	q := url.Values{}
	q.Set("personFields", personFields)
	q.Set("pageSize", fmt.Sprint(pageSize))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	reqURL := c.baseURL + "/people/me/connections?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: access token expired or invalid", core.ErrUpstream)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: google api status %d: %s", core.ErrUpstream, resp.StatusCode, excerpt(body))
	}

	var page connectionsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &page, nil
}

// normalize flattens People API person records into contacts, dropping
// entries with no usable data. It appends to contacts so fallback IDs
// stay unique across pages.
func normalize(persons []person, contacts []core.Contact) []core.Contact {
	for _, p := range persons {
		name := core.UnknownName
		if len(p.Names) > 0 && p.Names[0].DisplayName != "" {
			name = p.Names[0].DisplayName
		}

		contact := core.Contact{
			ID:    p.ResourceName,
			Name:  name,
			Email: firstValue(p.EmailAddresses),
			Phone: firstValue(p.PhoneNumbers),
			Notes: firstValue(p.Biographies),
		}
		if contact.ID == "" {
			contact.ID = fmt.Sprintf("contact-%d", len(contacts))
		}
		if len(p.Photos) > 0 {
			contact.Avatar = p.Photos[0].URL
		}
		if contact.Avatar == "" {
			contact.Avatar = core.FallbackAvatar(name)
		}
		if len(p.Organizations) > 0 {
			contact.Company = p.Organizations[0].Name
			contact.Job = p.Organizations[0].Title
		}
		if len(p.Addresses) > 0 {
			contact.Address = p.Addresses[0].FormattedValue
		}

		if contact.HasContent() {
			contacts = append(contacts, contact)
		}
	}

	return contacts
}

func firstValue(fields []valueField) string {
	if len(fields) == 0 {
		return ""
	}
	return fields[0].Value
}

func excerpt(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
