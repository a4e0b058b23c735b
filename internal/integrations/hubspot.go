package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sophiahq/sophia-gateway/internal/config"
)

const defaultHubSpotURL = "https://api.hubapi.com"

// Contact is a HubSpot CRM contact
type Contact struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Company   string    `json:"company"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Deal is a HubSpot CRM deal
type Deal struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Stage     string    `json:"stage"`
	Amount    string    `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HubSpotClient is a thin client for the HubSpot CRM search API
type HubSpotClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHubSpotClient creates a HubSpot client
func NewHubSpotClient(cfg *config.HubSpotConfig) *HubSpotClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultHubSpotURL
	}
	return &HubSpotClient{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ContactsSince returns contacts modified after since, newest page only
func (c *HubSpotClient) ContactsSince(ctx context.Context, since time.Time, limit int) ([]Contact, error) {
	if limit <= 0 {
		limit = 100
	}
	searchReq := hubspotSearchRequest{
		Limit:      limit,
		Properties: []string{"email", "firstname", "lastname", "company", "lastmodifieddate"},
		Sorts:      []string{"lastmodifieddate"},
	}
	if !since.IsZero() {
		searchReq.FilterGroups = []hubspotFilterGroup{{
			Filters: []hubspotFilter{{
				PropertyName: "lastmodifieddate",
				Operator:     "GT",
				Value:        fmt.Sprintf("%d", since.UnixMilli()),
			}},
		}}
	}

	var searchResp hubspotSearchResponse
	err := withRetry(ctx, func() error {
		return c.post(ctx, "/crm/v3/objects/contacts/search", &searchReq, &searchResp)
	})
	if err != nil {
		return nil, fmt.Errorf("hubspot search: %w", err)
	}

	contacts := make([]Contact, 0, len(searchResp.Results))
	for _, r := range searchResp.Results {
		contact := Contact{
			ID:        r.ID,
			Email:     r.Properties["email"],
			FirstName: r.Properties["firstname"],
			LastName:  r.Properties["lastname"],
			Company:   r.Properties["company"],
		}
		if ts := r.Properties["lastmodifieddate"]; ts != "" {
			if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				contact.UpdatedAt = t
			}
		}
		if contact.UpdatedAt.IsZero() {
			contact.UpdatedAt = r.UpdatedAt
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

// DealsSince returns deals modified after since, newest page only
func (c *HubSpotClient) DealsSince(ctx context.Context, since time.Time, limit int) ([]Deal, error) {
	if limit <= 0 {
		limit = 100
	}
	searchReq := hubspotSearchRequest{
		Limit:      limit,
		Properties: []string{"dealname", "dealstage", "amount", "lastmodifieddate"},
		Sorts:      []string{"lastmodifieddate"},
	}
	if !since.IsZero() {
		searchReq.FilterGroups = []hubspotFilterGroup{{
			Filters: []hubspotFilter{{
				PropertyName: "lastmodifieddate",
				Operator:     "GT",
				Value:        fmt.Sprintf("%d", since.UnixMilli()),
			}},
		}}
	}

	var searchResp hubspotSearchResponse
	err := withRetry(ctx, func() error {
		return c.post(ctx, "/crm/v3/objects/deals/search", &searchReq, &searchResp)
	})
	if err != nil {
		return nil, fmt.Errorf("hubspot deal search: %w", err)
	}

	deals := make([]Deal, 0, len(searchResp.Results))
	for _, r := range searchResp.Results {
		deal := Deal{
			ID:     r.ID,
			Name:   r.Properties["dealname"],
			Stage:  r.Properties["dealstage"],
			Amount: r.Properties["amount"],
		}
		if ts := r.Properties["lastmodifieddate"]; ts != "" {
			if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				deal.UpdatedAt = t
			}
		}
		if deal.UpdatedAt.IsZero() {
			deal.UpdatedAt = r.UpdatedAt
		}
		deals = append(deals, deal)
	}
	return deals, nil
}

// SearchContacts runs a free-text CRM search
func (c *HubSpotClient) SearchContacts(ctx context.Context, query string, limit int) ([]Contact, error) {
	if limit <= 0 {
		limit = 10
	}
	searchReq := hubspotSearchRequest{
		Query:      query,
		Limit:      limit,
		Properties: []string{"email", "firstname", "lastname", "company"},
	}
	var searchResp hubspotSearchResponse
	err := withRetry(ctx, func() error {
		return c.post(ctx, "/crm/v3/objects/contacts/search", &searchReq, &searchResp)
	})
	if err != nil {
		return nil, fmt.Errorf("hubspot search: %w", err)
	}

	contacts := make([]Contact, 0, len(searchResp.Results))
	for _, r := range searchResp.Results {
		contacts = append(contacts, Contact{
			ID:        r.ID,
			Email:     r.Properties["email"],
			FirstName: r.Properties["firstname"],
			LastName:  r.Properties["lastname"],
			Company:   r.Properties["company"],
			UpdatedAt: r.UpdatedAt,
		})
	}
	return contacts, nil
}

func (c *HubSpotClient) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("hubspot status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type hubspotSearchRequest struct {
	Query        string               `json:"query,omitempty"`
	Limit        int                  `json:"limit"`
	Properties   []string             `json:"properties,omitempty"`
	Sorts        []string             `json:"sorts,omitempty"`
	FilterGroups []hubspotFilterGroup `json:"filterGroups,omitempty"`
}

type hubspotFilterGroup struct {
	Filters []hubspotFilter `json:"filters"`
}

type hubspotFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type hubspotSearchResponse struct {
	Total   int             `json:"total"`
	Results []hubspotObject `json:"results"`
}

type hubspotObject struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}
