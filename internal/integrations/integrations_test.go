package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sophiahq/sophia-gateway/internal/config"
)

func TestHubSpotContactsSince(t *testing.T) {
	var gotReq hubspotSearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/contacts/search", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(hubspotSearchResponse{
			Total: 1,
			Results: []hubspotObject{{
				ID: "101",
				Properties: map[string]string{
					"email":            "ada@example.com",
					"firstname":        "Ada",
					"lastname":         "Lovelace",
					"company":          "Analytical Engines",
					"lastmodifieddate": "2026-03-01T10:00:00.000Z",
				},
			}},
		})
	}))
	defer srv.Close()

	client := NewHubSpotClient(&config.HubSpotConfig{BaseURL: srv.URL, APIKey: "test-key"})
	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	contacts, err := client.ContactsSince(context.Background(), since, 50)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "ada@example.com", contacts[0].Email)
	assert.Equal(t, "Analytical Engines", contacts[0].Company)
	assert.Equal(t, 2026, contacts[0].UpdatedAt.Year())

	require.Len(t, gotReq.FilterGroups, 1)
	filter := gotReq.FilterGroups[0].Filters[0]
	assert.Equal(t, "lastmodifieddate", filter.PropertyName)
	assert.Equal(t, "GT", filter.Operator)
	assert.Equal(t, fmt.Sprintf("%d", since.UnixMilli()), filter.Value)
}

func TestHubSpotZeroSinceOmitsFilter(t *testing.T) {
	var gotReq hubspotSearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(hubspotSearchResponse{})
	}))
	defer srv.Close()

	client := NewHubSpotClient(&config.HubSpotConfig{BaseURL: srv.URL, APIKey: "k"})
	_, err := client.ContactsSince(context.Background(), time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, gotReq.FilterGroups)
	assert.Equal(t, 100, gotReq.Limit)
}

func TestHubSpotRetriesTransientFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(hubspotSearchResponse{})
	}))
	defer srv.Close()

	client := NewHubSpotClient(&config.HubSpotConfig{BaseURL: srv.URL, APIKey: "k"})
	_, err := client.SearchContacts(context.Background(), "ada", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGongCallsSince(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/calls", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "ak", user)
		assert.Equal(t, "sk", pass)
		assert.Equal(t, "2026-02-01T00:00:00Z", r.URL.Query().Get("fromDateTime"))

		json.NewEncoder(w).Encode(gongCallsResponse{Calls: []gongCall{
			{ID: "c1", Title: "pricing call", Started: "2026-02-02T15:00:00Z", Duration: 1800},
		}})
	}))
	defer srv.Close()

	client := NewGongClient(&config.GongConfig{BaseURL: srv.URL, AccessKey: "ak", SecretKey: "sk"})
	calls, err := client.CallsSince(context.Background(), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "pricing call", calls[0].Title)
	assert.Equal(t, 1800, calls[0].Duration)
	assert.Equal(t, time.Date(2026, 2, 2, 15, 0, 0, 0, time.UTC), calls[0].Started)
}

func TestSlackPostMessage(t *testing.T) {
	var gotReq slackPostRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		assert.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(slackAPIResponse{OK: true})
	}))
	defer srv.Close()

	client := NewSlackClient(&config.SlackConfig{BaseURL: srv.URL, BotToken: "xoxb-test", DefaultChannel: "#revops"})
	require.NoError(t, client.PostMessage(context.Background(), "", "sync complete"))
	assert.Equal(t, "#revops", gotReq.Channel)
	assert.Equal(t, "sync complete", gotReq.Text)
}

func TestSlackErrorInOKBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(slackAPIResponse{OK: false, Error: "channel_not_found"})
	}))
	defer srv.Close()

	client := NewSlackClient(&config.SlackConfig{BaseURL: srv.URL, BotToken: "t"})
	err := client.PostMessage(context.Background(), "#nope", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestSlackNoChannel(t *testing.T) {
	client := NewSlackClient(&config.SlackConfig{BotToken: "t"})
	assert.Error(t, client.PostMessage(context.Background(), "", "hi"))
}
