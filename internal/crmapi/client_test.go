package crmapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip-england/estatecrm/internal/crm"
	"github.com/phillip-england/estatecrm/internal/logging"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, srv.Client())
}

func TestLoginReturnsToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"email": "admin", "password": "admin"}, body)
		_, _ = io.WriteString(w, `{"access_token":"tok-1"}`)
	})

	token, err := c.Login(context.Background(), "admin", "admin")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestLoginRejectionCarriesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"msg":"Incorrect password"}`)
	})

	_, err := c.Login(context.Background(), "admin", "nope")
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.False(t, IsTransport(err))
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Equal(t, "Incorrect password", UserMessage(err, "Invalid credentials"))
}

func TestRejectionReadsOnlyMsg(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"bad payload"}`)
	})

	err := c.Delete(context.Background(), crm.MustLookup(crm.KindLeads), "l1")
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.Equal(t, "Unable to delete entry", UserMessage(err, "Unable to delete entry"))
}

func TestLoginWithoutTokenIsDecodeFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})

	_, err := c.Login(context.Background(), "admin", "admin")
	require.Error(t, err)
	assert.True(t, IsTransport(err))
}

func TestRejectionWithoutJSONBodyIsDecodeFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	err := c.Delete(context.Background(), crm.MustLookup(crm.KindAgents), "a1")
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, "Unable to delete entry", UserMessage(err, "Unable to delete entry"))
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(srv.URL, nil)

	_, err := c.List(context.Background(), crm.MustLookup(crm.KindLeads))
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, 0, StatusCode(err))
}

func TestListSendsTokenAndTrace(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/buyers", r.URL.Path)
		assert.Equal(t, "Bearer tok-9", r.Header.Get("Authorization"))
		assert.Equal(t, "trace-7", r.Header.Get("X-Trace-ID"))
		_, _ = io.WriteString(w, `[{"_id":"b1","leadId":"l1","interestedLocation":"Austin","interestedSquareFeet":"800"}]`)
	})

	ctx := logging.WithTraceID(context.Background(), "trace-7")
	records, err := c.WithToken("tok-9").List(ctx, crm.MustLookup(crm.KindBuyers))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 800.0, records[0].(crm.Buyer).InterestedSquareFeet.Value)
}

func TestWithTokenDoesNotMutateParent(t *testing.T) {
	c := New("http://example.test/", nil)
	scoped := c.WithToken("abc")
	assert.Empty(t, c.token)
	assert.Equal(t, "abc", scoped.token)
	assert.Equal(t, "http://example.test", scoped.BaseURL())
}

func TestMutationsHitExpectedRoutes(t *testing.T) {
	type call struct {
		method, path string
		body         map[string]any
	}
	var calls []call
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, call{r.Method, r.URL.Path, body})
		_, _ = io.WriteString(w, `{"msg":"ok"}`)
	})
	ctx := context.Background()

	status := crm.LeadQualified
	unassign := ""
	require.NoError(t, c.AssignLead(ctx, "a1", "l1"))
	require.NoError(t, c.UpdateLead(ctx, "l1", LeadUpdate{Status: &status}))
	require.NoError(t, c.UpdateLead(ctx, "l1", LeadUpdate{AssignedAgent: &unassign}))
	require.NoError(t, c.UpdateSeller(ctx, "s1", SellerUpdate{ListingStatus: crm.ListingSold}))
	_, err := c.Create(ctx, crm.MustLookup(crm.KindAgents), map[string]any{"name": "Jo"})
	require.NoError(t, err)

	require.Len(t, calls, 5)
	assert.Equal(t, call{"POST", "/agents/a1/assign-lead", map[string]any{"leadId": "l1"}}, calls[0])
	assert.Equal(t, call{"PUT", "/leads/l1", map[string]any{"status": "qualified"}}, calls[1])
	assert.Equal(t, call{"PUT", "/leads/l1", map[string]any{"assignedAgent": nil}}, calls[2])
	assert.Equal(t, call{"PUT", "/sellers/s1", map[string]any{"listingStatus": "sold"}}, calls[3])
	assert.Equal(t, call{"POST", "/agents", map[string]any{"name": "Jo"}}, calls[4])
}

func TestAnalyticsGetters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/analytics/conversion-rate":
			_, _ = io.WriteString(w, `{"totalLeads":4,"completedLeads":1,"conversionRate":25}`)
		case "/analytics/market-demand-vs-supply":
			_, _ = io.WriteString(w, `{"Austin":{"buyers":2,"sellers":1}}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	rate, err := c.ConversionRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25.0, rate.ConversionRate)

	ds, err := c.DemandVsSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, crm.DemandSupply{Buyers: 2, Sellers: 1}, ds["Austin"])

	_, err = c.MarketValue(ctx)
	assert.Error(t, err)
}
