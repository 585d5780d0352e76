package dispatcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip-england/estatecrm/internal/crm"
	"github.com/phillip-england/estatecrm/internal/crmapi"
	"github.com/phillip-england/estatecrm/internal/demoapi"
	"github.com/phillip-england/estatecrm/internal/logging"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *demoapi.Store) {
	t.Helper()
	handler, store, err := demoapi.NewHandler(demoapi.Config{
		AdminEmail:    "admin",
		AdminPassword: "admin",
		JWTSecret:     "test-secret",
	}, logging.Discard())
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(crmapi.New(srv.URL, srv.Client()), logging.Discard()), store
}

func noticeTexts(d *Dispatcher) []string {
	var out []string
	for _, n := range d.Notices() {
		out = append(out, n.Text)
	}
	return out
}

func TestCreateThenListIncludesRecordOnce(t *testing.T) {
	tests := []struct {
		kind  crm.Kind
		draft func(leadID string) crm.Draft
		cell  string
	}{
		{crm.KindAgents, func(string) crm.Draft {
			return crm.Draft{"name": "Jo", "email": "jo@x.io", "password": "secret"}
		}, "Jo"},
		{crm.KindLeads, func(string) crm.Draft {
			return crm.Draft{"name": "Kim", "status": "contacted"}
		}, "Kim"},
		{crm.KindBuyers, func(leadID string) crm.Draft {
			return crm.Draft{"leadId": leadID, "interestedLocation": "Austin", "interestedSquareFeet": "900"}
		}, "Austin"},
		{crm.KindSellers, func(leadID string) crm.Draft {
			return crm.Draft{"leadId": leadID, "propertyLocation": "Dallas", "propertySquareFeet": "1200", "propertyValue": "250000", "listingStatus": "available"}
		}, "Dallas"},
	}
	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			d, store := newTestDispatcher(t)
			lead, err := store.CreateLead(demoapi.LeadInput{Name: "Seed"})
			require.NoError(t, err)
			kind := crm.MustLookup(tc.kind)
			ctx := context.Background()
			d.Select(ctx, View(tc.kind))
			before := len(d.RenderList(kind).Rows)

			require.NoError(t, d.Create(ctx, kind, tc.draft(lead.ID)))

			table := d.RenderList(kind)
			require.Len(t, table.Rows, before+1)
			matches := 0
			for _, row := range table.Rows {
				for _, cell := range row.Cells {
					if cell == tc.cell {
						matches++
					}
				}
			}
			assert.Equal(t, 1, matches)

			form, ok := d.RenderForm()
			require.True(t, ok)
			assert.False(t, form.Visible)
			assert.Empty(t, d.Notices())
		})
	}
}

func TestCreateRejectedDraftKeepsForm(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()
	buyers := crm.MustLookup(crm.KindBuyers)
	d.Select(ctx, ViewBuyers)

	err := d.Create(ctx, buyers, crm.Draft{"interestedLocation": "Austin"})
	require.Error(t, err)
	assert.Equal(t, []string{"Please fill in: Lead, Interested Square Feet"}, noticeTexts(d))

	form, ok := d.RenderForm()
	require.True(t, ok)
	assert.True(t, form.Visible)
	for _, in := range form.Inputs {
		if in.Name == "interestedLocation" {
			assert.Equal(t, "Austin", in.Value)
		}
	}
	assert.Empty(t, d.RenderList(buyers).Rows)
}

func TestCreateSurfacesServerMessage(t *testing.T) {
	d, store := newTestDispatcher(t)
	_, err := store.CreateAgent(demoapi.AgentInput{Name: "Jo", Email: "jo@x.io", Password: "secret"})
	require.NoError(t, err)
	ctx := context.Background()
	agents := crm.MustLookup(crm.KindAgents)
	d.Select(ctx, ViewAgents)

	err = d.Create(ctx, agents, crm.Draft{"name": "Jo", "email": "jo@x.io", "password": "secret"})
	require.Error(t, err)
	assert.Equal(t, []string{"Agent with this email already exists"}, noticeTexts(d))
	assert.Len(t, d.RenderList(agents).Rows, 1)
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	d, store := newTestDispatcher(t)
	lead, err := store.CreateLead(demoapi.LeadInput{Name: "Sam"})
	require.NoError(t, err)
	ctx := context.Background()
	leads := crm.MustLookup(crm.KindLeads)
	d.Select(ctx, ViewLeads)
	d.Open(lead.ID)

	d.RequestDelete(lead.ID)
	assert.True(t, d.RenderList(leads).Rows[0].PendingDelete)
	d.CancelDelete()
	assert.Empty(t, d.PendingDelete())
	require.NoError(t, d.ConfirmDelete(ctx))
	assert.Len(t, d.RenderList(leads).Rows, 1)

	d.RequestDelete(lead.ID)
	require.NoError(t, d.ConfirmDelete(ctx))

	assert.Empty(t, d.RenderList(leads).Rows)
	assert.Equal(t, []string{"Deleted successfully!"}, noticeTexts(d))
	_, open := d.RenderDetail()
	assert.False(t, open)
	assert.Empty(t, d.SelectedID())
}

func TestDeleteClosesDetailOfAnotherRecord(t *testing.T) {
	d, store := newTestDispatcher(t)
	kept, err := store.CreateLead(demoapi.LeadInput{Name: "Ana"})
	require.NoError(t, err)
	gone, err := store.CreateLead(demoapi.LeadInput{Name: "Ben"})
	require.NoError(t, err)
	ctx := context.Background()
	d.Select(ctx, ViewLeads)

	d.Open(kept.ID)
	_, open := d.RenderDetail()
	require.True(t, open)

	d.RequestDelete(gone.ID)
	require.NoError(t, d.ConfirmDelete(ctx))

	_, open = d.RenderDetail()
	assert.False(t, open)
	assert.Empty(t, d.SelectedID())
	assert.Len(t, d.Records(crm.KindLeads), 1)
}

func TestDeleteFailureShowsServerMessage(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()
	d.Select(ctx, ViewSellers)

	d.RequestDelete("01HZZZZZZZZZZZZZZZZZZZZZZZ")
	require.Error(t, d.ConfirmDelete(ctx))
	assert.Equal(t, []string{"Seller not found"}, noticeTexts(d))
}

func TestBeginAssignOnlyForAssignableKinds(t *testing.T) {
	d, store := newTestDispatcher(t)
	lead, err := store.CreateLead(demoapi.LeadInput{Name: "Sam"})
	require.NoError(t, err)
	ctx := context.Background()
	d.Select(ctx, ViewLeads)
	d.Open(lead.ID)
	d.BeginAssign()

	det, ok := d.RenderDetail()
	require.True(t, ok)
	assert.False(t, det.CanAssign)
	assert.False(t, det.Assigning)
}

func TestAssignLeadToAgent(t *testing.T) {
	d, store := newTestDispatcher(t)
	agent, err := store.CreateAgent(demoapi.AgentInput{Name: "Jo", Email: "jo@x.io", Password: "secret"})
	require.NoError(t, err)
	lead, err := store.CreateLead(demoapi.LeadInput{Name: "Sam"})
	require.NoError(t, err)
	ctx := context.Background()
	d.Select(ctx, ViewAgents)
	d.Open(agent.ID)
	d.BeginAssign()

	det, ok := d.RenderDetail()
	require.True(t, ok)
	assert.True(t, det.CanAssign)
	assert.True(t, det.Assigning)
	require.Len(t, det.LeadOptions, 2)
	assert.Equal(t, "Sam", det.LeadOptions[1].Label)

	assert.ErrorIs(t, d.AssignLeadToAgent(ctx, agent.ID, ""), ErrNoLeadSelected)
	assert.Equal(t, []string{"Please select a lead"}, noticeTexts(d))

	require.NoError(t, d.AssignLeadToAgent(ctx, agent.ID, lead.ID))
	assert.Contains(t, noticeTexts(d), "Lead assigned successfully!")
	_, open := d.RenderDetail()
	assert.False(t, open)

	leads := d.Records(crm.KindLeads)
	require.Len(t, leads, 1)
	assert.Equal(t, agent.ID, leads[0].(crm.Lead).AssignedAgent)
	agents := d.Records(crm.KindAgents)
	assert.Equal(t, []string{lead.ID}, agents[0].(crm.Agent).AssignedLeads)

	require.Error(t, d.AssignLeadToAgent(ctx, agent.ID, lead.ID))
	assert.Contains(t, noticeTexts(d), "Lead already assigned to this agent")
}

func TestUpdateLeadStatusRefreshesLeadsAndAgents(t *testing.T) {
	d, store := newTestDispatcher(t)
	agent, _ := store.CreateAgent(demoapi.AgentInput{Name: "Jo", Email: "jo@x.io", Password: "secret"})
	lead, _ := store.CreateLead(demoapi.LeadInput{Name: "Sam", Status: "new"})
	ctx := context.Background()
	d.Select(ctx, ViewLeads)
	d.Open(lead.ID)

	status := crm.LeadQualified
	agentID := agent.ID
	require.NoError(t, d.UpdateLeadStatus(ctx, lead.ID, crmapi.LeadUpdate{Status: &status, AssignedAgent: &agentID}))

	got := d.Records(crm.KindLeads)[0].(crm.Lead)
	assert.Equal(t, crm.LeadQualified, got.Status)
	assert.Equal(t, agent.ID, got.AssignedAgent)
	assert.Equal(t, []string{lead.ID}, d.Records(crm.KindAgents)[0].(crm.Agent).AssignedLeads)

	det, ok := d.RenderDetail()
	require.True(t, ok)
	require.Len(t, det.Edits, 2)
	assert.Equal(t, "qualified", det.Edits[0].Value)
	assert.Equal(t, agent.ID, det.Edits[1].Value)
	assert.Equal(t, "Unassigned", det.Edits[1].Options[0].Label)

	require.Error(t, d.UpdateLeadStatus(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", crmapi.LeadUpdate{Status: &status}))
	assert.Equal(t, []string{"Lead not found"}, noticeTexts(d))
}

func TestUpdateSellerListingStatus(t *testing.T) {
	d, store := newTestDispatcher(t)
	lead, _ := store.CreateLead(demoapi.LeadInput{Name: "Sam"})
	seller, err := store.CreateSeller(demoapi.SellerInput{LeadID: lead.ID, PropertyLocation: "Austin"})
	require.NoError(t, err)
	ctx := context.Background()
	d.Select(ctx, ViewSellers)

	require.NoError(t, d.UpdateSellerListingStatus(ctx, seller.ID, crmapi.SellerUpdate{ListingStatus: crm.ListingUnderOffer}))
	got := d.Records(crm.KindSellers)[0].(crm.Seller)
	assert.Equal(t, crm.ListingUnderOffer, got.ListingStatus)
}

func TestListTwiceRendersSameTable(t *testing.T) {
	d, store := newTestDispatcher(t)
	lead, _ := store.CreateLead(demoapi.LeadInput{Name: "Sam"})
	_, _ = store.CreateBuyer(demoapi.BuyerInput{LeadID: lead.ID, InterestedLocation: "Austin"})
	ctx := context.Background()
	buyers := crm.MustLookup(crm.KindBuyers)

	require.NoError(t, d.List(ctx, buyers))
	first := d.RenderList(buyers)
	require.NoError(t, d.List(ctx, buyers))
	assert.Equal(t, first, d.RenderList(buyers))
	assert.Equal(t, "None", first.Rows[0].Cells[3])
}

func TestSelectRefreshesReferenceLists(t *testing.T) {
	d, store := newTestDispatcher(t)
	_, _ = store.CreateAgent(demoapi.AgentInput{Name: "Jo", Email: "jo@x.io", Password: "secret"})
	_, _ = store.CreateLead(demoapi.LeadInput{Name: "Sam"})
	ctx := context.Background()

	d.Select(ctx, ViewAnalytics)
	assert.Empty(t, d.Records(crm.KindAgents))

	d.Select(ctx, ViewBuyers)
	assert.Len(t, d.Records(crm.KindAgents), 1)
	assert.Len(t, d.Records(crm.KindLeads), 1)

	form, ok := d.RenderForm()
	require.True(t, ok)
	require.Equal(t, "leadId", form.Inputs[0].Name)
	assert.Equal(t, "Sam", form.Inputs[0].Options[1].Label)
}

func TestSelectResetsDetailAndForm(t *testing.T) {
	d := New(nil, logging.Discard())
	d.view = ViewLeads
	d.ToggleForm()
	d.Open("l1")
	d.RequestDelete("l1")

	d.Select(context.Background(), ViewDashboard)
	assert.Empty(t, d.SelectedID())
	assert.Empty(t, d.PendingDelete())
	_, ok := d.RenderForm()
	assert.False(t, ok)
}

type sequencedAPI struct {
	API
	calls   atomic.Int32
	release chan struct{}
}

func (s *sequencedAPI) List(context.Context, crm.RecordKind) ([]crm.Record, error) {
	if s.calls.Add(1) == 1 {
		<-s.release
		return []crm.Record{crm.Lead{ID: "stale"}}, nil
	}
	return []crm.Record{crm.Lead{ID: "fresh"}}, nil
}

func TestStaleListResponseIsDropped(t *testing.T) {
	api := &sequencedAPI{release: make(chan struct{})}
	d := New(api, logging.Discard())
	leads := crm.MustLookup(crm.KindLeads)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = d.List(ctx, leads)
	}()
	require.Eventually(t, func() bool { return api.calls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, d.List(ctx, leads))
	close(api.release)
	wg.Wait()

	records := d.Records(crm.KindLeads)
	require.Len(t, records, 1)
	assert.Equal(t, "fresh", records[0].RecordID())
}

type failingAPI struct {
	API
	err error
}

func (f failingAPI) List(context.Context, crm.RecordKind) ([]crm.Record, error) { return nil, f.err }

func (f failingAPI) AssignLead(context.Context, string, string) error { return f.err }

func TestTransportFailuresUseFallbackNotices(t *testing.T) {
	api := failingAPI{err: &crmapi.Error{Op: "assign", Kind: crmapi.KindTransport, Err: errors.New("connection refused")}}
	d := New(api, logging.Discard())
	ctx := context.Background()

	d.Select(ctx, ViewAgents)
	assert.Empty(t, d.Notices())

	require.Error(t, d.AssignLeadToAgent(ctx, "a1", "l1"))
	assert.Equal(t, []string{"Error assigning lead"}, noticeTexts(d))

	rejected := failingAPI{err: &crmapi.Error{Op: "assign", Kind: crmapi.KindRejected, Status: http.StatusBadRequest}}
	d.Bind(rejected)
	require.Error(t, d.AssignLeadToAgent(ctx, "a1", "l1"))
	assert.Equal(t, "Error assigning lead", noticeTexts(d)[1])
}

func TestDismissNotice(t *testing.T) {
	d := New(nil, logging.Discard())
	d.Notify(LevelInfo, "one")
	d.Notify(LevelError, "two")

	first := d.Notices()[0]
	d.Dismiss(first.ID)
	assert.Equal(t, []string{"two"}, noticeTexts(d))
	d.Dismiss("missing")
	assert.Len(t, d.Notices(), 1)
}

func TestViews(t *testing.T) {
	assert.Equal(t, []View{ViewDashboard, ViewLeads, ViewAgents, ViewBuyers, ViewSellers, ViewAnalytics}, Views())
	v, ok := ParseView("sellers")
	assert.True(t, ok)
	assert.Equal(t, ViewSellers, v)
	_, ok = ParseView("reports")
	assert.False(t, ok)
	assert.Equal(t, "Analytics", ViewAnalytics.Label())
	assert.Equal(t, "Under Offer", Title("under offer"))
}
