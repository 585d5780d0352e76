package sheets

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/phillip-england/estatecrm/internal/crm"
	"github.com/phillip-england/estatecrm/internal/crmapi"
	"github.com/phillip-england/estatecrm/internal/demoapi"
	"github.com/phillip-england/estatecrm/internal/dispatcher"
	"github.com/phillip-england/estatecrm/internal/logging"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	file := excelize.NewFile()
	defer func() { _ = file.Close() }()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, file.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	_, err := file.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

func TestReadDraftsMatchesNamesAndLabels(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Name", "email", "Budget Min", "propertyPreferences.location", "Notes"},
		{"Kim", "kim@x.io", 100000, "Austin", "ignored"},
		{"", "", "", "", ""},
		{"Lee", "N/A", "", "", ""},
	})

	rows, err := ReadDrafts(buf, "leads.xlsx", crm.MustLookup(crm.KindLeads))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "Kim", rows[0].Draft["name"])
	assert.Equal(t, "kim@x.io", rows[0].Draft["email"])
	assert.Equal(t, "100000", rows[0].Draft["budgetRange.min"])
	assert.Equal(t, "Austin", rows[0].Draft["propertyPreferences.location"])
	assert.Equal(t, "new", rows[0].Draft["status"], "form defaults apply")
	assert.NotContains(t, rows[0].Draft, "Notes")

	assert.Equal(t, 4, rows[1].Line)
	assert.NotContains(t, rows[1].Draft, "email", "placeholders read as blank")
}

func TestReadDraftsErrors(t *testing.T) {
	leads := crm.MustLookup(crm.KindLeads)

	_, err := ReadDrafts(workbook(t, [][]any{{"Color", "Size"}, {"red", "L"}}), "x.xlsx", leads)
	assert.EqualError(t, err, "no lead columns found in header row")

	_, err = ReadDrafts(workbook(t, nil), "x.xlsx", leads)
	assert.EqualError(t, err, "worksheet is empty")

	buyers := crm.MustLookup(crm.KindBuyers)
	_, err = ReadDrafts(workbook(t, [][]any{{"interestedLocation"}, {"Austin"}}), "x.xlsx", buyers)
	assert.ErrorContains(t, err, "missing required column")

	_, err = ReadDrafts(strings.NewReader("not a workbook"), "x.xls", leads)
	assert.Error(t, err)
}

func newDispatcher(t *testing.T) (*dispatcher.Dispatcher, *demoapi.Store) {
	t.Helper()
	handler, store, err := demoapi.NewHandler(demoapi.Config{
		AdminEmail:    "admin",
		AdminPassword: "admin",
		JWTSecret:     "test-secret",
	}, logging.Discard())
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return dispatcher.New(crmapi.New(srv.URL, srv.Client()), logging.Discard()), store
}

func TestImportCreatesRowsAndSummarises(t *testing.T) {
	d, store := newDispatcher(t)
	leads := crm.MustLookup(crm.KindLeads)

	buf := workbook(t, [][]any{
		{"Name", "Status", "Priority"},
		{"Kim", "contacted", "hot"},
		{"Lee", "urgent", ""},
		{"Ana", "", "cold"},
	})
	rows, err := ReadDrafts(buf, "leads.xlsx", leads)
	require.NoError(t, err)

	result := d.Import(context.Background(), leads, rows)
	assert.Equal(t, 2, result.Created)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 3, result.Failures[0].Line)
	assert.Len(t, store.Leads(), 2)
	assert.Len(t, d.Records(crm.KindLeads), 2)

	notices := d.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, dispatcher.LevelError, notices[0].Level)
	assert.Equal(t, "Imported 2 leads, 1 failed (row 3: Please check the lead fields)", notices[0].Text)
}

func TestExportTableRoundTrip(t *testing.T) {
	d, store := newDispatcher(t)
	_, err := store.CreateLead(demoapi.LeadInput{Name: "Kim", Email: "kim@x.io", Status: "qualified"})
	require.NoError(t, err)

	leads := crm.MustLookup(crm.KindLeads)
	require.NoError(t, d.List(context.Background(), leads))
	table := d.RenderList(leads)

	var buf bytes.Buffer
	require.NoError(t, ExportTable(&buf, table))

	file, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = file.Close() }()
	assert.Equal(t, "Leads", file.GetSheetName(0))
	got, err := file.GetRows("Leads")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, leads.Columns(), got[0])
	assert.Equal(t, "Kim", got[1][1])
	assert.Equal(t, "N/A", got[1][3])

	rows, err := ReadDrafts(bytes.NewReader(buf.Bytes()), ExportFilename(crm.KindLeads), leads)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, crm.Draft{"name": "Kim", "email": "kim@x.io", "status": "qualified"}, rows[0].Draft)
}
