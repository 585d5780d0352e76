package crmcli

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/phillip-england/estatecrm/internal/crm"
	"github.com/phillip-england/estatecrm/internal/demoapi"
	"github.com/phillip-england/estatecrm/internal/logging"
)

func newAPI(t *testing.T) (*httptest.Server, *demoapi.Store) {
	t.Helper()
	handler, store, err := demoapi.NewHandler(demoapi.Config{
		AdminEmail:    "admin",
		AdminPassword: "admin",
		JWTSecret:     "test-secret",
	}, logging.Discard())
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, store
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSetupWritesEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.env")
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"setup", "--env-file", path, "--admin-password", "hunter22", "--jwt-secret", "s3cret"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ADMIN_PASSWORD="hunter22"`)
	assert.Contains(t, string(data), `JWT_SECRET="s3cret"`)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSetupValidatesInput(t *testing.T) {
	_, err := run(t, "setup", "--admin-password", "abc", "--jwt-secret", "x")
	assert.ErrorContains(t, err, "invalid admin password")

	_, err = run(t, "setup", "--admin-password", "admin")
	assert.EqualError(t, err, "--jwt-secret is required")
}

func TestRunRejectsUnknownTarget(t *testing.T) {
	_, err := run(t, "run", "worker")
	assert.Error(t, err)
}

func TestExportWritesWorkbook(t *testing.T) {
	api, store := newAPI(t)
	_, err := store.CreateLead(demoapi.LeadInput{Name: "Kim", Email: "kim@x.io"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "leads.xlsx")
	out, err := run(t, "export", "leads", "--api", api.URL, "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 1 Leads to "+path)

	file, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer file.Close()
	rows, err := file.GetRows("Leads")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, crm.MustLookup(crm.KindLeads).Columns(), rows[0])
	assert.Equal(t, "Kim", rows[1][1])
}

func TestExportRejectsUnknownKind(t *testing.T) {
	_, err := run(t, "export", "offices")
	assert.Error(t, err)
}

func TestCommandsReportLoginFailure(t *testing.T) {
	api, _ := newAPI(t)
	_, err := run(t, "analytics", "--api", api.URL, "--password", "wrong")
	assert.EqualError(t, err, "login: Incorrect password")
}

func TestImportLeadsFromWorkbook(t *testing.T) {
	api, store := newAPI(t)

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]string{"Name", "Email", "Status"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]string{"Kim", "kim@x.io", "contacted"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]string{"Lee", "", ""}))
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	out, err := run(t, "import-leads", path, "--api", api.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 leads")
	assert.Len(t, store.Leads(), 2)
}

func TestImportLeadsMissingFile(t *testing.T) {
	_, err := run(t, "import-leads", filepath.Join(t.TempDir(), "none.xlsx"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAnalyticsPrintsTiles(t *testing.T) {
	api, store := newAPI(t)
	lead, err := store.CreateLead(demoapi.LeadInput{Name: "Kim"})
	require.NoError(t, err)
	_, err = store.CreateSeller(demoapi.SellerInput{
		LeadID:           lead.ID,
		PropertyLocation: "Dallas",
		PropertyValue:    crm.NumberOf(250000),
	})
	require.NoError(t, err)

	out, err := run(t, "analytics", "--api", api.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Most properties are listed in Dallas (1 listings)")
	assert.Contains(t, out, "No buyer data available")
}
