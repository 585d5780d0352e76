package consoleapp

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/phillip-england/estatecrm/internal/analytics"
	"github.com/phillip-england/estatecrm/internal/crm"
	"github.com/phillip-england/estatecrm/internal/crmapi"
	"github.com/phillip-england/estatecrm/internal/dispatcher"
	"github.com/phillip-england/estatecrm/internal/logging"
	"github.com/phillip-england/estatecrm/internal/session"
	"github.com/phillip-england/estatecrm/internal/sheets"
)

const maxImportBytes = 10 << 20

type loginPageData struct {
	Error    string
	Email    string
	Password string
	Demo     string
}

type navItem struct {
	View   dispatcher.View
	Label  string
	Active bool
}

type adminPageData struct {
	Subject   string
	Nav       []navItem
	View      dispatcher.View
	ViewLabel string
	Notices   []dispatcher.Notice

	Records bool
	Table   dispatcher.Table
	Form    dispatcher.Form
	Detail  *dispatcher.Detail
	Import  bool

	Analytics *analytics.Page
}

func (s *server) loginPage(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	if s.gate.Token(r.Context(), sid) != "" {
		http.Redirect(w, r, session.DashboardPath, http.StatusFound)
		return
	}
	s.renderLogin(w, r, loginPageData{Email: s.cfg.DemoEmail, Password: s.cfg.DemoPassword})
}

func (s *server) renderLogin(w http.ResponseWriter, r *http.Request, data loginPageData) {
	if s.cfg.DemoEmail != "" {
		data.Demo = s.cfg.DemoEmail + " / " + s.cfg.DemoPassword
	}
	if err := renderHTMLTemplate(w, s.loginTmpl, data); err != nil {
		http.Error(w, "template render failed", http.StatusInternalServerError)
		logging.FromContext(r.Context()).Error("login template render failed", "error", err)
	}
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderLogin(w, r, loginPageData{Error: "Invalid form submission"})
		return
	}
	sid := s.sessionID(w, r)
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	out := s.gate.Login(r.Context(), sid, email, password)
	if out.Redirect == "" {
		s.renderLogin(w, r, loginPageData{Error: out.Error, Email: out.Email})
		return
	}
	http.Redirect(w, r, out.Redirect, http.StatusSeeOther)
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookieName); err == nil {
		if err := s.gate.Logout(r.Context(), c.Value); err != nil {
			logging.FromContext(r.Context()).Warn("clear session failed", "error", err)
		}
		s.spaces.drop(c.Value)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) adminPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws, token := s.workspace(w, r)
	view := ws.records.View()

	data := adminPageData{
		Subject:   session.Subject(token),
		View:      view,
		ViewLabel: view.Label(),
	}
	for _, v := range dispatcher.Views() {
		data.Nav = append(data.Nav, navItem{View: v, Label: v.Label(), Active: v == view})
	}

	if kind, ok := view.RecordKind(); ok {
		table := ws.records.RenderList(kind)
		if !table.Loaded {
			ws.records.Select(ctx, view)
			table = ws.records.RenderList(kind)
		}
		data.Records = true
		data.Table = table
		data.Form, _ = ws.records.RenderForm()
		if det, ok := ws.records.RenderDetail(); ok {
			data.Detail = &det
		}
		data.Import = kind.Importable()
	}
	if view == dispatcher.ViewAnalytics {
		if ws.analytics.State() == analytics.StateLoading {
			_ = ws.analytics.Load(ctx)
		}
		page := ws.analytics.Page()
		data.Analytics = &page
	}
	data.Notices = ws.records.Notices()

	if err := renderHTMLTemplate(w, s.adminTmpl, data); err != nil {
		http.Error(w, "template render failed", http.StatusInternalServerError)
		logging.FromContext(ctx).Error("admin template render failed", "error", err)
	}
}

func (s *server) selectView(w http.ResponseWriter, r *http.Request) {
	view, ok := dispatcher.ParseView(chi.URLParam(r, "view"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	ws, _ := s.workspace(w, r)
	ws.records.Select(r.Context(), view)
	if view == dispatcher.ViewAnalytics {
		_ = ws.analytics.Load(r.Context())
	}
	backToDashboard(w, r)
}

func (s *server) toggleForm(w http.ResponseWriter, r *http.Request) {
	ws, _ := s.workspace(w, r)
	ws.records.ToggleForm()
	backToDashboard(w, r)
}

func (s *server) createRecord(w http.ResponseWriter, r *http.Request) {
	ws, _ := s.workspace(w, r)
	kind, ok := ws.records.View().RecordKind()
	if !ok {
		backToDashboard(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		ws.records.Notify(dispatcher.LevelError, "Invalid form submission")
		backToDashboard(w, r)
		return
	}
	draft := crm.Draft{}
	for _, f := range kind.FormFields() {
		if values, ok := r.PostForm[f.Name]; ok && len(values) > 0 {
			draft[f.Name] = values[0]
		}
	}
	_ = ws.records.Create(r.Context(), kind, draft)
	backToDashboard(w, r)
}

func (s *server) openRecord(w http.ResponseWriter, r *http.Request) {
	ws, _ := s.workspace(w, r)
	ws.records.Open(chi.URLParam(r, "id"))
	backToDashboard(w, r)
}

func (s *server) closeDetail(w http.ResponseWriter, r *http.Request) {
	ws, _ := s.workspace(w, r)
	ws.records.Close()
	backToDashboard(w, r)
}

func (s *server) beginAssign(w http.ResponseWriter, r *http.Request) {
	ws, _ := s.workspace(w, r)
	ws.records.BeginAssign()
	backToDashboard(w, r)
}

func (s *server) requestDelete(w http.ResponseWriter, r *http.Request) {
	ws, _ := s.workspace(w, r)
	ws.records.RequestDelete(chi.URLParam(r, "id"))
	backToDashboard(w, r)
}

func (s *server) confirmDelete(w http.ResponseWriter, r *http.Request) {
	ws, _ := s.workspace(w, r)
	if ws.records.PendingDelete() == chi.URLParam(r, "id") {
		_ = ws.records.ConfirmDelete(r.Context())
	}
	backToDashboard(w, r)
}

func (s *server) cancelDelete(w http.ResponseWriter, r *http.Request) {
	ws, _ := s.workspace(w, r)
	ws.records.CancelDelete()
	backToDashboard(w, r)
}

func (s *server) assignLead(w http.ResponseWriter, r *http.Request) {
	ws, _ := s.workspace(w, r)
	_ = ws.records.AssignLeadToAgent(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(r.PostFormValue("leadId")))
	backToDashboard(w, r)
}

func (s *server) updateLead(w http.ResponseWriter, r *http.Request) {
	ws, _ := s.workspace(w, r)
	if err := r.ParseForm(); err != nil {
		ws.records.Notify(dispatcher.LevelError, "Invalid form submission")
		backToDashboard(w, r)
		return
	}
	var update crmapi.LeadUpdate
	if values, ok := r.PostForm["status"]; ok && len(values) > 0 && values[0] != "" {
		status := crm.LeadStatus(values[0])
		update.Status = &status
	}
	if values, ok := r.PostForm["assignedAgent"]; ok && len(values) > 0 {
		agent := values[0]
		update.AssignedAgent = &agent
	}
	_ = ws.records.UpdateLeadStatus(r.Context(), chi.URLParam(r, "id"), update)
	backToDashboard(w, r)
}

func (s *server) updateSeller(w http.ResponseWriter, r *http.Request) {
	ws, _ := s.workspace(w, r)
	status := strings.TrimSpace(r.PostFormValue("listingStatus"))
	if status != "" {
		_ = ws.records.UpdateSellerListingStatus(r.Context(), chi.URLParam(r, "id"), crmapi.SellerUpdate{ListingStatus: crm.ListingStatus(status)})
	}
	backToDashboard(w, r)
}

func (s *server) dismissNotice(w http.ResponseWriter, r *http.Request) {
	ws, _ := s.workspace(w, r)
	ws.records.Dismiss(chi.URLParam(r, "id"))
	backToDashboard(w, r)
}

// exportRecords downloads a list as a workbook. The kind comes from the
// query string, or the current view when omitted.
func (s *server) exportRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws, _ := s.workspace(w, r)

	kind, ok := ws.records.View().RecordKind()
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind, ok = crm.Lookup(crm.Kind(raw))
	}
	if !ok {
		http.Error(w, "pick a record list to export", http.StatusBadRequest)
		return
	}

	table := ws.records.RenderList(kind)
	if !table.Loaded {
		if err := ws.records.List(ctx, kind); err != nil {
			http.Error(w, crmapi.UserMessage(err, "unable to load records"), http.StatusBadGateway)
			return
		}
		table = ws.records.RenderList(kind)
	}

	w.Header().Set("Content-Type", sheets.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sheets.ExportFilename(kind.Kind())))
	if err := sheets.ExportTable(w, table); err != nil {
		logging.FromContext(ctx).Error("export failed", "kind", kind.Kind(), "error", err)
	}
}

func (s *server) importLeads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws, _ := s.workspace(w, r)
	leads := crm.MustLookup(crm.KindLeads)

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		ws.records.Notify(dispatcher.LevelError, "Upload a spreadsheet to import")
		backToDashboard(w, r)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		ws.records.Notify(dispatcher.LevelError, "Upload a spreadsheet to import")
		backToDashboard(w, r)
		return
	}
	defer file.Close()

	rows, err := sheets.ReadDrafts(file, header.Filename, leads)
	if err != nil {
		logging.FromContext(ctx).Warn("read import failed", "file", header.Filename, "error", err)
		ws.records.Notify(dispatcher.LevelError, "Import failed: "+err.Error())
		backToDashboard(w, r)
		return
	}
	ws.records.Import(ctx, leads, rows)
	backToDashboard(w, r)
}
