package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/phillip-england/estatecrm/internal/crm"
	"github.com/phillip-england/estatecrm/internal/crmapi"
)

const (
	msgCreateFailed   = "Error"
	msgDeleteFailed   = "Unable to delete entry"
	msgDeleted        = "Deleted successfully!"
	msgSelectLead     = "Please select a lead"
	msgAssignFailed   = "Error assigning lead"
	msgAssigned       = "Lead assigned successfully!"
	msgLeadUpdate     = "Unable to update lead"
	msgSellerUpdate   = "Unable to update seller"
	msgNoRecordedKind = "Pick a record list first"
)

var (
	ErrNoLeadSelected = errors.New("no lead selected")
	ErrNotRecordView  = errors.New("current view has no records")
)

// API is the part of the CRM client the dispatcher drives.
type API interface {
	List(ctx context.Context, kind crm.RecordKind) ([]crm.Record, error)
	Create(ctx context.Context, kind crm.RecordKind, payload map[string]any) (json.RawMessage, error)
	Delete(ctx context.Context, kind crm.RecordKind, id string) error
	AssignLead(ctx context.Context, agentID, leadID string) error
	UpdateLead(ctx context.Context, id string, update crmapi.LeadUpdate) error
	UpdateSeller(ctx context.Context, id string, update crmapi.SellerUpdate) error
}

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notice is a queued message for the operator, shown until dismissed.
type Notice struct {
	ID    string
	Level Level
	Text  string
}

// Dispatcher is the record view model of one console session. All state is
// guarded by mu; network calls run without holding it.
type Dispatcher struct {
	logger *slog.Logger

	mu            sync.Mutex
	api           API
	view          View
	snapshots     map[crm.Kind][]crm.Record
	loaded        map[crm.Kind]bool
	generations   map[crm.Kind]uint64
	draft         crm.Draft
	showForm      bool
	selectedID    string
	assigning     bool
	selectedLead  string
	pendingDelete string
	notices       []Notice
}

func New(api API, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:      logger,
		api:         api,
		view:        DefaultView,
		snapshots:   map[crm.Kind][]crm.Record{},
		loaded:      map[crm.Kind]bool{},
		generations: map[crm.Kind]uint64{},
		draft:       crm.Draft{},
	}
}

// Bind swaps the API used for subsequent calls, e.g. after a new login.
func (d *Dispatcher) Bind(api API) {
	d.mu.Lock()
	d.api = api
	d.mu.Unlock()
}

func (d *Dispatcher) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view
}

// Records returns a copy of the current snapshot of kind.
func (d *Dispatcher) Records(kind crm.Kind) []crm.Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]crm.Record, len(d.snapshots[kind]))
	copy(out, d.snapshots[kind])
	return out
}

// List reads a whole collection and replaces its snapshot. A response that
// was overtaken by a newer List of the same kind is dropped.
func (d *Dispatcher) List(ctx context.Context, kind crm.RecordKind) error {
	k := kind.Kind()
	d.mu.Lock()
	d.generations[k]++
	gen := d.generations[k]
	api := d.api
	d.mu.Unlock()

	records, err := api.List(ctx, kind)
	if err != nil {
		d.logger.ErrorContext(ctx, "list records failed", "kind", k, "error", err)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.generations[k] != gen {
		d.logger.DebugContext(ctx, "stale list response dropped", "kind", k, "generation", gen)
		return nil
	}
	d.snapshots[k] = records
	d.loaded[k] = true
	return nil
}

// refresh lists each distinct kind concurrently. Failures are logged by
// List and otherwise ignored.
func (d *Dispatcher) refresh(ctx context.Context, kinds ...crm.Kind) {
	seen := map[crm.Kind]bool{}
	var g errgroup.Group
	for _, k := range kinds {
		if seen[k] {
			continue
		}
		seen[k] = true
		kind, ok := crm.Lookup(k)
		if !ok {
			continue
		}
		g.Go(func() error {
			_ = d.List(ctx, kind)
			return nil
		})
	}
	_ = g.Wait()
}

// Select switches the view. Record views refresh their own list plus the
// agent and lead lists that feed the pickers.
func (d *Dispatcher) Select(ctx context.Context, view View) {
	d.mu.Lock()
	if view != d.view {
		d.view = view
		d.resetViewStateLocked()
	}
	d.mu.Unlock()

	kind, ok := view.RecordKind()
	if !ok {
		return
	}
	d.refresh(ctx, kind.Kind(), crm.KindAgents, crm.KindLeads)
}

func (d *Dispatcher) resetViewStateLocked() {
	d.showForm = false
	d.draft = crm.Draft{}
	if kind, ok := d.view.RecordKind(); ok {
		d.draft = crm.NewDraft(kind)
	}
	d.closeLocked()
}

func (d *Dispatcher) closeLocked() {
	d.selectedID = ""
	d.assigning = false
	d.selectedLead = ""
	d.pendingDelete = ""
}

func (d *Dispatcher) currentKind() (crm.RecordKind, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view.RecordKind()
}

func (d *Dispatcher) ToggleForm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.showForm = !d.showForm
	if d.showForm && len(d.draft) == 0 {
		if kind, ok := d.view.RecordKind(); ok {
			d.draft = crm.NewDraft(kind)
		}
	}
}

// Create sends draft as a new record of kind. The draft is kept when the
// record is rejected so the operator can fix it.
func (d *Dispatcher) Create(ctx context.Context, kind crm.RecordKind, draft crm.Draft) error {
	d.mu.Lock()
	d.draft = draft.Clone()
	d.showForm = true
	api := d.api
	d.mu.Unlock()

	payload := crm.Payload(kind, draft)
	if err := crm.Validate(kind, payload); err != nil {
		var draftErr *crm.DraftError
		if errors.As(err, &draftErr) {
			d.notify(LevelError, draftErr.Notice(kind))
		} else {
			d.notify(LevelError, msgCreateFailed)
		}
		d.logger.WarnContext(ctx, "draft rejected", "kind", kind.Kind(), "error", err)
		return err
	}

	created, err := api.Create(ctx, kind, payload)
	if err != nil {
		d.logger.ErrorContext(ctx, "create failed", "kind", kind.Kind(), "error", err)
		d.notify(LevelError, crmapi.UserMessage(err, msgCreateFailed))
		return err
	}
	d.logger.InfoContext(ctx, "record created", "kind", kind.Kind(), "bytes", len(created))

	d.mu.Lock()
	d.draft = crm.NewDraft(kind)
	d.showForm = false
	d.mu.Unlock()

	_ = d.List(ctx, kind)
	return nil
}

func (d *Dispatcher) RequestDelete(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingDelete = id
}

func (d *Dispatcher) CancelDelete() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingDelete = ""
}

func (d *Dispatcher) PendingDelete() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pendingDelete
}

// ConfirmDelete deletes the record awaiting confirmation, if any.
func (d *Dispatcher) ConfirmDelete(ctx context.Context) error {
	d.mu.Lock()
	id := d.pendingDelete
	d.pendingDelete = ""
	kind, ok := d.view.RecordKind()
	api := d.api
	d.mu.Unlock()

	if id == "" {
		return nil
	}
	if !ok {
		d.notify(LevelError, msgNoRecordedKind)
		return ErrNotRecordView
	}

	if err := api.Delete(ctx, kind, id); err != nil {
		d.logger.ErrorContext(ctx, "delete failed", "kind", kind.Kind(), "id", id, "error", err)
		d.notify(LevelError, crmapi.UserMessage(err, msgDeleteFailed))
		return err
	}

	d.notify(LevelSuccess, msgDeleted)
	d.mu.Lock()
	d.closeLocked()
	d.mu.Unlock()

	_ = d.List(ctx, kind)
	return nil
}

// Open shows the detail pane for id, replacing any open record.
func (d *Dispatcher) Open(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selectedID = id
	d.assigning = false
	d.selectedLead = ""
	d.pendingDelete = ""
}

func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
}

func (d *Dispatcher) SelectedID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selectedID
}

func (d *Dispatcher) BeginAssign() {
	d.mu.Lock()
	defer d.mu.Unlock()
	kind, ok := d.view.RecordKind()
	if d.selectedID == "" || !ok || !kind.CanAssign() {
		return
	}
	d.assigning = true
}

func (d *Dispatcher) SelectLead(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selectedLead = id
}

// AssignLeadToAgent assigns leadID to agentID and refreshes every list,
// since both sides of the assignment change.
func (d *Dispatcher) AssignLeadToAgent(ctx context.Context, agentID, leadID string) error {
	d.mu.Lock()
	d.selectedLead = leadID
	api := d.api
	d.mu.Unlock()

	if leadID == "" {
		d.notify(LevelError, msgSelectLead)
		return ErrNoLeadSelected
	}

	if err := api.AssignLead(ctx, agentID, leadID); err != nil {
		d.logger.ErrorContext(ctx, "assign lead failed", "agent", agentID, "lead", leadID, "error", err)
		d.notify(LevelError, crmapi.UserMessage(err, msgAssignFailed))
		return err
	}

	d.notify(LevelSuccess, msgAssigned)
	d.Close()
	d.refresh(ctx, crm.KindAgents, crm.KindBuyers, crm.KindSellers, crm.KindLeads)
	return nil
}

func (d *Dispatcher) UpdateLeadStatus(ctx context.Context, id string, update crmapi.LeadUpdate) error {
	if update.Empty() {
		return nil
	}
	d.mu.Lock()
	api := d.api
	d.mu.Unlock()

	if err := api.UpdateLead(ctx, id, update); err != nil {
		d.logger.ErrorContext(ctx, "update lead failed", "id", id, "error", err)
		d.notify(LevelError, crmapi.UserMessage(err, msgLeadUpdate))
		return err
	}
	d.refresh(ctx, crm.KindLeads, crm.KindAgents)
	return nil
}

func (d *Dispatcher) UpdateSellerListingStatus(ctx context.Context, id string, update crmapi.SellerUpdate) error {
	d.mu.Lock()
	api := d.api
	d.mu.Unlock()

	if err := api.UpdateSeller(ctx, id, update); err != nil {
		d.logger.ErrorContext(ctx, "update seller failed", "id", id, "error", err)
		d.notify(LevelError, crmapi.UserMessage(err, msgSellerUpdate))
		return err
	}
	d.refresh(ctx, crm.KindSellers)
	return nil
}

func (d *Dispatcher) notify(level Level, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, Notice{ID: ulid.Make().String(), Level: level, Text: text})
}

// Notify queues a notice from outside the record flows, e.g. an import summary.
func (d *Dispatcher) Notify(level Level, text string) {
	d.notify(level, text)
}

func (d *Dispatcher) Notices() []Notice {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Notice, len(d.notices))
	copy(out, d.notices)
	return out
}

func (d *Dispatcher) Dismiss(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, n := range d.notices {
		if n.ID == id {
			d.notices = append(d.notices[:i], d.notices[i+1:]...)
			return
		}
	}
}
