package consoleapp

import (
	"log/slog"
	"sync"
	"time"

	"github.com/phillip-england/estatecrm/internal/analytics"
	"github.com/phillip-england/estatecrm/internal/crmapi"
	"github.com/phillip-england/estatecrm/internal/dispatcher"
)

// workspace is the view state of one browser session: the record
// dispatcher and the analytics view, both bound to the session's token.
type workspace struct {
	records   *dispatcher.Dispatcher
	analytics *analytics.View
	lastSeen  time.Time
}

type workspaces struct {
	mu     sync.Mutex
	byID   map[string]*workspace
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func newWorkspaces(ttl time.Duration, logger *slog.Logger) *workspaces {
	return &workspaces{byID: map[string]*workspace{}, ttl: ttl, now: time.Now, logger: logger}
}

// get returns the workspace for sid, creating it on first use, and binds it
// to api. Idle workspaces older than ttl are dropped on the way.
func (w *workspaces) get(sid string, api *crmapi.Client) *workspace {
	w.mu.Lock()
	now := w.now()
	w.pruneLocked(now)
	ws, ok := w.byID[sid]
	if !ok {
		logger := w.logger.With("session", sid)
		ws = &workspace{
			records:   dispatcher.New(api, logger),
			analytics: analytics.New(api, logger),
		}
		w.byID[sid] = ws
	}
	ws.lastSeen = now
	w.mu.Unlock()

	ws.records.Bind(api)
	ws.analytics.Bind(api)
	return ws
}

func (w *workspaces) drop(sid string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.byID, sid)
}

func (w *workspaces) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.byID)
}

func (w *workspaces) pruneLocked(now time.Time) {
	if w.ttl <= 0 {
		return
	}
	for sid, ws := range w.byID {
		if now.Sub(ws.lastSeen) > w.ttl {
			delete(w.byID, sid)
		}
	}
}
