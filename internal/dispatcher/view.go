package dispatcher

import "github.com/phillip-england/estatecrm/internal/crm"

// View is the panel shown in the dashboard's main area.
type View string

const (
	ViewDashboard View = "dashboard"
	ViewLeads     View = "leads"
	ViewAgents    View = "agents"
	ViewBuyers    View = "buyers"
	ViewSellers   View = "sellers"
	ViewAnalytics View = "analytics"
)

// DefaultView is what a fresh session shows before anything is picked.
const DefaultView = ViewDashboard

// Views lists the sidebar entries in display order.
func Views() []View {
	views := []View{ViewDashboard}
	for _, k := range crm.Kinds() {
		views = append(views, View(k.Kind()))
	}
	return append(views, ViewAnalytics)
}

func ParseView(s string) (View, bool) {
	for _, v := range Views() {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// RecordKind returns the record kind behind a list view.
func (v View) RecordKind() (crm.RecordKind, bool) {
	return crm.Lookup(crm.Kind(v))
}

func (v View) Label() string {
	if kind, ok := v.RecordKind(); ok {
		return kind.Label()
	}
	switch v {
	case ViewAnalytics:
		return "Analytics"
	default:
		return "Dashboard"
	}
}
