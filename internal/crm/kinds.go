package crm

import (
	"strconv"
	"strings"
)

const (
	notAvailable = "N/A"
	noneLabel    = "None"
	dashLabel    = "-"
)

// IsPlaceholder reports whether a rendered cell is one of the defaults shown
// for a missing value.
func IsPlaceholder(cell string) bool {
	switch strings.TrimSpace(cell) {
	case notAvailable, noneLabel, dashLabel:
		return true
	}
	return false
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func numberOr(n Number, fallback string) string {
	if !n.Truthy() {
		return fallback
	}
	return n.String()
}

type agentKind struct{}

func (agentKind) Kind() Kind { return KindAgents }
func (agentKind) Endpoint() string { return "/agents" }
func (agentKind) Label() string { return "Agents" }
func (agentKind) Singular() string { return "agent" }
func (agentKind) Columns() []string { return []string{"ID", "Name", "Email", "Phone", "Assigned Leads"} }
func (agentKind) EditableFields() []string { return nil }
func (agentKind) CanAssign() bool { return true }
func (agentKind) Importable() bool { return false }

func (agentKind) FormFields() []FormField {
	return []FormField{
		{Name: "name", Label: "Name", Input: InputText, Required: true},
		{Name: "email", Label: "Email", Input: InputEmail, Required: true},
		{Name: "password", Label: "Password", Input: InputPassword, Required: true},
		{Name: "phoneNumber", Label: "Phone Number", Input: InputText},
	}
}

func (k agentKind) RequiredFields() []string { return requiredOf(k.FormFields()) }

func (agentKind) Decode(body []byte) ([]Record, error) { return decodeList[Agent](body) }

func (agentKind) Row(r Record) []string {
	a := r.(Agent)
	return []string{a.ID, a.Name, a.Email, orDefault(a.PhoneNumber, notAvailable), assignedLeadsLabel(a)}
}

func (agentKind) Detail(r Record) []DetailLine {
	a := r.(Agent)
	return []DetailLine{
		{"ID", a.ID},
		{"Name", a.Name},
		{"Email", a.Email},
		{"Phone", orDefault(a.PhoneNumber, notAvailable)},
		{"Assigned Leads", assignedLeadsLabel(a)},
	}
}

func assignedLeadsLabel(a Agent) string {
	if len(a.AssignedLeads) == 0 {
		return noneLabel
	}
	return strings.Join(a.AssignedLeads, ", ")
}

type buyerKind struct{}

func (buyerKind) Kind() Kind { return KindBuyers }
func (buyerKind) Endpoint() string { return "/buyers" }
func (buyerKind) Label() string { return "Buyers" }
func (buyerKind) Singular() string { return "buyer" }
func (buyerKind) Columns() []string {
	return []string{"ID", "Location", "Square Feet", "Assigned Agent"}
}
func (buyerKind) EditableFields() []string { return nil }
func (buyerKind) CanAssign() bool { return false }
func (buyerKind) Importable() bool { return false }

func (buyerKind) FormFields() []FormField {
	return []FormField{
		{Name: "leadId", Label: "Lead", Input: InputLeadPicker, Required: true},
		{Name: "interestedLocation", Label: "Interested Location", Input: InputText, Required: true},
		{Name: "interestedSquareFeet", Label: "Interested Square Feet", Input: InputNumber, Required: true},
		{Name: "assignedAgent", Label: "Assigned Agent", Input: InputAgentPicker},
	}
}

func (k buyerKind) RequiredFields() []string { return requiredOf(k.FormFields()) }

func (buyerKind) Decode(body []byte) ([]Record, error) { return decodeList[Buyer](body) }

func (buyerKind) Row(r Record) []string {
	b := r.(Buyer)
	return []string{b.ID, b.InterestedLocation, b.InterestedSquareFeet.String(), orDefault(b.AssignedAgent, noneLabel)}
}

func (buyerKind) Detail(r Record) []DetailLine {
	b := r.(Buyer)
	return []DetailLine{
		{"ID", b.ID},
		{"Lead", orDefault(b.LeadID, notAvailable)},
		{"Location", b.InterestedLocation},
		{"Square Feet", b.InterestedSquareFeet.String()},
		{"Assigned Agent", orDefault(b.AssignedAgent, noneLabel)},
	}
}

type sellerKind struct{}

func (sellerKind) Kind() Kind { return KindSellers }
func (sellerKind) Endpoint() string { return "/sellers" }
func (sellerKind) Label() string { return "Sellers" }
func (sellerKind) Singular() string { return "seller" }
func (sellerKind) Columns() []string {
	return []string{"ID", "Location", "Square Feet", "Value", "Type", "Beds", "Baths", "Status", "Assigned Agent"}
}
func (sellerKind) EditableFields() []string { return []string{"listingStatus"} }
func (sellerKind) CanAssign() bool { return false }
func (sellerKind) Importable() bool { return false }

func (sellerKind) FormFields() []FormField {
	return []FormField{
		{Name: "leadId", Label: "Lead", Input: InputLeadPicker, Required: true},
		{Name: "propertyLocation", Label: "Property Location", Input: InputText, Required: true},
		{Name: "propertySquareFeet", Label: "Property Square Feet", Input: InputNumber, Required: true},
		{Name: "propertyValue", Label: "Property Value", Input: InputNumber, Required: true},
		{Name: "propertyType", Label: "Property Type", Input: InputSelect, Options: PropertyTypes},
		{Name: "bedrooms", Label: "Bedrooms", Input: InputNumber},
		{Name: "bathrooms", Label: "Bathrooms", Input: InputNumber},
		{Name: "listingStatus", Label: "Listing Status", Input: InputSelect, Options: ListingStatuses, Default: string(ListingAvailable)},
		{Name: "assignedAgent", Label: "Assigned Agent", Input: InputAgentPicker},
	}
}

func (k sellerKind) RequiredFields() []string { return requiredOf(k.FormFields()) }

func (sellerKind) Decode(body []byte) ([]Record, error) { return decodeList[Seller](body) }

func (sellerKind) Row(r Record) []string {
	s := r.(Seller)
	return []string{
		s.ID,
		s.PropertyLocation,
		s.PropertySquareFeet.String(),
		numberOr(s.PropertyValue, notAvailable),
		orDefault(string(s.PropertyType), notAvailable),
		numberOr(s.Bedrooms, dashLabel),
		numberOr(s.Bathrooms, dashLabel),
		orDefault(string(s.ListingStatus), notAvailable),
		orDefault(s.AssignedAgent, noneLabel),
	}
}

func (sellerKind) Detail(r Record) []DetailLine {
	s := r.(Seller)
	return []DetailLine{
		{"ID", s.ID},
		{"Lead", orDefault(s.LeadID, notAvailable)},
		{"Location", s.PropertyLocation},
		{"Square Feet", s.PropertySquareFeet.String()},
		{"Value", numberOr(s.PropertyValue, notAvailable)},
		{"Type", orDefault(string(s.PropertyType), notAvailable)},
		{"Bedrooms", numberOr(s.Bedrooms, dashLabel)},
		{"Bathrooms", numberOr(s.Bathrooms, dashLabel)},
		{"Listing Status", orDefault(string(s.ListingStatus), notAvailable)},
		{"Assigned Agent", orDefault(s.AssignedAgent, noneLabel)},
	}
}

type leadKind struct{}

func (leadKind) Kind() Kind { return KindLeads }
func (leadKind) Endpoint() string { return "/leads" }
func (leadKind) Label() string { return "Leads" }
func (leadKind) Singular() string { return "lead" }
func (leadKind) Columns() []string {
	return []string{"ID", "Name", "Email", "Phone", "Source", "Status", "Type", "Priority", "Assigned Agent"}
}
func (leadKind) EditableFields() []string { return []string{"status", "assignedAgent"} }
func (leadKind) CanAssign() bool { return false }
func (leadKind) Importable() bool { return true }

func (leadKind) FormFields() []FormField {
	return []FormField{
		{Name: "name", Label: "Name", Input: InputText},
		{Name: "email", Label: "Email", Input: InputEmail},
		{Name: "phone", Label: "Phone", Input: InputText},
		{Name: "source", Label: "Source", Input: InputText},
		{Name: "status", Label: "Status", Input: InputSelect, Options: LeadStatuses, Default: string(LeadNew)},
		{Name: "leadType", Label: "Lead Type", Input: InputSelect, Options: LeadTypes},
		{Name: "priority", Label: "Priority", Input: InputSelect, Options: Priorities},
		{Name: "budgetRange.min", Label: "Budget Min", Input: InputNumber},
		{Name: "budgetRange.max", Label: "Budget Max", Input: InputNumber},
		{Name: "propertyPreferences.bedrooms", Label: "Preferred Bedrooms", Input: InputNumber},
		{Name: "propertyPreferences.bathrooms", Label: "Preferred Bathrooms", Input: InputNumber},
		{Name: "propertyPreferences.location", Label: "Preferred Location", Input: InputText},
		{Name: "timeline", Label: "Timeline", Input: InputSelect, Options: Timelines},
		{Name: "assignedAgent", Label: "Assigned Agent", Input: InputAgentPicker},
	}
}

func (k leadKind) RequiredFields() []string { return requiredOf(k.FormFields()) }

func (leadKind) Decode(body []byte) ([]Record, error) { return decodeList[Lead](body) }

func (leadKind) Row(r Record) []string {
	l := r.(Lead)
	return []string{
		l.ID,
		orDefault(l.Name, notAvailable),
		orDefault(l.Email, notAvailable),
		orDefault(l.Phone, notAvailable),
		orDefault(l.Source, notAvailable),
		orDefault(string(l.Status), notAvailable),
		orDefault(string(l.LeadType), notAvailable),
		orDefault(string(l.Priority), notAvailable),
		orDefault(l.AssignedAgent, noneLabel),
	}
}

func (leadKind) Detail(r Record) []DetailLine {
	l := r.(Lead)
	return []DetailLine{
		{"ID", l.ID},
		{"Name", orDefault(l.Name, notAvailable)},
		{"Email", orDefault(l.Email, notAvailable)},
		{"Phone", orDefault(l.Phone, notAvailable)},
		{"Source", orDefault(l.Source, notAvailable)},
		{"Status", orDefault(string(l.Status), notAvailable)},
		{"Type", orDefault(string(l.LeadType), notAvailable)},
		{"Priority", orDefault(string(l.Priority), notAvailable)},
		{"Budget", budgetLabel(l.BudgetRange)},
		{"Preferences", preferencesLabel(l.PropertyPreferences)},
		{"Timeline", orDefault(string(l.Timeline), notAvailable)},
		{"Buyers", strconv.Itoa(len(l.Buyers))},
		{"Assigned Agent", orDefault(l.AssignedAgent, noneLabel)},
	}
}

func budgetLabel(b *BudgetRange) string {
	if b == nil || (!b.Min.Valid && !b.Max.Valid) {
		return notAvailable
	}
	return FormatMoney(b.Min.Value) + " - " + FormatMoney(b.Max.Value)
}

func preferencesLabel(p *PropertyPreferences) string {
	if p == nil {
		return notAvailable
	}
	parts := []string{
		numberOr(p.Bedrooms, dashLabel) + " BR",
		numberOr(p.Bathrooms, dashLabel) + " BA",
	}
	if p.Location != "" {
		parts = append(parts, p.Location)
	}
	return strings.Join(parts, " / ")
}

func requiredOf(fields []FormField) []string {
	var out []string
	for _, f := range fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}
