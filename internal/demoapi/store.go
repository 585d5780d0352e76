package demoapi

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/phillip-england/estatecrm/internal/crm"
	"github.com/phillip-england/estatecrm/internal/security"
)

// apiError is a failure that maps directly onto a {"msg": ...} response.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func fail(status int, msg string) error {
	return &apiError{status: status, msg: msg}
}

type PerformanceStats struct {
	TotalLeadsHandled int      `json:"totalLeadsHandled"`
	ClosedDeals       int      `json:"closedDeals"`
	AvgResponseTime   *float64 `json:"avgResponseTime"`
}

type Agent struct {
	ID               string           `json:"_id"`
	Name             string           `json:"name"`
	Email            string           `json:"email"`
	Role             string           `json:"role"`
	PhoneNumber      *string          `json:"phoneNumber"`
	AssignedLeads    []string         `json:"assignedLeads"`
	PerformanceStats PerformanceStats `json:"performanceStats"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`

	passwordHash string
}

type Lead struct {
	ID                  string                   `json:"_id"`
	Name                string                   `json:"name"`
	Email               string                   `json:"email"`
	Phone               string                   `json:"phone"`
	Source              string                   `json:"source"`
	Status              string                   `json:"status"`
	LeadType            string                   `json:"leadType"`
	Priority            string                   `json:"priority"`
	BudgetRange         *crm.BudgetRange         `json:"budgetRange"`
	PropertyPreferences *crm.PropertyPreferences `json:"propertyPreferences"`
	Timeline            string                   `json:"timeline"`
	AssignedAgent       *string                  `json:"assignedAgent"`
	Buyers              []string                 `json:"buyers"`
	Sellers             []Seller                 `json:"sellers"`
	CreatedAt           time.Time                `json:"createdAt"`
	UpdatedAt           time.Time                `json:"updatedAt"`
}

type Buyer struct {
	ID                   string     `json:"_id"`
	LeadID               *string    `json:"leadId"`
	InterestedLocation   string     `json:"interestedLocation"`
	InterestedSquareFeet crm.Number `json:"interestedSquareFeet"`
	AssignedAgent        *string    `json:"assignedAgent"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

type Seller struct {
	ID                 string     `json:"_id"`
	LeadID             *string    `json:"leadId,omitempty"`
	PropertyLocation   string     `json:"propertyLocation"`
	PropertySquareFeet crm.Number `json:"propertySquareFeet"`
	PropertyValue      crm.Number `json:"propertyValue"`
	PropertyType       *string    `json:"propertyType"`
	Bedrooms           crm.Number `json:"bedrooms"`
	Bathrooms          crm.Number `json:"bathrooms"`
	ListingStatus      string     `json:"listingStatus"`
	AssignedAgent      *string    `json:"assignedAgent"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

type admin struct {
	id    string
	email string
	hash  string
}

// Store is the in-memory state of the demo API. Collections keep insertion
// order, which is the order they are listed in.
type Store struct {
	mu      sync.RWMutex
	now     func() time.Time
	admins  []admin
	agents  []*Agent
	leads   []*Lead
	buyers  []*Buyer
	sellers []*Seller
}

func NewStore() *Store {
	return &Store{now: func() time.Time { return time.Now().UTC() }}
}

func newID() string {
	return ulid.Make().String()
}

func validID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

func ref(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (s *Store) AddAdmin(email, password string) error {
	hash, err := security.HashPassword(password)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins = append(s.admins, admin{id: newID(), email: email, hash: hash})
	return nil
}

// Authenticate returns the admin id for a matching email and password.
func (s *Store) Authenticate(email, password string) (string, error) {
	if email == "" || password == "" {
		return "", fail(http.StatusBadRequest, "Email and password required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.admins {
		if a.email != email {
			continue
		}
		if !security.VerifyPassword(password, a.hash) {
			return "", fail(http.StatusUnauthorized, "Incorrect password")
		}
		return a.id, nil
	}
	return "", fail(http.StatusNotFound, "Admin not found")
}

func (s *Store) findAgent(id string) *Agent {
	for _, a := range s.agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (s *Store) findLead(id string) *Lead {
	for _, l := range s.leads {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (s *Store) Agents() []Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Agent, 0, len(s.agents))
	for _, a := range s.agents {
		cp := *a
		cp.AssignedLeads = slices.Clone(a.AssignedLeads)
		out = append(out, cp)
	}
	return out
}

func (s *Store) Leads() []Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Lead, 0, len(s.leads))
	for _, l := range s.leads {
		cp := *l
		cp.Buyers = slices.Clone(l.Buyers)
		cp.Sellers = slices.Clone(l.Sellers)
		out = append(out, cp)
	}
	return out
}

func (s *Store) Buyers() []Buyer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Buyer, 0, len(s.buyers))
	for _, b := range s.buyers {
		out = append(out, *b)
	}
	return out
}

func (s *Store) Sellers() []Seller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Seller, 0, len(s.sellers))
	for _, sl := range s.sellers {
		out = append(out, *sl)
	}
	return out
}

type AgentInput struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	PhoneNumber *string `json:"phoneNumber"`
}

func (s *Store) CreateAgent(in AgentInput) (Agent, error) {
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return Agent{}, fail(http.StatusBadRequest, "All fields required")
	}
	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return Agent{}, fail(http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.agents {
		if a.Email == in.Email {
			return Agent{}, fail(http.StatusBadRequest, "Agent with this email already exists")
		}
	}
	now := s.now()
	a := &Agent{
		ID:            newID(),
		Name:          in.Name,
		Email:         in.Email,
		Role:          "agent",
		PhoneNumber:   in.PhoneNumber,
		AssignedLeads: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
		passwordHash:  hash,
	}
	s.agents = append(s.agents, a)
	return *a, nil
}

// AssignLead links a lead to an agent. A lead moving from another agent stays
// in that agent's list, matching the upstream behaviour.
func (s *Store) AssignLead(agentID, leadID string) error {
	if leadID == "" {
		return fail(http.StatusBadRequest, "leadId is required")
	}
	if !validID(agentID) || !validID(leadID) {
		return fail(http.StatusBadRequest, "Invalid ID format")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	agent := s.findAgent(agentID)
	if agent == nil {
		return fail(http.StatusNotFound, "Agent not found")
	}
	lead := s.findLead(leadID)
	if lead == nil {
		return fail(http.StatusNotFound, "Lead not found")
	}
	if deref(lead.AssignedAgent) == agentID {
		return fail(http.StatusBadRequest, "Lead already assigned to this agent")
	}

	now := s.now()
	if !slices.Contains(agent.AssignedLeads, leadID) {
		agent.AssignedLeads = append(agent.AssignedLeads, leadID)
	}
	agent.UpdatedAt = now
	if lead.AssignedAgent == nil {
		agent.PerformanceStats.TotalLeadsHandled++
	}
	lead.AssignedAgent = ref(agentID)
	lead.UpdatedAt = now
	return nil
}

func (s *Store) DeleteAgent(id string) error {
	if !validID(id) {
		return fail(http.StatusBadRequest, "Invalid agent ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.agents, func(a *Agent) bool { return a.ID == id })
	if idx < 0 {
		return fail(http.StatusNotFound, "Agent not found")
	}
	for _, l := range s.leads {
		if deref(l.AssignedAgent) == id {
			l.AssignedAgent = nil
		}
	}
	s.agents = slices.Delete(s.agents, idx, idx+1)
	return nil
}

type LeadInput struct {
	Name                string                   `json:"name"`
	Email               string                   `json:"email"`
	Phone               string                   `json:"phone"`
	Source              string                   `json:"source"`
	Status              string                   `json:"status"`
	LeadType            string                   `json:"leadType"`
	Priority            string                   `json:"priority"`
	BudgetRange         *crm.BudgetRange         `json:"budgetRange"`
	PropertyPreferences *crm.PropertyPreferences `json:"propertyPreferences"`
	Timeline            string                   `json:"timeline"`
	AssignedAgent       string                   `json:"assignedAgent"`
}

func (s *Store) CreateLead(in LeadInput) (Lead, error) {
	if in.AssignedAgent != "" && !validID(in.AssignedAgent) {
		return Lead{}, fail(http.StatusBadRequest, "Invalid assignedAgent ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	l := &Lead{
		ID:                  newID(),
		Name:                in.Name,
		Email:               in.Email,
		Phone:               in.Phone,
		Source:              in.Source,
		Status:              in.Status,
		LeadType:            in.LeadType,
		Priority:            in.Priority,
		BudgetRange:         in.BudgetRange,
		PropertyPreferences: in.PropertyPreferences,
		Timeline:            in.Timeline,
		AssignedAgent:       ref(in.AssignedAgent),
		Buyers:              []string{},
		Sellers:             []Seller{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	s.leads = append(s.leads, l)

	if agent := s.findAgent(in.AssignedAgent); agent != nil {
		if !slices.Contains(agent.AssignedLeads, l.ID) {
			agent.AssignedLeads = append(agent.AssignedLeads, l.ID)
		}
		agent.PerformanceStats.TotalLeadsHandled++
	}
	return *l, nil
}

// UpdateLead applies a partial update. Only keys present in patch change;
// an assignedAgent of null or "" unassigns the lead.
func (s *Store) UpdateLead(id string, patch map[string]json.RawMessage) (Lead, error) {
	if !validID(id) {
		return Lead{}, fail(http.StatusBadRequest, "Invalid lead ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lead := s.findLead(id)
	if lead == nil {
		return Lead{}, fail(http.StatusNotFound, "Lead not found")
	}

	updated := *lead
	fields := map[string]any{
		"name":                &updated.Name,
		"email":               &updated.Email,
		"phone":               &updated.Phone,
		"source":              &updated.Source,
		"status":              &updated.Status,
		"leadType":            &updated.LeadType,
		"priority":            &updated.Priority,
		"budgetRange":         &updated.BudgetRange,
		"propertyPreferences": &updated.PropertyPreferences,
		"timeline":            &updated.Timeline,
	}
	changed := false
	for key, target := range fields {
		raw, ok := patch[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return Lead{}, fail(http.StatusBadRequest, "Invalid "+key)
		}
		changed = true
	}

	if raw, ok := patch["assignedAgent"]; ok {
		var next *string
		if err := json.Unmarshal(raw, &next); err != nil {
			return Lead{}, fail(http.StatusBadRequest, "Invalid assignedAgent ID")
		}
		nextID := deref(next)
		if nextID != "" && !validID(nextID) {
			return Lead{}, fail(http.StatusBadRequest, "Invalid assignedAgent ID")
		}
		prevID := deref(lead.AssignedAgent)
		if prevID != "" && prevID != nextID {
			if prev := s.findAgent(prevID); prev != nil {
				prev.AssignedLeads = slices.DeleteFunc(prev.AssignedLeads, func(l string) bool { return l == id })
			}
		}
		if agent := s.findAgent(nextID); agent != nil && !slices.Contains(agent.AssignedLeads, id) {
			agent.AssignedLeads = append(agent.AssignedLeads, id)
		}
		updated.AssignedAgent = ref(nextID)
		changed = true
	}

	if changed {
		updated.UpdatedAt = s.now()
		*lead = updated
	}
	out := *lead
	out.Buyers = slices.Clone(lead.Buyers)
	out.Sellers = slices.Clone(lead.Sellers)
	return out, nil
}

// DeleteLead removes a lead with its buyers and sellers and pulls it from
// its agent.
func (s *Store) DeleteLead(id string) error {
	if !validID(id) {
		return fail(http.StatusBadRequest, "Invalid lead ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.leads, func(l *Lead) bool { return l.ID == id })
	if idx < 0 {
		return fail(http.StatusNotFound, "Lead not found")
	}
	if agent := s.findAgent(deref(s.leads[idx].AssignedAgent)); agent != nil {
		agent.AssignedLeads = slices.DeleteFunc(agent.AssignedLeads, func(l string) bool { return l == id })
	}
	s.buyers = slices.DeleteFunc(s.buyers, func(b *Buyer) bool { return deref(b.LeadID) == id })
	s.sellers = slices.DeleteFunc(s.sellers, func(sl *Seller) bool { return deref(sl.LeadID) == id })
	s.leads = slices.Delete(s.leads, idx, idx+1)
	return nil
}

type BuyerInput struct {
	LeadID               string     `json:"leadId"`
	InterestedLocation   string     `json:"interestedLocation"`
	InterestedSquareFeet crm.Number `json:"interestedSquareFeet"`
	AssignedAgent        string     `json:"assignedAgent"`
}

func (s *Store) CreateBuyer(in BuyerInput) (Buyer, error) {
	if in.LeadID == "" {
		return Buyer{}, fail(http.StatusBadRequest, "leadId is required")
	}
	if !validID(in.LeadID) || (in.AssignedAgent != "" && !validID(in.AssignedAgent)) {
		return Buyer{}, fail(http.StatusBadRequest, "Invalid ID format")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	b := &Buyer{
		ID:                   newID(),
		LeadID:               ref(in.LeadID),
		InterestedLocation:   in.InterestedLocation,
		InterestedSquareFeet: in.InterestedSquareFeet,
		AssignedAgent:        ref(in.AssignedAgent),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	s.buyers = append(s.buyers, b)
	if lead := s.findLead(in.LeadID); lead != nil {
		lead.Buyers = append(lead.Buyers, b.ID)
	}
	return *b, nil
}

func (s *Store) DeleteBuyer(id string) error {
	if !validID(id) {
		return fail(http.StatusBadRequest, "Invalid buyer ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.buyers, func(b *Buyer) bool { return b.ID == id })
	if idx < 0 {
		return fail(http.StatusNotFound, "Buyer not found")
	}
	if lead := s.findLead(deref(s.buyers[idx].LeadID)); lead != nil {
		lead.Buyers = slices.DeleteFunc(lead.Buyers, func(b string) bool { return b == id })
	}
	s.buyers = slices.Delete(s.buyers, idx, idx+1)
	return nil
}

type SellerInput struct {
	LeadID             string     `json:"leadId"`
	PropertyLocation   string     `json:"propertyLocation"`
	PropertySquareFeet crm.Number `json:"propertySquareFeet"`
	PropertyValue      crm.Number `json:"propertyValue"`
	PropertyType       *string    `json:"propertyType"`
	Bedrooms           crm.Number `json:"bedrooms"`
	Bathrooms          crm.Number `json:"bathrooms"`
	ListingStatus      string     `json:"listingStatus"`
	AssignedAgent      string     `json:"assignedAgent"`
}

func (s *Store) CreateSeller(in SellerInput) (Seller, error) {
	if in.LeadID == "" {
		return Seller{}, fail(http.StatusBadRequest, "leadId is required")
	}
	if !validID(in.LeadID) || (in.AssignedAgent != "" && !validID(in.AssignedAgent)) {
		return Seller{}, fail(http.StatusBadRequest, "Invalid ID format")
	}
	if in.ListingStatus == "" {
		in.ListingStatus = string(crm.ListingAvailable)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sl := &Seller{
		ID:                 newID(),
		LeadID:             ref(in.LeadID),
		PropertyLocation:   in.PropertyLocation,
		PropertySquareFeet: in.PropertySquareFeet,
		PropertyValue:      in.PropertyValue,
		PropertyType:       in.PropertyType,
		Bedrooms:           in.Bedrooms,
		Bathrooms:          in.Bathrooms,
		ListingStatus:      in.ListingStatus,
		AssignedAgent:      ref(in.AssignedAgent),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.sellers = append(s.sellers, sl)
	if lead := s.findLead(in.LeadID); lead != nil {
		embedded := *sl
		embedded.LeadID = nil
		lead.Sellers = append(lead.Sellers, embedded)
	}
	return *sl, nil
}

// UpdateSeller applies a partial update to the listing fields.
func (s *Store) UpdateSeller(id string, patch map[string]json.RawMessage) (Seller, error) {
	if !validID(id) {
		return Seller{}, fail(http.StatusBadRequest, "Invalid seller ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.sellers, func(sl *Seller) bool { return sl.ID == id })
	if idx < 0 {
		return Seller{}, fail(http.StatusNotFound, "Seller not found")
	}

	updated := *s.sellers[idx]
	fields := map[string]any{
		"propertyLocation":   &updated.PropertyLocation,
		"propertySquareFeet": &updated.PropertySquareFeet,
		"propertyValue":      &updated.PropertyValue,
		"propertyType":       &updated.PropertyType,
		"bedrooms":           &updated.Bedrooms,
		"bathrooms":          &updated.Bathrooms,
		"listingStatus":      &updated.ListingStatus,
	}
	changed := false
	for key, target := range fields {
		raw, ok := patch[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return Seller{}, fail(http.StatusBadRequest, "Invalid "+key)
		}
		changed = true
	}
	if raw, ok := patch["assignedAgent"]; ok {
		var next *string
		if err := json.Unmarshal(raw, &next); err != nil || (deref(next) != "" && !validID(deref(next))) {
			return Seller{}, fail(http.StatusBadRequest, "Invalid assignedAgent ID")
		}
		updated.AssignedAgent = ref(deref(next))
		changed = true
	}

	if changed {
		updated.UpdatedAt = s.now()
		*s.sellers[idx] = updated
	}
	return *s.sellers[idx], nil
}

func (s *Store) DeleteSeller(id string) error {
	if !validID(id) {
		return fail(http.StatusBadRequest, "Invalid seller ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.sellers, func(sl *Seller) bool { return sl.ID == id })
	if idx < 0 {
		return fail(http.StatusNotFound, "Seller not found")
	}
	if lead := s.findLead(deref(s.sellers[idx].LeadID)); lead != nil {
		lead.Sellers = slices.DeleteFunc(lead.Sellers, func(sl Seller) bool { return sl.ID == id })
	}
	s.sellers = slices.Delete(s.sellers, idx, idx+1)
	return nil
}
