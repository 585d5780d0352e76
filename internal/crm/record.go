package crm

type Kind string

const (
	KindAgents  Kind = "agents"
	KindBuyers  Kind = "buyers"
	KindSellers Kind = "sellers"
	KindLeads   Kind = "leads"
)

type PropertyType string

const (
	PropertyApartment  PropertyType = "apartment"
	PropertyVilla      PropertyType = "villa"
	PropertyCommercial PropertyType = "commercial"
)

type ListingStatus string

const (
	ListingAvailable  ListingStatus = "available"
	ListingUnderOffer ListingStatus = "under offer"
	ListingSold       ListingStatus = "sold"
)

type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadQualified LeadStatus = "qualified"
	LeadClosed    LeadStatus = "closed"
)

type LeadType string

const (
	LeadTypeBuyer  LeadType = "buyer"
	LeadTypeSeller LeadType = "seller"
	LeadTypeBoth   LeadType = "both"
)

type Priority string

const (
	PriorityHot  Priority = "hot"
	PriorityWarm Priority = "warm"
	PriorityCold Priority = "cold"
)

type Timeline string

const (
	TimelineImmediate   Timeline = "immediate"
	TimelineThreeMonths Timeline = "3 months"
	TimelineSixMonths   Timeline = "6 months+"
)

var (
	PropertyTypes   = []string{string(PropertyApartment), string(PropertyVilla), string(PropertyCommercial)}
	ListingStatuses = []string{string(ListingAvailable), string(ListingUnderOffer), string(ListingSold)}
	LeadStatuses    = []string{string(LeadNew), string(LeadContacted), string(LeadQualified), string(LeadClosed)}
	LeadTypes       = []string{string(LeadTypeBuyer), string(LeadTypeSeller), string(LeadTypeBoth)}
	Priorities      = []string{string(PriorityHot), string(PriorityWarm), string(PriorityCold)}
	Timelines       = []string{string(TimelineImmediate), string(TimelineThreeMonths), string(TimelineSixMonths)}
)

// Record is any row of a CRM collection.
type Record interface {
	RecordID() string
}

type Agent struct {
	ID            string   `json:"_id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	PhoneNumber   string   `json:"phoneNumber"`
	AssignedLeads []string `json:"assignedLeads"`
}

func (a Agent) RecordID() string { return a.ID }

type Buyer struct {
	ID                   string `json:"_id"`
	LeadID               string `json:"leadId"`
	InterestedLocation   string `json:"interestedLocation"`
	InterestedSquareFeet Number `json:"interestedSquareFeet"`
	AssignedAgent        string `json:"assignedAgent"`
}

func (b Buyer) RecordID() string { return b.ID }

type Seller struct {
	ID                 string        `json:"_id"`
	LeadID             string        `json:"leadId"`
	PropertyLocation   string        `json:"propertyLocation"`
	PropertySquareFeet Number        `json:"propertySquareFeet"`
	PropertyValue      Number        `json:"propertyValue"`
	PropertyType       PropertyType  `json:"propertyType"`
	Bedrooms           Number        `json:"bedrooms"`
	Bathrooms          Number        `json:"bathrooms"`
	ListingStatus      ListingStatus `json:"listingStatus"`
	AssignedAgent      string        `json:"assignedAgent"`
}

func (s Seller) RecordID() string { return s.ID }

type BudgetRange struct {
	Min Number `json:"min"`
	Max Number `json:"max"`
}

type PropertyPreferences struct {
	Bedrooms  Number `json:"bedrooms"`
	Bathrooms Number `json:"bathrooms"`
	Location  string `json:"location"`
}

type Lead struct {
	ID                  string               `json:"_id"`
	Name                string               `json:"name"`
	Email               string               `json:"email"`
	Phone               string               `json:"phone"`
	Source              string               `json:"source"`
	Status              LeadStatus           `json:"status"`
	LeadType            LeadType             `json:"leadType"`
	Priority            Priority             `json:"priority"`
	BudgetRange         *BudgetRange         `json:"budgetRange"`
	PropertyPreferences *PropertyPreferences `json:"propertyPreferences"`
	Timeline            Timeline             `json:"timeline"`
	AssignedAgent       string               `json:"assignedAgent"`
	Buyers              []string             `json:"buyers"`
}

func (l Lead) RecordID() string { return l.ID }

// LeadLabel is how a lead is named in pickers: name, then email, then phone.
func LeadLabel(l Lead) string {
	for _, v := range []string{l.Name, l.Email, l.Phone} {
		if v != "" {
			return v
		}
	}
	return l.ID
}
