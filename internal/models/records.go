package models

// Collection keys. Each one is a local persistence key and, except for the
// local-only ones, a top-level key of the remote document.
const (
	CollectionProperties = "properties"
	CollectionClients    = "clients"
	CollectionFollowups  = "followups"
	CollectionSigns      = "signs"
	CollectionExpenses   = "expenses"
	CollectionColleagues = "colleagues"
	CollectionSales      = "sales"
	CollectionSettings   = "settings"
	CollectionActivity   = "activity"
)

// SyncedCollections are mirrored into the remote document, in document order.
var SyncedCollections = []string{
	CollectionProperties,
	CollectionClients,
	CollectionFollowups,
	CollectionColleagues,
	CollectionSales,
	CollectionSettings,
	CollectionSigns,
}

// Entity is implemented by every record kept in a collection.
type Entity interface {
	EntityID() string
	SetEntityID(id string)
	CreatedStamp() string
	SetCreatedStamp(ts string)
	SetUpdatedStamp(ts string)
}

// Meta holds the identifier and the timestamps the local store owns.
type Meta struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func (m *Meta) EntityID() string          { return m.ID }
func (m *Meta) SetEntityID(id string)     { m.ID = id }
func (m *Meta) CreatedStamp() string      { return m.CreatedAt }
func (m *Meta) SetCreatedStamp(ts string) { m.CreatedAt = ts }
func (m *Meta) SetUpdatedStamp(ts string) { m.UpdatedAt = ts }

// CaptureSource describes where a listing came from.
type CaptureSource struct {
	Kind       string `json:"kind,omitempty" validate:"omitempty,oneof=sign referral portal colleague walk-in other"`
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	CapturedBy string `json:"capturedBy,omitempty"`
	SignID     string `json:"signId,omitempty"`
}

// Commission is the split of a closed deal.
type Commission struct {
	Percent        *float64 `json:"percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	AgentSplit     *float64 `json:"agentSplit,omitempty" validate:"omitempty,gte=0,lte=100"`
	ColleagueID    string   `json:"colleagueId,omitempty"`
	Total          float64  `json:"total,omitempty"`
	AgentShare     float64  `json:"agentShare,omitempty"`
	ColleagueShare float64  `json:"colleagueShare,omitempty"`
}

// Compute fills the totals from a final price. A missing agent split means
// the agent keeps the whole commission.
func (c *Commission) Compute(finalPrice float64) {
	percent := 0.0
	if c.Percent != nil {
		percent = *c.Percent
	}
	split := 100.0
	if c.AgentSplit != nil {
		split = *c.AgentSplit
	}
	c.Total = finalPrice * percent / 100
	c.AgentShare = c.Total * split / 100
	c.ColleagueShare = c.Total - c.AgentShare
}

// PropertySale is the closing sub-record of a sold or rented property.
type PropertySale struct {
	FinalPrice *float64    `json:"finalPrice,omitempty" validate:"omitempty,gte=0"`
	Date       string      `json:"date,omitempty"`
	ClientID   string      `json:"clientId,omitempty"`
	Commission *Commission `json:"commission,omitempty"`
	Earnings   float64     `json:"earnings,omitempty"`
}

// Property is a listing.
type Property struct {
	Meta
	Title     string         `json:"title,omitempty" validate:"omitempty,max=200"`
	Type      string         `json:"type,omitempty"`
	Operation string         `json:"operation,omitempty" validate:"omitempty,oneof=sale rent both"`
	Price     *float64       `json:"price,omitempty" validate:"omitempty,gte=0"`
	RentPrice *float64       `json:"rentPrice,omitempty" validate:"omitempty,gte=0"`
	Currency  string         `json:"currency,omitempty" validate:"omitempty,len=3"`
	Address   string         `json:"address,omitempty"`
	Lat       *float64       `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng       *float64       `json:"lng,omitempty" validate:"omitempty,longitude"`
	Bedrooms  *int           `json:"bedrooms,omitempty" validate:"omitempty,gte=0"`
	Bathrooms *int           `json:"bathrooms,omitempty" validate:"omitempty,gte=0"`
	Area      *float64       `json:"area,omitempty" validate:"omitempty,gte=0"`
	Status    string         `json:"status,omitempty" validate:"omitempty,oneof=available reserved sold rented"`
	Source    *CaptureSource `json:"source,omitempty"`
	Images    []string       `json:"images,omitempty"`
	Sale      *PropertySale  `json:"sale,omitempty"`
	Notes     string         `json:"notes,omitempty"`
}

// Label is used in activity descriptions.
func (p *Property) Label() string { return p.Title }

// CloseSale records the closing data and computes the agent earnings.
func (p *Property) CloseSale(sale PropertySale) {
	if sale.Commission != nil && sale.FinalPrice != nil {
		sale.Commission.Compute(*sale.FinalPrice)
		sale.Earnings = sale.Commission.AgentShare
	}
	p.Sale = &sale
	switch p.Operation {
	case "rent":
		p.Status = "rented"
	default:
		p.Status = "sold"
	}
}

// Client is a buyer, seller, tenant or landlord.
type Client struct {
	Meta
	Name        string   `json:"name,omitempty" validate:"omitempty,max=200"`
	Type        string   `json:"type,omitempty" validate:"omitempty,oneof=buyer seller tenant landlord"`
	Phone       string   `json:"phone,omitempty"`
	Email       string   `json:"email,omitempty" validate:"omitempty,email"`
	Status      string   `json:"status,omitempty"`
	Budget      *float64 `json:"budget,omitempty" validate:"omitempty,gte=0"`
	Preferences string   `json:"preferences,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

func (c *Client) Label() string { return c.Name }

// Followup is a scheduled contact. ClientID and PropertyID are weak references.
type Followup struct {
	Meta
	Type       string `json:"type,omitempty"`
	Status     string `json:"status,omitempty" validate:"omitempty,oneof=pending completed cancelled"`
	Date       string `json:"date,omitempty"`
	TimeFrom   string `json:"timeFrom,omitempty"`
	TimeTo     string `json:"timeTo,omitempty"`
	ClientID   string `json:"clientId,omitempty"`
	PropertyID string `json:"propertyId,omitempty"`
	Outcome    string `json:"outcome,omitempty" validate:"omitempty,oneof=interested not-interested offer closed no-answer reschedule"`
	Feedback   string `json:"feedback,omitempty"`
}

func (f *Followup) Label() string { return f.Type + " " + f.Date }

// Sign is a "for sale" sign captured in the street.
type Sign struct {
	Meta
	Phone        string            `json:"phone,omitempty"`
	Address      string            `json:"address,omitempty"`
	Lat          *float64          `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng          *float64          `json:"lng,omitempty" validate:"omitempty,longitude"`
	ContactType  string            `json:"contactType,omitempty" validate:"omitempty,oneof=owner agency unknown"`
	Photos       []string          `json:"photos,omitempty"`
	Contacted    *bool             `json:"contacted,omitempty"`
	CapturedBy   string            `json:"capturedBy,omitempty"`
	CustomFields map[string]string `json:"customFields,omitempty"`
	Notes        string            `json:"notes,omitempty"`
}

func (s *Sign) Label() string { return s.Address }

// Expense is a business cost, optionally tied to a property.
type Expense struct {
	Meta
	Concept    string   `json:"concept,omitempty"`
	Category   string   `json:"category,omitempty"`
	Amount     *float64 `json:"amount,omitempty" validate:"omitempty,gte=0"`
	Currency   string   `json:"currency,omitempty" validate:"omitempty,len=3"`
	Date       string   `json:"date,omitempty"`
	PropertyID string   `json:"propertyId,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

func (e *Expense) Label() string { return e.Concept }

// Colleague is another agent who shares commissions.
type Colleague struct {
	Meta
	Name         string   `json:"name,omitempty"`
	Agency       string   `json:"agency,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	Email        string   `json:"email,omitempty" validate:"omitempty,email"`
	SplitPercent *float64 `json:"splitPercent,omitempty" validate:"omitempty,gte=0,lte=100"`
}

func (c *Colleague) Label() string { return c.Name }

// Sale is a closed deal in the commission ledger.
type Sale struct {
	Meta
	PropertyID  string      `json:"propertyId,omitempty"`
	ClientID    string      `json:"clientId,omitempty"`
	ColleagueID string      `json:"colleagueId,omitempty"`
	Operation   string      `json:"operation,omitempty" validate:"omitempty,oneof=sale rent"`
	FinalPrice  *float64    `json:"finalPrice,omitempty" validate:"omitempty,gte=0"`
	Currency    string      `json:"currency,omitempty" validate:"omitempty,len=3"`
	Date        string      `json:"date,omitempty"`
	Commission  *Commission `json:"commission,omitempty"`
}

func (s *Sale) Label() string { return s.PropertyID }

// Activity is one audit trail entry.
type Activity struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Action      string `json:"action"`
	EntityID    string `json:"entityId,omitempty"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// Settings is the agent profile and commission defaults.
type Settings struct {
	AgentName         string   `json:"agentName,omitempty"`
	Agency            string   `json:"agency,omitempty"`
	Phone             string   `json:"phone,omitempty"`
	Email             string   `json:"email,omitempty" validate:"omitempty,email"`
	Currency          string   `json:"currency,omitempty" validate:"omitempty,len=3"`
	CommissionPercent *float64 `json:"commissionPercent,omitempty" validate:"omitempty,gte=0,lte=100"`
	AgentSplitPercent *float64 `json:"agentSplitPercent,omitempty" validate:"omitempty,gte=0,lte=100"`
	Language          string   `json:"language,omitempty"`
	UpdatedAt         string   `json:"updatedAt,omitempty"`
}
