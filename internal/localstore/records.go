package localstore

import (
	"github.com/localnerve/crmsync/internal/models"
)

func (s *Store) Properties() []models.Property {
	return list[models.Property](s, models.CollectionProperties)
}

func (s *Store) Clients() []models.Client {
	return list[models.Client](s, models.CollectionClients)
}

func (s *Store) Followups() []models.Followup {
	return list[models.Followup](s, models.CollectionFollowups)
}

func (s *Store) Signs() []models.Sign {
	return list[models.Sign](s, models.CollectionSigns)
}

func (s *Store) Expenses() []models.Expense {
	return list[models.Expense](s, models.CollectionExpenses)
}

func (s *Store) Colleagues() []models.Colleague {
	return list[models.Colleague](s, models.CollectionColleagues)
}

func (s *Store) Sales() []models.Sale {
	return list[models.Sale](s, models.CollectionSales)
}

// Activity returns the audit trail, newest first.
func (s *Store) Activity() []models.Activity {
	return list[models.Activity](s, models.CollectionActivity)
}

// Property looks up one property by id.
func (s *Store) Property(id string) (*models.Property, bool) {
	return find[models.Property](s, models.CollectionProperties, id)
}

func (s *Store) Client(id string) (*models.Client, bool) {
	return find[models.Client](s, models.CollectionClients, id)
}

// SaveProperty creates p when it has no id, otherwise merges it into the
// stored property with the same id. The persisted record is returned.
func (s *Store) SaveProperty(p *models.Property) (*models.Property, error) {
	return saveRecord[models.Property](s, models.CollectionProperties, "property", p)
}

func (s *Store) SaveClient(c *models.Client) (*models.Client, error) {
	return saveRecord[models.Client](s, models.CollectionClients, "client", c)
}

func (s *Store) SaveFollowup(f *models.Followup) (*models.Followup, error) {
	return saveRecord[models.Followup](s, models.CollectionFollowups, "followup", f)
}

func (s *Store) SaveSign(sg *models.Sign) (*models.Sign, error) {
	return saveRecord[models.Sign](s, models.CollectionSigns, "sign", sg)
}

func (s *Store) SaveExpense(e *models.Expense) (*models.Expense, error) {
	return saveRecord[models.Expense](s, models.CollectionExpenses, "expense", e)
}

func (s *Store) SaveColleague(c *models.Colleague) (*models.Colleague, error) {
	return saveRecord[models.Colleague](s, models.CollectionColleagues, "colleague", c)
}

func (s *Store) SaveSale(sale *models.Sale) (*models.Sale, error) {
	return saveRecord[models.Sale](s, models.CollectionSales, "sale", sale)
}

func (s *Store) DeleteProperty(id string) error {
	return deleteRecord[models.Property](s, models.CollectionProperties, "property", id)
}

func (s *Store) DeleteClient(id string) error {
	return deleteRecord[models.Client](s, models.CollectionClients, "client", id)
}

func (s *Store) DeleteFollowup(id string) error {
	return deleteRecord[models.Followup](s, models.CollectionFollowups, "followup", id)
}

func (s *Store) DeleteSign(id string) error {
	return deleteRecord[models.Sign](s, models.CollectionSigns, "sign", id)
}

func (s *Store) DeleteExpense(id string) error {
	return deleteRecord[models.Expense](s, models.CollectionExpenses, "expense", id)
}

func (s *Store) DeleteColleague(id string) error {
	return deleteRecord[models.Colleague](s, models.CollectionColleagues, "colleague", id)
}

func (s *Store) DeleteSale(id string) error {
	return deleteRecord[models.Sale](s, models.CollectionSales, "sale", id)
}

// CloseSale marks the property sold or rented, computes the commission and
// records the closed deal in the sales ledger.
func (s *Store) CloseSale(propertyID string, sale models.PropertySale) (*models.Property, *models.Sale, error) {
	prop, ok := s.Property(propertyID)
	if !ok {
		return nil, nil, ErrNotFound
	}
	prop.CloseSale(sale)
	saved, err := s.SaveProperty(prop)
	if err != nil {
		return nil, nil, err
	}

	operation := "sale"
	if saved.Status == "rented" {
		operation = "rent"
	}
	entry := &models.Sale{
		PropertyID: saved.ID,
		ClientID:   saved.Sale.ClientID,
		Operation:  operation,
		FinalPrice: saved.Sale.FinalPrice,
		Currency:   saved.Currency,
		Date:       saved.Sale.Date,
		Commission: saved.Sale.Commission,
	}
	if entry.Commission != nil {
		entry.ColleagueID = entry.Commission.ColleagueID
	}
	ledger, err := s.SaveSale(entry)
	if err != nil {
		return saved, nil, err
	}
	return saved, ledger, nil
}
