package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/localnerve/crmsync/internal/logging"
	"github.com/localnerve/crmsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(start time.Time) func() time.Time {
	var n atomic.Int64
	return func() time.Time {
		return start.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

func newTestStore(t *testing.T, kv KV, opts ...Option) *Store {
	t.Helper()
	base := []Option{
		WithLogger(logging.Discard()),
		WithClock(fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))),
	}
	return New(kv, append(base, opts...)...)
}

func ptr[T any](v T) *T { return &v }

func TestSaveWithoutIDRoundTrip(t *testing.T) {
	s := newTestStore(t, NewMemoryKV(0))

	saved, err := s.SaveProperty(&models.Property{
		Title:     "Casa Azul",
		Operation: "sale",
		Price:     ptr(250000.0),
		Currency:  "USD",
		Status:    "available",
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	assert.NotEmpty(t, saved.CreatedAt)
	assert.Empty(t, saved.UpdatedAt)

	got := s.Properties()
	require.Len(t, got, 1)
	assert.Equal(t, *saved, got[0])
}

func TestSaveIgnoresCallerTimestamps(t *testing.T) {
	s := newTestStore(t, NewMemoryKV(0))

	saved, err := s.SaveClient(&models.Client{
		Name: "Ana",
		Meta: models.Meta{CreatedAt: "1999-01-01T00:00:00.000Z", UpdatedAt: "1999-01-01T00:00:00.000Z"},
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T09:00:01.000Z", saved.CreatedAt)
	assert.Empty(t, saved.UpdatedAt)
}

func TestSaveWithIDMergesShallow(t *testing.T) {
	s := newTestStore(t, NewMemoryKV(0))

	created, err := s.SaveClient(&models.Client{
		Name:   "Ana",
		Type:   "buyer",
		Phone:  "555-0100",
		Budget: ptr(120000.0),
	})
	require.NoError(t, err)

	updated, err := s.SaveClient(&models.Client{
		Meta:  models.Meta{ID: created.ID, CreatedAt: "tampered"},
		Phone: "555-0199",
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.NotEmpty(t, updated.UpdatedAt)
	assert.Equal(t, "Ana", updated.Name)
	assert.Equal(t, "buyer", updated.Type)
	assert.Equal(t, "555-0199", updated.Phone)
	require.NotNil(t, updated.Budget)
	assert.Equal(t, 120000.0, *updated.Budget)

	clients := s.Clients()
	require.Len(t, clients, 1)
	assert.Equal(t, *updated, clients[0])
}

func TestSaveUnknownIDAppends(t *testing.T) {
	s := newTestStore(t, NewMemoryKV(0))

	saved, err := s.SaveSign(&models.Sign{
		Meta: models.Meta{
			ID:        "external-1",
			CreatedAt: "1999-01-01T00:00:00.000Z",
			UpdatedAt: "1999-01-01T00:00:00.000Z",
		},
		Phone: "555-0111",
	})
	require.NoError(t, err)
	assert.Equal(t, "external-1", saved.ID)
	assert.NotEqual(t, "1999-01-01T00:00:00.000Z", saved.CreatedAt)
	assert.True(t, strings.HasPrefix(saved.CreatedAt, "2026-"), "createdAt comes from the store clock, got %s", saved.CreatedAt)
	assert.Empty(t, saved.UpdatedAt)

	signs := s.Signs()
	require.Len(t, signs, 1)
	assert.Equal(t, saved.CreatedAt, signs[0].CreatedAt)
	assert.Empty(t, signs[0].UpdatedAt)
}

func TestSaveRejectsInvalidEnumeration(t *testing.T) {
	s := newTestStore(t, NewMemoryKV(0))

	_, err := s.SaveProperty(&models.Property{Title: "Lot", Operation: "lease"})
	require.Error(t, err)
	assert.Empty(t, s.Properties())
	assert.Empty(t, s.Activity())
}

func TestDeleteIsHard(t *testing.T) {
	s := newTestStore(t, NewMemoryKV(0))

	a, err := s.SaveFollowup(&models.Followup{Type: "call", Date: "2026-03-02"})
	require.NoError(t, err)
	b, err := s.SaveFollowup(&models.Followup{Type: "visit", Date: "2026-03-03"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteFollowup(a.ID))
	got := s.Followups()
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].ID)

	err = s.DeleteFollowup(a.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestActivityNewestFirstAndCapped(t *testing.T) {
	s := newTestStore(t, NewMemoryKV(0))

	for i := 0; i < maxActivity+5; i++ {
		_, err := s.SaveExpense(&models.Expense{Concept: fmt.Sprintf("fuel %d", i)})
		require.NoError(t, err)
	}

	activity := s.Activity()
	require.Len(t, activity, maxActivity)
	assert.Equal(t, "expense created: fuel 54", activity[0].Description)
	assert.Equal(t, "created", activity[0].Action)
	assert.Equal(t, "expense", activity[0].Type)
}

func TestChangeHookFiresForUserWritesOnly(t *testing.T) {
	s := newTestStore(t, NewMemoryKV(0))
	var calls atomic.Int32
	s.OnChange(func() { calls.Add(1) })

	p, err := s.SaveProperty(&models.Property{Title: "Loft"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteProperty(p.ID))
	assert.Equal(t, int32(2), calls.Load())

	s.ReplaceCollections(map[string]json.RawMessage{
		models.CollectionProperties: json.RawMessage(`[{"id":"r1","title":"Remote"}]`),
	})
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, s.Properties(), 1)
	assert.Len(t, s.Activity(), 2)
}

func TestCorruptedCollectionReadsEmpty(t *testing.T) {
	kv := NewMemoryKV(0)
	require.NoError(t, kv.Set(models.CollectionClients, []byte("{not json")))
	s := newTestStore(t, kv)

	assert.Empty(t, s.Clients())
	assert.JSONEq(t, `[]`, string(s.RawCollection(models.CollectionClients)))
	assert.JSONEq(t, `{}`, string(s.RawCollection(models.CollectionSettings)))
}

func TestQuotaExceededIsNotifiedAndCacheKept(t *testing.T) {
	var notified []error
	s := newTestStore(t, NewMemoryKV(1000), WithNotifier(func(err error) {
		notified = append(notified, err)
	}))

	_, err := s.SaveProperty(&models.Property{Title: "small"})
	require.NoError(t, err)
	require.Empty(t, notified)

	big := make([]byte, 1200)
	for i := range big {
		big[i] = 'x'
	}
	saved, err := s.SaveProperty(&models.Property{Title: "big", Notes: string(big)})
	require.NoError(t, err, "quota failures are reported through the notifier, not returned")
	require.NotEmpty(t, notified)
	assert.True(t, errors.Is(notified[0], ErrQuotaExceeded))

	// The cache keeps the unpersisted write.
	props := s.Properties()
	require.Len(t, props, 2)
	assert.Equal(t, saved.ID, props[1].ID)
}

func TestLastSync(t *testing.T) {
	s := newTestStore(t, NewMemoryKV(0))
	assert.Empty(t, s.LastSync())
	s.SetLastSync("2026-03-01T10:00:00.000Z")
	assert.Equal(t, "2026-03-01T10:00:00.000Z", s.LastSync())
}

func TestSettingsDefaultsAndMerge(t *testing.T) {
	s := newTestStore(t, NewMemoryKV(0))

	def := s.Settings()
	assert.Equal(t, "USD", def.Currency)
	require.NotNil(t, def.CommissionPercent)
	assert.Equal(t, 6.0, *def.CommissionPercent)

	_, err := s.SaveSettings(models.Settings{AgentName: "Laura", Currency: "EUR"})
	require.NoError(t, err)
	got, err := s.SaveSettings(models.Settings{Phone: "555-0123"})
	require.NoError(t, err)

	assert.Equal(t, "Laura", got.AgentName)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, "555-0123", got.Phone)
	assert.NotEmpty(t, got.UpdatedAt)
	require.NotNil(t, got.AgentSplitPercent)
	assert.Equal(t, 50.0, *got.AgentSplitPercent)
}

func TestCloseSaleRecordsLedgerEntry(t *testing.T) {
	s := newTestStore(t, NewMemoryKV(0))

	p, err := s.SaveProperty(&models.Property{Title: "Casa", Operation: "sale", Currency: "USD"})
	require.NoError(t, err)

	prop, sale, err := s.CloseSale(p.ID, models.PropertySale{
		FinalPrice: ptr(200000.0),
		Date:       "2026-03-05",
		Commission: &models.Commission{Percent: ptr(5.0), AgentSplit: ptr(60.0)},
	})
	require.NoError(t, err)
	assert.Equal(t, "sold", prop.Status)
	assert.InDelta(t, 6000.0, prop.Sale.Earnings, 0.001)
	require.NotNil(t, sale)
	assert.Equal(t, p.ID, sale.PropertyID)
	assert.Equal(t, "sale", sale.Operation)
	assert.Len(t, s.Sales(), 1)

	_, _, err = s.CloseSale("missing", models.PropertySale{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormKVPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.db")

	kv, err := OpenFile(path, 0)
	require.NoError(t, err)
	s := newTestStore(t, kv)
	saved, err := s.SaveClient(&models.Client{Name: "Persisted"})
	require.NoError(t, err)
	s.SetLastSync("2026-03-01T10:00:00.000Z")
	require.NoError(t, kv.Close())

	kv, err = OpenFile(path, 0)
	require.NoError(t, err)
	defer kv.Close()
	reopened := newTestStore(t, kv)
	clients := reopened.Clients()
	require.Len(t, clients, 1)
	assert.Equal(t, saved.ID, clients[0].ID)
	assert.Equal(t, "2026-03-01T10:00:00.000Z", reopened.LastSync())
}

func TestGormKVQuota(t *testing.T) {
	kv, err := OpenFile(filepath.Join(t.TempDir(), "quota.db"), 16)
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set("a", []byte("12345678")))
	require.NoError(t, kv.Set("a", []byte("1234567890123456")), "overwriting a key does not count its old value")
	assert.ErrorIs(t, kv.Set("b", []byte("x")), ErrQuotaExceeded)

	require.NoError(t, kv.Delete("a"))
	_, ok, err := kv.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)
}
