package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/crmsync/internal/handlers"
	"github.com/localnerve/crmsync/internal/models"
	"github.com/localnerve/crmsync/internal/services"
	"github.com/localnerve/crmsync/internal/testhelpers"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	owners []string
}

func (p *recordingPublisher) Publish(owner string, _ *models.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.owners = append(p.owners, owner)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.owners)
}

// setupApp mounts the handlers behind a stand-in for the auth middleware
// that trusts the X-Test-User header.
func setupApp(t *testing.T) (*fiber.App, *gorm.DB, *recordingPublisher) {
	t.Helper()
	db := testhelpers.OpenTestDB(t)
	pub := &recordingPublisher{}

	app := fiber.New()
	api := app.Group("/api", func(c *fiber.Ctx) error {
		if uid := c.Get("X-Test-User"); uid != "" {
			c.Locals("uid", uid)
		}
		return c.Next()
	})

	docs := &handlers.DocumentHandler{DB: db, Notify: pub}
	api.Get("/docs/:owner", docs.GetDocument)
	api.Put("/docs/:owner", docs.PutDocument)
	api.Post("/docs/:owner/pending", docs.AppendPending)

	roles := &handlers.RoleHandler{DB: db}
	api.Get("/roles/:uid", roles.GetRole)
	api.Put("/roles/:uid", roles.PutRole)
	api.Get("/team/:owner", roles.GetTeam)
	api.Put("/team/:owner/:member", roles.PutTeamMember)
	api.Delete("/team/:owner/:member", roles.DeleteTeamMember)

	return app, db, pub
}

func doRequest(t *testing.T, app *fiber.App, method, path, user string, body interface{}) *http.Response {
	t.Helper()
	var buf *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		buf = bytes.NewBuffer(raw)
	} else {
		buf = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	return resp
}

func putBody(lastSync string, properties ...map[string]interface{}) map[string]interface{} {
	if properties == nil {
		properties = []map[string]interface{}{}
	}
	return map[string]interface{}{
		"document": map[string]interface{}{
			"properties": properties,
			"clients":    []interface{}{},
			"lastSync":   lastSync,
		},
	}
}

func addMember(t *testing.T, db *gorm.DB, owner, member string, role models.Role) {
	t.Helper()
	if err := services.SetTeamMember(db, models.TeamMember{
		OwnerID:  owner,
		MemberID: member,
		Role:     role,
	}); err != nil {
		t.Fatalf("Failed to add team member: %v", err)
	}
}

func TestPutDocument(t *testing.T) {
	app, _, pub := setupApp(t)

	resp := doRequest(t, app, "PUT", "/api/docs/boss", "boss",
		putBody("2026-03-01T09:00:00.000Z", map[string]interface{}{"id": "p1", "title": "Loft"}))
	testhelpers.AssertStatus(t, resp, fiber.StatusOK)

	var result map[string]interface{}
	testhelpers.ParseJSON(t, resp, &result)
	if result["newVersion"] != "1" {
		t.Errorf("Expected newVersion '1', got %v", result["newVersion"])
	}
	if result["lastSync"] != "2026-03-01T09:00:00.000Z" {
		t.Errorf("Expected lastSync to round trip, got %v", result["lastSync"])
	}
	if pub.count() != 1 {
		t.Errorf("Expected one publish, got %d", pub.count())
	}

	resp = doRequest(t, app, "PUT", "/api/docs/boss", "boss", putBody("2026-03-01T09:05:00.000Z"))
	testhelpers.AssertStatus(t, resp, fiber.StatusOK)
	testhelpers.ParseJSON(t, resp, &result)
	if result["newVersion"] != "2" {
		t.Errorf("Expected newVersion '2', got %v", result["newVersion"])
	}
}

func TestPutDocumentOnlyOwner(t *testing.T) {
	app, db, pub := setupApp(t)
	addMember(t, db, "boss", "sec", models.RoleSecretary)

	resp := doRequest(t, app, "PUT", "/api/docs/boss", "sec", putBody("2026-03-01T09:00:00.000Z"))
	testhelpers.AssertStatus(t, resp, fiber.StatusForbidden)

	resp = doRequest(t, app, "PUT", "/api/docs/boss", "", putBody("2026-03-01T09:00:00.000Z"))
	testhelpers.AssertStatus(t, resp, fiber.StatusForbidden)

	if pub.count() != 0 {
		t.Errorf("Expected no publish, got %d", pub.count())
	}
}

func TestPutDocumentVersionConflict(t *testing.T) {
	app, _, _ := setupApp(t)

	resp := doRequest(t, app, "PUT", "/api/docs/boss", "boss", putBody("2026-03-01T09:00:00.000Z"))
	testhelpers.AssertStatus(t, resp, fiber.StatusOK)

	body := putBody("2026-03-01T09:01:00.000Z")
	body["version"] = "7"
	resp = doRequest(t, app, "PUT", "/api/docs/boss", "boss", body)
	testhelpers.AssertStatus(t, resp, fiber.StatusConflict)

	var result map[string]interface{}
	testhelpers.ParseJSON(t, resp, &result)
	if result["versionError"] != true {
		t.Errorf("Expected versionError true, got %v", result["versionError"])
	}

	body["version"] = "1"
	resp = doRequest(t, app, "PUT", "/api/docs/boss", "boss", body)
	testhelpers.AssertStatus(t, resp, fiber.StatusOK)
}

func TestPutDocumentInvalidBody(t *testing.T) {
	app, _, _ := setupApp(t)

	req := httptest.NewRequest("PUT", "/api/docs/boss", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", "boss")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	testhelpers.AssertStatus(t, resp, fiber.StatusBadRequest)
}

func TestGetDocument(t *testing.T) {
	app, db, _ := setupApp(t)

	resp := doRequest(t, app, "GET", "/api/docs/boss", "boss", nil)
	testhelpers.AssertStatus(t, resp, fiber.StatusNotFound)

	resp = doRequest(t, app, "PUT", "/api/docs/boss", "boss",
		putBody("2026-03-01T09:00:00.000Z", map[string]interface{}{"id": "p1"}, map[string]interface{}{"id": "p2"}))
	testhelpers.AssertStatus(t, resp, fiber.StatusOK)

	resp = doRequest(t, app, "GET", "/api/docs/boss", "stranger", nil)
	testhelpers.AssertStatus(t, resp, fiber.StatusForbidden)

	addMember(t, db, "boss", "sec", models.RoleSecretary)
	resp = doRequest(t, app, "GET", "/api/docs/boss", "sec", nil)
	testhelpers.AssertStatus(t, resp, fiber.StatusOK)

	var snap models.Snapshot
	testhelpers.ParseJSON(t, resp, &snap)
	if snap.LastSync != "2026-03-01T09:00:00.000Z" {
		t.Errorf("Expected lastSync, got %q", snap.LastSync)
	}
	if snap.Version.Uint64() != 1 {
		t.Errorf("Expected version 1, got %d", snap.Version.Uint64())
	}
	var props []map[string]interface{}
	if err := json.Unmarshal(snap.Properties, &props); err != nil {
		t.Fatalf("Failed to decode properties: %v", err)
	}
	if len(props) != 2 {
		t.Errorf("Expected 2 properties, got %d", len(props))
	}
}

func TestGetDocumentCollectionsFilter(t *testing.T) {
	app, _, _ := setupApp(t)

	resp := doRequest(t, app, "PUT", "/api/docs/boss", "boss",
		putBody("2026-03-01T09:00:00.000Z", map[string]interface{}{"id": "p1"}))
	testhelpers.AssertStatus(t, resp, fiber.StatusOK)

	resp = doRequest(t, app, "GET", "/api/docs/boss?collections=clients", "boss", nil)
	testhelpers.AssertStatus(t, resp, fiber.StatusOK)

	var result map[string]interface{}
	testhelpers.ParseJSON(t, resp, &result)
	if _, ok := result["properties"]; ok {
		t.Errorf("Expected properties to be filtered out, got %v", result["properties"])
	}
	if _, ok := result["clients"]; !ok {
		t.Errorf("Expected clients in the filtered document")
	}
	if result["lastSync"] != "2026-03-01T09:00:00.000Z" {
		t.Errorf("Expected lastSync to survive filtering, got %v", result["lastSync"])
	}
}

func TestAppendPending(t *testing.T) {
	app, db, pub := setupApp(t)
	addMember(t, db, "boss", "sec", models.RoleSecretary)

	entry := map[string]interface{}{
		"type":        "property",
		"data":        map[string]interface{}{"id": "staged-1", "title": "Casa"},
		"addedBy":     "mallory",
		"addedByName": "Carlos",
		"addedAt":     "2026-03-01T10:00:00.000Z",
	}

	// No document yet
	resp := doRequest(t, app, "POST", "/api/docs/boss/pending", "sec", entry)
	testhelpers.AssertStatus(t, resp, fiber.StatusNotFound)

	resp = doRequest(t, app, "PUT", "/api/docs/boss", "boss",
		putBody("2026-03-01T09:00:00.000Z", map[string]interface{}{"id": "p1"}))
	testhelpers.AssertStatus(t, resp, fiber.StatusOK)
	before := pub.count()

	resp = doRequest(t, app, "POST", "/api/docs/boss/pending", "sec", entry)
	testhelpers.AssertStatus(t, resp, fiber.StatusOK)
	if pub.count() != before+1 {
		t.Errorf("Expected a publish after staging, got %d", pub.count()-before)
	}

	snap, err := services.GetDocument(db, "boss")
	if err != nil {
		t.Fatalf("Failed to read document: %v", err)
	}
	if len(snap.PendingApprovals) != 1 {
		t.Fatalf("Expected 1 pending approval, got %d", len(snap.PendingApprovals))
	}
	got := snap.PendingApprovals[0]
	if got.AddedBy != "sec" {
		t.Errorf("Expected addedBy from the caller, got %q", got.AddedBy)
	}
	if got.AddedByName != "Carlos" {
		t.Errorf("Expected addedByName 'Carlos', got %q", got.AddedByName)
	}

	var props []map[string]interface{}
	if err := json.Unmarshal(snap.Properties, &props); err != nil {
		t.Fatalf("Failed to decode properties: %v", err)
	}
	if len(props) != 1 {
		t.Errorf("Expected staged write to leave properties untouched, got %d", len(props))
	}
}

func TestAppendPendingRejects(t *testing.T) {
	app, db, _ := setupApp(t)
	addMember(t, db, "boss", "sec", models.RoleSecretary)

	resp := doRequest(t, app, "PUT", "/api/docs/boss", "boss", putBody("2026-03-01T09:00:00.000Z"))
	testhelpers.AssertStatus(t, resp, fiber.StatusOK)

	tests := []struct {
		name     string
		user     string
		entry    map[string]interface{}
		expected int
	}{
		{
			name:     "Outsider",
			user:     "stranger",
			entry:    map[string]interface{}{"type": "client", "data": map[string]interface{}{}, "addedAt": "2026-03-01T10:00:00.000Z"},
			expected: fiber.StatusForbidden,
		},
		{
			name:     "Unknown type",
			user:     "sec",
			entry:    map[string]interface{}{"type": "expense", "data": map[string]interface{}{}, "addedAt": "2026-03-01T10:00:00.000Z"},
			expected: fiber.StatusBadRequest,
		},
		{
			name:     "Missing addedAt",
			user:     "sec",
			entry:    map[string]interface{}{"type": "sign", "data": map[string]interface{}{}},
			expected: fiber.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, app, "POST", "/api/docs/boss/pending", tt.user, tt.entry)
			testhelpers.AssertStatus(t, resp, tt.expected)
		})
	}

	snap, err := services.GetDocument(db, "boss")
	if err != nil {
		t.Fatalf("Failed to read document: %v", err)
	}
	if len(snap.PendingApprovals) != 0 {
		t.Errorf("Expected no pending approvals, got %d", len(snap.PendingApprovals))
	}
}
