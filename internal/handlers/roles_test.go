package handlers_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/crmsync/internal/models"
	"github.com/localnerve/crmsync/internal/services"
	"github.com/localnerve/crmsync/internal/testhelpers"
)

func TestGetRole(t *testing.T) {
	app, db, _ := setupApp(t)

	resp := doRequest(t, app, "GET", "/api/roles/sec", "sec", nil)
	testhelpers.AssertStatus(t, resp, fiber.StatusNotFound)

	addMember(t, db, "boss", "sec", models.RoleSecretary)

	resp = doRequest(t, app, "GET", "/api/roles/sec", "boss", nil)
	testhelpers.AssertStatus(t, resp, fiber.StatusForbidden)

	resp = doRequest(t, app, "GET", "/api/roles/sec", "sec", nil)
	testhelpers.AssertStatus(t, resp, fiber.StatusOK)

	var role models.UserRole
	testhelpers.ParseJSON(t, resp, &role)
	if role.Role != models.RoleSecretary {
		t.Errorf("Expected role secretary, got %q", role.Role)
	}
	if role.OwnerID != "boss" {
		t.Errorf("Expected ownerId 'boss', got %q", role.OwnerID)
	}
}

func TestPutRole(t *testing.T) {
	app, db, _ := setupApp(t)

	tests := []struct {
		name     string
		user     string
		path     string
		body     map[string]interface{}
		expected int
	}{
		{
			name:     "Owner of self",
			user:     "boss",
			path:     "/api/roles/boss",
			body:     map[string]interface{}{"role": "owner", "name": "Ana"},
			expected: fiber.StatusOK,
		},
		{
			name:     "Other identity",
			user:     "boss",
			path:     "/api/roles/sec",
			body:     map[string]interface{}{"role": "owner"},
			expected: fiber.StatusForbidden,
		},
		{
			name:     "Owner pointing elsewhere",
			user:     "rogue",
			path:     "/api/roles/rogue",
			body:     map[string]interface{}{"role": "owner", "ownerId": "boss"},
			expected: fiber.StatusForbidden,
		},
		{
			name:     "Delegated without roster entry",
			user:     "rogue",
			path:     "/api/roles/rogue",
			body:     map[string]interface{}{"role": "secretary", "ownerId": "boss"},
			expected: fiber.StatusForbidden,
		},
		{
			name:     "Unknown role",
			user:     "rogue",
			path:     "/api/roles/rogue",
			body:     map[string]interface{}{"role": "admin"},
			expected: fiber.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, app, "PUT", tt.path, tt.user, tt.body)
			testhelpers.AssertStatus(t, resp, tt.expected)
		})
	}

	role, err := services.GetRole(db, "boss")
	if err != nil {
		t.Fatalf("Expected boss role to be stored: %v", err)
	}
	if role.Role != models.RoleOwner || role.Name != "Ana" {
		t.Errorf("Unexpected stored role: %+v", role)
	}
	if _, err := services.GetRole(db, "rogue"); err == nil {
		t.Errorf("Expected no role for rogue")
	}
}

func TestPutRoleMatchingRoster(t *testing.T) {
	app, db, _ := setupApp(t)
	addMember(t, db, "boss", "cap", models.RoleCaptador)

	resp := doRequest(t, app, "PUT", "/api/roles/cap", "cap",
		map[string]interface{}{"role": "secretary", "ownerId": "boss"})
	testhelpers.AssertStatus(t, resp, fiber.StatusForbidden)

	resp = doRequest(t, app, "PUT", "/api/roles/cap", "cap",
		map[string]interface{}{"role": "captador", "ownerId": "boss", "name": "Luis"})
	testhelpers.AssertStatus(t, resp, fiber.StatusOK)
}

func TestTeamRoutes(t *testing.T) {
	app, _, _ := setupApp(t)

	resp := doRequest(t, app, "GET", "/api/team/boss", "boss", nil)
	testhelpers.AssertStatus(t, resp, fiber.StatusOK)
	var members []models.TeamMember
	testhelpers.ParseJSON(t, resp, &members)
	if len(members) != 0 {
		t.Errorf("Expected an empty roster, got %d", len(members))
	}

	resp = doRequest(t, app, "PUT", "/api/team/boss/sec", "sec",
		map[string]interface{}{"role": "secretary"})
	testhelpers.AssertStatus(t, resp, fiber.StatusForbidden)

	resp = doRequest(t, app, "PUT", "/api/team/boss/sec", "boss",
		map[string]interface{}{"role": "owner"})
	testhelpers.AssertStatus(t, resp, fiber.StatusBadRequest)

	resp = doRequest(t, app, "PUT", "/api/team/boss/boss", "boss",
		map[string]interface{}{"role": "secretary"})
	testhelpers.AssertStatus(t, resp, fiber.StatusForbidden)

	resp = doRequest(t, app, "PUT", "/api/team/boss/sec", "boss",
		map[string]interface{}{"role": "secretary", "name": "Carlos", "email": "carlos@example.com"})
	testhelpers.AssertStatus(t, resp, fiber.StatusOK)

	// Members read the roster, outsiders do not
	resp = doRequest(t, app, "GET", "/api/team/boss", "sec", nil)
	testhelpers.AssertStatus(t, resp, fiber.StatusOK)
	testhelpers.ParseJSON(t, resp, &members)
	if len(members) != 1 || members[0].MemberID != "sec" || members[0].Name != "Carlos" {
		t.Errorf("Unexpected roster: %+v", members)
	}

	resp = doRequest(t, app, "GET", "/api/team/boss", "stranger", nil)
	testhelpers.AssertStatus(t, resp, fiber.StatusForbidden)

	resp = doRequest(t, app, "DELETE", "/api/team/boss/sec", "boss", nil)
	testhelpers.AssertStatus(t, resp, fiber.StatusNoContent)
	testhelpers.AssertNoContent(t, resp)

	resp = doRequest(t, app, "DELETE", "/api/team/boss/sec", "boss", nil)
	testhelpers.AssertStatus(t, resp, fiber.StatusNotFound)

	resp = doRequest(t, app, "GET", "/api/roles/sec", "sec", nil)
	testhelpers.AssertStatus(t, resp, fiber.StatusNotFound)
}
