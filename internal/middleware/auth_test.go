package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/crmsync/internal/services"
	"github.com/localnerve/crmsync/internal/types"
)

func newTestApp(secret string) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*types.CustomError); ok {
				return c.Status(e.Code).SendString(e.Message)
			}
			return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
		},
	})
	app.Use(VersionMiddleware())
	app.Get("/whoami", AuthUser(secret), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("uid").(string))
	})
	return app
}

func TestAuthUserAcceptsValidToken(t *testing.T) {
	app := newTestApp("secret")
	token, err := services.IssueToken("secret", "agent-1", "Agent", time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "agent-1" {
		t.Errorf("Expected uid agent-1, got %s", body)
	}
	if got := resp.Header.Get("X-Document-Format"); got != CurrentDocumentFormat {
		t.Errorf("Expected document format header %s, got %s", CurrentDocumentFormat, got)
	}
}

func TestAuthUserRejects(t *testing.T) {
	app := newTestApp("secret")
	wrongSecret, _ := services.IssueToken("other", "agent-1", "", time.Hour)
	expired, _ := services.IssueToken("secret", "agent-1", "", -time.Minute)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not-a-token"},
		{"wrong secret", "Bearer " + wrongSecret},
		{"expired", "Bearer " + expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("Failed to execute request: %v", err)
			}
			if resp.StatusCode != fiber.StatusUnauthorized {
				t.Errorf("Expected status 401, got %d", resp.StatusCode)
			}
		})
	}
}
