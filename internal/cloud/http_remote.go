package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/crmsync/internal/models"
	"github.com/localnerve/crmsync/internal/notify"
)

// HTTPRemote talks to the cloud document server over HTTP and subscribes
// through its notification hub.
type HTTPRemote struct {
	BaseURL   string
	NotifyURL string
	Token     string
	Timeout   time.Duration
}

// NewHTTPRemote creates an HTTPRemote. baseURL is the server root, without /api.
func NewHTTPRemote(baseURL, notifyURL, token string, timeout time.Duration) *HTTPRemote {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRemote{BaseURL: baseURL, NotifyURL: notifyURL, Token: token, Timeout: timeout}
}

func (r *HTTPRemote) url(format string, args ...string) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(a)
	}
	return r.BaseURL + "/api" + fmt.Sprintf(format, escaped...)
}

// errorBody is the server error envelope.
type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (r *HTTPRemote) do(ctx context.Context, a *fiber.Agent, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := r.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if r.Token != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+r.Token)
	}
	a.Timeout(timeout)
	if err := a.Parse(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("request failed: %w", errors.Join(errs...))
	}

	switch code {
	case fiber.StatusOK:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	case fiber.StatusNoContent:
		return nil
	}

	var envelope errorBody
	_ = json.Unmarshal(body, &envelope)
	switch code {
	case fiber.StatusNotFound:
		return ErrNotFound
	case fiber.StatusUnauthorized, fiber.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, envelope.Message)
	case fiber.StatusConflict:
		return ErrConflict
	}
	return fmt.Errorf("unexpected status %d: %s", code, envelope.Message)
}

func (r *HTTPRemote) Fetch(ctx context.Context, owner string) (*Snapshot, error) {
	var snap Snapshot
	if err := r.do(ctx, fiber.Get(r.url("/docs/%s", owner)), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *HTTPRemote) Put(ctx context.Context, owner string, snap *Snapshot) error {
	a := fiber.Put(r.url("/docs/%s", owner)).JSON(models.PutDocumentRequest{Document: *snap})
	return r.do(ctx, a, nil)
}

func (r *HTTPRemote) AppendPending(ctx context.Context, owner string, entry models.PendingApproval) error {
	a := fiber.Post(r.url("/docs/%s/pending", owner)).JSON(entry)
	return r.do(ctx, a, nil)
}

func (r *HTTPRemote) Subscribe(ctx context.Context, owner string, fn func(*Snapshot)) (Subscription, error) {
	client, err := notify.Dial(ctx, r.NotifyURL, owner, r.Token, func(msg notify.Message) {
		fn(msg.Document)
	})
	if err != nil {
		return nil, err
	}
	return subscriptionFunc(client.Close), nil
}

func (r *HTTPRemote) GetRole(ctx context.Context, userID string) (*models.UserRole, error) {
	var role models.UserRole
	if err := r.do(ctx, fiber.Get(r.url("/roles/%s", userID)), &role); err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *HTTPRemote) SetRole(ctx context.Context, role models.UserRole) error {
	a := fiber.Put(r.url("/roles/%s", role.UserID)).JSON(role)
	return r.do(ctx, a, nil)
}

func (r *HTTPRemote) Roster(ctx context.Context, owner string) ([]models.TeamMember, error) {
	var members []models.TeamMember
	if err := r.do(ctx, fiber.Get(r.url("/team/%s", owner)), &members); err != nil {
		return nil, err
	}
	return members, nil
}

// SetTeamMember adds or changes a member of the caller's roster.
func (r *HTTPRemote) SetTeamMember(ctx context.Context, member models.TeamMember) error {
	a := fiber.Put(r.url("/team/%s/%s", member.OwnerID, member.MemberID)).JSON(member)
	return r.do(ctx, a, nil)
}

// RemoveTeamMember removes a member of the caller's roster.
func (r *HTTPRemote) RemoveTeamMember(ctx context.Context, owner, member string) error {
	return r.do(ctx, fiber.Delete(r.url("/team/%s/%s", owner, member)), nil)
}
