package roles_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/localnerve/crmsync/internal/cloud"
	"github.com/localnerve/crmsync/internal/cloud/cloudtest"
	"github.com/localnerve/crmsync/internal/logging"
	"github.com/localnerve/crmsync/internal/models"
	"github.com/localnerve/crmsync/internal/roles"
	"github.com/localnerve/crmsync/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stamp = "2026-03-02T08:00:00.000Z"

func newResolver(remote cloud.Remote, sess *session.Session, failClosed bool) *roles.Resolver {
	return roles.New(remote, sess, roles.Options{
		FailClosed: failClosed,
		Logger:     logging.Discard(),
		Now:        func() string { return stamp },
	})
}

func TestResolveWithoutRecordIsOwner(t *testing.T) {
	remote := cloudtest.NewMemoryRemote()
	sess := session.New("ana", "Ana")

	role, err := newResolver(remote, sess, false).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, role)
	assert.Equal(t, "ana", sess.OwnerID())
	assert.False(t, sess.IsDelegated())
	assert.True(t, sess.Resolved())
}

func TestResolveDelegatedRedirectsToOwner(t *testing.T) {
	remote := cloudtest.NewMemoryRemote()
	remote.SeedRole(models.UserRole{UserID: "sec", Role: models.RoleSecretary, OwnerID: "boss", Name: "Sara"})
	remote.SeedRoster("boss", models.TeamMember{OwnerID: "boss", MemberID: "sec", Role: models.RoleSecretary})
	sess := session.New("sec", "")

	role, err := newResolver(remote, sess, false).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RoleSecretary, role)
	assert.Equal(t, "boss", sess.OwnerID())
	assert.True(t, sess.IsSecretary())
	assert.False(t, sess.IsCaptador())
	assert.False(t, sess.CanEdit())
	assert.Equal(t, "Sara", sess.Name())
	assert.Equal(t, 0, remote.SetRoleCount())
}

func TestResolveOwnerRecordPointingAtSelf(t *testing.T) {
	remote := cloudtest.NewMemoryRemote()
	remote.SeedRole(models.UserRole{UserID: "ana", Role: models.RoleSecretary, OwnerID: "ana"})
	sess := session.New("ana", "Ana")

	role, err := newResolver(remote, sess, false).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, role)
	assert.Equal(t, "ana", sess.OwnerID())
}

func TestResolveSelfHealsFromRoster(t *testing.T) {
	remote := cloudtest.NewMemoryRemote()
	remote.SeedRole(models.UserRole{UserID: "cap", Role: models.RoleSecretary, OwnerID: "boss"})
	remote.SeedRoster("boss", models.TeamMember{OwnerID: "boss", MemberID: "cap", Role: models.RoleCaptador, Name: "Carlos"})
	sess := session.New("cap", "")

	role, err := newResolver(remote, sess, false).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RoleCaptador, role)
	assert.True(t, sess.IsCaptador())
	assert.Equal(t, 1, remote.SetRoleCount())

	stored, err := remote.GetRole(context.Background(), "cap")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCaptador, stored.Role)
	assert.Equal(t, "boss", stored.OwnerID)
	assert.Equal(t, "Carlos", stored.Name)
}

func TestResolveFailOpenByDefault(t *testing.T) {
	remote := cloudtest.NewMemoryRemote()
	remote.SeedRole(models.UserRole{UserID: "sec", Role: models.RoleSecretary, OwnerID: "boss"})
	remote.FailRole = errors.New("permission denied")
	sess := session.New("sec", "")

	role, err := newResolver(remote, sess, false).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, role)
	assert.Equal(t, "sec", sess.OwnerID())
	assert.True(t, sess.Resolved())
}

func TestResolveFailClosed(t *testing.T) {
	remote := cloudtest.NewMemoryRemote()
	remote.FailRole = errors.New("permission denied")
	sess := session.New("sec", "")

	_, err := newResolver(remote, sess, true).Resolve(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "permission denied")
	assert.False(t, sess.Resolved())
}

func TestSavePendingStagesWithAttribution(t *testing.T) {
	remote := cloudtest.NewMemoryRemote()
	remote.Seed("boss", &cloud.Snapshot{LastSync: stamp, Properties: json.RawMessage(`[]`)})
	remote.SeedRole(models.UserRole{UserID: "cap", Role: models.RoleCaptador, OwnerID: "boss"})
	remote.SeedRoster("boss", models.TeamMember{OwnerID: "boss", MemberID: "cap", Role: models.RoleCaptador})
	sess := session.New("cap", "Carlos")
	r := newResolver(remote, sess, false)
	_, err := r.Resolve(context.Background())
	require.NoError(t, err)

	entry, err := r.SavePending(context.Background(), roles.PendingProperty, &models.Property{Title: "Corner lot", Operation: "sale"})
	require.NoError(t, err)
	assert.Equal(t, "cap", entry.AddedBy)
	assert.Equal(t, "Carlos", entry.AddedByName)
	assert.Equal(t, stamp, entry.AddedAt)

	doc := remote.Document("boss")
	require.NotNil(t, doc)
	assert.JSONEq(t, `[]`, string(doc.Properties))
	require.Len(t, doc.PendingApprovals, 1)

	staged := doc.PendingApprovals[0]
	assert.Equal(t, "property", staged.Type)
	assert.Equal(t, "cap", staged.AddedBy)
	var prop models.Property
	require.NoError(t, json.Unmarshal(staged.Data, &prop))
	assert.NotEmpty(t, prop.ID)
	assert.Equal(t, "Corner lot", prop.Title)
	assert.Equal(t, stamp, prop.CreatedAt)
}

func TestSavePendingRejections(t *testing.T) {
	remote := cloudtest.NewMemoryRemote()
	owner := session.New("boss", "")
	_, err := newResolver(remote, owner, false).SavePending(context.Background(), roles.PendingClient, &models.Client{Name: "Ana"})
	assert.ErrorIs(t, err, roles.ErrNotDelegated)

	sec := session.New("sec", "")
	sec.Resolve("boss", models.RoleSecretary, "")
	r := newResolver(remote, sec, false)

	_, err = r.SavePending(context.Background(), "expense", map[string]any{"concept": "fuel"})
	assert.ErrorIs(t, err, roles.ErrUnknownPendingType)

	_, err = r.SavePending(context.Background(), roles.PendingClient, &models.Client{Name: "Ana", Type: "alien"})
	assert.Error(t, err)

	// No document to stage against.
	_, err = r.SavePending(context.Background(), roles.PendingSign, &models.Sign{Address: "Calle 5"})
	assert.ErrorIs(t, err, cloud.ErrNotFound)
}
