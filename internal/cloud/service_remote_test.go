package cloud_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/localnerve/crmsync/internal/cloud"
	"github.com/localnerve/crmsync/internal/logging"
	"github.com/localnerve/crmsync/internal/models"
	"github.com/localnerve/crmsync/internal/notify"
	"github.com/localnerve/crmsync/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServiceRemote(t *testing.T) *cloud.ServiceRemote {
	t.Helper()
	hub := notify.NewHub(notify.Config{Addr: "127.0.0.1:0", Logger: logging.Discard()})
	t.Cleanup(func() { _ = hub.Stop() })
	return cloud.NewServiceRemote(testhelpers.OpenTestDB(t), hub, "boss")
}

func TestServiceRemoteOwnership(t *testing.T) {
	ctx := context.Background()
	owner := newServiceRemote(t)
	sec := owner.As("sec")

	snap := &cloud.Snapshot{Properties: json.RawMessage(`[]`), LastSync: "2026-03-01T09:00:00.000Z"}
	assert.ErrorIs(t, sec.Put(ctx, "boss", snap), cloud.ErrForbidden)
	require.NoError(t, owner.Put(ctx, "boss", snap))

	_, err := sec.Fetch(ctx, "boss")
	assert.ErrorIs(t, err, cloud.ErrForbidden)
	_, err = sec.Roster(ctx, "boss")
	assert.ErrorIs(t, err, cloud.ErrForbidden)

	err = sec.SetTeamMember(ctx, models.TeamMember{OwnerID: "boss", MemberID: "sec", Role: models.RoleSecretary})
	assert.ErrorIs(t, err, cloud.ErrForbidden)
	require.NoError(t, owner.SetTeamMember(ctx, models.TeamMember{OwnerID: "boss", MemberID: "sec", Role: models.RoleSecretary}))

	got, err := sec.Fetch(ctx, "boss")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T09:00:00.000Z", got.LastSync)

	_, err = owner.GetRole(ctx, "sec")
	assert.ErrorIs(t, err, cloud.ErrForbidden)
	assert.ErrorIs(t, owner.SetRole(ctx, models.UserRole{UserID: "sec", Role: models.RoleOwner}), cloud.ErrForbidden)

	assert.ErrorIs(t, sec.RemoveTeamMember(ctx, "boss", "sec"), cloud.ErrForbidden)
	require.NoError(t, owner.RemoveTeamMember(ctx, "boss", "sec"))
}

func TestServiceRemoteAppendPendingAttributesCaller(t *testing.T) {
	ctx := context.Background()
	owner := newServiceRemote(t)
	sec := owner.As("sec")

	entry := models.PendingApproval{
		Type:    "sign",
		Data:    json.RawMessage(`{"id":"s1"}`),
		AddedBy: "someone-else",
		AddedAt: "2026-03-01T10:00:00.000Z",
	}
	require.NoError(t, owner.SetTeamMember(ctx, models.TeamMember{OwnerID: "boss", MemberID: "sec", Role: models.RoleCaptador}))
	assert.ErrorIs(t, sec.AppendPending(ctx, "boss", entry), cloud.ErrNotFound)

	require.NoError(t, owner.Put(ctx, "boss", &cloud.Snapshot{LastSync: "2026-03-01T09:00:00.000Z"}))
	require.NoError(t, sec.AppendPending(ctx, "boss", entry))

	doc, err := owner.Fetch(ctx, "boss")
	require.NoError(t, err)
	require.Len(t, doc.PendingApprovals, 1)
	assert.Equal(t, "sec", doc.PendingApprovals[0].AddedBy)
}

func TestServiceRemoteSubscribe(t *testing.T) {
	ctx := context.Background()
	owner := newServiceRemote(t)

	_, err := owner.As("stranger").Subscribe(ctx, "boss", func(*cloud.Snapshot) {})
	assert.ErrorIs(t, err, cloud.ErrForbidden)

	got := make(chan *cloud.Snapshot, 2)
	sub, err := owner.Subscribe(ctx, "boss", func(snap *cloud.Snapshot) { got <- snap })
	require.NoError(t, err)

	require.NoError(t, owner.Put(ctx, "boss", &cloud.Snapshot{LastSync: "2026-03-01T09:00:00.000Z"}))
	select {
	case snap := <-got:
		assert.Equal(t, uint64(1), snap.Version.Uint64())
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for local notification")
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
}
