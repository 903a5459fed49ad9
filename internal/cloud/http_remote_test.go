package cloud_test

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/localnerve/crmsync/internal/cloud"
	"github.com/localnerve/crmsync/internal/config"
	"github.com/localnerve/crmsync/internal/models"
	"github.com/localnerve/crmsync/internal/server"
	"github.com/localnerve/crmsync/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liveServer struct {
	baseURL   string
	notifyURL string
}

func (s liveServer) remote(t *testing.T, uid string) *cloud.HTTPRemote {
	return cloud.NewHTTPRemote(s.baseURL, s.notifyURL, testhelpers.TestToken(t, uid), 5*time.Second)
}

func startServer(t *testing.T) liveServer {
	t.Helper()
	cfg := &config.Config{AuthSecret: testhelpers.TestSecret, NotifyPort: "0"}
	db := testhelpers.OpenTestDB(t)

	hub := server.NewHub(cfg, db)
	require.NoError(t, hub.Start())
	t.Cleanup(func() { _ = hub.Stop() })

	app := server.NewApp(cfg, db, hub, server.Options{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	_, port, err := net.SplitHostPort(hub.Addr())
	require.NoError(t, err)
	return liveServer{
		baseURL:   "http://" + ln.Addr().String(),
		notifyURL: "ws://127.0.0.1:" + port,
	}
}

func TestHTTPRemoteDocumentLifecycle(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	owner := srv.remote(t, "boss")

	_, err := owner.Fetch(ctx, "boss")
	assert.ErrorIs(t, err, cloud.ErrNotFound)

	snap := &cloud.Snapshot{
		Properties: json.RawMessage(`[{"id":"p1","title":"Loft"}]`),
		Clients:    json.RawMessage(`[]`),
		LastSync:   "2026-03-01T09:00:00.000Z",
	}
	require.NoError(t, owner.Put(ctx, "boss", snap))

	got, err := owner.Fetch(ctx, "boss")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T09:00:00.000Z", got.LastSync)
	assert.Equal(t, uint64(1), got.Version.Uint64())
	assert.True(t, got.HasProperties())

	stranger := srv.remote(t, "stranger")
	_, err = stranger.Fetch(ctx, "boss")
	assert.ErrorIs(t, err, cloud.ErrForbidden)
	assert.ErrorIs(t, stranger.Put(ctx, "boss", snap), cloud.ErrForbidden)

	anonymous := cloud.NewHTTPRemote(srv.baseURL, srv.notifyURL, "", time.Second)
	_, err = anonymous.Fetch(ctx, "boss")
	assert.ErrorIs(t, err, cloud.ErrForbidden)
}

func TestHTTPRemoteTeamAndPending(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	owner := srv.remote(t, "boss")
	sec := srv.remote(t, "sec")

	require.NoError(t, owner.Put(ctx, "boss", &cloud.Snapshot{
		Properties: json.RawMessage(`[]`),
		LastSync:   "2026-03-01T09:00:00.000Z",
	}))

	entry := models.PendingApproval{
		Type:    "property",
		Data:    json.RawMessage(`{"id":"staged"}`),
		AddedBy: "sec",
		AddedAt: "2026-03-01T10:00:00.000Z",
	}
	assert.ErrorIs(t, sec.AppendPending(ctx, "boss", entry), cloud.ErrForbidden)

	require.NoError(t, owner.SetTeamMember(ctx, models.TeamMember{
		OwnerID:  "boss",
		MemberID: "sec",
		Role:     models.RoleSecretary,
		Name:     "Carlos",
	}))

	role, err := sec.GetRole(ctx, "sec")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSecretary, role.Role)
	assert.Equal(t, "boss", role.OwnerID)

	members, err := sec.Roster(ctx, "boss")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Carlos", members[0].Name)

	require.NoError(t, sec.AppendPending(ctx, "boss", entry))
	doc, err := sec.Fetch(ctx, "boss")
	require.NoError(t, err)
	require.Len(t, doc.PendingApprovals, 1)
	assert.Equal(t, "sec", doc.PendingApprovals[0].AddedBy)

	// A rejected role change maps to ErrForbidden
	err = sec.SetRole(ctx, models.UserRole{UserID: "sec", Role: models.RoleCaptador, OwnerID: "boss"})
	assert.ErrorIs(t, err, cloud.ErrForbidden)

	require.NoError(t, owner.RemoveTeamMember(ctx, "boss", "sec"))
	assert.ErrorIs(t, owner.RemoveTeamMember(ctx, "boss", "sec"), cloud.ErrNotFound)
	_, err = sec.GetRole(ctx, "sec")
	assert.ErrorIs(t, err, cloud.ErrNotFound)
}

func TestHTTPRemoteSubscribe(t *testing.T) {
	srv := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	owner := srv.remote(t, "boss")

	_, err := srv.remote(t, "stranger").Subscribe(ctx, "boss", func(*cloud.Snapshot) {})
	assert.Error(t, err)

	got := make(chan *cloud.Snapshot, 4)
	sub, err := owner.Subscribe(ctx, "boss", func(snap *cloud.Snapshot) { got <- snap })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, owner.Put(ctx, "boss", &cloud.Snapshot{
		Properties: json.RawMessage(`[{"id":"p1"}]`),
		LastSync:   "2026-03-01T09:00:00.000Z",
	}))

	select {
	case snap := <-got:
		assert.Equal(t, "2026-03-01T09:00:00.000Z", snap.LastSync)
		assert.True(t, snap.HasProperties())
	case <-ctx.Done():
		t.Fatal("Timed out waiting for change notification")
	}
}

func TestHTTPRemoteHonorsCancelledContext(t *testing.T) {
	srv := startServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := srv.remote(t, "boss").Fetch(ctx, "boss")
	assert.ErrorIs(t, err, context.Canceled)
}
