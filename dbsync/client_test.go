package dbsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalink-io/vitalink/database/model"
)

type fakeStore struct {
	users    []model.User
	applied  [][]model.User
	applyErr error
	report   MergeReport
}

func (f *fakeStore) FetchAll() ([]model.User, error) {
	return f.users, nil
}

func (f *fakeStore) ApplyBatch(users []model.User) (MergeReport, error) {
	f.applied = append(f.applied, users)
	if f.applyErr != nil {
		return MergeReport{}, f.applyErr
	}
	return f.report, nil
}

func clientFor(t *testing.T, peerURL string, store Store) *Client {
	t.Helper()
	cfg := Config{
		Role:     RoleLocal,
		PeerURL:  peerURL,
		Token:    "shared-secret",
		AuthMode: AuthModeStatic,
		Interval: 60,
		Timeout:  5,
	}
	return NewClient(cfg, NewAuthenticator(cfg), store)
}

func remoteUser(id int, username, updatedAt string) model.User {
	return model.User{
		Id:           id,
		Username:     username,
		PasswordHash: "$2a$10$hash",
		FirstName:    "Ada",
		LastName:     "Bianchi",
		Role:         "doctor",
		CreatedAt:    "2026-01-01T00:00:00Z",
		UpdatedAt:    updatedAt,
	}
}

func TestRunCycleHappyPath(t *testing.T) {
	remote := []model.User{remoteUser(1, "abianchi", "2026-03-01T10:05:00Z")}
	var sawPull, sawPush bool
	var pushedBody PushRequest

	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, SyncPath, r.URL.Path)
		require.Equal(t, "shared-secret", r.Header.Get(TokenHeader))
		switch r.Method {
		case http.MethodGet:
			sawPull = true
			json.NewEncoder(w).Encode(PullResponse{
				Success:   true,
				Users:     remote,
				Count:     len(remote),
				Timestamp: model.NowStamp(),
			})
		case http.MethodPost:
			sawPush = true
			require.NoError(t, json.NewDecoder(r.Body).Decode(&pushedBody))
			json.NewEncoder(w).Encode(MergeReport{
				Success:   true,
				Inserted:  1,
				Conflicts: []ConflictReport{},
				Timestamp: model.NowStamp(),
			})
		}
	}))
	defer peer.Close()

	store := &fakeStore{
		users:  []model.User{remoteUser(2, "mrossi", "2026-03-01T09:00:00Z")},
		report: MergeReport{Success: true, Inserted: 1, Conflicts: []ConflictReport{}},
	}

	session, err := clientFor(t, peer.URL, store).RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, sawPull)
	assert.True(t, sawPush)

	require.Len(t, store.applied, 1)
	assert.Equal(t, remote, store.applied[0])

	require.Len(t, pushedBody.Users, 1)
	assert.Equal(t, "mrossi", pushedBody.Users[0].Username)

	assert.Equal(t, 1, session.Pulled)
	assert.Equal(t, 1, session.Pushed)
	assert.Equal(t, 1, session.Applied.Inserted)
	assert.Equal(t, 1, session.Remote.Inserted)
	assert.NotEmpty(t, session.CycleId)
}

func TestRunCycleAbortsOnPullFailure(t *testing.T) {
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer peer.Close()

	store := &fakeStore{}
	_, err := clientFor(t, peer.URL, store).RunCycle(context.Background())
	assert.Error(t, err)
	assert.Empty(t, store.applied, "a failed pull must not touch the store")
}

func TestRunCycleAbortsOnUnauthorized(t *testing.T) {
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false,"msg":"invalid sync token"}`, http.StatusUnauthorized)
	}))
	defer peer.Close()

	store := &fakeStore{}
	_, err := clientFor(t, peer.URL, store).RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Empty(t, store.applied)
}

func TestRunCycleAbortsOnMalformedPullBody(t *testing.T) {
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "users": [{"id": "trunca`))
	}))
	defer peer.Close()

	store := &fakeStore{}
	_, err := clientFor(t, peer.URL, store).RunCycle(context.Background())
	assert.Error(t, err)
	assert.Empty(t, store.applied, "a body that fails to decode must not reach the merge")
}

func TestRunCycleStopsWhenPushRejected(t *testing.T) {
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(PullResponse{Success: true, Users: nil, Count: 0, Timestamp: model.NowStamp()})
		case http.MethodPost:
			http.Error(w, `{"success":false,"msg":"users list is empty"}`, http.StatusBadRequest)
		}
	}))
	defer peer.Close()

	store := &fakeStore{report: MergeReport{Success: true, Conflicts: []ConflictReport{}}}
	_, err := clientFor(t, peer.URL, store).RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestRunCycleHonorsContextCancellation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	}))
	defer peer.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	store := &fakeStore{}
	errCh := make(chan error, 1)
	go func() {
		_, err := clientFor(t, peer.URL, store).RunCycle(ctx)
		errCh <- err
	}()

	<-started
	cancel()
	err := <-errCh
	assert.Error(t, err)
	assert.Empty(t, store.applied)
}
