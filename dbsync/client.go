package dbsync

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/vitalink-io/vitalink/database/model"
	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/util/common"
)

// Client drives one side of the replication contract: pull the peer's
// full set, merge it through the same resolver the server uses, then push
// the full local snapshot and collect the peer's merge report.
type Client struct {
	peerURL string
	auth    Authenticator
	store   Store
	client  *http.Client
}

func NewClient(cfg Config, auth Authenticator, store Store) *Client {
	return &Client{
		peerURL: strings.TrimRight(cfg.PeerURL, "/"),
		auth:    auth,
		store:   store,
		client: &http.Client{
			Timeout: cfg.RequestTimeout(),
		},
	}
}

// RunCycle performs one pull+push round. Any transport, status, decode or
// store failure aborts the cycle with an error and no further mutation;
// the scheduler logs it and waits for the next tick. Local records are
// only touched after the pulled body decoded completely.
func (c *Client) RunCycle(ctx context.Context) (*Session, error) {
	started := time.Now()
	session := &Session{
		CycleId:   uuid.New().String()[:8],
		Peer:      c.peerURL,
		StartedAt: model.FormatStamp(started),
	}

	remote, err := c.pull(ctx)
	if err != nil {
		return nil, err
	}
	session.Pulled = len(remote)

	applied, err := c.store.ApplyBatch(remote)
	if err != nil {
		return nil, common.NewErrorf("sync cycle %s: apply pulled batch: %v", session.CycleId, err)
	}
	session.Applied = applied

	// The push snapshot is taken after the merge so records just learned
	// from the peer go back as no-ops instead of looking like deletions.
	locals, err := c.store.FetchAll()
	if err != nil {
		return nil, common.NewErrorf("sync cycle %s: snapshot: %v", session.CycleId, err)
	}
	session.Pushed = len(locals)

	pushReport, err := c.push(ctx, locals)
	if err != nil {
		return nil, err
	}
	session.Remote = pushReport

	session.DurationMs = time.Since(started).Milliseconds()
	logger.Debugf("sync cycle %s: pulled %d, pushed %d, applied +%d/~%d, remote +%d/~%d, %d/%d conflicts, %dms",
		session.CycleId, session.Pulled, session.Pushed,
		applied.Inserted, applied.Updated, pushReport.Inserted, pushReport.Updated,
		len(applied.Conflicts), len(pushReport.Conflicts), session.DurationMs)
	return session, nil
}

// pull fetches the peer's full user set. The body is read and decoded in
// full before anything is returned, so a truncated or malformed payload
// cannot leave a half-applied batch behind.
func (c *Client) pull(ctx context.Context) ([]model.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.peerURL+SyncPath, nil)
	if err != nil {
		return nil, common.NewErrorf("sync pull: build request: %v", err)
	}
	c.auth.Apply(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, common.NewErrorf("sync pull: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, common.NewErrorf("sync pull: peer returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.NewErrorf("sync pull: read body: %v", err)
	}

	var pullResp PullResponse
	if err := json.Unmarshal(body, &pullResp); err != nil {
		return nil, common.NewErrorf("sync pull: decode body: %v", err)
	}
	if !pullResp.Success {
		return nil, common.NewError("sync pull: peer reported failure")
	}
	return pullResp.Users, nil
}

// push sends the full local snapshot and returns the peer's merge report.
func (c *Client) push(ctx context.Context, users []model.User) (MergeReport, error) {
	var report MergeReport

	payload, err := json.Marshal(PushRequest{Users: users})
	if err != nil {
		return report, common.NewErrorf("sync push: encode snapshot: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.peerURL+SyncPath, bytes.NewReader(payload))
	if err != nil {
		return report, common.NewErrorf("sync push: build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth.Apply(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return report, common.NewErrorf("sync push: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return report, common.NewErrorf("sync push: peer returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return report, common.NewErrorf("sync push: decode report: %v", err)
	}
	if !report.Success {
		return report, common.NewError("sync push: peer reported failure")
	}
	return report, nil
}
