package directory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
)

type fakeClient struct {
	mu       sync.Mutex
	channels []bridge.ChannelInfo
	err      error
	calls    int
}

func (f *fakeClient) ListChannels(_ context.Context, _ string) ([]bridge.ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.channels, nil
}

func (f *fakeClient) SendMessage(context.Context, bridge.SendRequest) error { return nil }

func (f *fakeClient) ResolveUser(context.Context, string) (*bridge.UserInfo, error) {
	return nil, errors.New("not implemented")
}

func testChannels() []bridge.ChannelInfo {
	return []bridge.ChannelInfo{
		{ID: "C0000GEN1", Name: "general", WorkspaceID: "W1"},
		{ID: "C0000ENG1", Name: "engineering", WorkspaceID: "W1"},
		{ID: "C0000EXT1", Name: "partners", IsShared: true, WorkspaceID: "W1"},
	}
}

func TestShouldProcess_ExclusionWins(t *testing.T) {
	client := &fakeClient{channels: testChannels()}
	d := New(client, "W1", Filter{
		ExcludeIDs: []string{"C0000GEN1"},
		IncludeIDs: []string{"C0000GEN1", "C0000ENG1"},
	}, time.Minute, nil)

	ctx := context.Background()
	if d.ShouldProcess(ctx, "C0000GEN1") {
		t.Error("excluded channel passed despite inclusion entry")
	}
	if !d.ShouldProcess(ctx, "C0000ENG1") {
		t.Error("included channel was rejected")
	}
}

func TestShouldProcess_InclusionByID(t *testing.T) {
	client := &fakeClient{channels: testChannels()}
	d := New(client, "W1", Filter{IncludeIDs: []string{"C0000ENG1"}}, time.Minute, nil)

	ctx := context.Background()
	if !d.ShouldProcess(ctx, "C0000ENG1") {
		t.Error("listed id was rejected")
	}
	if d.ShouldProcess(ctx, "C0000GEN1") {
		t.Error("unlisted id passed an id inclusion list")
	}
}

func TestShouldProcess_InclusionByName(t *testing.T) {
	client := &fakeClient{channels: testChannels()}
	d := New(client, "W1", Filter{IncludeNames: []string{"General"}}, time.Minute, nil)

	ctx := context.Background()
	if !d.ShouldProcess(ctx, "C0000GEN1") {
		t.Error("name match is case-insensitive and should pass")
	}
	if d.ShouldProcess(ctx, "C0000ENG1") {
		t.Error("unlisted name passed a name inclusion list")
	}
}

func TestShouldProcess_SharedPolicy(t *testing.T) {
	client := &fakeClient{channels: testChannels()}
	ctx := context.Background()

	d := New(client, "W1", Filter{}, time.Minute, nil)
	if d.ShouldProcess(ctx, "C0000EXT1") {
		t.Error("shared channel passed with shared processing disabled")
	}
	if !d.ShouldProcess(ctx, "C0000GEN1") {
		t.Error("ordinary channel should pass by default")
	}

	d = New(client, "W1", Filter{ProcessShared: true}, time.Minute, nil)
	if !d.ShouldProcess(ctx, "C0000EXT1") {
		t.Error("shared channel rejected with shared processing enabled")
	}
}

func TestResolve(t *testing.T) {
	client := &fakeClient{channels: testChannels()}
	d := New(client, "W1", Filter{}, time.Minute, nil)
	ctx := context.Background()

	if got := d.Resolve(ctx, "general"); got != "C0000GEN1" {
		t.Errorf("Resolve(general) = %q", got)
	}
	if got := d.Resolve(ctx, "#Engineering"); got != "C0000ENG1" {
		t.Errorf("Resolve(#Engineering) = %q", got)
	}
	if got := d.Resolve(ctx, "C0000EXT1"); got != "C0000EXT1" {
		t.Errorf("Resolve by id = %q", got)
	}
	if got := d.Resolve(ctx, "nonexistent"); got != "" {
		t.Errorf("Resolve(nonexistent) = %q, want empty", got)
	}
}

func TestLoad_FailureKeepsStaleList(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	client := &fakeClient{channels: testChannels()}
	d := New(client, "W1", Filter{}, time.Minute, clock)
	ctx := context.Background()

	if got := d.Resolve(ctx, "general"); got != "C0000GEN1" {
		t.Fatalf("initial load failed: %q", got)
	}

	client.mu.Lock()
	client.err = errors.New("rate limited")
	client.mu.Unlock()
	now = now.Add(2 * time.Minute) // past TTL, forces a refresh attempt

	if got := d.Resolve(ctx, "general"); got != "C0000GEN1" {
		t.Errorf("stale list lost after failed refresh: %q", got)
	}
	client.mu.Lock()
	calls := client.calls
	client.mu.Unlock()
	if calls < 2 {
		t.Errorf("expected a refresh attempt past TTL, got %d calls", calls)
	}
}
