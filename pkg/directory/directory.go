// Package directory caches a workspace's channel list and answers routing
// questions against it: whether a channel's traffic should be processed and
// what id a channel name resolves to.
package directory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
	"github.com/tinyland-inc/larkbridge/pkg/logger"
)

// Filter is the user-supplied channel selection policy. Exclusion always
// wins; when an inclusion list is set, only listed channels pass.
type Filter struct {
	ExcludeIDs    []string
	ExcludeNames  []string
	IncludeIDs    []string
	IncludeNames  []string
	ProcessShared bool
}

// Directory is a TTL-bounded channel list for one workspace, refreshed lazily
// on access. A refresh failure keeps the previous list; stale-but-available
// beats empty.
type Directory struct {
	client      bridge.Client
	workspaceID string
	filter      Filter
	ttl         time.Duration
	now         func() time.Time

	mu        sync.RWMutex
	channels  []bridge.ChannelInfo
	fetchedAt time.Time
}

// New builds a Directory over client for workspaceID. A nil now falls back
// to time.Now.
func New(client bridge.Client, workspaceID string, filter Filter, ttl time.Duration, now func() time.Time) *Directory {
	if now == nil {
		now = time.Now
	}
	return &Directory{
		client:      client,
		workspaceID: workspaceID,
		filter:      filter,
		ttl:         ttl,
		now:         now,
	}
}

// Load fetches the channel list and replaces the cached copy. On failure the
// previous list stays in place and the error is logged, not returned to the
// dispatch path.
func (d *Directory) Load(ctx context.Context) {
	channels, err := d.client.ListChannels(ctx, d.workspaceID)
	if err != nil {
		logger.WarnCF("directory", "Channel list refresh failed, keeping cached copy", map[string]any{
			"workspace": d.workspaceID,
			"error":     err.Error(),
		})
		return
	}

	d.mu.Lock()
	d.channels = channels
	d.fetchedAt = d.now()
	d.mu.Unlock()

	logger.DebugCF("directory", "Channel list refreshed", map[string]any{
		"workspace": d.workspaceID,
		"channels":  len(channels),
	})
}

func (d *Directory) snapshot(ctx context.Context) []bridge.ChannelInfo {
	d.mu.RLock()
	channels, fetchedAt := d.channels, d.fetchedAt
	d.mu.RUnlock()

	if channels == nil || d.now().After(fetchedAt.Add(d.ttl)) {
		d.Load(ctx)
		d.mu.RLock()
		channels = d.channels
		d.mu.RUnlock()
	}
	return channels
}

// ShouldProcess reports whether traffic in channelID is in scope. Rules apply
// in order: exclusion list, inclusion by id, inclusion by name, shared
// channel policy, then pass.
func (d *Directory) ShouldProcess(ctx context.Context, channelID string) bool {
	var info *bridge.ChannelInfo
	for _, ch := range d.snapshot(ctx) {
		if ch.ID == channelID {
			c := ch
			info = &c
			break
		}
	}

	name := ""
	if info != nil {
		name = info.Name
	}

	if containsFold(d.filter.ExcludeIDs, channelID) || (name != "" && containsFold(d.filter.ExcludeNames, name)) {
		return false
	}
	if len(d.filter.IncludeIDs) > 0 {
		return containsFold(d.filter.IncludeIDs, channelID)
	}
	if len(d.filter.IncludeNames) > 0 {
		return name != "" && containsFold(d.filter.IncludeNames, name)
	}
	if info != nil && info.IsShared {
		return d.filter.ProcessShared
	}
	return true
}

// Resolve maps a channel name or id to a channel id, or "" when the cached
// directory has no match. Callers fall back to their configured default.
func (d *Directory) Resolve(ctx context.Context, nameOrID string) string {
	needle := strings.TrimPrefix(nameOrID, "#")
	for _, ch := range d.snapshot(ctx) {
		if ch.ID == needle || strings.EqualFold(ch.Name, needle) {
			return ch.ID
		}
	}
	return ""
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
