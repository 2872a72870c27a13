package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
	"github.com/tinyland-inc/larkbridge/pkg/cache"
)

// Names is the TTL-bounded user cache for one platform. Lookups by id go
// through the single-flight cache; every resolved user is also indexed by
// display name, alias, and handle so mention encoding can match free-text
// names against accounts the bridge has already seen.
type Names struct {
	users *cache.Cache[*bridge.UserInfo]

	mu     sync.RWMutex
	byName map[string]*bridge.UserInfo
}

// NewNames builds a Names cache over lookup with the given entry TTL.
func NewNames(platform bridge.Platform, lookup bridge.UserLookup, ttl time.Duration) *Names {
	n := &Names{byName: make(map[string]*bridge.UserInfo)}
	n.users = cache.New("users."+string(platform), ttl, nil, func(ctx context.Context, userID string) (*bridge.UserInfo, error) {
		u, err := lookup.ResolveUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		n.index(u)
		return u, nil
	})
	return n
}

// Resolve looks up a user by id. A failed or timed-out lookup returns nil
// and the caller degrades to the raw id.
func (n *Names) Resolve(ctx context.Context, userID string) *bridge.UserInfo {
	u, err := n.users.Get(ctx, userID)
	if err != nil {
		return nil
	}
	return u
}

// ResolveUser implements bridge.UserLookup over the cache, so normalizers
// and mention decoding share one single-flight lookup path.
func (n *Names) ResolveUser(ctx context.Context, userID string) (*bridge.UserInfo, error) {
	return n.users.Get(ctx, userID)
}

// ByName returns a previously seen user whose display name, alias, or handle
// matches name case-insensitively.
func (n *Names) ByName(name string) (*bridge.UserInfo, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	u, ok := n.byName[strings.ToLower(name)]
	return u, ok
}

// Remember indexes a user observed outside the id-lookup path, such as the
// author of an inbound message.
func (n *Names) Remember(u *bridge.UserInfo) {
	if u == nil || u.ID == "" {
		return
	}
	n.users.Put(u.ID, u)
	n.index(u)
}

func (n *Names) index(u *bridge.UserInfo) {
	if u == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, key := range []string{u.DisplayName, u.Alias, u.Handle} {
		if key != "" {
			n.byName[strings.ToLower(key)] = u
		}
	}
}
