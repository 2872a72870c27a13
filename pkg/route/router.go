// Package route picks the outbound destination for a canonical message from,
// in priority order, an explicit sender directive, the stored channel mapping
// table, and the configured default destination.
package route

import (
	"context"
	"sync/atomic"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
	"github.com/tinyland-inc/larkbridge/pkg/directive"
	"github.com/tinyland-inc/larkbridge/pkg/directory"
	"github.com/tinyland-inc/larkbridge/pkg/logger"
)

// Destination is the resolved outbound target.
type Destination struct {
	ChatID   string
	ThreadID string
}

// Router resolves destinations. The mapping table is an immutable snapshot
// swapped atomically on Reload; no in-place mutation is visible mid-dispatch.
type Router struct {
	mappings    atomic.Pointer[[]bridge.ChannelMapping]
	defaults    map[bridge.Platform]string
	directories map[bridge.Platform]*directory.Directory
}

// New builds a Router. defaults maps a destination platform to its configured
// default chat id, directories maps a destination platform to its channel
// directory; either map may be nil or sparse.
func New(mappings []bridge.ChannelMapping, defaults map[bridge.Platform]string, directories map[bridge.Platform]*directory.Directory) *Router {
	r := &Router{
		defaults:    defaults,
		directories: directories,
	}
	r.Reload(mappings)
	return r
}

// Reload swaps in a new mapping snapshot. In-flight dispatches keep the
// snapshot they started with.
func (r *Router) Reload(mappings []bridge.ChannelMapping) {
	snapshot := make([]bridge.ChannelMapping, len(mappings))
	copy(snapshot, mappings)
	r.mappings.Store(&snapshot)
}

// Route resolves the destination for msg on the target platform. dir is the
// parsed routing directive, nil when the message carried none. A message no
// rule covers returns bridge.ErrNoRouteAvailable.
func (r *Router) Route(ctx context.Context, msg *bridge.Message, dir *directive.Directive) (Destination, error) {
	target := msg.SourcePlatform.Other()

	if dir != nil && dir.TargetChannel != "" {
		if d, ok := r.directories[target]; ok && d != nil {
			if id := d.Resolve(ctx, dir.TargetChannel); id != "" {
				return Destination{ChatID: id, ThreadID: dir.ThreadID}, nil
			}
		}
		logger.WarnCF("route", "Directive channel did not resolve, falling back", map[string]any{
			"channel": dir.TargetChannel,
			"target":  string(target),
		})
		if def := r.defaults[target]; def != "" {
			return Destination{ChatID: def, ThreadID: dir.ThreadID}, nil
		}
	}

	for _, m := range *r.mappings.Load() {
		if m.SourcePlatform == msg.SourcePlatform && m.SourceChannelID == msg.SourceChatID && m.TargetPlatform == target {
			return Destination{ChatID: m.TargetChannelID}, nil
		}
		if m.Bidirectional && m.TargetPlatform == msg.SourcePlatform && m.TargetChannelID == msg.SourceChatID && m.SourcePlatform == target {
			return Destination{ChatID: m.SourceChannelID}, nil
		}
	}

	if def := r.defaults[target]; def != "" {
		return Destination{ChatID: def}, nil
	}

	logger.WarnCF("route", "No route for message", map[string]any{
		"source_platform": string(msg.SourcePlatform),
		"source_chat":     msg.SourceChatID,
	})
	return Destination{}, bridge.ErrNoRouteAvailable
}
