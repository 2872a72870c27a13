// Package relay runs the full processing pipeline for one inbound delivery:
// normalize, loop guard, mention decode, directive parse, route, identity
// resolution, mention encode, dispatch.
package relay

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
	"github.com/tinyland-inc/larkbridge/pkg/directive"
	"github.com/tinyland-inc/larkbridge/pkg/directory"
	"github.com/tinyland-inc/larkbridge/pkg/identity"
	"github.com/tinyland-inc/larkbridge/pkg/logger"
	"github.com/tinyland-inc/larkbridge/pkg/mention"
	"github.com/tinyland-inc/larkbridge/pkg/normalize"
	"github.com/tinyland-inc/larkbridge/pkg/route"
)

// Normalizer converts one raw payload into a normalize.Result.
type Normalizer interface {
	Normalize(ctx context.Context, payload []byte) (*normalize.Result, error)
}

// Side is one platform's set of collaborators. Directory gates which source
// channels are processed and may be nil to process everything.
type Side struct {
	Platform   bridge.Platform
	Normalizer Normalizer
	Client     bridge.Client
	Names      *identity.Names
	Directory  *directory.Directory
}

// OutcomeKind classifies how a delivery ended.
type OutcomeKind string

const (
	// OutcomeRelayed means the message was sent to the other platform.
	OutcomeRelayed OutcomeKind = "relayed"
	// OutcomeChallenge means the payload was a verification handshake; the
	// caller echoes Outcome.Challenge.
	OutcomeChallenge OutcomeKind = "challenge"
	// OutcomeIgnored means the payload was acknowledged without dispatch:
	// an unknown envelope, a non-message event type, or out-of-scope chat.
	OutcomeIgnored OutcomeKind = "ignored"
	// OutcomeDropped means the loop guard rejected a self-authored event.
	OutcomeDropped OutcomeKind = "dropped"
)

// Outcome is the terminal result of processing one inbound delivery.
type Outcome struct {
	Kind      OutcomeKind
	Challenge string
}

// Router is the destination selection collaborator.
type Router interface {
	Route(ctx context.Context, msg *bridge.Message, dir *directive.Directive) (route.Destination, error)
}

// Pipeline wires both platform sides together. It holds no per-delivery
// state; concurrent deliveries share only the caches and routing tables.
type Pipeline struct {
	sides    map[bridge.Platform]*Side
	router   Router
	identity *identity.Resolver
	stats    *Stats
}

// New builds a Pipeline from two sides, a router, and the identity resolver.
func New(slack, lark *Side, router Router, resolver *identity.Resolver, stats *Stats) *Pipeline {
	if stats == nil {
		stats = &Stats{}
	}
	return &Pipeline{
		sides: map[bridge.Platform]*Side{
			bridge.PlatformSlack: slack,
			bridge.PlatformLark:  lark,
		},
		router:   router,
		identity: resolver,
		stats:    stats,
	}
}

// Stats returns the pipeline's relay counters.
func (p *Pipeline) Stats() *Stats {
	return p.stats
}

// Process carries one raw inbound payload from source through to dispatch.
// The returned error is the terminal result for this delivery; partial
// progress produces no side effects beyond best-effort lookups.
func (p *Pipeline) Process(ctx context.Context, source bridge.Platform, payload []byte) (Outcome, error) {
	side, ok := p.sides[source]
	if !ok || side == nil {
		return Outcome{}, fmt.Errorf("no side configured for platform %q", source)
	}
	deliveryID := uuid.NewString()

	res, err := side.Normalizer.Normalize(ctx, payload)
	if err != nil {
		logger.WarnCF("relay", "Normalization rejected payload", map[string]any{
			"delivery": deliveryID,
			"source":   string(source),
			"error":    err.Error(),
		})
		return Outcome{}, err
	}
	if res.Challenge != "" {
		return Outcome{Kind: OutcomeChallenge, Challenge: res.Challenge}, nil
	}
	if !res.IsMessage() {
		return Outcome{Kind: OutcomeIgnored}, nil
	}

	msg := res.Message
	if bridge.ShouldDrop(msg) {
		logger.DebugCF("relay", "Loop guard dropped self-authored event", map[string]any{
			"delivery": deliveryID,
			"sender":   msg.SenderID,
		})
		return Outcome{Kind: OutcomeDropped}, nil
	}

	if side.Directory != nil && !side.Directory.ShouldProcess(ctx, msg.SourceChatID) {
		logger.DebugCF("relay", "Channel filtered out", map[string]any{
			"delivery":    deliveryID,
			"source_chat": msg.SourceChatID,
		})
		return Outcome{Kind: OutcomeIgnored}, nil
	}

	if side.Names != nil && msg.SenderDisplayName != "" {
		side.Names.Remember(&bridge.UserInfo{ID: msg.SenderID, DisplayName: msg.SenderDisplayName})
	}

	text := p.decode(ctx, side, msg)
	dir, body := directive.Parse(text)

	dest, err := p.router.Route(ctx, msg, dir)
	if err != nil {
		logger.WarnCF("relay", "Routing failed", map[string]any{
			"delivery":    deliveryID,
			"source_chat": msg.SourceChatID,
			"error":       err.Error(),
		})
		return Outcome{}, err
	}

	sendAs := p.identity.ResolveSender(msg)

	target := p.sides[source.Other()]
	body = p.encode(ctx, source, target, body)
	if sendAs.Kind == identity.KindDefault && sendAs.Prefix != "" {
		body = sendAs.Prefix + " " + body
	}

	req := bridge.SendRequest{
		ChatID:     dest.ChatID,
		Text:       body,
		ThreadID:   dest.ThreadID,
		Credential: sendAs.Credential,
	}
	if err := target.Client.SendMessage(ctx, req); err != nil {
		logger.ErrorCF("relay", "Outbound send rejected", map[string]any{
			"delivery": deliveryID,
			"chat":     dest.ChatID,
			"error":    err.Error(),
		})
		return Outcome{}, fmt.Errorf("%w: %v", bridge.ErrOutboundSendFailed, err)
	}

	p.stats.record(source)
	logger.InfoCF("relay", "Message relayed", map[string]any{
		"delivery": deliveryID,
		"from":     string(source),
		"to":       string(source.Other()),
		"chat":     dest.ChatID,
		"identity": string(sendAs.Kind),
	})
	return Outcome{Kind: OutcomeRelayed}, nil
}

// decode rewrites source-platform mention markup to the neutral form.
func (p *Pipeline) decode(ctx context.Context, side *Side, msg *bridge.Message) string {
	switch msg.SourcePlatform {
	case bridge.PlatformLark:
		tokens := make([]mention.Token, 0, len(msg.Mentions))
		for _, ref := range msg.Mentions {
			tokens = append(tokens, mention.Token{
				Key:    ref.RawToken,
				Name:   ref.ResolvedDisplayName,
				UserID: ref.ResolvedUserID,
			})
		}
		return mention.DecodeLark(msg.RawText, tokens)
	default:
		var lookup bridge.UserLookup
		if side.Names != nil {
			lookup = side.Names
		}
		return mention.DecodeSlack(ctx, msg.RawText, lookup)
	}
}

// encode rewrites neutral mentions into the destination platform's markup.
// Resolution tries stored account links first, then users the destination
// side has already seen; names that match neither stay plain text.
func (p *Pipeline) encode(ctx context.Context, source bridge.Platform, target *Side, text string) string {
	resolve := func(ctx context.Context, name string) (*bridge.UserInfo, bool) {
		if u, ok := p.identity.CounterpartFor(source, name); ok {
			return u, true
		}
		if target.Names != nil {
			if u, ok := target.Names.ByName(name); ok {
				return u, true
			}
		}
		return nil, false
	}

	if target.Platform == bridge.PlatformLark {
		return mention.EncodeLark(ctx, text, resolve)
	}
	return mention.EncodeSlack(ctx, text, resolve)
}
