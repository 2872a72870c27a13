// Package gateway is the inbound transport layer: the webhook HTTP server
// plus the optional streaming ingress paths (Slack Socket Mode, Lark long
// connection). All paths feed the same processing pipeline.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/tidwall/gjson"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
	"github.com/tinyland-inc/larkbridge/pkg/bus"
	"github.com/tinyland-inc/larkbridge/pkg/cache"
	"github.com/tinyland-inc/larkbridge/pkg/logger"
	"github.com/tinyland-inc/larkbridge/pkg/relay"
)

const maxBodySize = 1 << 20

// dedupTTL bounds how long delivery ids are remembered. Platform retries
// arrive within seconds; an hour is comfortably past any retry window.
const dedupTTL = time.Hour

// Processor runs the relay pipeline for one raw delivery.
type Processor interface {
	Process(ctx context.Context, source bridge.Platform, payload []byte) (relay.Outcome, error)
	Stats() *relay.Stats
}

// Server is the webhook HTTP server. Streaming ingress publishes into the
// delivery bus; worker goroutines drain it through the same pipeline.
type Server struct {
	host       string
	port       int
	processor  Processor
	deliveries *bus.DeliveryBus
	seen       *cache.Cache[struct{}]
	startedAt  time.Time

	slackSigningSecret string

	httpServer *http.Server
}

// NewServer builds a Server around processor.
func NewServer(host string, port int, processor Processor) *Server {
	return &Server{
		host:       host,
		port:       port,
		processor:  processor,
		deliveries: bus.NewDeliveryBus(),
		seen:       cache.New[struct{}]("gateway.dedup", dedupTTL, nil, nil),
	}
}

// WithSlackSigningSecret enables Slack request-signature verification on
// the Slack webhook endpoint. An empty secret leaves the endpoint open,
// matching Slack apps that rely on the verification token alone.
func (s *Server) WithSlackSigningSecret(secret string) *Server {
	s.slackSigningSecret = secret
	return s
}

// Deliveries exposes the ingress bus for the streaming listeners.
func (s *Server) Deliveries() *bus.DeliveryBus {
	return s.deliveries
}

// Start serves HTTP and runs the bus workers until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/slack", s.handleWebhook(bridge.PlatformSlack))
	mux.HandleFunc("POST /webhook/lark", s.handleWebhook(bridge.PlatformLark))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)

	s.startedAt = time.Now()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.drainDeliveries(ctx)
		}()
	}

	go func() {
		<-ctx.Done()
		s.deliveries.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	logger.InfoCF("gateway", "Webhook server listening", map[string]any{
		"addr": s.httpServer.Addr,
	})
	err := s.httpServer.ListenAndServe()
	wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// drainDeliveries runs one bus worker.
func (s *Server) drainDeliveries(ctx context.Context) {
	for {
		d, ok := s.deliveries.Consume(ctx)
		if !ok {
			return
		}
		s.process(ctx, d.Platform, d.Payload)
	}
}

// process runs one delivery through the pipeline, with dedup. Terminal
// errors are logged here; streaming ingress has no caller to report to.
func (s *Server) process(ctx context.Context, platform bridge.Platform, payload []byte) (relay.Outcome, error) {
	if id := deliveryID(platform, payload); id != "" {
		if _, dup := s.seen.Peek(id); dup {
			logger.DebugCF("gateway", "Duplicate delivery skipped", map[string]any{"id": id})
			return relay.Outcome{Kind: relay.OutcomeIgnored}, nil
		}
		s.seen.Put(id, struct{}{})
	}

	out, err := s.processor.Process(ctx, platform, payload)
	if err != nil {
		logger.WarnCF("gateway", "Delivery failed", map[string]any{
			"platform": string(platform),
			"error":    err.Error(),
		})
	}
	return out, err
}

func (s *Server) handleWebhook(platform bridge.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		if platform == bridge.PlatformSlack && s.slackSigningSecret != "" {
			if err := verifySlackSignature(r.Header, s.slackSigningSecret, payload); err != nil {
				logger.WarnCF("gateway", "Slack signature rejected", map[string]any{
					"error": err.Error(),
				})
				http.Error(w, "invalid request signature", http.StatusUnauthorized)
				return
			}
		}

		out, err := s.process(r.Context(), platform, payload)
		switch {
		case errors.Is(err, bridge.ErrInvalidVerificationToken):
			http.Error(w, "invalid verification token", http.StatusUnauthorized)
			return
		case err != nil:
			// Handled failures are acknowledged so the platform does not
			// retry; without idempotency keys a retry risks a duplicate
			// relay on the destination side.
			writeJSON(w, map[string]any{"ok": false, "error": err.Error()})
			return
		}

		if out.Kind == relay.OutcomeChallenge {
			writeJSON(w, map[string]string{"challenge": out.Challenge})
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.processor.Stats().Snapshot()
	writeJSON(w, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"relayed":        snap,
	})
}

// verifySlackSignature checks the X-Slack-Signature HMAC over the raw body.
func verifySlackSignature(header http.Header, secret string, body []byte) error {
	verifier, err := slack.NewSecretsVerifier(header, secret)
	if err != nil {
		return err
	}
	if _, err := verifier.Write(body); err != nil {
		return err
	}
	return verifier.Ensure()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.DebugCF("gateway", "Response write failed", map[string]any{"error": err.Error()})
	}
}

// deliveryID extracts the platform's delivery identifier for dedup. An
// envelope without one is processed unconditionally.
func deliveryID(platform bridge.Platform, payload []byte) string {
	root := gjson.ParseBytes(payload)
	if platform == bridge.PlatformLark {
		if id := root.Get("header.event_id").String(); id != "" {
			return "lark:" + id
		}
		if id := root.Get("uuid").String(); id != "" {
			return "lark:" + id
		}
		return ""
	}
	if id := root.Get("event_id").String(); id != "" {
		return "slack:" + id
	}
	return ""
}
