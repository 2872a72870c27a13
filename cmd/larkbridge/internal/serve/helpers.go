package serve

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"regexp"

	"github.com/tinyland-inc/larkbridge/cmd/larkbridge/internal"
	"github.com/tinyland-inc/larkbridge/pkg/bridge"
	"github.com/tinyland-inc/larkbridge/pkg/config"
	"github.com/tinyland-inc/larkbridge/pkg/directory"
	"github.com/tinyland-inc/larkbridge/pkg/gateway"
	"github.com/tinyland-inc/larkbridge/pkg/identity"
	"github.com/tinyland-inc/larkbridge/pkg/logger"
	"github.com/tinyland-inc/larkbridge/pkg/normalize"
	"github.com/tinyland-inc/larkbridge/pkg/platform/larkclient"
	"github.com/tinyland-inc/larkbridge/pkg/platform/slackclient"
	"github.com/tinyland-inc/larkbridge/pkg/relay"
	"github.com/tinyland-inc/larkbridge/pkg/route"
	"github.com/tinyland-inc/larkbridge/pkg/store"
)

func serveCmd(debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("Debug mode enabled")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	if !debug && cfg.Logging.Level != "" {
		logger.SetLevelFromString(cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	recordStore, err := store.Open(cfg.DataDir())
	if err != nil {
		return fmt.Errorf("error opening data store: %w", err)
	}

	pipeline, slackClient := buildPipeline(cfg, recordStore)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := gateway.NewServer(cfg.Gateway.Host, cfg.Gateway.Port, pipeline)
	if cfg.Slack.SigningSecret != "" {
		server = server.WithSlackSigningSecret(cfg.Slack.SigningSecret)
		fmt.Println("✓ Slack request signing enabled")
	}

	if cfg.Slack.SocketMode {
		listener := gateway.NewSlackSocketListener(slackClient.API(), server.Deliveries())
		go func() {
			if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
				logger.ErrorCF("serve", "Slack socket listener stopped", map[string]any{"error": err.Error()})
			}
		}()
		fmt.Println("✓ Slack Socket Mode enabled")
	}
	if cfg.Lark.LongConnection {
		listener := gateway.NewLarkWSListener(cfg.Lark.AppID, cfg.Lark.AppSecret, cfg.Lark.BaseDomain, cfg.Lark.VerificationToken, server.Deliveries())
		go func() {
			if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
				logger.ErrorCF("serve", "Lark long connection stopped", map[string]any{"error": err.Error()})
			}
		}()
		fmt.Println("✓ Lark long connection enabled")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()
	fmt.Printf("✓ Bridge listening on %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	select {
	case <-sigChan:
		fmt.Println("\nShutting down...")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	fmt.Println("✓ Bridge stopped")
	return nil
}

// buildPipeline wires the platform clients, caches, router, and identity
// resolver into a relay pipeline.
func buildPipeline(cfg *config.Config, recordStore bridge.Store) (*relay.Pipeline, *slackclient.Client) {
	timeout := cfg.Bridge.CallTimeout.Std()
	slackAPI := slackclient.New(cfg.Slack.BotToken, cfg.Slack.AppToken, timeout)
	larkAPI := larkclient.New(cfg.Lark.AppID, cfg.Lark.AppSecret, cfg.Lark.BaseDomain, timeout)

	slackNames := identity.NewNames(bridge.PlatformSlack, slackAPI, cfg.Bridge.UserCacheTTL.Std())
	larkNames := identity.NewNames(bridge.PlatformLark, larkAPI, cfg.Bridge.UserCacheTTL.Std())

	channelTTL := cfg.Bridge.ChannelCacheTTL.Std()
	slackDir := directory.New(slackAPI, "slack", directory.Filter{
		IncludeIDs:    idLooking(cfg.Slack.IncludeChannels),
		IncludeNames:  nameLooking(cfg.Slack.IncludeChannels),
		ExcludeIDs:    idLooking(cfg.Slack.ExcludeChannels),
		ExcludeNames:  nameLooking(cfg.Slack.ExcludeChannels),
		ProcessShared: cfg.Slack.ProcessShared,
	}, channelTTL, nil)
	larkDir := directory.New(larkAPI, "lark", directory.Filter{
		IncludeIDs:    idLooking(cfg.Lark.IncludeChats),
		IncludeNames:  nameLooking(cfg.Lark.IncludeChats),
		ExcludeIDs:    idLooking(cfg.Lark.ExcludeChats),
		ExcludeNames:  nameLooking(cfg.Lark.ExcludeChats),
		ProcessShared: cfg.Lark.ProcessShared,
	}, channelTTL, nil)

	mappings := append([]bridge.ChannelMapping(nil), cfg.Bridge.Mappings...)
	mappings = append(mappings, storedMappings(recordStore)...)

	defaults := map[bridge.Platform]string{}
	if cfg.Lark.DefaultChat != "" {
		defaults[bridge.PlatformLark] = cfg.Lark.DefaultChat
	}
	if cfg.Slack.DefaultChannel != "" {
		defaults[bridge.PlatformSlack] = cfg.Slack.DefaultChannel
	}

	router := route.New(mappings, defaults, map[bridge.Platform]*directory.Directory{
		bridge.PlatformSlack: slackDir,
		bridge.PlatformLark:  larkDir,
	})

	slackSide := &relay.Side{
		Platform:   bridge.PlatformSlack,
		Normalizer: normalize.NewSlack(cfg.Slack.VerificationToken, cfg.Slack.BotUserID, slackNames),
		Client:     slackAPI,
		Names:      slackNames,
		Directory:  slackDir,
	}
	larkSide := &relay.Side{
		Platform:   bridge.PlatformLark,
		Normalizer: normalize.NewLark(cfg.Lark.VerificationToken, larkNames).WithEncryptKey(cfg.Lark.EncryptKey),
		Client:     larkAPI,
		Names:      larkNames,
		Directory:  larkDir,
	}

	resolver := identity.NewResolver(recordStore)
	if cfg.Bridge.SendAsUser && cfg.Slack.UserToken != "" {
		resolver = resolver.WithFallbackCredential(bridge.PlatformSlack, cfg.Slack.UserToken)
	}
	return relay.New(slackSide, larkSide, router, resolver, nil), slackAPI
}

// channelIDPattern matches tokens that are channel ids rather than names:
// Slack's uppercase-led ids and Lark's oc_ chat ids.
var channelIDPattern = regexp.MustCompile(`^(?:[A-Z][A-Z0-9]{8,}|oc_[0-9a-f]+)$`)

func idLooking(list []string) []string {
	var out []string
	for _, v := range list {
		if channelIDPattern.MatchString(v) {
			out = append(out, v)
		}
	}
	return out
}

func nameLooking(list []string) []string {
	var out []string
	for _, v := range list {
		if !channelIDPattern.MatchString(v) {
			out = append(out, v)
		}
	}
	return out
}

// storedMappings loads channel mappings created through the link command.
func storedMappings(recordStore bridge.Store) []bridge.ChannelMapping {
	records, err := recordStore.List("channel_mappings")
	if err != nil {
		logger.WarnCF("serve", "Stored mappings unavailable", map[string]any{"error": err.Error()})
		return nil
	}
	var mappings []bridge.ChannelMapping
	for key, raw := range records {
		var m bridge.ChannelMapping
		if err := json.Unmarshal(raw, &m); err != nil {
			logger.WarnCF("serve", "Skipping corrupt mapping record", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
			continue
		}
		mappings = append(mappings, m)
	}
	return mappings
}
