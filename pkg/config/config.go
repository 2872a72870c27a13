// Package config loads the bridge configuration from a JSON file with an
// environment variable overlay. Every field can be overridden via a
// LARKBRIDGE_* variable, so the file can stay secret-free in deployments
// that inject tokens through the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers, so
// filter lists can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Slack   SlackConfig   `json:"slack"`
	Lark    LarkConfig    `json:"lark"`
	Bridge  BridgeConfig  `json:"bridge"`
	Gateway GatewayConfig `json:"gateway"`
	Logging LoggingConfig `json:"logging,omitzero"`
}

type SlackConfig struct {
	BotToken          string              `env:"LARKBRIDGE_SLACK_BOT_TOKEN"           json:"bot_token"`
	AppToken          string              `env:"LARKBRIDGE_SLACK_APP_TOKEN"           json:"app_token,omitempty"`
	SigningSecret     string              `env:"LARKBRIDGE_SLACK_SIGNING_SECRET"      json:"signing_secret,omitempty"`
	UserToken         string              `env:"LARKBRIDGE_SLACK_USER_TOKEN"          json:"user_token,omitempty"`
	VerificationToken string              `env:"LARKBRIDGE_SLACK_VERIFICATION_TOKEN"  json:"verification_token,omitempty"`
	BotUserID         string              `env:"LARKBRIDGE_SLACK_BOT_USER_ID"         json:"bot_user_id,omitempty"`
	DefaultChannel    string              `env:"LARKBRIDGE_SLACK_DEFAULT_CHANNEL"     json:"default_channel,omitempty"`
	SocketMode        bool                `env:"LARKBRIDGE_SLACK_SOCKET_MODE"         json:"socket_mode,omitempty"`
	IncludeChannels   FlexibleStringSlice `env:"LARKBRIDGE_SLACK_INCLUDE_CHANNELS"    json:"include_channels,omitempty"`
	ExcludeChannels   FlexibleStringSlice `env:"LARKBRIDGE_SLACK_EXCLUDE_CHANNELS"    json:"exclude_channels,omitempty"`
	ProcessShared     bool                `env:"LARKBRIDGE_SLACK_PROCESS_SHARED"      json:"process_shared,omitempty"`
}

type LarkConfig struct {
	AppID             string              `env:"LARKBRIDGE_LARK_APP_ID"              json:"app_id"`
	AppSecret         string              `env:"LARKBRIDGE_LARK_APP_SECRET"          json:"app_secret"`
	VerificationToken string              `env:"LARKBRIDGE_LARK_VERIFICATION_TOKEN"  json:"verification_token,omitempty"`
	EncryptKey        string              `env:"LARKBRIDGE_LARK_ENCRYPT_KEY"         json:"encrypt_key,omitempty"`
	BaseDomain        string              `env:"LARKBRIDGE_LARK_BASE_DOMAIN"         json:"base_domain,omitempty"`
	DefaultChat       string              `env:"LARKBRIDGE_LARK_DEFAULT_CHAT"        json:"default_chat,omitempty"`
	LongConnection    bool                `env:"LARKBRIDGE_LARK_LONG_CONNECTION"     json:"long_connection,omitempty"`
	IncludeChats      FlexibleStringSlice `env:"LARKBRIDGE_LARK_INCLUDE_CHATS"       json:"include_chats,omitempty"`
	ExcludeChats      FlexibleStringSlice `env:"LARKBRIDGE_LARK_EXCLUDE_CHATS"       json:"exclude_chats,omitempty"`
	ProcessShared     bool                `env:"LARKBRIDGE_LARK_PROCESS_SHARED"      json:"process_shared,omitempty"`
}

type BridgeConfig struct {
	SendAsUser      bool                   `env:"LARKBRIDGE_SEND_AS_USER"        json:"send_as_user,omitempty"`
	DataDir         string                 `env:"LARKBRIDGE_DATA_DIR"            json:"data_dir,omitempty"`
	Mappings        []bridge.ChannelMapping `json:"mappings,omitempty"`
	UserCacheTTL    Duration               `env:"LARKBRIDGE_USER_CACHE_TTL"      json:"user_cache_ttl,omitempty"`
	ChannelCacheTTL Duration               `env:"LARKBRIDGE_CHANNEL_CACHE_TTL"   json:"channel_cache_ttl,omitempty"`
	CallTimeout     Duration               `env:"LARKBRIDGE_CALL_TIMEOUT"        json:"call_timeout,omitempty"`
}

type GatewayConfig struct {
	Host string `env:"LARKBRIDGE_GATEWAY_HOST" json:"host,omitempty"`
	Port int    `env:"LARKBRIDGE_GATEWAY_PORT" json:"port,omitempty"`
}

type LoggingConfig struct {
	Level string `env:"LARKBRIDGE_LOG_LEVEL" json:"level,omitempty"`
}

// Duration is a time.Duration that marshals as a Go duration string
// ("5m", "30s") and also accepts bare JSON numbers as seconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return err
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DefaultConfigPath is where the bridge looks for its config file.
func DefaultConfigPath() string {
	return expandHome("~/.larkbridge/config.json")
}

func DefaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			DataDir:         "~/.larkbridge/data",
			UserCacheTTL:    Duration(10 * time.Minute),
			ChannelCacheTTL: Duration(5 * time.Minute),
			CallTimeout:     Duration(15 * time.Second),
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 8480,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads path, falling back to defaults when the file does not
// exist, then applies the environment overlay.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// DataDir returns the resolved data directory.
func (c *Config) DataDir() string {
	return expandHome(c.Bridge.DataDir)
}

// Validate checks for the credentials the bridge cannot run without.
func (c *Config) Validate() error {
	if c.Slack.BotToken == "" {
		return fmt.Errorf("slack.bot_token is required")
	}
	if c.Slack.SocketMode && c.Slack.AppToken == "" {
		return fmt.Errorf("slack.app_token is required when socket_mode is enabled")
	}
	if c.Lark.AppID == "" || c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_id and lark.app_secret are required")
	}
	return nil
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
