package link

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/larkbridge/cmd/larkbridge/internal"
	"github.com/tinyland-inc/larkbridge/pkg/auth"
	"github.com/tinyland-inc/larkbridge/pkg/bridge"
	"github.com/tinyland-inc/larkbridge/pkg/identity"
	"github.com/tinyland-inc/larkbridge/pkg/store"
)

const (
	linkBucket    = "user_links"
	mappingBucket = "channel_mappings"
)

func NewLinkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Manage account links and channel mappings",
		Example: `  larkbridge link user --slack U0123ABCD --lark ou_abc --name "Alice" --credential u-token
  larkbridge link channel --slack C0123ABCD --lark oc_def456
  larkbridge link list`,
	}

	cmd.AddCommand(
		newUserCommand(),
		newChannelCommand(),
		newListCommand(),
		newRemoveCommand(),
	)

	return cmd
}

func newUserCommand() *cobra.Command {
	var slackID, larkID, name, credential string
	var pasteCredential bool

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Link a Slack user to a Lark user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pasteCredential {
				token, err := auth.PasteCredential("lark", cmd.InOrStdin())
				if err != nil {
					return err
				}
				credential = token
			}

			s, err := openStore()
			if err != nil {
				return err
			}

			// One record per direction, each replaced whole.
			forward := bridge.UserLink{
				PlatformAID:         slackID,
				PlatformBID:         larkID,
				PlatformBCredential: credential,
				DisplayName:         name,
			}
			reverse := bridge.UserLink{
				PlatformAID: larkID,
				PlatformBID: slackID,
				DisplayName: name,
			}
			if err := putJSON(s, linkBucket, identity.LinkKey(bridge.PlatformSlack, slackID), forward); err != nil {
				return err
			}
			if err := putJSON(s, linkBucket, identity.LinkKey(bridge.PlatformLark, larkID), reverse); err != nil {
				return err
			}

			fmt.Printf("✓ Linked slack:%s <-> lark:%s\n", slackID, larkID)
			return nil
		},
	}

	cmd.Flags().StringVar(&slackID, "slack", "", "Slack user id")
	cmd.Flags().StringVar(&larkID, "lark", "", "Lark open id")
	cmd.Flags().StringVar(&name, "name", "", "Display name shown on relayed messages")
	cmd.Flags().StringVar(&credential, "credential", "", "Lark user access token for send-as-user")
	cmd.Flags().BoolVar(&pasteCredential, "paste-credential", false, "Prompt for the user access token instead of passing it on the command line")
	_ = cmd.MarkFlagRequired("slack")
	_ = cmd.MarkFlagRequired("lark")

	return cmd
}

func newChannelCommand() *cobra.Command {
	var slackChannel, larkChat string
	var oneWay bool

	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Map a Slack channel to a Lark chat",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}

			mapping := bridge.ChannelMapping{
				SourcePlatform:  bridge.PlatformSlack,
				SourceChannelID: slackChannel,
				TargetPlatform:  bridge.PlatformLark,
				TargetChannelID: larkChat,
				Bidirectional:   !oneWay,
			}
			if err := putJSON(s, mappingBucket, slackChannel, mapping); err != nil {
				return err
			}

			arrow := "<->"
			if oneWay {
				arrow = "->"
			}
			fmt.Printf("✓ Mapped slack:%s %s lark:%s\n", slackChannel, arrow, larkChat)
			return nil
		},
	}

	cmd.Flags().StringVar(&slackChannel, "slack", "", "Slack channel id")
	cmd.Flags().StringVar(&larkChat, "lark", "", "Lark chat id")
	cmd.Flags().BoolVar(&oneWay, "one-way", false, "Relay Slack to Lark only")
	_ = cmd.MarkFlagRequired("slack")
	_ = cmd.MarkFlagRequired("lark")

	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List account links and channel mappings",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}

			links, err := s.List(linkBucket)
			if err != nil {
				return err
			}
			fmt.Printf("User links (%d):\n", len(links))
			for key, raw := range links {
				var link bridge.UserLink
				if json.Unmarshal(raw, &link) != nil {
					continue
				}
				fmt.Printf("  %s -> %s (%s)\n", key, link.PlatformBID, link.DisplayName)
			}

			mappings, err := s.List(mappingBucket)
			if err != nil {
				return err
			}
			fmt.Printf("Channel mappings (%d):\n", len(mappings))
			for _, raw := range mappings {
				var m bridge.ChannelMapping
				if json.Unmarshal(raw, &m) != nil {
					continue
				}
				arrow := "->"
				if m.Bidirectional {
					arrow = "<->"
				}
				fmt.Printf("  %s:%s %s %s:%s\n", m.SourcePlatform, m.SourceChannelID, arrow, m.TargetPlatform, m.TargetChannelID)
			}
			return nil
		},
	}
}

func newRemoveCommand() *cobra.Command {
	var userKey, channelID string

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a link or mapping",
		Args:  cobra.NoArgs,
		Example: `  larkbridge link remove --user slack:U0123ABCD
  larkbridge link remove --channel C0123ABCD`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if userKey == "" && channelID == "" {
				return fmt.Errorf("one of --user or --channel is required")
			}
			s, err := openStore()
			if err != nil {
				return err
			}
			if userKey != "" {
				if err := s.Delete(linkBucket, userKey); err != nil {
					return err
				}
				fmt.Printf("✓ Removed user link %s\n", userKey)
			}
			if channelID != "" {
				if err := s.Delete(mappingBucket, channelID); err != nil {
					return err
				}
				fmt.Printf("✓ Removed channel mapping %s\n", channelID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userKey, "user", "", "User link key, e.g. slack:U0123ABCD")
	cmd.Flags().StringVar(&channelID, "channel", "", "Source channel id of the mapping")

	return cmd
}

func openStore() (*store.FileStore, error) {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.DataDir())
}

func putJSON(s *store.FileStore, bucket, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(bucket, key, raw)
}
