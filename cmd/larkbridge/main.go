// LarkBridge - relays chat messages between Slack and Lark workspaces.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/larkbridge/cmd/larkbridge/internal"
	"github.com/tinyland-inc/larkbridge/cmd/larkbridge/internal/link"
	"github.com/tinyland-inc/larkbridge/cmd/larkbridge/internal/serve"
	"github.com/tinyland-inc/larkbridge/cmd/larkbridge/internal/version"
)

func NewLarkbridgeCommand() *cobra.Command {
	short := fmt.Sprintf("larkbridge - Slack/Lark message bridge v%s", internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "larkbridge",
		Short:   short,
		Example: "larkbridge serve",
	}

	cmd.AddCommand(
		serve.NewServeCommand(),
		link.NewLinkCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewLarkbridgeCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
