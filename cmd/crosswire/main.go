// Crosswire - bidirectional chat bridge
// License: MIT
//
// Copyright (c) 2026 Crosswire contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/crosswire/cmd/crosswire/internal"
	"github.com/tinyland-inc/crosswire/cmd/crosswire/internal/bridge"
	"github.com/tinyland-inc/crosswire/cmd/crosswire/internal/onboard"
	"github.com/tinyland-inc/crosswire/cmd/crosswire/internal/version"
)

func NewCrosswireCommand() *cobra.Command {
	short := fmt.Sprintf("crosswire - chat platform bridge v%s\n\n", internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "crosswire",
		Short:   short,
		Example: "crosswire bridge",
	}

	cmd.AddCommand(
		onboard.NewOnboardCommand(),
		bridge.NewBridgeCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewCrosswireCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
