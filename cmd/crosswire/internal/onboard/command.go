package onboard

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/crosswire/cmd/crosswire/internal"
	"github.com/tinyland-inc/crosswire/pkg/config"
)

func NewOnboardCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "onboard",
		Short:   "Write a starter config file",
		Args:    cobra.NoArgs,
		Example: "crosswire onboard",
		RunE: func(_ *cobra.Command, _ []string) error {
			return onboardCmd(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func onboardCmd(force bool) error {
	path := internal.ConfigPath()

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	cfg.Channels.Discord.Enabled = true
	cfg.Channels.Telegram.Enabled = true

	if err := config.SaveConfig(path, cfg); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}

	fmt.Printf("✓ Starter config written to %s\n", path)
	fmt.Println("Fill in the platform tokens and chat identifiers, then run: crosswire bridge")
	return nil
}
