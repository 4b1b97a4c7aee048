package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/crosswire/cmd/crosswire/internal"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the crosswire version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println("crosswire v" + internal.GetVersion())
		},
	}
}
