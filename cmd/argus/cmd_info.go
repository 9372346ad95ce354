package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show observatory site information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := portal.info.Load(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Portal:       %s\n", portal.client.BaseURL())
		fmt.Printf("Site:         lat %s  lon %s\n", info.Latitude, info.Longitude)
		fmt.Printf("Filters:      %s\n", strings.Join(info.Filters, ", "))
		fmt.Printf("Frame types:  %s\n", strings.Join(info.FrameTypes, ", "))

		if err := portal.clock.Sync(cmd.Context()); err == nil {
			fmt.Printf("Server time:  %s (offset %s)\n",
				portal.clock.ServerNow(cmd.Context()).Format(time.RFC3339),
				portal.clock.Offset().Round(time.Millisecond))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
