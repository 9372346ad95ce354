package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telescopiosnaescola/argus/internal/planner"
	"github.com/telescopiosnaescola/argus/pkg/astro"
)

var checkDate string

var checkCmd = &cobra.Command{
	Use:   "check <coordinates>",
	Short: "Check whether a coordinate is observable",
	Long: `Asks the portal whether a coordinate can be observed right now.

Coordinates are "RA  DEC" in decimal degrees separated by two spaces,
as a single argument or as two arguments. With --date the check also
runs for that start time.

Examples:
  argus check "83.822  -5.391"
  argus check 83.822 -5.391 --date 2026-09-01T22:00`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := portal.requireLogin(); err != nil {
			return err
		}
		channel, err := portal.realtimeChannel(cmd)
		if err != nil {
			return err
		}

		input := strings.Join(args, "  ")
		ra, dec, err := astro.ParseCoordinateDegrees(input)
		if err != nil {
			return err
		}

		siteLat, err := portal.info.SiteLatitude(cmd.Context())
		if err != nil {
			return err
		}
		siteLon, err := portal.info.SiteLongitude(cmd.Context())
		if err != nil {
			return err
		}

		checker := planner.NewChecker(channel, portal.logger)
		result, err := checker.Check(cmd.Context(), ra, dec, checkDate, siteLat, siteLon)
		if err != nil {
			return err
		}

		fmt.Printf("Target:     %s\n", astro.Sexagesimal(ra, dec))
		fmt.Printf("Now:        %s\n", result.Now)
		if checkDate != "" {
			fmt.Printf("On %s: %s\n", checkDate, result.OnDate)
		}
		if result.Hint != "" {
			fmt.Println("Note:", result.Hint)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkDate, "date", "", "also check at this start time, format 2006-01-02T15:04")
	rootCmd.AddCommand(checkCmd)
}
