package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/telescopiosnaescola/argus/internal/telescope"
	"github.com/telescopiosnaescola/argus/pkg/api"
	"github.com/telescopiosnaescola/argus/pkg/realtime"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the telescope status",
	Long: `Queries the telescope register over the realtime channel.

With --watch the command keeps running, printing every status change
pushed by the portal or picked up by polling, until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := portal.requireLogin(); err != nil {
			return err
		}
		channel, err := portal.realtimeChannel(cmd)
		if err != nil {
			return err
		}

		if !statusWatch {
			reply, err := channel.Request(cmd.Context(), realtime.TypeCheckTelescopeStatus, nil)
			if err != nil {
				return err
			}
			var register api.TelescopeStatus
			if err := json.Unmarshal(reply.Payload, &register); err != nil {
				return fmt.Errorf("malformed telescope status: %w", err)
			}
			printStatus(register)
			return nil
		}

		monitor := telescope.NewMonitor(channel, portal.cfg.StatusInterval, func(register api.TelescopeStatus) {
			printStatus(register)
		}, portal.logger)
		if err := monitor.Start(); err != nil {
			return err
		}
		defer monitor.Stop()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
		case <-cmd.Context().Done():
		}
		return nil
	},
}

func printStatus(register api.TelescopeStatus) {
	condition := telescope.Classify(register.Status)
	line := fmt.Sprintf("%s  [%s] %s", register.Name, condition, register.Status)
	if register.ExecutingPlanName != "" {
		line += fmt.Sprintf("  plan=%q", register.ExecutingPlanName)
	}
	if register.Operation != "" {
		line += "  " + register.Operation
	}
	fmt.Println(line)
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "keep printing status updates")
	rootCmd.AddCommand(statusCmd)
}
