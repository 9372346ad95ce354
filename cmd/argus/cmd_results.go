package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fetchOutput string

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List executed observations and their output files",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := portal.requireLogin(); err != nil {
			return err
		}
		observed, err := portal.client.FetchObserved(cmd.Context())
		if err != nil {
			return err
		}
		if len(observed) == 0 {
			fmt.Println("No executed observations yet")
			return nil
		}
		printPlans(observed, true)
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <filename>",
	Short: "Download an observation output file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := portal.requireLogin(); err != nil {
			return err
		}
		filename := args[0]

		body, err := portal.client.RequestFile(cmd.Context(), filename)
		if err != nil {
			return err
		}
		defer body.Close()

		target := fetchOutput
		if target == "" {
			target = filename
		}
		out, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", target, err)
		}

		written, err := io.Copy(out, body)
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}

		portal.logger.Debug("File downloaded", zap.String("file", target), zap.Int64("bytes", written))
		fmt.Printf("Saved %s (%d bytes)\n", target, written)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "write to this path instead of the original filename")
	rootCmd.AddCommand(resultsCmd, fetchCmd)
}
