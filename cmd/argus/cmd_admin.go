package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	reserveEmail string
	reserveStart string
	reserveEnd   string
)

var reservationsCmd = &cobra.Command{
	Use:   "reservations",
	Short: "Manage observing time reservations (admin)",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if rootCmd.PersistentPreRunE != nil {
			if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
				return err
			}
		}
		return portal.requireLogin()
	},
}

var reservationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all reservations",
	RunE: func(cmd *cobra.Command, args []string) error {
		reservations, err := portal.client.GetReservations(cmd.Context())
		if err != nil {
			return err
		}
		if len(reservations) == 0 {
			fmt.Println("No reservations")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSER\tSTART\tEND")
		for _, r := range reservations {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.User, r.StartTime, r.EndTime)
		}
		return w.Flush()
	},
}

var reservationsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Grant an observing slot to a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reserveEmail == "" || reserveStart == "" || reserveEnd == "" {
			return fmt.Errorf("--user, --start and --end are required")
		}
		resp, err := portal.client.ReserveTime(cmd.Context(), reserveEmail, reserveStart, reserveEnd)
		if err != nil {
			return err
		}
		if !resp.OK() {
			return fmt.Errorf("reservation refused: %s", resp.Message)
		}
		fmt.Println(resp.Message)
		return nil
	},
}

var reservationsDeleteCmd = &cobra.Command{
	Use:   "delete <reservation-id>",
	Short: "Remove a reservation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid reservation id %q", args[0])
		}
		resp, err := portal.client.DeleteReservation(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !resp.OK() {
			return fmt.Errorf("delete refused: %s", resp.Message)
		}
		fmt.Println(resp.Message)
		return nil
	},
}

var emailsCmd = &cobra.Command{
	Use:   "emails",
	Short: "List registered user emails (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := portal.requireLogin(); err != nil {
			return err
		}
		emails, err := portal.client.GetAllUserEmails(cmd.Context())
		if err != nil {
			return err
		}
		for _, email := range emails {
			fmt.Println(email)
		}
		return nil
	},
}

func init() {
	reservationsAddCmd.Flags().StringVar(&reserveEmail, "user", "", "email of the user receiving the slot")
	reservationsAddCmd.Flags().StringVar(&reserveStart, "start", "", "slot start, format 2006-01-02T15:04")
	reservationsAddCmd.Flags().StringVar(&reserveEnd, "end", "", "slot end, format 2006-01-02T15:04")

	reservationsCmd.AddCommand(reservationsListCmd, reservationsAddCmd, reservationsDeleteCmd)
	rootCmd.AddCommand(reservationsCmd, emailsCmd)
}
