package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	loginEmail    string
	loginPassword string

	registerEmail    string
	registerName     string
	registerPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against the portal and store the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		email := loginEmail
		password := loginPassword
		var err error
		if email == "" {
			if email, err = promptLine("Email: "); err != nil {
				return err
			}
		}
		if password == "" {
			if password, err = promptLine("Password: "); err != nil {
				return err
			}
		}

		if err := portal.client.Login(cmd.Context(), email, password); err != nil {
			return err
		}
		fmt.Printf("Logged in as %s\n", email)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new portal account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email := registerEmail
		name := registerName
		password := registerPassword
		var err error
		if email == "" {
			if email, err = promptLine("Email: "); err != nil {
				return err
			}
		}
		if name == "" {
			if name, err = promptLine("Complete name: "); err != nil {
				return err
			}
		}
		if password == "" {
			if password, err = promptLine("Password: "); err != nil {
				return err
			}
			confirm, err := promptLine("Confirm password: ")
			if err != nil {
				return err
			}
			if confirm != password {
				return fmt.Errorf("passwords do not match")
			}
		}

		if err := portal.client.Register(cmd.Context(), email, name, password, password); err != nil {
			return err
		}
		fmt.Println("Account created, you can now log in")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := portal.sessions.Clear(); err != nil {
			return err
		}
		portal.logger.Info("Session cleared", zap.String("state_dir", portal.cfg.StateDir))
		fmt.Println("Logged out")
		return nil
	},
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (prompted if omitted)")

	registerCmd.Flags().StringVar(&registerEmail, "email", "", "account email")
	registerCmd.Flags().StringVar(&registerName, "name", "", "complete name")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "account password (prompted if omitted)")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd)
}
