package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gatehouse/gatehouse/internal/model"
	"github.com/gatehouse/gatehouse/internal/store"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var (
		name     string
		phone    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || phone == "" {
				return fmt.Errorf("--name and --phone are required")
			}

			if password == "" {
				fmt.Print("Password: ")
				pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				fmt.Println()
				password = string(pwBytes)

				fmt.Print("Confirm password: ")
				confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
				if err != nil {
					return fmt.Errorf("failed to read confirmation: %w", err)
				}
				fmt.Println()

				if password != string(confirmBytes) {
					return fmt.Errorf("passwords do not match")
				}
			}
			if len(password) < 6 {
				return fmt.Errorf("password must be at least 6 characters")
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			u := model.User{
				Name:     name,
				Phone:    phone,
				Password: store.HashPassword(password),
				IsActive: true,
			}
			if err := st.CreateUser(context.Background(), &u); err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			fmt.Printf("Created user %q\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "User name")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")

	return cmd
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			users, err := st.ListUsers(context.Background())
			if err != nil {
				return err
			}
			for _, u := range users {
				active := "active"
				if !u.IsActive {
					active = "disabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", u.ID, u.Name, u.Phone, active)
			}
			return nil
		},
	}
}

func openStore() (*store.Store, error) {
	cfg := loadConfig()
	return store.Open(cfg.Database)
}
