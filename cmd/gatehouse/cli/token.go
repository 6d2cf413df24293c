package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/model"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage opaque API tokens and their grants",
	}
	cmd.AddCommand(newTokenCreateCmd())
	cmd.AddCommand(newTokenGrantCmd())
	cmd.AddCommand(newTokenListCmd())
	return cmd
}

func newTokenCreateCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Generate an opaque API token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user-id is required")
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			t, err := st.CreateUserToken(context.Background(), userID)
			if err != nil {
				return fmt.Errorf("create token: %w", err)
			}

			fmt.Printf("Token for user %s:\n\n  %s\n\nGrant URIs with: gatehouse token grant --token-id %d --uri <path> --ttl <duration>\n",
				userID, t.Token, t.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "Owning user id")
	return cmd
}

func newTokenGrantCmd() *cobra.Command {
	var (
		tokenID int64
		uri     string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Authorize an opaque token for one URI",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tokenID == 0 || uri == "" {
				return fmt.Errorf("--token-id and --uri are required")
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			g := model.TokenGrant{
				UserTokenID: tokenID,
				URI:         uri,
				Expire:      time.Now().Add(ttl),
				IsActive:    true,
			}
			if err := st.CreateGrant(context.Background(), &g); err != nil {
				return fmt.Errorf("create grant: %w", err)
			}

			fmt.Printf("Granted %s until %s\n", uri, g.Expire.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().Int64Var(&tokenID, "token-id", 0, "Opaque token id")
	cmd.Flags().StringVar(&uri, "uri", "", "URI path to authorize")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Grant lifetime")
	return cmd
}

func newTokenListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List opaque API tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			tokens, err := st.ListUserTokens(context.Background())
			if err != nil {
				return err
			}
			for _, t := range tokens {
				active := "active"
				if !t.IsActive {
					active = "disabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\tuser=%s\t%s\t%s\n", t.ID, t.UserID, t.Token, active)
			}
			return nil
		},
	}
}
