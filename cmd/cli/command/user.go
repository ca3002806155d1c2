package command

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"librarian/internal/api"
	"librarian/internal/cache"
	"librarian/internal/model"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage library accounts",
	Long:  `List, create, update and remove library accounts. Requires a staff login.`,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List library accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := newEngine()
		defer eng.Close()

		applyListFlags(cmd, eng, cache.KindUsers)

		list := eng.Users
		if refreshRequested(cmd) {
			list = eng.ReloadUsers
		}
		users, err := list(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch users: %w", err)
		}
		if len(users) == 0 {
			fmt.Println("No accounts on this page")
			return nil
		}

		view := eng.View(cache.KindUsers)
		fmt.Printf("👥 Accounts (page %d)\n", view.Page)
		fmt.Println("─────────────────────────────────────────────────────────")
		for i, u := range users {
			fmt.Printf("%d. %s [%s] (ID: %s)\n", i+1, u.Username, u.Role, u.ID)
		}
		return nil
	},
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a library account",
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload api.CreateUserPayload
		payload.Username, _ = cmd.Flags().GetString("username")
		payload.Password, _ = cmd.Flags().GetString("password")
		role, _ := cmd.Flags().GetString("role")
		payload.Role = model.UserRole(strings.ToUpper(role))

		eng := newEngine()
		defer eng.Close()

		if err := eng.CreateUser(cmd.Context(), payload); err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		fmt.Printf("✅ Created account %q\n", payload.Username)
		return nil
	},
}

var userUpdateCmd = &cobra.Command{
	Use:   "update [user_id]",
	Short: "Update an account's username or password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload api.UpdateUserPayload
		payload.Username, _ = cmd.Flags().GetString("username")
		payload.Password, _ = cmd.Flags().GetString("password")

		eng := newEngine()
		defer eng.Close()

		if err := eng.UpdateUser(cmd.Context(), args[0], payload); err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}
		fmt.Printf("✅ Updated account (ID: %s)\n", args[0])
		return nil
	},
}

var userRemoveCmd = &cobra.Command{
	Use:   "remove [user_id]",
	Short: "Remove a library account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := newEngine()
		defer eng.Close()

		if err := eng.DeleteUser(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to remove account: %w", err)
		}
		fmt.Printf("✅ Removed account (ID: %s)\n", args[0])
		return nil
	},
}

func init() {
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userUpdateCmd)
	userCmd.AddCommand(userRemoveCmd)

	addListFlags(userListCmd)

	userAddCmd.Flags().StringP("username", "u", "", "Username for the account")
	userAddCmd.Flags().StringP("password", "p", "", "Password for the account")
	userAddCmd.Flags().StringP("role", "r", "USER", "Role: USER or LIBRARIAN")
	userAddCmd.MarkFlagRequired("username")
	userAddCmd.MarkFlagRequired("password")

	userUpdateCmd.Flags().StringP("username", "u", "", "New username")
	userUpdateCmd.Flags().StringP("password", "p", "", "New password")
	userUpdateCmd.MarkFlagRequired("username")

	rootCmd.AddCommand(userCmd)
}
