package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/venus-kyc/caseflow/internal/workflow"
)

var usersCmd = &cobra.Command{
	Use:   "users [role]",
	Short: "List configured users, optionally for one role",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUsers,
}

func runUsers(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var users []workflow.User
	if len(args) > 0 {
		role, err := workflow.ParseRole(strings.ToUpper(args[0]))
		if err != nil {
			return err
		}
		if users, err = a.engine.UsersForRole(cmd.Context(), role); err != nil {
			return err
		}
	} else {
		users = a.cfg.Directory().Users()
	}

	if len(users) == 0 {
		fmt.Println("No users found.")
		return nil
	}
	for _, u := range users {
		fmt.Printf("  %-14s %-14s %s\n", u.Username, u.Role, u.Name)
	}
	return nil
}
