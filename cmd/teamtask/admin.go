package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"teamtask/internal/admin"
)

var userInput admin.UserInput

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage the user directory (admin only)",
}

var adminUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List all users",
	RunE:  runAdminUsers,
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	RunE:  runAdminCreate,
}

var adminUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a user (blank password keeps the current one)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminUpdate,
}

var adminRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a user (asks for confirmation)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminRm,
}

func init() {
	for _, c := range []*cobra.Command{adminCreateCmd, adminUpdateCmd} {
		c.Flags().StringVar(&userInput.Name, "name", "", "display name")
		c.Flags().StringVar(&userInput.Email, "email", "", "email address")
		c.Flags().StringVar(&userInput.Password, "password", "", "password")
		c.Flags().StringVar(&userInput.Role, "role", "", "role: user or admin")
		c.Flags().StringVar(&userInput.TeamID, "team", "", "team id (empty for none)")
	}
	adminCmd.AddCommand(adminUsersCmd, adminCreateCmd, adminUpdateCmd, adminRmCmd)
	rootCmd.AddCommand(adminCmd)
}

func runAdminUsers(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	users, err := a.admin.ListUsers(cmd.Context())
	if err != nil {
		return a.checkAuth(err)
	}
	for _, u := range users {
		team := "-"
		if u.TeamID != nil {
			team = strconv.Itoa(*u.TeamID)
		}
		fmt.Printf("%4d  %-20s %-30s %-6s team=%s\n", u.ID, u.Name, u.Email, u.Role, team)
	}
	return nil
}

func runAdminCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	created, err := a.admin.CreateUser(cmd.Context(), userInput)
	if err != nil {
		return a.checkAuth(err)
	}
	fmt.Printf("Created user %d: %s <%s>\n", created.ID, created.Name, created.Email)
	return nil
}

func runAdminUpdate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("user id must be a number")
	}
	updated, err := a.admin.UpdateUser(cmd.Context(), id, userInput)
	if err != nil {
		return a.checkAuth(err)
	}
	fmt.Printf("Updated user %d: %s <%s>\n", updated.ID, updated.Name, updated.Email)
	return nil
}

func runAdminRm(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("user id must be a number")
	}

	// The delete flow arms against the cached directory.
	if _, err := a.admin.ListUsers(cmd.Context()); err != nil {
		return a.checkAuth(err)
	}
	if err := a.admin.BeginDeleteUser(id); err != nil {
		return err
	}
	if !confirm(fmt.Sprintf("Delete user %d?", id)) {
		a.admin.CancelDeleteUser()
		fmt.Println("Cancelled.")
		return nil
	}
	if err := a.admin.ConfirmDeleteUser(cmd.Context()); err != nil {
		return a.checkAuth(err)
	}
	fmt.Printf("Deleted user %d\n", id)
	return nil
}
