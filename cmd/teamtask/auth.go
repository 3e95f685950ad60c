package main

import (
	"fmt"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"teamtask/internal/session"
)

var (
	registerName   string
	registerTeamID string
	passwordFlag   string
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and persist the session",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Create an account (does not sign in)",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the persisted session",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVar(&passwordFlag, "password", "", "password (prompted when omitted)")
	registerCmd.Flags().StringVar(&passwordFlag, "password", "", "password (prompted when omitted)")
	registerCmd.Flags().StringVar(&registerName, "name", "", "display name")
	registerCmd.Flags().StringVar(&registerTeamID, "team", "", "team id to join (optional)")
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}

func readPassword() (string, error) {
	if passwordFlag != "" {
		return passwordFlag, nil
	}
	fmt.Print("Password: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(raw), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	password, err := readPassword()
	if err != nil {
		return err
	}

	sess, err := a.sessions.Login(cmd.Context(), args[0], password)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s <%s>\n", sess.User.Name, sess.User.Email)
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	password, err := readPassword()
	if err != nil {
		return err
	}

	in := session.RegisterInput{
		Name:     registerName,
		Email:    args[0],
		Password: password,
	}
	if registerTeamID != "" {
		id, err := strconv.Atoi(registerTeamID)
		if err != nil {
			return fmt.Errorf("--team must be a number")
		}
		in.TeamID = &id
	}

	if err := a.sessions.Register(cmd.Context(), in); err != nil {
		return err
	}
	fmt.Printf("Account created for %s. Run `teamtask login %s` to sign in.\n", in.Email, in.Email)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	a.sessions.Logout()
	fmt.Println("Signed out.")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.requireSession(); err != nil {
		return err
	}

	// Refresh so team changes made elsewhere show up. A rejected token must
	// not fall back to the cached profile.
	user, err := a.sessions.RefreshProfile(cmd.Context())
	if err != nil {
		return a.checkAuth(err)
	}

	fmt.Printf("%s <%s> role=%s", user.Name, user.Email, user.Role)
	if user.TeamID != nil {
		fmt.Printf(" team=%d", *user.TeamID)
	}
	fmt.Println()
	return nil
}
