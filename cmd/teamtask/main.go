package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	debugMode bool
	assumeYes bool
)

var rootCmd = &cobra.Command{
	Use:   "teamtask",
	Short: "TeamTask is a client for a team to-do service",
	Long:  "TeamTask is a client for a multi-tenant team to-do service: sign in, manage your team's lists and tasks, and handle team invitations, with admins managing the user directory.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus TEAMTASK_* env)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to confirmation prompts")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
