package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show your to-do lists",
	RunE:  runListShow,
}

var listAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a list scoped to your team (or to you)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runListAdd,
}

var listSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Select the active list",
	Args:  cobra.ExactArgs(1),
	RunE:  runListSelect,
}

func init() {
	listCmd.AddCommand(listAddCmd, listSelectCmd)
	rootCmd.AddCommand(listCmd)
}

func runListShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if _, err := a.requireSession(); err != nil {
		return err
	}

	if err := a.lists.LoadLists(cmd.Context()); err != nil {
		return a.checkAuth(err)
	}

	lists := a.lists.Lists()
	if len(lists) == 0 {
		fmt.Println("No lists yet. Create one with `teamtask list add <title>`.")
		return nil
	}
	selected, hasSelection := a.lists.SelectedList()
	for _, l := range lists {
		marker := " "
		if hasSelection && l.ID == selected.ID {
			marker = "*"
		}
		fmt.Printf("%s %4d  %s\n", marker, l.ID, l.Title)
	}
	return nil
}

func runListAdd(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if _, err := a.requireSession(); err != nil {
		return err
	}
	if err := a.lists.LoadLists(cmd.Context()); err != nil {
		return a.checkAuth(err)
	}

	created, err := a.lists.AddList(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return a.checkAuth(err)
	}
	fmt.Printf("Created list %d: %s\n", created.ID, created.Title)
	return nil
}

func runListSelect(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if _, err := a.requireSession(); err != nil {
		return err
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("list id must be a number")
	}

	if err := a.lists.LoadLists(cmd.Context()); err != nil {
		return a.checkAuth(err)
	}
	if err := a.lists.SelectList(cmd.Context(), id); err != nil {
		return a.checkAuth(err)
	}
	selected, _ := a.lists.SelectedList()
	fmt.Printf("Selected list %d: %s\n", selected.ID, selected.Title)
	return nil
}
