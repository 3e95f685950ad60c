package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	taskDescription string
	editTitle       string
	editDescription string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Show tasks on the selected list",
	RunE:  runTaskShow,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task to the selected list",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskAdd,
}

var taskToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Toggle a task done or not done",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskToggle,
}

var taskEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a task's title or description",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEdit,
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task (asks for confirmation)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRm,
}

func init() {
	taskAddCmd.Flags().StringVar(&taskDescription, "desc", "", "task description")
	taskEditCmd.Flags().StringVar(&editTitle, "title", "", "new title")
	taskEditCmd.Flags().StringVar(&editDescription, "desc", "", "new description")
	taskCmd.AddCommand(taskAddCmd, taskToggleCmd, taskEditCmd, taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}

// openBoard loads lists so the persisted selection and its tasks are in place.
func openBoard(cmd *cobra.Command) (*app, error) {
	a, err := newApp()
	if err != nil {
		return nil, err
	}
	if _, err := a.requireSession(); err != nil {
		a.close()
		return nil, err
	}
	if err := a.lists.LoadLists(cmd.Context()); err != nil {
		err = a.checkAuth(err)
		a.close()
		return nil, err
	}
	return a, nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	a, err := openBoard(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	selected, ok := a.lists.SelectedList()
	if !ok {
		fmt.Println("No list selected. Create one with `teamtask list add <title>`.")
		return nil
	}

	fmt.Printf("%s (list %d)\n", selected.Title, selected.ID)
	tasks := a.lists.Tasks()
	if len(tasks) == 0 {
		fmt.Println("  no tasks")
		return nil
	}
	for _, task := range tasks {
		box := "[ ]"
		if task.Done {
			box = "[x]"
		}
		fmt.Printf("  %s %4d  %s\n", box, task.ID, task.Title)
		if task.Description != "" {
			fmt.Printf("           %s\n", task.Description)
		}
	}
	return nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	a, err := openBoard(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	created, err := a.lists.AddTask(cmd.Context(), strings.Join(args, " "), taskDescription)
	if err != nil {
		return a.checkAuth(err)
	}
	fmt.Printf("Added task %d: %s\n", created.ID, created.Title)
	return nil
}

func runTaskToggle(cmd *cobra.Command, args []string) error {
	a, err := openBoard(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("task id must be a number")
	}
	return a.checkAuth(a.lists.ToggleTaskDone(cmd.Context(), id))
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	a, err := openBoard(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("task id must be a number")
	}

	if err := a.lists.BeginEditTask(id); err != nil {
		return err
	}
	if cmd.Flags().Changed("title") {
		a.lists.SetEditTitle(editTitle)
	}
	if cmd.Flags().Changed("desc") {
		a.lists.SetEditDescription(editDescription)
	}
	if err := a.lists.ConfirmEditTask(cmd.Context()); err != nil {
		return a.checkAuth(err)
	}
	fmt.Printf("Updated task %d\n", id)
	return nil
}

func runTaskRm(cmd *cobra.Command, args []string) error {
	a, err := openBoard(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("task id must be a number")
	}

	if err := a.lists.BeginDeleteTask(id); err != nil {
		return err
	}
	if !confirm(fmt.Sprintf("Delete task %d?", id)) {
		a.lists.CancelDeleteTask()
		fmt.Println("Cancelled.")
		return nil
	}
	if err := a.lists.ConfirmDeleteTask(cmd.Context()); err != nil {
		return a.checkAuth(err)
	}
	fmt.Printf("Deleted task %d\n", id)
	return nil
}
