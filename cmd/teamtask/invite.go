package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Show pending team invitations",
	RunE:  runInviteShow,
}

var inviteSendCmd = &cobra.Command{
	Use:   "send <email>",
	Short: "Invite someone to your team",
	Args:  cobra.ExactArgs(1),
	RunE:  runInviteSend,
}

var inviteAcceptCmd = &cobra.Command{
	Use:   "accept <id>",
	Short: "Accept an invitation and join the team",
	Args:  cobra.ExactArgs(1),
	RunE:  runInviteAccept,
}

var inviteDeclineCmd = &cobra.Command{
	Use:   "decline <id>",
	Short: "Decline an invitation",
	Args:  cobra.ExactArgs(1),
	RunE:  runInviteDecline,
}

func init() {
	inviteCmd.AddCommand(inviteSendCmd, inviteAcceptCmd, inviteDeclineCmd)
	rootCmd.AddCommand(inviteCmd)
}

func runInviteShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if _, err := a.requireSession(); err != nil {
		return err
	}

	pending, err := a.invites.FetchPending(cmd.Context())
	if err != nil {
		return a.checkAuth(err)
	}
	if len(pending) == 0 {
		fmt.Println("No pending invitations.")
		return nil
	}
	for _, inv := range pending {
		fmt.Printf("%4d  %s invited you to %s\n", inv.ID, inv.InviterName, inv.TeamName)
	}
	return nil
}

func runInviteSend(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if _, err := a.requireSession(); err != nil {
		return err
	}

	if err := a.invites.Send(cmd.Context(), args[0]); err != nil {
		return a.checkAuth(err)
	}
	fmt.Printf("Invitation sent to %s\n", args[0])
	return nil
}

func runInviteAccept(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("invite id must be a number")
	}
	if err := a.invites.Accept(cmd.Context(), id); err != nil {
		return a.checkAuth(err)
	}
	fmt.Println("Invitation accepted. Your lists now include the team's boards.")
	return nil
}

func runInviteDecline(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("invite id must be a number")
	}
	if err := a.invites.Decline(cmd.Context(), id); err != nil {
		return a.checkAuth(err)
	}
	fmt.Println("Invitation declined.")
	return nil
}
