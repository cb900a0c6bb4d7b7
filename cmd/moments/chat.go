package main

import (
	"context"
	"fmt"
	"strings"

	"momentshub/internal/app"
	"momentshub/internal/hub"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Send and read direct messages",
}

var chatSendCmd = &cobra.Command{
	Use:   "send HANDLE TEXT...",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "SendMessage", args[:1], func(ctx context.Context, a *app.MomentsApp) error {
			msg, err := a.SendMessage(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return fmt.Errorf("sending message: %w", err)
			}
			return render(cmd, msg, func(w textWriter) {
				w.printf("Sent to @%s (%s)\n", msg.To, msg.ID)
			})
		})
	},
}

var chatOpenCmd = &cobra.Command{
	Use:   "open HANDLE",
	Short: "Show the conversation and mark it read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "OpenThread", args, func(ctx context.Context, a *app.MomentsApp) error {
			th, err := a.OpenThread(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd, th, func(w textWriter) {
				if len(th.Messages) == 0 {
					w.printf("No messages yet.\n")
					return
				}
				for _, m := range th.Messages {
					w.printf("%s  @%-12s %s  (%s)\n", stamp(m.TS), m.From, m.Text, m.ID)
				}
			})
		})
	},
}

var chatContactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List users with unread message counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "Contacts", args, func(ctx context.Context, a *app.MomentsApp) error {
			contacts, err := a.Contacts(ctx)
			if err != nil {
				return err
			}
			return render(cmd, contacts, func(w textWriter) {
				if len(contacts) == 0 {
					w.printf("No other users.\n")
					return
				}
				for _, c := range contacts {
					w.printf("@%-20s  %s\n", c.User.Handle, unreadLabel(c))
				}
			})
		})
	},
}

func unreadLabel(c hub.Contact) string {
	if c.Unread == 0 {
		return ""
	}
	return fmt.Sprintf("%d unread", c.Unread)
}

var chatDeleteCmd = &cobra.Command{
	Use:   "delete HANDLE MESSAGE_ID",
	Short: "Delete a message you sent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "DeleteMessage", args, func(ctx context.Context, a *app.MomentsApp) error {
			if err := a.DeleteMessage(ctx, args[0], args[1]); err != nil {
				return fmt.Errorf("deleting message: %w", err)
			}
			fmt.Printf("Deleted message %s\n", args[1])
			return nil
		})
	},
}

func init() {
	chatCmd.AddCommand(chatSendCmd)
	chatCmd.AddCommand(chatOpenCmd)
	chatCmd.AddCommand(chatContactsCmd)
	chatCmd.AddCommand(chatDeleteCmd)
	rootCmd.AddCommand(chatCmd)
}
