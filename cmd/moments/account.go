package main

import (
	"context"
	"fmt"
	"os"

	"momentshub/internal/app"
	"momentshub/internal/hub"
	"momentshub/internal/session"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Save the repository coordinates and access token",
	Long: `Save the repository coordinates and access token in the encrypted session.
Without --token the token is read from the terminal; leave it empty for read-only access.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		repo, _ := cmd.Flags().GetString("repo")
		branch, _ := cmd.Flags().GetString("branch")
		token, _ := cmd.Flags().GetString("token")

		if token == "" && term.IsTerminal(int(os.Stdin.Fd())) {
			var err error
			token, err = session.ReadSecret(os.Stderr, "Access token (empty for read-only): ")
			if err != nil {
				return err
			}
		}

		return run(cmd, "Connect", []string{owner, repo, branch}, func(ctx context.Context, a *app.MomentsApp) error {
			users, err := a.Connect(ctx, owner, repo, branch, token)
			if err != nil {
				return err
			}
			mode := "read-write"
			if token == "" {
				mode = "read-only"
			}
			fmt.Printf("Connected (%s), %d registered user(s)\n", mode, len(users))
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved credentials and user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "Logout", args, func(ctx context.Context, a *app.MomentsApp) error {
			if err := a.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Logged out.")
			return nil
		})
	},
}

type whoami struct {
	Owner         string    `json:"owner" yaml:"owner"`
	Repo          string    `json:"repo" yaml:"repo"`
	Branch        string    `json:"branch" yaml:"branch"`
	Authenticated bool      `json:"authenticated" yaml:"authenticated"`
	User          *hub.User `json:"user,omitempty" yaml:"user,omitempty"`
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current connection and user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "WhoAmI", args, func(ctx context.Context, a *app.MomentsApp) error {
			s := a.Session()
			info := whoami{Owner: s.Owner, Repo: s.Repo, Branch: s.Branch, Authenticated: s.Token != "", User: s.User}
			return render(cmd, info, func(w textWriter) {
				if s.Connected() {
					w.printf("Repository: %s/%s@%s (token: %v)\n", s.Owner, s.Repo, s.Branch, info.Authenticated)
				} else {
					w.printf("Repository: not connected\n")
				}
				if s.User != nil {
					w.printf("User:       @%s (%s)\n", s.User.Handle, s.User.DisplayName())
				} else {
					w.printf("User:       not signed in\n")
				}
			})
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register HANDLE",
	Short: "Register a new user and sign in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		display, _ := cmd.Flags().GetString("display")
		avatar, _ := cmd.Flags().GetString("avatar")
		bio, _ := cmd.Flags().GetString("bio")

		return run(cmd, "Register", args, func(ctx context.Context, a *app.MomentsApp) error {
			u, err := a.Register(ctx, args[0], display, avatar, bio)
			if err != nil {
				return err
			}
			return render(cmd, u, func(w textWriter) {
				w.printf("Registered and signed in as @%s\n", u.Handle)
			})
		})
	},
}

var loginCmd = &cobra.Command{
	Use:   "login HANDLE",
	Short: "Sign in as a registered user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "Login", args, func(ctx context.Context, a *app.MomentsApp) error {
			u, err := a.Login(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd, u, func(w textWriter) {
				w.printf("Signed in as @%s (%s)\n", u.Handle, u.DisplayName())
			})
		})
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "Users", args, func(ctx context.Context, a *app.MomentsApp) error {
			users, err := a.Users(ctx)
			if err != nil {
				return err
			}
			return render(cmd, users, func(w textWriter) {
				if len(users) == 0 {
					w.printf("No registered users.\n")
					return
				}
				for _, u := range users {
					w.printf("@%-20s  %s\n", u.Handle, u.DisplayName())
				}
			})
		})
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your profile",
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update display name, avatar and bio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "UpdateProfile", args, func(ctx context.Context, a *app.MomentsApp) error {
			me, err := a.Session().CurrentUser()
			if err != nil {
				return err
			}
			// Flags that were not given keep their current value.
			display, avatar, bio := me.Display, me.Avatar, me.Bio
			if cmd.Flags().Changed("display") {
				display, _ = cmd.Flags().GetString("display")
			}
			if cmd.Flags().Changed("avatar") {
				avatar, _ = cmd.Flags().GetString("avatar")
			}
			if cmd.Flags().Changed("bio") {
				bio, _ = cmd.Flags().GetString("bio")
			}

			u, err := a.UpdateProfile(ctx, display, avatar, bio)
			if err != nil {
				return err
			}
			return render(cmd, u, func(w textWriter) {
				w.printf("Profile of @%s updated\n", u.Handle)
			})
		})
	},
}

func init() {
	connectCmd.Flags().String("owner", "", "Repository owner")
	connectCmd.Flags().String("repo", "", "Repository name")
	connectCmd.Flags().String("branch", "main", "Branch holding the data")
	connectCmd.Flags().String("token", "", "Personal access token (omit for read-only)")

	for _, c := range []*cobra.Command{registerCmd, profileSetCmd} {
		c.Flags().String("display", "", "Display name")
		c.Flags().String("avatar", "", "Avatar URL")
		c.Flags().String("bio", "", "Short bio")
	}
	profileCmd.AddCommand(profileSetCmd)

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(profileCmd)
}
