package main

import (
	"context"
	"fmt"
	"strings"

	"momentshub/internal/app"

	"github.com/spf13/cobra"
)

// moment command
var momentCmd = &cobra.Command{
	Use:   "moment",
	Short: "Post, list and delete moments",
}

var momentPostCmd = &cobra.Command{
	Use:   "post FILE",
	Short: "Publish an image or video to the feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caption, _ := cmd.Flags().GetString("caption")
		tags, _ := cmd.Flags().GetStringSlice("tag")

		return run(cmd, "PostMoment", args, func(ctx context.Context, a *app.MomentsApp) error {
			m, err := a.PostMoment(ctx, args[0], caption, tags)
			if err != nil {
				return fmt.Errorf("posting moment: %w", err)
			}
			return render(cmd, m, func(w textWriter) {
				w.printf("Posted %s/%d_%s\n", m.Handle, m.Created, m.ID)
			})
		})
	},
}

var momentListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the feed, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "ListMoments", args, func(ctx context.Context, a *app.MomentsApp) error {
			moments, err := a.ListMoments(ctx)
			if err != nil {
				return err
			}
			return render(cmd, moments, func(w textWriter) {
				if len(moments) == 0 {
					w.printf("No moments yet.\n")
					return
				}
				for _, m := range moments {
					tags := ""
					if len(m.Tags) > 0 {
						tags = "  #" + strings.Join(m.Tags, " #")
					}
					w.printf("%s  %-5s  @%s/%d_%s  %s%s\n", stamp(m.Created), m.Kind, m.Handle, m.Created, m.ID, m.Caption, tags)
					w.printf("    %s\n", m.MediaPath)
				}
			})
		})
	},
}

var momentDeleteCmd = &cobra.Command{
	Use:   "delete HANDLE/CREATED_ID",
	Short: "Delete one of your moments and its media",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "DeleteMoment", args, func(ctx context.Context, a *app.MomentsApp) error {
			if err := a.DeleteMoment(ctx, args[0]); err != nil {
				return fmt.Errorf("deleting moment: %w", err)
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		})
	},
}

// story command
var storyCmd = &cobra.Command{
	Use:   "story",
	Short: "Post, list, delete and prune stories",
}

var storyPostCmd = &cobra.Command{
	Use:   "post FILE",
	Short: "Publish a story",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caption, _ := cmd.Flags().GetString("caption")

		return run(cmd, "PostStory", args, func(ctx context.Context, a *app.MomentsApp) error {
			st, err := a.PostStory(ctx, args[0], caption)
			if err != nil {
				return fmt.Errorf("posting story: %w", err)
			}
			return render(cmd, st, func(w textWriter) {
				w.printf("Posted story %s/%d_%s\n", st.Handle, st.Created, st.ID)
			})
		})
	},
}

var storyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show active stories",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		return run(cmd, "ListStories", args, func(ctx context.Context, a *app.MomentsApp) error {
			stories, err := a.ListStories(ctx, all)
			if err != nil {
				return err
			}
			return render(cmd, stories, func(w textWriter) {
				if len(stories) == 0 {
					w.printf("No stories.\n")
					return
				}
				for _, st := range stories {
					state := ""
					if st.Expired {
						state = "  [expired]"
					}
					w.printf("%s  %-5s  @%s/%d_%s  %s%s\n", stamp(st.Created), st.Kind, st.Handle, st.Created, st.ID, st.Caption, state)
				}
			})
		})
	},
}

var storyDeleteCmd = &cobra.Command{
	Use:   "delete HANDLE/CREATED_ID",
	Short: "Delete one of your stories and its media",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "DeleteStory", args, func(ctx context.Context, a *app.MomentsApp) error {
			if err := a.DeleteStory(ctx, args[0]); err != nil {
				return fmt.Errorf("deleting story: %w", err)
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		})
	},
}

var storyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete your expired stories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "PruneStories", args, func(ctx context.Context, a *app.MomentsApp) error {
			n, err := a.PruneStories(ctx)
			if err != nil {
				return fmt.Errorf("pruning stories: %w", err)
			}
			fmt.Printf("Pruned %d expired story(ies)\n", n)
			return nil
		})
	},
}

func init() {
	momentCmd.AddCommand(momentPostCmd)
	momentCmd.AddCommand(momentListCmd)
	momentCmd.AddCommand(momentDeleteCmd)
	momentPostCmd.Flags().StringP("caption", "c", "", "Caption")
	momentPostCmd.Flags().StringSliceP("tag", "t", nil, "Tag (repeatable)")

	storyCmd.AddCommand(storyPostCmd)
	storyCmd.AddCommand(storyListCmd)
	storyCmd.AddCommand(storyDeleteCmd)
	storyCmd.AddCommand(storyPruneCmd)
	storyPostCmd.Flags().StringP("caption", "c", "", "Caption")
	storyListCmd.Flags().BoolP("all", "a", false, "Include expired stories")

	rootCmd.AddCommand(momentCmd)
	rootCmd.AddCommand(storyCmd)
}
