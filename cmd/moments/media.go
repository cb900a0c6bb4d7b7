package main

import (
	"context"
	"fmt"
	"os"

	"momentshub/internal/app"

	"github.com/spf13/cobra"
)

type resolvedMedia struct {
	Path     string `json:"path" yaml:"path"`
	URL      string `json:"url" yaml:"url"`
	MIMEType string `json:"mimeType" yaml:"mimeType"`
	Mirrored bool   `json:"mirrored" yaml:"mirrored"`
	SavedTo  string `json:"savedTo,omitempty" yaml:"savedTo,omitempty"`
}

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Work with stored media",
}

var mediaResolveCmd = &cobra.Command{
	Use:   "resolve PATH",
	Short: "Print a URL for a media path",
	Long: `Print the public mirror URL of a media path when the mirror serves it,
otherwise fetch it from the store. With --out the fetched bytes are written to a file
instead of printing a data URL.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		return run(cmd, "ResolveMedia", args, func(ctx context.Context, a *app.MomentsApp) error {
			media, err := a.ResolveMedia(ctx, args[0])
			if err != nil {
				return err
			}
			res := resolvedMedia{Path: args[0], URL: media.URL, MIMEType: media.MIMEType, Mirrored: media.Mirrored}
			if out != "" && !media.Mirrored {
				if err := os.WriteFile(out, media.Data, 0644); err != nil {
					return fmt.Errorf("writing %s: %w", out, err)
				}
				res.SavedTo, res.URL = out, ""
			}
			return render(cmd, res, func(w textWriter) {
				if res.SavedTo != "" {
					w.printf("Saved %d bytes (%s) to %s\n", len(media.Data), res.MIMEType, res.SavedTo)
					return
				}
				w.printf("%s\n", res.URL)
			})
		})
	},
}

func init() {
	mediaResolveCmd.Flags().String("out", "", "Write fetched media to this file")
	mediaCmd.AddCommand(mediaResolveCmd)
	rootCmd.AddCommand(mediaCmd)
}
