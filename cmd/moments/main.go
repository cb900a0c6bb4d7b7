package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"momentshub/internal/app"
	"momentshub/internal/config"
	"momentshub/internal/session"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// newApp reads the config and session and creates a MomentsApp. The caller
// must call Close. operation identifies the CLI command being run.
func newApp(operation, parameters string) (*app.MomentsApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config (run `moments config init`): %w", err)
	}

	_, statErr := os.Stat(cfg.Session.Path)
	sealer := session.NewPromptSealer(cfg.Session.PassphraseEnv, cfg.Session.ScryptWorkFactor, statErr != nil)
	sessions := session.NewFileStore(cfg.Session.Path, sealer)

	a, err := app.NewMomentsApp(cfg, sessions, operation, parameters)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// run executes fn against a fresh MomentsApp and records its outcome.
func run(cmd *cobra.Command, operation string, args []string, fn func(ctx context.Context, a *app.MomentsApp) error) error {
	a, err := newApp(operation, strings.Join(args, " "))
	if err != nil {
		return err
	}
	err = fn(cmd.Context(), a)
	a.Finish(err)
	if cerr := a.Close(); err == nil {
		err = cerr
	}
	return err
}

var rootCmd = &cobra.Command{
	Use:          "moments",
	Short:        "Share moments, stories and messages through a Git-hosted store",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		storeType, _ := cmd.Flags().GetString("store")
		cfg.Store.Type = storeType
		cfg.Store.Owner, _ = cmd.Flags().GetString("owner")
		cfg.Store.Repo, _ = cmd.Flags().GetString("repo")
		cfg.Store.FSRoot, _ = cmd.Flags().GetString("fs-root")
		cfg.Store.S3Bucket, _ = cmd.Flags().GetString("s3-bucket")
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Store:    %s\n", cfg.Store.Type)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		return render(cmd, cfg, func(w textWriter) {
			w.printf("Configuration from %s:\n\n", defaults.ConfigPath)
			w.printf("Base Dir:     %s\n", cfg.BaseDir)
			w.printf("Log Dir:      %s\n", cfg.LogDir)
			w.printf("Store:        %s\n", cfg.Store.Type)
			switch {
			case cfg.Store.IsGitHub():
				w.printf("Repository:   %s/%s@%s\n", cfg.Store.Owner, cfg.Store.Repo, cfg.Store.Branch)
			case cfg.Store.Type == "filesystem":
				w.printf("Root:         %s\n", cfg.Store.FSRoot)
			case cfg.Store.Type == "s3":
				w.printf("Bucket:       %s/%s\n", cfg.Store.S3Bucket, cfg.Store.S3Prefix)
			}
			w.printf("Token Cache:  %s %s\n", cfg.Cache.Type, cfg.Cache.DataDir)
			w.printf("Session:      %s\n", cfg.Session.Path)
			w.printf("Story TTL:    %s\n", cfg.Stories.TTL())
			w.printf("Registration: %d attempts, %s apart\n", cfg.Registry.MaxAttempts, cfg.Registry.Backoff())
		})
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("store", "github", "Store backend: github, filesystem, s3 or memory")
	configInitCmd.Flags().String("owner", "", "Default repository owner")
	configInitCmd.Flags().String("repo", "", "Default repository name")
	configInitCmd.Flags().String("fs-root", "", "Root directory of the filesystem store")
	configInitCmd.Flags().String("s3-bucket", "", "Bucket of the s3 store")

	rootCmd.PersistentFlags().StringP("output", "o", "text", "Output format: text, json or yaml")
	rootCmd.AddCommand(configCmd)
}
