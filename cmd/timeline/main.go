package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"timeline-go/internal/app"
	"timeline-go/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Timeline entry submission service",
	Long: `timeline bridges a web form and a hosted git repository: submitted
entries are appended to a CSV file and image attachments are committed as
blobs, one commit per write.`,
}

// newApp loads the effective config and wires an App. The caller must
// defer a.Close(). operation identifies the CLI command being run.
func newApp(ctx context.Context, operation string) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	a, err := app.New(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the submission HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve(ctx)
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.NewConfig()

		fmt.Print("GitHub owner: ")
		fmt.Scanln(&cfg.GitHub.Owner)
		fmt.Print("GitHub repository: ")
		fmt.Scanln(&cfg.GitHub.Repo)
		fmt.Print("Form username: ")
		fmt.Scanln(&cfg.Auth.Username)

		fmt.Print("Form password: ")
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		cfg.Auth.Password = strings.TrimSpace(string(secret))

		if err := config.Init(configPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", configPath)
		fmt.Println("Set GITHUB_TOKEN in the environment; the token is not written to disk.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Printf("Mode:       %s\n", cfg.Mode)
		fmt.Printf("Listen:     %s\n", cfg.Listen)
		fmt.Printf("Store:      %s\n", cfg.Store.Type)
		fmt.Printf("Repository: %s/%s@%s\n", cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Branch)
		fmt.Printf("CSV path:   %s\n", cfg.Data.CSVPath)
		fmt.Printf("Images dir: %s (backend %s, format %s)\n", cfg.Data.ImagesDir, cfg.Images.Backend, cfg.Images.Format)
		fmt.Printf("Token set:  %v\n", cfg.GitHub.Token != "")
		return nil
	},
}

var requarterCmd = &cobra.Command{
	Use:   "requarter",
	Short: "Normalize the quarter column to YYYY-Q# format",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Requarter")
		if err != nil {
			return err
		}
		defer a.Close()

		changed, err := a.Runner().Requarter(cmd.Context())
		if err != nil {
			return fmt.Errorf("requarter failed: %w", err)
		}
		fmt.Printf("Normalized %d row(s)\n", changed)
		return nil
	},
}

var convertImagesCmd = &cobra.Command{
	Use:   "convert-images",
	Short: "Transcode stored images to WebP and rewrite referencing rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ConvertImages")
		if err != nil {
			return err
		}
		defer a.Close()

		converted, err := a.Runner().ConvertImages(cmd.Context())
		if err != nil {
			return fmt.Errorf("convert-images failed: %w", err)
		}
		fmt.Printf("Converted %d image(s)\n", converted)
		return nil
	},
}

var cleanupImagesCmd = &cobra.Command{
	Use:   "cleanup-images",
	Short: "Delete image blobs no CSV row references",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp(cmd.Context(), "CleanupImages")
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.Runner().CleanupImages(cmd.Context(), dryRun)
		if err != nil {
			return fmt.Errorf("cleanup-images failed: %w", err)
		}
		if dryRun {
			fmt.Printf("Would delete %d image(s)\n", removed)
		} else {
			fmt.Printf("Deleted %d image(s)\n", removed)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("timeline " + version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "timeline.toml", "Path to the config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	cleanupImagesCmd.Flags().Bool("dry-run", false, "Only report what would be deleted")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(requarterCmd)
	rootCmd.AddCommand(convertImagesCmd)
	rootCmd.AddCommand(cleanupImagesCmd)
	rootCmd.AddCommand(versionCmd)
}
