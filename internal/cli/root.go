package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mydehq/anitrack/internal/api"
	"github.com/mydehq/anitrack/internal/config"
	internallog "github.com/mydehq/anitrack/internal/logger"
	"github.com/mydehq/anitrack/internal/ui"
)

var (
	flagConfig  string
	flagVerbose bool
	flagQuiet   bool
	flagUser    string

	cfg    *config.Config
	logger *ui.Logger
)

var RootCmd = &cobra.Command{
	Use:           "anitrack",
	Short:         "Track anime episodes with filler and canon marked",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger(cmd)
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		logger.Error(err)
		RootCmd.Usage()
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file path")
	RootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose output")
	RootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress output except errors")
	RootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", os.Getenv("USER"), "User whose watch state is read and written")

	// Default logger setup (before flags parse)
	logger = ui.NewLogger(internallog.New(os.Stderr, log.InfoLevel))

	colorizeHelp(RootCmd)
}

// annotationConfigOptional marks commands that still run on a broken config
const annotationConfigOptional = "config-optional"

// setupLogger loads the config and applies its level unless a flag overrides it.
// A broken config is reported here so every command fails the same way.
func setupLogger(cmd *cobra.Command) {
	var err error
	cfg, err = config.Load(flagConfig)
	if err != nil {
		if _, ok := cmd.Annotations[annotationConfigOptional]; !ok {
			logger.Error("Failed to load config", "error", err)
			os.Exit(1)
		}
		logger.Warn("Ignoring config", "error", err)
		def := config.Default()
		cfg = &def
	}
	logger.SetLevel(internallog.Level(flagQuiet, flagVerbose, cfg.LogLevel()))
	if cfg.Path != "" {
		logger.Debug("Loaded config", "path", cfg.Path)
	}
}

// openApp builds the application from the loaded config, exiting on failure.
func openApp(ctx context.Context) *api.App {
	app, err := api.New(ctx, cfg, api.WithLogger(logger.Logger))
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	return app
}

// fatal logs msg with err and exits
func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

// cancelled exits cleanly after the user backed out of a prompt
func cancelled() {
	logger.Info(ui.StyleDim.Render("Cancelled"))
	os.Exit(0)
}

func requireUser() string {
	if flagUser == "" {
		fatal("No user", fmt.Errorf("pass --user or set $USER"))
	}
	return flagUser
}
