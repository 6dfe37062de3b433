package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mydehq/anitrack/internal/config"
	internallog "github.com/mydehq/anitrack/internal/logger"
	"github.com/mydehq/anitrack/internal/provider"
	"github.com/mydehq/anitrack/internal/ui"
)

var (
	flagConfigForce    bool
	flagConfigDefaults bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the config file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runConfigShow()
	},
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a config file",
	Long:        "Write a config file to --config or the per-user location. On a terminal a short wizard asks for the main settings.",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationConfigOptional: ""},
	Run: func(cmd *cobra.Command, args []string) {
		runConfigInit()
	},
}

func init() {
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)

	configInitCmd.Flags().BoolVarP(&flagConfigForce, "force", "f", false, "Overwrite an existing file")
	configInitCmd.Flags().BoolVarP(&flagConfigDefaults, "defaults", "d", false, "Write the commented template without asking")
}

func runConfigShow() {
	data, err := cfg.Marshal()
	if err != nil {
		fatal("Failed to render config", err)
	}

	source := "built-in defaults"
	if cfg.Path != "" {
		source = cfg.Path
	}
	logger.Info(fmt.Sprintf("%s %s", ui.StyleHeader.Render("Config from"), ui.StylePath.Render(source)))
	if internallog.IsTerminal() {
		fmt.Println(ui.HighlightYAML(string(data)))
	} else {
		fmt.Print(string(data))
	}
}

func runConfigInit() {
	path := flagConfig
	if path == "" {
		path = config.UserPath()
	}
	if path == "" {
		fatal("No config location", errors.New("pass --config or set $HOME"))
	}

	if _, err := os.Stat(path); err == nil && !flagConfigForce {
		fatal("Config already exists", fmt.Errorf("%s (use --force to overwrite)", path))
	}

	data := config.Template()
	if !flagConfigDefaults && internallog.IsTerminal() {
		draft := config.Default()
		confirmed, err := ui.RunConfigWizard(&draft, provider.ListSources())
		if ui.IsAbort(err) || (err == nil && !confirmed) {
			cancelled()
		}
		if err != nil {
			fatal("Wizard failed", err)
		}
		if err := draft.Validate(); err != nil {
			fatal("Invalid config", err)
		}
		if data, err = draft.Marshal(); err != nil {
			fatal("Failed to render config", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fatal("Failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fatal("Failed to write config", err)
	}
	logger.Success(fmt.Sprintf("%s: %s", ui.StyleHeader.Render("Config written"), ui.StylePath.Render(path)))
}
