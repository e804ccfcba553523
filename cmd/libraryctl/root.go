package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/internal/app"
	"github.com/ovaphlow/pitchfork/service-library/internal/config"
	"github.com/ovaphlow/pitchfork/service-library/pkg/database"
	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

// cliOwner keys the importer result set for commands run from the terminal.
const cliOwner = "libraryctl"

var (
	svc    *app.App
	db     *sqlx.DB
	logger *zap.Logger

	flagNoColor bool
	flagJSON    bool
)

var rootCmd = &cobra.Command{
	Use:   "libraryctl",
	Short: "Administer the library service",
	Long: `libraryctl talks to the library database directly using the same
configuration as the API server (LIBRARY_* variables, .env, LIBRARY_CONFIG).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print machine-readable JSON")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if flagNoColor || flagJSON {
			color.NoColor = true
		}
		if cmd.Annotations["offline"] == "true" {
			return nil
		}
		_ = godotenv.Load()
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger, err = utilities.Init(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		db, err = database.Open(cfg.Database)
		if err != nil {
			return err
		}
		svc, err = app.New(cfg, db, logger.Sugar())
		return err
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if db != nil {
			_ = db.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	}

	rootCmd.AddCommand(
		newMigrateCmd(),
		newAdminCmd(),
		newImportCmd(),
		newStatsCmd(),
	)
}

// ok prints a green success line.
func ok(format string, a ...any) {
	fmt.Println(color.GreenString("✓"), fmt.Sprintf(format, a...))
}

// warn prints a yellow warning line.
func warn(format string, a ...any) {
	fmt.Fprintln(os.Stderr, color.YellowString("!"), fmt.Sprintf(format, a...))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
