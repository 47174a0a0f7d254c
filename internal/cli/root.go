package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/toxitrace/toxitrace/internal/cli/commands"
	"github.com/toxitrace/toxitrace/internal/config"
	"github.com/toxitrace/toxitrace/internal/logger"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree over e
func NewRootCmd(e *commands.Env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   commands.Binary,
		Short: "ToxiTrace - environmental toxicity reporting",
		Long: `ToxiTrace CLI - report symptoms and follow environmental health alerts.

Citizens file symptom reports, doctors review patients through the doctor
portal and EPA officers monitor active alerts through the EPA portal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(e.Out, "%s version %s\n", commands.Binary, e.Version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewLoginCmd(e))
	rootCmd.AddCommand(commands.NewRegisterCmd(e))
	rootCmd.AddCommand(commands.NewLogoutCmd(e))
	rootCmd.AddCommand(commands.NewWhoamiCmd(e))
	rootCmd.AddCommand(commands.NewReportsCmd(e))
	rootCmd.AddCommand(commands.NewPatientsCmd(e))
	rootCmd.AddCommand(commands.NewAlertsCmd(e))
	rootCmd.AddCommand(commands.NewChatCmd(e))
	rootCmd.AddCommand(commands.NewUploadCmd(e))
	rootCmd.AddCommand(commands.NewHeatmapCmd(e))
	rootCmd.AddCommand(commands.NewDashCmd(e))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	// Logs go to stderr so command output stays pipeable
	log := logger.Init(os.Stderr, cfg.Logging.LevelOr("warn"), cfg.Logging.FormatOr("console"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd(commands.DefaultEnv(cfg, log, version))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
