package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/venus-kyc/caseflow/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize caseflow in the current directory",
	Long:  "Creates a .caseflow/ directory with default config and database.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(caseflowDirName); err == nil {
		return fmt.Errorf("caseflow already initialized in this directory (%s/ exists)", caseflowDirName)
	}
	if err := os.MkdirAll(caseflowDirName, 0755); err != nil {
		return fmt.Errorf("create %s: %w", caseflowDirName, err)
	}

	cfg := config.DefaultConfig()
	if err := config.Save(caseflowPath("config.yaml"), cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	// Migration runs on open.
	s, err := openStore(caseflowPath("caseflow.db"))
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	s.Close()

	fmt.Printf("Initialized caseflow in %s/\n", caseflowDirName)
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Printf("  1. Edit %s to set up users and the pipeline\n", caseflowPath("config.yaml"))
	fmt.Println("  2. Run: caseflow --as analyst case create <subject-id>")
	fmt.Println("  3. Run: caseflow board")
	return nil
}
