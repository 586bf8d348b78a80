// Package main provides the resume-coach command: the HTTP API, an
// interactive terminal chat, curriculum training and prompt management.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonathan/resume-coach/internal/config"
)

var (
	cfgFile string
	v       *viper.Viper = config.NewViper()

	rootCmd = &cobra.Command{
		Use:           "resume-coach",
		Short:         "Conversational résumé coach",
		Long:          "resume-coach builds a structured résumé through conversation, scores its readiness and learns from user feedback.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is resume-coach.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("db-driver", "", "storage engine: postgres, sqlite or memory")
	rootCmd.PersistentFlags().String("db-url", "", "database URL or SQLite path")

	mustBind("debug", rootCmd.PersistentFlags().Lookup("debug"))
	mustBind("json", rootCmd.PersistentFlags().Lookup("json"))
	mustBind("database.driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	mustBind("database.url", rootCmd.PersistentFlags().Lookup("db-url"))
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
