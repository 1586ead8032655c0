package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracecap/tracecap/config"
)

var doctorConfig string

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringVar(&doctorConfig, "config", "", "Path to config YAML (default ~/.tracecap/config.yaml)")
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate configuration and print resolved settings",
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(doctorConfig)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	resolved := map[string]any{
		"active":          cfg.Active,
		"app_name":        cfg.AppName,
		"app_version":     cfg.AppVersion,
		"environment":     cfg.Environment,
		"server_url":      cfg.ServerURL,
		"secret_token":    maskToken(cfg.SecretToken),
		"backtrace_limit": cfg.BacktraceLimit,
		"timeout":         cfg.Timeout.Round(time.Millisecond).String(),
	}
	out, _ := json.MarshalIndent(resolved, "", "  ")
	fmt.Println(string(out))
	return nil
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return token[:2] + strings.Repeat("*", len(token)-4) + token[len(token)-2:]
}
