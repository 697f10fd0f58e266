package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type starterConfig struct {
	ActionKit struct {
		Username                 string `yaml:"username"`
		Password                 string `yaml:"password"`
		Hostname                 string `yaml:"hostname"`
		FullURL                  string `yaml:"full_url,omitempty"`
		SignupPageShortName      string `yaml:"signup_page_short_name"`
		UnsubscribePageShortName string `yaml:"unsubscribe_page_short_name"`
	} `yaml:"actionkit"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	DB struct {
		DSN string `yaml:"dsn,omitempty"`
	} `yaml:"db"`
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter config.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = args[0]
			}
			dir = filepath.Clean(dir)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}

			cfgPath := filepath.Join(dir, "config.yaml")
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists: %s", cfgPath)
			}

			var cfg starterConfig
			cfg.ActionKit.SignupPageShortName = "signup"
			cfg.ActionKit.UnsubscribePageShortName = "unsubscribe"
			cfg.Logging.Level = "info"
			cfg.Logging.Format = "text"

			body, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if err := os.WriteFile(cfgPath, body, 0o644); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", cfgPath)
			return nil
		},
	}
}
