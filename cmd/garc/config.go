package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"garc/pkg/auth"
	"garc/pkg/config"
	"garc/pkg/ui"
)

const defaultSettingsFile = ".garc.yaml"

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the settings file",
		Long: `Manage garc settings.

Settings are loaded from, in increasing priority:
  - Default values
  - The YAML settings file (--settings, .garc.yaml, ~/.config/garc/config.yaml)
  - .env files
  - GARC_* environment variables
  - Command line flags`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a settings file with the default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.opts.settings
			if path == "" {
				path = defaultSettingsFile
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("settings file already exists: %s", path)
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			ui.PrintSuccess("Settings written to " + path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective settings and credential sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal settings: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))

			if store, err := a.profileStore(); err == nil {
				if names, err := store.Profiles(); err == nil && len(names) > 0 {
					ui.PrintInfo("Profiles in "+store.Path, strings.Join(names, ", "))
				}
			}
			if auth.NewEnvironmentStore().Exists() {
				ui.PrintInfo("Environment", "GAB_ACCOUNT/GAB_PASSWORD set")
			}

			creds, err := a.credentials()
			if err != nil {
				ui.PrintWarning("Credentials", err)
				return nil
			}
			ui.PrintInfo("Profile", a.opts.profile)
			ui.PrintInfo("Account", valueOrUnset(creds.Account))
			ui.PrintInfo("Password", valueOrUnset(auth.Mask(creds.Password), creds.Password))
			return nil
		},
	})
	return cmd
}

// valueOrUnset returns v, or "(not set)" when any of check (or v itself) is empty
func valueOrUnset(v string, check ...string) string {
	if len(check) == 0 {
		check = []string{v}
	}
	for _, c := range check {
		if c == "" {
			return "(not set)"
		}
	}
	return v
}
