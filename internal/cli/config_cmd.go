package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tOgg1/leasedesk/internal/config"
	"github.com/tOgg1/leasedesk/internal/logging"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEnvCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := logging.RedactMap(configLoader.AllSettings())
		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, settings)
		}
		data, err := yaml.Marshal(settings)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config, database and context paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		paths := map[string]string{
			"config":   configLoader.ConfigFileUsed(),
			"database": cfg.DatabasePath(),
			"context":  contextStore().Path(),
		}
		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, paths)
		}
		fmt.Fprintf(out, "config:   %s\n", formatOptional(paths["config"]))
		fmt.Fprintf(out, "database: %s\n", paths["database"])
		fmt.Fprintf(out, "context:  %s\n", paths["context"])
		return nil
	},
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List config keys and the environment variables that override them",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := config.Keys()
		out := cmd.OutOrStdout()
		if structuredOutput() {
			vars := make(map[string]string, len(keys))
			for _, key := range keys {
				vars[key] = config.EnvVar(key)
			}
			return WriteOutput(out, vars)
		}
		rows := make([][]string, 0, len(keys))
		for _, key := range keys {
			rows = append(rows, []string{key, config.EnvVar(key)})
		}
		return writeTable(out, []string{"KEY", "ENV"}, rows)
	},
}
