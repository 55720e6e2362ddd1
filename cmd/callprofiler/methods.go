package main

import (
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/config"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/logger"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/output"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/schemaRegistry"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const methodsFormat = "methods-format"

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "List the methods the loaded schemas resolve",
	RunE: func(cmd *cobra.Command, args []string) error {
		initRunCmd(cmd)

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		registry, err := schemaRegistry.NewRegistryFromFiles(cfg.Schemas, log)
		if err != nil {
			return err
		}
		return output.NewFormatter(viper.GetString(config.KebabToSnakeCase(methodsFormat)), false, cmd.OutOrStdout()).PrintMethods(registry.Methods())
	},
}

func init() {
	methodsCmd.Flags().String(methodsFormat, output.FormatTable, "output format: table, json or yaml")
}
