package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dorothy-zbornak/0x-user-clusters/pkg/config"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/profilerConfig"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "callprofiler",
	Short: "Profile exchange callers from a recorded call log",
	Long: `callprofiler decodes a newline-delimited log of recorded contract calls
against a set of ABI documents and prints one aggregate per caller: the
senders seen, methods invoked, makers and fee recipients of every order
touched, and running order, fill and update counts.`,
	SilenceUsage: true,
}

func Execute(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, profilerConfig.ConfigFile, "", "config file path (yaml or json)")

	rootCmd.PersistentFlags().Bool(profilerConfig.Debug, false, `"true" or "false"`)
	rootCmd.PersistentFlags().StringSlice(profilerConfig.Schemas, []string{profilerConfig.DefaultSchemaPattern}, "glob patterns of ABI documents")

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(methodsCmd)
}

// loadConfig reads the config file when one is given, otherwise builds the
// config from flags and environment. Flags must be bound before calling it.
func loadConfig() (*profilerConfig.ProfilerConfig, error) {
	if configFile == "" {
		return profilerConfig.NewProfilerConfig(), nil
	}
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}
	// JSON is valid YAML, so one parser covers both file types
	return profilerConfig.NewProfilerConfigFromYamlBytes(data)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	Execute(ctx)
}
