package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dorothy-zbornak/0x-user-clusters/pkg/callDataDecoder"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/callExtractor"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/callProcessor"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/callerAggregator"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/config"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/logger"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/output"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/profilerConfig"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/schemaRegistry"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run [call-log]",
	Short: "Aggregate a call log by caller",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		initRunCmd(cmd)

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			if cfg.Input != "" && cfg.Input != args[0] {
				return errors.Errorf("call log given both as argument '%s' and --%s '%s'", args[0], profilerConfig.Input, cfg.Input)
			}
			cfg.Input = args[0]
		}

		log, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		sugar := log.Sugar()

		if err := cfg.Validate(); err != nil {
			sugar.Errorw("Invalid configuration", "error", err)
			return err
		}

		if err := runProfiler(cmd, cfg, log); err != nil {
			sugar.Errorw("Profiling failed", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringP(profilerConfig.Input, "i", "", "call log to read, one JSON record per line (default stdin)")
	runCmd.Flags().StringP(profilerConfig.Output, "o", "", "file to write the report to (default stdout)")
	runCmd.Flags().Bool(profilerConfig.Pretty, false, "indent JSON output")
	runCmd.Flags().String(profilerConfig.Format, profilerConfig.FormatJson, "report format: json or yaml")
	runCmd.Flags().String(profilerConfig.Since, profilerConfig.DefaultSince, "skip records before this date")
	runCmd.Flags().String(profilerConfig.Until, "", "skip records after this date (default now)")
	runCmd.Flags().Int(profilerConfig.Workers, profilerConfig.DefaultWorkers, "number of records decoded in parallel")
	runCmd.Flags().Int(profilerConfig.MaxDepth, callDataDecoder.DefaultMaxDepth, "maximum nesting of values and wrapped calls")
	runCmd.Flags().String(profilerConfig.WrapperMethod, callExtractor.DefaultWrapperMethod, "meta-transaction method whose inner call is unwrapped")
	runCmd.Flags().String(profilerConfig.WrapperDataField, callExtractor.DefaultWrapperDataField, "argument path of the wrapped call data")
	runCmd.Flags().String(profilerConfig.WrappedPrefix, callExtractor.DefaultWrappedPrefix, "prefix of unwrapped call ids")
	runCmd.Flags().Bool(profilerConfig.StrictSelectors, false, "fail on call data with an unknown selector")
	runCmd.Flags().Duration(profilerConfig.ProgressInterval, profilerConfig.DefaultProgressInterval, "minimum time between progress updates")
	runCmd.Flags().String(profilerConfig.StoreType, profilerConfig.StoreTypeMemory, "aggregate store: memory or badger")
	runCmd.Flags().String(profilerConfig.StoreDir, "", "badger store directory")
	runCmd.Flags().Bool(profilerConfig.Resume, false, "add to the aggregates already in --store-dir instead of refusing it")
}

func initRunCmd(cmd *cobra.Command) {
	bind := func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s': %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(config.KebabToSnakeCase(f.Name)); err != nil {
			fmt.Printf("Failed to bind env '%s': %+v\n", f.Name, err)
		}
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)
}

func runProfiler(cmd *cobra.Command, cfg *profilerConfig.ProfilerConfig, log *zap.Logger) error {
	ctx := cmd.Context()
	sugar := log.Sugar()

	since, until, err := cfg.TimeWindow(time.Now().UTC())
	if err != nil {
		return err
	}

	registry, err := schemaRegistry.NewRegistryFromFiles(cfg.Schemas, log)
	if err != nil {
		return err
	}
	if registry.Len() == 0 {
		return errors.Errorf("no methods found in schemas %v", cfg.Schemas)
	}
	sugar.Infow("Loaded schema registry", "methods", registry.Len())

	decoder := callDataDecoder.NewCallDataDecoder(cfg.MaxDepth, log)
	extractor := callExtractor.NewCallExtractor(registry, decoder, &callExtractor.CallExtractorConfig{
		WrapperMethod:    cfg.WrapperMethod,
		WrapperDataField: cfg.WrapperDataField,
		WrappedPrefix:    cfg.WrappedPrefix,
		MaxDepth:         cfg.MaxDepth,
	}, log)

	store, err := callerAggregator.NewCallerAggregateStore(cfg.Storage, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			sugar.Warnw("Failed to close aggregate store", "error", err)
		}
	}()
	aggregator := callerAggregator.NewCallerAggregator(store, log)

	input, closeInput, err := openInput(cfg.Input)
	if err != nil {
		return err
	}
	defer closeInput()

	processor := callProcessor.NewCallProcessor(extractor, aggregator, &callProcessor.CallProcessorConfig{
		Since:            since,
		Until:            until,
		Workers:          cfg.Workers,
		StrictSelectors:  cfg.StrictSelectors,
		ProgressWriter:   os.Stderr,
		ProgressInterval: cfg.ProgressInterval,
	}, log)

	sugar.Infow("Processing call log",
		"input", displayPath(cfg.Input, "stdin"),
		"since", since.Format(time.RFC3339),
		"until", until.Format(time.RFC3339),
		"workers", cfg.Workers,
	)
	if _, err := processor.Process(ctx, input); err != nil {
		return err
	}

	aggregates, err := aggregator.Snapshot(ctx)
	if err != nil {
		return err
	}

	out, err := output.OpenOutput(cfg.Output)
	if err != nil {
		return err
	}
	if err := output.NewFormatter(cfg.Format, cfg.Pretty, out).WriteAggregates(aggregates); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, "failed to close output")
	}
	sugar.Infow("Wrote caller report",
		"callers", len(aggregates),
		"output", displayPath(cfg.Output, "stdout"),
	)
	return nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open call log")
	}
	return file, func() { _ = file.Close() }, nil
}

func displayPath(path, fallback string) string {
	if path == "" || path == "-" {
		return fallback
	}
	return path
}
