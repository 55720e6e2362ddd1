package profilerConfig

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/araddon/dateparse"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/config"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"sigs.k8s.io/yaml"
)

const (
	Debug            = "debug"
	ConfigFile       = "config"
	Input            = "input"
	Schemas          = "schemas"
	Output           = "output"
	Pretty           = "pretty"
	Format           = "format"
	Since            = "since"
	Until            = "until"
	Workers          = "workers"
	MaxDepth         = "max-depth"
	WrapperMethod    = "wrapper-method"
	WrapperDataField = "wrapper-data-field"
	WrappedPrefix    = "wrapped-prefix"
	StrictSelectors  = "strict-selectors"
	ProgressInterval = "progress-interval"
	StoreType        = "store-type"
	StoreDir         = "store-dir"
	Resume           = "resume"
)

const (
	FormatJson = "json"
	FormatYaml = "yaml"

	StoreTypeMemory = "memory"
	StoreTypeBadger = "badger"

	// DefaultSince is the Ethereum mainnet launch; nothing recorded before it.
	DefaultSince            = "2015-07-30"
	DefaultSchemaPattern    = "abis/*.json"
	DefaultWorkers          = 1
	DefaultProgressInterval = 250 * time.Millisecond
)

var SupportedFormats = []string{FormatJson, FormatYaml}

// StorageConfig selects where caller aggregates are kept during a run
type StorageConfig struct {
	Type         string        `json:"type" yaml:"type"` // "memory" or "badger"
	BadgerConfig *BadgerConfig `json:"badger,omitempty" yaml:"badger,omitempty"`
}

// BadgerConfig contains configuration for BadgerDB storage
type BadgerConfig struct {
	// Directory where BadgerDB will store its data
	Dir string `json:"dir" yaml:"dir"`
	// InMemory runs BadgerDB in memory-only mode (for testing)
	InMemory bool `json:"inMemory,omitempty" yaml:"inMemory,omitempty"`
	// ValueLogFileSize sets the maximum size of a single value log file
	ValueLogFileSize int64 `json:"valueLogFileSize,omitempty" yaml:"valueLogFileSize,omitempty"`
	// NumVersionsToKeep sets how many versions to keep for each key
	NumVersionsToKeep int `json:"numVersionsToKeep,omitempty" yaml:"numVersionsToKeep,omitempty"`
	// NumLevelZeroTables sets the maximum number of level zero tables before stalling
	NumLevelZeroTables int `json:"numLevelZeroTables,omitempty" yaml:"numLevelZeroTables,omitempty"`
	// NumLevelZeroTablesStall sets the number of level zero tables that will trigger a stall
	NumLevelZeroTablesStall int `json:"numLevelZeroTablesStall,omitempty" yaml:"numLevelZeroTablesStall,omitempty"`
	// WriteCacheSize is the number of changed aggregates held before they are written out
	WriteCacheSize int `json:"writeCacheSize,omitempty" yaml:"writeCacheSize,omitempty"`
	// Resume continues from the aggregates already in Dir instead of refusing a non-empty store
	Resume bool `json:"resume,omitempty" yaml:"resume,omitempty"`
}

// Validate validates the StorageConfig
func (sc *StorageConfig) Validate() error {
	var allErrors field.ErrorList

	if sc.Type == "" {
		sc.Type = StoreTypeMemory
	}

	if sc.Type != StoreTypeMemory && sc.Type != StoreTypeBadger {
		allErrors = append(allErrors, field.Invalid(field.NewPath("type"), sc.Type, "type must be 'memory' or 'badger'"))
	}

	if sc.Type == StoreTypeBadger {
		if sc.BadgerConfig == nil {
			allErrors = append(allErrors, field.Required(field.NewPath("badger"), "badger configuration is required when type is 'badger'"))
		} else {
			if sc.BadgerConfig.Dir == "" && !sc.BadgerConfig.InMemory {
				allErrors = append(allErrors, field.Required(field.NewPath("badger.dir"), "badger directory is required"))
			}
			if sc.BadgerConfig.WriteCacheSize < 0 {
				allErrors = append(allErrors, field.Invalid(field.NewPath("badger.writeCacheSize"), sc.BadgerConfig.WriteCacheSize, "writeCacheSize must not be negative"))
			}
		}
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

type ProfilerConfig struct {
	Debug bool `json:"debug" yaml:"debug"`

	// Input is the call log to read; empty or "-" reads stdin
	Input string `json:"input" yaml:"input"`
	// Schemas are glob patterns of ABI documents
	Schemas []string `json:"schemas" yaml:"schemas"`
	// Output is the report file; empty writes to stdout
	Output string `json:"output" yaml:"output"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Format string `json:"format" yaml:"format"`

	// Since and Until bound the record timestamps, inclusive. Both accept
	// any expression dateparse understands, including unix seconds.
	Since string `json:"since" yaml:"since"`
	Until string `json:"until" yaml:"until"`

	Workers          int    `json:"workers" yaml:"workers"`
	MaxDepth         int    `json:"maxDepth" yaml:"maxDepth"`
	WrapperMethod    string `json:"wrapperMethod" yaml:"wrapperMethod"`
	WrapperDataField string `json:"wrapperDataField" yaml:"wrapperDataField"`
	WrappedPrefix    string `json:"wrappedPrefix" yaml:"wrappedPrefix"`
	StrictSelectors  bool   `json:"strictSelectors" yaml:"strictSelectors"`

	ProgressInterval time.Duration `json:"progressInterval" yaml:"progressInterval"`

	Storage *StorageConfig `json:"storage,omitempty" yaml:"storage,omitempty"`
}

// Validate checks the config and fills in defaults for unset fields.
func (pc *ProfilerConfig) Validate() error {
	var allErrors field.ErrorList

	if len(pc.Schemas) == 0 {
		pc.Schemas = []string{DefaultSchemaPattern}
	}
	for i, pattern := range pc.Schemas {
		if pattern == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("schemas").Index(i), "schema pattern must not be empty"))
		}
	}

	if pc.Format == "" {
		pc.Format = FormatJson
	} else if !slices.Contains(SupportedFormats, pc.Format) {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("format"), pc.Format, SupportedFormats))
	}

	if pc.Since == "" {
		pc.Since = DefaultSince
	}
	since, err := parseDate(pc.Since)
	if err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("since"), pc.Since, err.Error()))
	}
	if pc.Until != "" {
		until, err := parseDate(pc.Until)
		if err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath("until"), pc.Until, err.Error()))
		} else if !since.IsZero() && until.Before(since) {
			allErrors = append(allErrors, field.Invalid(field.NewPath("until"), pc.Until, "until must not be before since"))
		}
	}

	if pc.Workers == 0 {
		pc.Workers = DefaultWorkers
	} else if pc.Workers < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("workers"), pc.Workers, "workers must be positive"))
	}
	if pc.MaxDepth < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("maxDepth"), pc.MaxDepth, "maxDepth must not be negative"))
	}
	if pc.ProgressInterval == 0 {
		pc.ProgressInterval = DefaultProgressInterval
	} else if pc.ProgressInterval < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("progressInterval"), pc.ProgressInterval, "progressInterval must not be negative"))
	}

	if pc.Storage == nil {
		pc.Storage = &StorageConfig{Type: StoreTypeMemory}
	}
	if err := pc.Storage.Validate(); err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("storage"), pc.Storage, err.Error()))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// TimeWindow resolves the inclusive [since, until] window. An empty Until
// means now.
func (pc *ProfilerConfig) TimeWindow(now time.Time) (time.Time, time.Time, error) {
	sinceExpr := pc.Since
	if sinceExpr == "" {
		sinceExpr = DefaultSince
	}
	since, err := parseDate(sinceExpr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrapf(err, "invalid since '%s'", sinceExpr)
	}
	if pc.Until == "" {
		return since, now, nil
	}
	until, err := parseDate(pc.Until)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrapf(err, "invalid until '%s'", pc.Until)
	}
	return since, until, nil
}

func parseDate(expr string) (time.Time, error) {
	return dateparse.ParseIn(expr, time.UTC)
}

func NewProfilerConfigFromJsonBytes(data []byte) (*ProfilerConfig, error) {
	var pc ProfilerConfig
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal ProfilerConfig from JSON")
	}
	return &pc, nil
}

func NewProfilerConfigFromYamlBytes(data []byte) (*ProfilerConfig, error) {
	var pc ProfilerConfig
	if err := yaml.Unmarshal(data, &pc); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal ProfilerConfig from YAML")
	}
	return &pc, nil
}

// NewProfilerConfig builds a config from the flags and environment bound into viper.
func NewProfilerConfig() *ProfilerConfig {
	pc := &ProfilerConfig{
		Debug:            viper.GetBool(config.NormalizeFlagName(Debug)),
		Input:            viper.GetString(config.NormalizeFlagName(Input)),
		Schemas:          viper.GetStringSlice(config.NormalizeFlagName(Schemas)),
		Output:           viper.GetString(config.NormalizeFlagName(Output)),
		Pretty:           viper.GetBool(config.NormalizeFlagName(Pretty)),
		Format:           viper.GetString(config.NormalizeFlagName(Format)),
		Since:            viper.GetString(config.NormalizeFlagName(Since)),
		Until:            viper.GetString(config.NormalizeFlagName(Until)),
		Workers:          viper.GetInt(config.NormalizeFlagName(Workers)),
		MaxDepth:         viper.GetInt(config.NormalizeFlagName(MaxDepth)),
		WrapperMethod:    viper.GetString(config.NormalizeFlagName(WrapperMethod)),
		WrapperDataField: viper.GetString(config.NormalizeFlagName(WrapperDataField)),
		WrappedPrefix:    viper.GetString(config.NormalizeFlagName(WrappedPrefix)),
		StrictSelectors:  viper.GetBool(config.NormalizeFlagName(StrictSelectors)),
		ProgressInterval: viper.GetDuration(config.NormalizeFlagName(ProgressInterval)),
		Storage: &StorageConfig{
			Type: viper.GetString(config.NormalizeFlagName(StoreType)),
		},
	}
	if dir := viper.GetString(config.NormalizeFlagName(StoreDir)); dir != "" {
		pc.Storage.BadgerConfig = &BadgerConfig{
			Dir:    dir,
			Resume: viper.GetBool(config.NormalizeFlagName(Resume)),
		}
	}
	return pc
}
