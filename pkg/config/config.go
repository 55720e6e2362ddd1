package config

import "strings"

const (
	// EnvPrefix is prepended to every environment variable bound through viper.
	EnvPrefix = "CALLPROFILER_"

	Debug = "debug"
)

// KebabToSnakeCase converts a cobra flag name (max-depth) into the key viper
// stores it under (max_depth).
func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}

func NormalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}
