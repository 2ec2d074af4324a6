package cli

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Control-D-Inc/dnsmgr"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	v                 = viper.NewWithOptions(viper.KeyDelimiter("::"))
	defaultConfigFile = "dnsmgr.toml"
)

func curVersion() string {
	if version != "dev" && !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s-%s", version, commit)
}

func initCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:     "dnsmgr",
		Short:   "Aggregate DNS configuration and keep the system resolver in sync",
		Version: curVersion(),
	}
	rootCmd.PersistentFlags().CountVarP(
		&verbose,
		"verbose",
		"v",
		`verbose log output, "-v" basic logging, "-vv" debug logging`,
	)
	rootCmd.PersistentFlags().BoolVarP(
		&silent,
		"silent",
		"s",
		false,
		`do not write any log output`,
	)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	initRunCmd(rootCmd)
	initStatusCmd(rootCmd)
	initConfigCmd(rootCmd)
	initApplyCmd(rootCmd)
	initRemoveCmd(rootCmd)
	initHostnameCmd(rootCmd)
	initReloadCmd(rootCmd)
	return rootCmd
}

// readConfigFile reads the config file given by --config, or the first one
// found in the default locations. It reports whether a file was read.
func readConfigFile() bool {
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	err := v.ReadInConfig()
	switch {
	case err == nil:
		defaultConfigFile = v.ConfigFileUsed()
		mainLog.Load().Info().Msgf("loading config file from: %s", defaultConfigFile)
		return true
	case errors.As(err, &viper.ConfigFileNotFoundError{}):
		mainLog.Load().Info().Msg("no config file found, using defaults")
		return false
	case errors.As(err, &viper.ConfigParseError{}):
		if de := decoderErrorFromTomlFile(v.ConfigFileUsed()); de != nil {
			row, col := de.Position()
			mainLog.Load().Fatal().Msgf("failed to decode config file at line: %d, column: %d, error: %v", row, col, err)
		}
	}
	mainLog.Load().Fatal().Msgf("failed to read config file: %v", err)
	return false
}

// readConfig loads the config into cfg and validates it.
func readConfig() {
	readConfigFile()
	if err := v.Unmarshal(&cfg); err != nil {
		mainLog.Load().Fatal().Msgf("failed to unmarshal config: %v", err)
	}
	if err := validateConfig(&cfg); err != nil {
		mainLog.Load().Fatal().Msgf("invalid config: %v", err)
	}
}

// loadConfigFile reads the config file at path using a fresh viper instance.
// An empty path reads the default config locations.
func loadConfigFile(path string) (*dnsmgr.Config, error) {
	nv := viper.NewWithOptions(viper.KeyDelimiter("::"))
	dnsmgr.InitConfig(nv, "dnsmgr")
	if path != "" {
		nv.SetConfigFile(path)
	}
	if err := nv.ReadInConfig(); err != nil && !errors.As(err, &viper.ConfigFileNotFoundError{}) {
		return nil, fmt.Errorf("could not read config: %w", err)
	}
	newCfg := &dnsmgr.Config{}
	if err := nv.Unmarshal(newCfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}
	if err := validateConfig(newCfg); err != nil {
		return nil, err
	}
	return newCfg, nil
}

// writeConfigFile encodes c as TOML to path.
func writeConfigFile(c *dnsmgr.Config, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(0o644))
	if err != nil {
		return err
	}
	defer f.Close()
	enc := toml.NewEncoder(f).SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return f.Close()
}

// decoderErrorFromTomlFile parses the invalid toml file, returning the details decoder error.
func decoderErrorFromTomlFile(cf string) *toml.DecodeError {
	if f, _ := os.Open(cf); f != nil {
		defer f.Close()
		var i any
		var de *toml.DecodeError
		if err := toml.NewDecoder(f).Decode(&i); err != nil && errors.As(err, &de) {
			return de
		}
	}
	return nil
}

func validateConfig(cfg *dnsmgr.Config) error {
	if err := dnsmgr.ValidateConfig(validator.New(), cfg); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				mainLog.Load().Error().Msgf("invalid config: %s: %s", fe.Namespace(), fieldErrorMsg(fe))
			}
		}
		return err
	}
	return nil
}

// NOTE: Add more case here once new validation tag is used in dnsmgr.Config struct.
func fieldErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("must be greater than: %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to: %s", fe.Param())
	case "ip":
		return fmt.Sprintf("invalid IP format: %v", fe.Value())
	case "hostname_port":
		return fmt.Sprintf("invalid listener address, want host:port: %v", fe.Value())
	case "default_domain":
		return fmt.Sprintf("missing %q domain", dnsmgr.GlobalDomainDefault)
	}
	if fe.Kind() == reflect.Map {
		return fmt.Sprintf("invalid value: %v", fe.Value())
	}
	return ""
}
