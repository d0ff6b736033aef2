package providers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"countly/internal/structures"
)

// NewConfigProvider loads an SDK config from a yaml file, applies env
// overrides and validates the result. Host applications that build the
// config in code go through ValidateConfig instead.
func NewConfigProvider(configPath string) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(configPath)
	v := viper.New()
	v.AddConfigPath(filepath.Dir(configPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")

	v.BindEnv("connection.serverUrl", "COUNTLY_SERVER_URL")
	v.BindEnv("connection.appKey", "COUNTLY_APP_KEY")
	v.BindEnv("logger.level", "COUNTLY_LOG_LEVEL")
	v.BindEnv("upload.interval", "COUNTLY_UPLOAD_INTERVAL")
	v.BindEnv("upload.sessionInterval", "COUNTLY_SESSION_INTERVAL")
	v.BindEnv("persistence.dir", "COUNTLY_STORAGE_DIR")

	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	conf.Path = configPath
	if err = ValidateConfig(&conf); err != nil {
		return nil, err
	}

	return &conf, nil
}

// ValidateConfig applies defaults and runs the struct validators. It is
// the single gate for both file-based and in-code configs; failures
// here are the only loud initialization errors the SDK produces.
func ValidateConfig(conf *structures.Config) error {
	if conf == nil {
		return fmt.Errorf("config cannot be nil")
	}
	conf.ApplyDefaults()

	if conf.Device.IdMethod == "developer" && conf.Device.DeveloperId == "" {
		return fmt.Errorf("device id method 'developer' requires a non-empty developerId")
	}

	cnfValidator := NewCnfValidator(conf)
	if err := cnfValidator.Validate(); err != nil {
		return err
	}

	conf.AppName = "countly-sdk-go"
	// the collector expects no trailing slash before the /i path
	conf.Connection.ServerURL = strings.TrimSuffix(conf.Connection.ServerURL, "/")
	return nil
}
