package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/go-medscan-client/internal/utils"
	"gopkg.in/yaml.v3"
)

// File mirrors the optional YAML config file. Zero values fall through to the environment.
type File struct {
	AppName        string `yaml:"app_name"`
	BaseURL        string `yaml:"base_url"`
	Env            string `yaml:"env"`
	LogLevel       string `yaml:"log_level"`
	DataFolder     string `yaml:"data_folder"`
	SessionBackend string `yaml:"session_backend"`
	Client         struct {
		RequestTimeout         time.Duration `yaml:"request_timeout"`
		SuggestionQuietPeriod  time.Duration `yaml:"suggestion_quiet_period"`
		MinSuggestionLength    int           `yaml:"min_suggestion_length"`
		DetailFetchConcurrency int           `yaml:"detail_fetch_concurrency"`
	} `yaml:"client"`
}

func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[LoadFile] read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("[LoadFile] parse %s: %w", path, err)
	}

	if f.Client.RequestTimeout < 0 || f.Client.SuggestionQuietPeriod < 0 ||
		f.Client.MinSuggestionLength < 0 || f.Client.DetailFetchConcurrency < 0 {
		return nil, fmt.Errorf("[LoadFile] client settings must not be negative")
	}

	switch f.SessionBackend {
	case "", SessionBackendFile, SessionBackendSQLite:
	default:
		return nil, fmt.Errorf("[LoadFile] unknown session_backend %q", f.SessionBackend)
	}
	return &f, nil
}

type fileConfig struct {
	base mainConfig
	file *File
}

var _ Config = fileConfig{}

func (c fileConfig) GetAppName() string {
	return utils.Coalesce(c.file.AppName, c.base.GetAppName())
}

func (c fileConfig) GetBaseURL() string {
	if c.file.BaseURL != "" {
		return strings.TrimRight(c.file.BaseURL, "/")
	}
	return c.base.GetBaseURL()
}

func (c fileConfig) GetEnv() string {
	return utils.Coalesce(c.file.Env, c.base.GetEnv())
}

func (c fileConfig) GetLogLevel() string {
	return utils.Coalesce(c.file.LogLevel, c.base.GetLogLevel())
}

func (c fileConfig) GetDataFolder() string {
	return utils.Coalesce(c.file.DataFolder, c.base.GetDataFolder())
}

func (c fileConfig) GetSessionBackend() string {
	return utils.Coalesce(c.file.SessionBackend, c.base.GetSessionBackend())
}

func (c fileConfig) GetRequestTimeout() time.Duration {
	return utils.Coalesce(c.file.Client.RequestTimeout, c.base.GetRequestTimeout())
}

func (c fileConfig) GetSuggestionQuietPeriod() time.Duration {
	return utils.Coalesce(c.file.Client.SuggestionQuietPeriod, c.base.GetSuggestionQuietPeriod())
}

func (c fileConfig) GetMinSuggestionLength() int {
	return utils.Coalesce(c.file.Client.MinSuggestionLength, c.base.GetMinSuggestionLength())
}

func (c fileConfig) GetDetailFetchConcurrency() int {
	return utils.Coalesce(c.file.Client.DetailFetchConcurrency, c.base.GetDetailFetchConcurrency())
}
