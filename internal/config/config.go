package config

type Config interface {
	EnvConfig
	ClientConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Client
	Storage
}

// New returns configuration backed by environment variables only.
func New() Config {
	return mainConfig{}
}

// NewFromFile layers a YAML file over the environment defaults. An empty path
// behaves like New.
func NewFromFile(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}
	fc, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return fileConfig{base: mainConfig{}, file: fc}, nil
}
