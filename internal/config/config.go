package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/factorn/factord/pkg/chaincfg"
)

var (
	defaults = map[string]interface{}{
		"verbose":    false,
		"network":    "main",
		"rpc_listen": ":8332",
	}
)

func init() {
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

// Config is the resolved node configuration.
type Config struct {
	Network   string
	DataDir   string
	RPCListen string

	params *chaincfg.Params
}

// GetConfig loads the configuration from file, environment and bound flags.
func GetConfig() (*Config, error) {
	viper.SetConfigType("yaml")
	viper.SetConfigName("factord")
	viper.AddConfigPath("/etc/factord/")
	viper.AddConfigPath("$HOME/.factord")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("FACTORD")
	viper.AutomaticEnv()
	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error
			logrus.New().Warnf("no config found")
		} else {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	c := &Config{
		Network:   viper.GetString("network"),
		RPCListen: viper.GetString("rpc_listen"),
	}

	c.params = chaincfg.ParamsForNetwork(c.Network)
	if c.params == nil {
		return nil, errors.Errorf("unknown network %q", c.Network)
	}

	c.DataDir = viper.GetString("datadir")
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "resolving home dir")
		}
		c.DataDir = filepath.Join(home, ".factord")
	}
	if c.Network != "main" {
		c.DataDir = filepath.Join(c.DataDir, c.Network)
	}

	if viper.GetBool("verbose") {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.WithField("level", "debug").Debug("setting log level")
	}

	return c, nil
}

// Params returns the consensus parameters for the configured network.
func (c *Config) Params() *chaincfg.Params {
	return c.params
}
