package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const envPrefix = "RISKGATE_"

// LoadWithEnv loads path (or the defaults when path is empty), then applies
// overrides from the environment and an optional .env file.
func LoadWithEnv(path string) (Root, error) {
	_ = godotenv.Load()

	var (
		c   Root
		err error
	)
	if path == "" {
		c = Default()
	} else if c, err = read(path); err != nil {
		return c, err
	}
	if err := applyEnv(&c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func applyEnv(c *Root) error {
	if val := os.Getenv(envPrefix + "LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv(envPrefix + "LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
	if val := os.Getenv(envPrefix + "TRACING_ENABLED"); val != "" {
		on, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%w: %sTRACING_ENABLED=%q", ErrInvalid, envPrefix, val)
		}
		c.Tracing.Enabled = on
	}
	if val := os.Getenv(envPrefix + "INITIAL_EQUITY"); val != "" {
		eq, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("%w: %sINITIAL_EQUITY=%q", ErrInvalid, envPrefix, val)
		}
		c.Drawdown.InitialEquity = eq
	}
	return nil
}
