package config

import (
	"errors"
	"os"

	"github.com/subosito/gotenv"
)

// loadDotEnv exports KEY=VALUE pairs from a dotenv file into the process
// environment. A missing file is not an error and variables that are already
// set are never overwritten.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return gotenv.Load(path)
}
