package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an
// error unless required.
func LoadEnv(path string, required bool) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env %s: %w", path, err)
	}
	return nil
}

// expandEnv replaces ${NAME} and $NAME with environment values. Unset
// variables expand to "". "$$" yields a literal "$".
func expandEnv(b []byte) []byte {
	s := strings.ReplaceAll(string(b), "$$", "\x00")
	s = os.Expand(s, func(name string) string { return os.Getenv(name) })
	return []byte(strings.ReplaceAll(s, "\x00", "$"))
}
