package cli

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

const secretKeyVar = "SECRET_KEY"

// loadEnv applies path to the process environment. A missing file is not an error.
func loadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// ensureSecretKey makes sure path defines SECRET_KEY, keeping every other
// entry. It reports whether a key was generated.
func ensureSecretKey(path string) (bool, error) {
	env := map[string]string{}
	if _, err := os.Stat(path); err == nil {
		env, err = godotenv.Read(path)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}

	if env[secretKeyVar] != "" {
		return false, nil
	}

	key, err := generateSecret()
	if err != nil {
		return false, err
	}
	env[secretKeyVar] = key
	if err := godotenv.Write(env, path); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
