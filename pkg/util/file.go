package util

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// LoadFile loads the contents from the specified path
// and returns them as a byte slice.
// If the path is empty, it returns an error.
// If the file cannot be read, it returns an error.
func LoadFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("file path is empty")
	}
	p, err := ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand path: %w", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// LoadFileAllowMissing behaves like LoadFile, except that an empty path or a
// missing file returns empty contents and no error.
func LoadFileAllowMissing(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	p, err := ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand path: %w", err)
	}
	_, err = os.Stat(p)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if err != nil && os.IsNotExist(err) {
		return nil, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// ExpandPath ensures that a leading "~/" is expanded to the user's home.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return strings.Replace(path, "~", home, 1), nil
	}
	return path, nil
}
