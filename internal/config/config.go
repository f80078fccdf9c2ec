// Package config reads and writes the credentials file connecting the tool
// to a Telegram bot. The file is INI, one [telegram] section, and stays
// byte-compatible with configurations written by older installs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

const (
	section  = "telegram"
	fileName = "telegram-send.conf"

	// GlobalPath is the shared configuration for multi-user installs.
	// Callers pass it explicitly where needed; nothing in this package
	// reads it implicitly.
	GlobalPath = "/etc/telegram-send.conf"
)

// ErrPermission marks a configuration path that exists but cannot be
// touched by the current user, so callers can suggest an elevated re-run.
var ErrPermission = errors.New("permission denied")

// ConfigError means the configuration is absent or incomplete and the user
// should (re-)run the pairing flow.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

// Settings is the persistent pairing result.
//
// ChatID and ReplyToMessageID hold an int64 when the stored value is purely
// numeric, otherwise the original string (channel forms like "@name" or
// "-100…"). The Bot API accepts both representations.
type Settings struct {
	Token            string
	ChatID           any
	ReplyToMessageID any
}

// Load reads the settings stored at path.
func Load(path string) (*Settings, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, &ConfigError{msg: fmt.Sprintf("config not found at %s", path)}
	}

	sec, err := f.GetSection(section)
	if err != nil {
		return nil, &ConfigError{msg: fmt.Sprintf("config at %s has no [%s] section", path, section)}
	}

	var missing []string
	for _, key := range []string{"token", "chat_id"} {
		if !sec.HasKey(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &ConfigError{msg: "missing options in config: " + strings.Join(missing, ", ")}
	}

	settings := &Settings{
		Token:  sec.Key("token").String(),
		ChatID: parseID(sec.Key("chat_id").String()),
	}
	if sec.HasKey("reply_to_message_id") {
		settings.ReplyToMessageID = parseID(sec.Key("reply_to_message_id").String())
	}
	return settings, nil
}

// Save writes settings to path, creating parent directories as needed and
// overwriting any existing file.
func Save(path string, settings *Settings) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	f := ini.Empty()
	sec, err := f.NewSection(section)
	if err != nil {
		return err
	}
	if _, err := sec.NewKey("token", settings.Token); err != nil {
		return err
	}
	if _, err := sec.NewKey("chat_id", fmt.Sprint(settings.ChatID)); err != nil {
		return err
	}
	if settings.ReplyToMessageID != nil {
		if _, err := sec.NewKey("reply_to_message_id", fmt.Sprint(settings.ReplyToMessageID)); err != nil {
			return err
		}
	}

	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("failed to write config to %s: %w", path, err)
	}
	return nil
}

// Delete removes the configuration at path. A missing file is not an error.
// A permission failure is reported as ErrPermission so the caller can
// suggest re-running with elevated rights.
func Delete(path string) error {
	err := os.Remove(path)
	switch {
	case err == nil, errors.Is(err, fs.ErrNotExist):
		return nil
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: can't delete %s", ErrPermission, path)
	default:
		return err
	}
}

// DefaultPath returns the per-user configuration location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// ExpandUser replaces a leading "~" with the user's home directory.
func ExpandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

// parseID keeps the original's loose typing: purely numeric values become
// int64, everything else ("@channel", "-100…" forms) stays a string.
func parseID(s string) any {
	if s == "" {
		return s
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return s
	}
	return n
}
