// Package fileman integrates the tool into desktop file managers by
// installing "send to Telegram" shortcut files for the managers present on
// the system.
package fileman

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"telegram-send/internal/logger"
)

const desktopEntry = `[%s]
Version=1.0
Type=Application
Encoding=UTF-8
Exec=telegram-send --file %%F
Icon=telegram
Name=%s
Selection=any
Extensions=nodirs;
Quote=double
`

const nautilusScript = `#!/bin/sh
echo "$NAUTILUS_SCRIPT_SELECTED_FILE_PATHS" | sed 's/ /\\ /g' | xargs telegram-send -f
`

type fileManager struct {
	command string
	dir     string
	section string
	label   string
	ext     string
}

var fileManagers = []fileManager{
	{"thunar", "~/.local/share/Thunar/sendto", "Desktop Entry", "Telegram", ".desktop"},
	{"nemo", "~/.local/share/nemo/actions", "Nemo Action", "Send to Telegram", ".nemo_action"},
	{"nautilus", "~/.local/share/nautilus/scripts", "script", "", ""},
}

const shortcutName = "telegram-send"

// Install writes a shortcut file for every file manager found on PATH.
func Install() error {
	return install(fileManagers, expandHome)
}

// Remove deletes any previously installed shortcut files.
func Remove() error {
	return remove(fileManagers, expandHome)
}

func install(managers []fileManager, expand func(string) string) error {
	for _, fm := range managers {
		if _, err := exec.LookPath(fm.command); err != nil {
			continue
		}

		dir := expand(fm.dir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}

		path := filepath.Join(dir, shortcutName+fm.ext)
		contents := fmt.Sprintf(desktopEntry, fm.section, fm.label)
		mode := os.FileMode(0o644)
		if fm.section == "script" {
			contents = nautilusScript
			mode = 0o755
		}
		if err := os.WriteFile(path, []byte(contents), mode); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		logger.L().Debugf("Installed %s integration at %s", fm.command, path)
	}
	return nil
}

func remove(managers []fileManager, expand func(string) string) error {
	for _, fm := range managers {
		path := filepath.Join(expand(fm.dir), shortcutName+fm.ext)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func expandHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[len("~/"):])
}
