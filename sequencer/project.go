package sequencer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const timestampLayout = "2006-01-02_15-04-05"

// SaveInfo represents a saved snapshot file (for listing)
type SaveInfo struct {
	Filename  string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

// ProjectsDir returns where snapshots are kept
func ProjectsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-nonagon", "projects"), nil
}

// SessionPath is the file the last session is autosaved to
func SessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-nonagon", "session.json"), nil
}

// SaveState writes st to path, creating the directory
func SaveState(path string, st State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// LoadState reads a state file. A missing file is reported with an error
// satisfying errors.Is(err, os.ErrNotExist).
func LoadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, fmt.Errorf("load state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("load state %s: %w", filepath.Base(path), err)
	}
	return st, nil
}

// SaveSnapshot writes st into dir as a timestamped file, with name appended
// when given. It returns the filename.
func SaveSnapshot(dir, name string, st State, now time.Time) (string, error) {
	filename := now.Format(timestampLayout)
	if name = sanitizeFilename(name); name != "" {
		filename += "_" + name
	}
	filename += ".json"
	if err := SaveState(filepath.Join(dir, filename), st); err != nil {
		return "", err
	}
	return filename, nil
}

// ListSaves returns the timestamped snapshots in dir, newest first
func ListSaves(dir string) ([]SaveInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SaveInfo{}, nil
		}
		return nil, err
	}

	var saves []SaveInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		// 2024-01-15_14-30-00.json or 2024-01-15_14-30-00_name.json
		base := strings.TrimSuffix(name, ".json")
		if len(base) < len(timestampLayout) {
			continue
		}
		ts, err := time.Parse(timestampLayout, base[:len(timestampLayout)])
		if err != nil {
			continue
		}
		saveName := ""
		if rest := base[len(timestampLayout):]; strings.HasPrefix(rest, "_") {
			saveName = rest[1:]
		}

		saves = append(saves, SaveInfo{Filename: name, Name: saveName, Timestamp: ts})
	}

	sort.Slice(saves, func(i, j int) bool {
		return saves[i].Timestamp.After(saves[j].Timestamp)
	})
	return saves, nil
}

// LoadLatest loads the newest snapshot in dir
func LoadLatest(dir string) (State, error) {
	saves, err := ListSaves(dir)
	if err != nil {
		return State{}, err
	}
	if len(saves) == 0 {
		return State{}, fmt.Errorf("no saves found in %s", dir)
	}
	return LoadState(filepath.Join(dir, saves[0].Filename))
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	r := strings.NewReplacer(
		" ", "-", "/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	)
	return r.Replace(strings.TrimSpace(name))
}
