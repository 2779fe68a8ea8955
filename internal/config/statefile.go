package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxd/internal/state"
	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for state files that are neither YAML
// nor TOML.
var ErrUnsupportedFormat = errors.New("unsupported state file format")

// debounce collapses the burst of events editors produce on save.
const debounce = 100 * time.Millisecond

// StateFile persists the runtime state as YAML or TOML, chosen by the
// file's extension.
type StateFile struct {
	path   string
	format string

	mu          sync.Mutex
	lastWritten []byte
}

// NewStateFile returns a state file at path. The path is not touched until
// Load or Save.
func NewStateFile(path string) (*StateFile, error) {
	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	case ".toml":
		format = "toml"
	default:
		return nil, fmt.Errorf("%w: %q (use .yaml, .yml or .toml)", ErrUnsupportedFormat, filepath.Ext(path))
	}
	return &StateFile{path: path, format: format}, nil
}

// Path returns the file's location.
func (f *StateFile) Path() string {
	return f.path
}

// Load reads the file over base. Fields that fail validation are skipped
// and reported in the returned slice so one stale cue path does not throw
// away the rest. A missing file returns base unchanged.
func (f *StateFile) Load(base state.Snapshot) (state.Snapshot, []error, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return base, nil, nil
	}
	if err != nil {
		return base, nil, fmt.Errorf("could not read state file: %w", err)
	}
	return f.apply(base, data)
}

func (f *StateFile) apply(base state.Snapshot, data []byte) (state.Snapshot, []error, error) {
	fields, err := f.decode(data)
	if err != nil {
		return base, nil, err
	}

	st := state.New(base)
	var skipped []error
	for _, name := range sortedFields(fields) {
		if _, err := st.Apply(state.Update{name: fields[name]}); err != nil {
			skipped = append(skipped, err)
		}
	}
	return st.Snapshot(), skipped, nil
}

func (f *StateFile) decode(data []byte) (map[string]any, error) {
	fields := make(map[string]any)
	var err error
	switch f.format {
	case "yaml":
		err = yaml.Unmarshal(data, &fields)
	case "toml":
		err = toml.Unmarshal(data, &fields)
	}
	if err != nil {
		return nil, fmt.Errorf("could not parse state file %s: %w", f.path, err)
	}
	return fields, nil
}

// Save writes snap atomically. Speaking is never stored.
func (f *StateFile) Save(snap state.Snapshot) error {
	var data []byte
	var err error
	switch f.format {
	case "yaml":
		data, err = yaml.Marshal(snap)
	case "toml":
		data, err = toml.Marshal(snap)
	}
	if err != nil {
		return fmt.Errorf("could not encode state: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("could not create state directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("could not write state file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("could not write state file: %w", err)
	}
	f.lastWritten = data
	return nil
}

// Watch calls onChange with the file's fields whenever someone other than
// Save changes it. It blocks until ctx is done.
func (f *StateFile) Watch(ctx context.Context, logger *log.Logger, onChange func(state.Update)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory; editors and Save replace the file by rename.
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create state directory: %w", err)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("could not watch %s: %w", dir, err)
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			fields, ok := f.externalChange(logger)
			if ok {
				onChange(fields)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("state file watcher error", "err", err)
		}
	}
}

// externalChange reads the file and reports its fields unless the content
// is what Save last wrote.
func (f *StateFile) externalChange(logger *log.Logger) (state.Update, bool) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("could not read state file", "path", f.path, "err", err)
		}
		return nil, false
	}

	f.mu.Lock()
	own := bytes.Equal(data, f.lastWritten)
	f.mu.Unlock()
	if own {
		return nil, false
	}

	fields, err := f.decode(data)
	if err != nil {
		logger.Warn("ignoring unreadable state file", "err", err)
		return nil, false
	}
	delete(fields, "speaking")
	logger.Debug("state file changed", "path", f.path, "fields", len(fields))
	return state.Update(fields), true
}

func sortedFields(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
