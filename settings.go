package compactor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Settings is the persisted, user-adjustable subset of Config. Opt-outs made
// through the interactive prompt ("disable", "less frequent") are written
// back through a SettingsStore so future sessions see them.
type Settings struct {
	TriggerTokens            int     `yaml:"compression_trigger_tokens,omitempty"`
	TriggerUtilization       float64 `yaml:"compression_trigger_utilization,omitempty"`
	MinMessagesSinceCompress int     `yaml:"compression_min_messages_since_last_compress,omitempty"`
	MinTimeBetweenPrompts    int     `yaml:"compression_min_time_between_prompts,omitempty"`
	FrequencyMultiplier      float64 `yaml:"compression_frequency_multiplier,omitempty"`
	Interactive              *bool   `yaml:"compression_interactive,omitempty"`
	PromptTimeoutSeconds     int     `yaml:"compression_prompt_timeout_seconds,omitempty"`
	Threshold                float64 `yaml:"compression_threshold,omitempty"`
}

// SettingsStore persists engine settings across sessions. Implementations
// must tolerate concurrent Save calls from a single engine.
type SettingsStore interface {
	// Load reads the persisted settings. A missing backing file is not an
	// error; it returns an empty Settings.
	Load() (*Settings, error)

	// Save writes the settings.
	Save(settings *Settings) error
}

// Apply overlays non-zero persisted settings onto the configuration.
func (s *Settings) Apply(cfg *Config) {
	if s == nil {
		return
	}
	if s.TriggerTokens > 0 {
		cfg.TriggerTokens = s.TriggerTokens
	}
	if s.TriggerUtilization > 0 {
		cfg.TriggerUtilization = s.TriggerUtilization
	}
	if s.MinMessagesSinceCompress > 0 {
		cfg.MinMessagesSinceCompress = s.MinMessagesSinceCompress
	}
	if s.MinTimeBetweenPrompts > 0 {
		cfg.MinTimeBetweenPrompts = time.Duration(s.MinTimeBetweenPrompts) * time.Second
	}
	if s.FrequencyMultiplier > 0 {
		cfg.FrequencyMultiplier = s.FrequencyMultiplier
	}
	if s.Interactive != nil {
		cfg.Interactive = *s.Interactive
	}
	if s.PromptTimeoutSeconds > 0 {
		cfg.PromptTimeout = time.Duration(s.PromptTimeoutSeconds) * time.Second
	}
	if s.Threshold > 0 {
		cfg.Threshold = s.Threshold
	}
}

// snapshotSettings extracts the persistable subset of the configuration.
func snapshotSettings(cfg *Config) *Settings {
	interactive := cfg.Interactive
	return &Settings{
		TriggerTokens:            cfg.TriggerTokens,
		TriggerUtilization:       cfg.TriggerUtilization,
		MinMessagesSinceCompress: cfg.MinMessagesSinceCompress,
		MinTimeBetweenPrompts:    int(cfg.MinTimeBetweenPrompts / time.Second),
		FrequencyMultiplier:      cfg.FrequencyMultiplier,
		Interactive:              &interactive,
		PromptTimeoutSeconds:     int(cfg.PromptTimeout / time.Second),
		Threshold:                cfg.Threshold,
	}
}

// FileSettingsStore persists settings to a YAML file. It can additionally
// watch the file for external edits and invoke a reload callback.
type FileSettingsStore struct {
	path string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileSettingsStore creates a store backed by the YAML file at path.
func NewFileSettingsStore(path string) *FileSettingsStore {
	return &FileSettingsStore{path: path}
}

// Load reads settings from the YAML file. A missing file yields empty settings.
func (s *FileSettingsStore) Load() (*Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrSettingsStore, err)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettingsStore, err)
	}
	return &settings, nil
}

// Save writes settings to the YAML file, creating the directory if needed.
func (s *FileSettingsStore) Save(settings *Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSettingsStore, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrSettingsStore, err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrSettingsStore, err)
	}
	return nil
}

// Watch starts watching the settings file for external changes, invoking
// onChange with the freshly loaded settings after each write. Watching the
// parent directory rather than the file itself survives editors that delete
// and recreate on save.
func (s *FileSettingsStore) Watch(onChange func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSettingsStore, err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("%w: %v", ErrSettingsStore, err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})

	go s.watch(watcher, s.done, onChange)
	return nil
}

func (s *FileSettingsStore) watch(watcher *fsnotify.Watcher, done chan struct{}, onChange func(*Settings)) {
	// Debounce rapid successive writes into one reload.
	var debounce *time.Timer
	const debounceDelay = 100 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != s.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, func() {
					settings, err := s.Load()
					if err != nil {
						return
					}
					onChange(settings)
				})
			}
		case <-watcher.Errors:
			// Keep watching; a transient watch error is not fatal.
		case <-done:
			return
		}
	}
}

// Close stops watching, if a watch was started.
func (s *FileSettingsStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher == nil {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	s.watcher = nil
	return err
}
