package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/JRChen0927/SimuAgent/pkg/apperror"
	"github.com/JRChen0927/SimuAgent/pkg/logger"
)

// Model is one entry in a provider's model list.
type Model struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Store holds the operator-editable registry backed by a JSON file on disk.
// The document is kept as a free-form map so sections beyond models and
// storage survive a load/update round trip untouched.
type Store struct {
	path string

	mu   sync.RWMutex
	data map[string]interface{}
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the registry from disk. A missing or unreadable file is not an
// error: the store falls back to the default document so the service can
// still boot.
func (s *Store) Load() error {
	data, err := loadDocument(s.path)
	if err != nil {
		logger.Warn("Failed to load registry, using defaults",
			zap.String("path", s.path),
			zap.Error(err),
		)
		data = defaultDocument()
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()

	logger.Info("Registry loaded", zap.String("path", s.path))
	return nil
}

// Reload re-reads the file, discarding in-memory state.
func (s *Store) Reload() error {
	return s.Load()
}

func loadDocument(path string) (map[string]interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("registry file does not exist: %s", path)
		}
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}

	return data, nil
}

func defaultDocument() map[string]interface{} {
	return map[string]interface{}{
		"models": map[string]interface{}{
			"default_provider": "ollama",
			"providers": map[string]interface{}{
				"ollama": map[string]interface{}{
					"base_url": "http://localhost:11434",
					"models":   []interface{}{},
				},
			},
		},
		"storage": map[string]interface{}{
			"upload_dir":        "./data/uploads",
			"processed_dir":     "./data/processed",
			"supported_formats": []interface{}{"txt", "json", "pdf", "csv", "md"},
		},
	}
}

// Document returns a deep copy of the full registry document.
func (s *Store) Document() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepCopy(s.data)
}

// Section returns a deep copy of one top-level section, or an empty map when
// the section is absent.
func (s *Store) Section(name string) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	section, ok := s.data[name].(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return deepCopy(section)
}

func (s *Store) DefaultProvider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	models, _ := s.data["models"].(map[string]interface{})
	provider, _ := models["default_provider"].(string)
	if provider == "" {
		return "ollama"
	}
	return provider
}

// Providers returns the provider names in sorted order.
func (s *Store) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.providerMap()))
	for name := range s.providerMap() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderConfig returns a deep copy of the providers section.
func (s *Store) ProviderConfig() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepCopy(s.providerMap())
}

// providerMap must be called with the lock held.
func (s *Store) providerMap() map[string]interface{} {
	models, _ := s.data["models"].(map[string]interface{})
	providers, _ := models["providers"].(map[string]interface{})
	if providers == nil {
		return map[string]interface{}{}
	}
	return providers
}

// Models returns the full model list for a provider, enabled or not. An
// unknown provider yields an empty list.
func (s *Store) Models(provider string) []Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelList(provider)
}

// EnabledModels returns only the models an operator has switched on.
func (s *Store) EnabledModels(provider string) []Model {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enabled := []Model{}
	for _, m := range s.modelList(provider) {
		if m.Enabled {
			enabled = append(enabled, m)
		}
	}
	return enabled
}

// modelList must be called with the lock held.
func (s *Store) modelList(provider string) []Model {
	providerConfig, _ := s.providerMap()[provider].(map[string]interface{})
	rawModels, _ := providerConfig["models"].([]interface{})

	models := []Model{}
	for _, raw := range rawModels {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		var m Model
		m.Name, _ = entry["name"].(string)
		m.DisplayName, _ = entry["display_name"].(string)
		m.Description, _ = entry["description"].(string)
		m.Enabled, _ = entry["enabled"].(bool)
		models = append(models, m)
	}
	return models
}

// ToggleModel flips the enabled flag for one model and persists the document.
func (s *Store) ToggleModel(provider, modelName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	providerConfig, ok := s.providerMap()[provider].(map[string]interface{})
	if !ok {
		return apperror.NotFound("Provider '%s' not found", provider)
	}

	rawModels, _ := providerConfig["models"].([]interface{})
	found := false
	for _, raw := range rawModels {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if name, _ := entry["name"].(string); name == modelName {
			enabled, _ := entry["enabled"].(bool)
			entry["enabled"] = !enabled
			found = true
			break
		}
	}

	if !found {
		return apperror.NotFound("Model '%s' not found in provider '%s'", modelName, provider)
	}

	if err := s.persist(); err != nil {
		return err
	}

	logger.Info("Model toggled",
		zap.String("provider", provider),
		zap.String("model", modelName),
	)
	return nil
}

// Update merges the given top-level sections over the current document and
// persists. The merge is shallow: each supplied section replaces the stored
// one wholesale.
func (s *Store) Update(sections map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range sections {
		s.data[key] = value
	}

	return s.persist()
}

// persist must be called with the write lock held.
func (s *Store) persist() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}

	return nil
}

// StorageSettings returns the storage section of the document.
func (s *Store) StorageSettings() map[string]interface{} {
	return s.Section("storage")
}

// SupportedFormats returns the upload extensions the registry allows.
func (s *Store) SupportedFormats() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	storage, _ := s.data["storage"].(map[string]interface{})
	rawFormats, _ := storage["supported_formats"].([]interface{})
	if rawFormats == nil {
		return []string{"txt", "json", "pdf"}
	}

	formats := make([]string, 0, len(rawFormats))
	for _, raw := range rawFormats {
		if format, ok := raw.(string); ok {
			formats = append(formats, format)
		}
	}
	return formats
}

func deepCopy(src map[string]interface{}) map[string]interface{} {
	raw, err := json.Marshal(src)
	if err != nil {
		return map[string]interface{}{}
	}
	var dst map[string]interface{}
	if err := json.Unmarshal(raw, &dst); err != nil {
		return map[string]interface{}{}
	}
	return dst
}
