package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileConfig names a local secrets file for development. Files ending in
// .env are read as dotenv; anything else as YAML, which covers JSON too.
type FileConfig struct {
	Path string
}

type FileProvider struct {
	path string

	mu   sync.RWMutex
	data map[string]string
}

// NewFileProvider reads the file once. A missing file is an error.
func NewFileProvider(cfg *FileConfig) (*FileProvider, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("secrets file path required")
	}
	p := &FileProvider{path: cfg.Path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Get(_ context.Context, key Key) (string, error) {
	p.mu.RLock()
	val, ok := p.data[string(key)]
	p.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: file %s", ErrNotFound, key)
	}
	return val, nil
}

// Reload replaces the cached values with the file's current contents.
func (p *FileProvider) Reload() error {
	data, err := readSecretsFile(p.path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.data = data
	p.mu.Unlock()
	return nil
}

func readSecretsFile(path string) (map[string]string, error) {
	if filepath.Ext(path) == ".env" {
		data, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("load secrets file: %w", err)
		}
		return data, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load secrets file: %w", err)
	}
	data := make(map[string]string)
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse secrets file %s: %w", path, err)
	}
	return data, nil
}
