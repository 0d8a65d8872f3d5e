package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// VaultConfig points at one KV v2 secret whose fields are the keys.
type VaultConfig struct {
	Address    string
	Token      string
	MountPath  string // default "secret"
	SecretPath string // default "vendortwin"
	Timeout    time.Duration
	// CacheTTL is how long a fetched secret serves lookups (default 1m).
	// Startup resolves several keys from the same document.
	CacheTTL time.Duration
}

type VaultProvider struct {
	endpoint string
	token    string
	path     string
	ttl      time.Duration
	client   *http.Client

	mu      sync.Mutex
	fields  map[string]any
	fetched time.Time
}

// NewVaultProvider checks that an address and a token are set.
func NewVaultProvider(cfg *VaultConfig) (*VaultProvider, error) {
	switch {
	case cfg == nil || cfg.Address == "":
		return nil, errors.New("vault address required")
	case cfg.Token == "":
		return nil, errors.New("vault token required")
	}
	mount := orDefault(cfg.MountPath, "secret")
	path := orDefault(cfg.SecretPath, "vendortwin")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	endpoint, err := url.JoinPath(strings.TrimSuffix(cfg.Address, "/"), "v1", mount, "data", path)
	if err != nil {
		return nil, fmt.Errorf("vault address: %w", err)
	}
	return &VaultProvider{
		endpoint: endpoint,
		token:    cfg.Token,
		path:     path,
		ttl:      ttl,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func (p *VaultProvider) Name() string { return "vault" }

// Get looks key up in the cached secret, refreshing it once stale.
func (p *VaultProvider) Get(ctx context.Context, key Key) (string, error) {
	fields, err := p.secret(ctx)
	if err != nil {
		return "", err
	}
	val, ok := fields[string(key)]
	if !ok {
		return "", fmt.Errorf("%w: vault %s", ErrNotFound, key)
	}
	if s, ok := val.(string); ok {
		return s, nil
	}
	return fmt.Sprint(val), nil
}

func (p *VaultProvider) secret(ctx context.Context) (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fields != nil && time.Since(p.fetched) < p.ttl {
		return p.fields, nil
	}
	fields, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}
	p.fields, p.fetched = fields, time.Now()
	return fields, nil
}

func (p *VaultProvider) fetch(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Vault-Token", p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vault request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: vault path %s", ErrNotFound, p.path)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("vault returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var doc struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode vault response: %w", err)
	}
	if doc.Data.Data == nil {
		doc.Data.Data = map[string]any{}
	}
	return doc.Data.Data, nil
}
