package vault

import (
	"errors"
	"fmt"

	"github.com/hashicorp/vault/api"
)

var ErrSecretNotFound = errors.New("secret not found")

// SecretReader is the subset of the Vault logical client used here.
type SecretReader interface {
	Read(path string) (*api.Secret, error)
}

type SecretManager struct {
	logical SecretReader
}

func NewSecretManager(address, token string) (*SecretManager, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(token)

	return &SecretManager{logical: client.Logical()}, nil
}

// NewSecretManagerWithReader wraps an existing reader, usually a test fake.
func NewSecretManagerWithReader(r SecretReader) *SecretManager {
	return &SecretManager{logical: r}
}

// GeminiAPIKey reads the Gemini API key from a KV v2 secret at path.
func (sm *SecretManager) GeminiAPIKey(path, key string) (string, error) {
	return sm.readString(path, key)
}

// readString reads one string field of a KV v2 secret. KV v2 nests the
// payload under "data".
func (sm *SecretManager) readString(path, key string) (string, error) {
	secret, err := sm.logical.Read(path)
	if err != nil {
		return "", fmt.Errorf("vault read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("%w: %s has no kv v2 data", ErrSecretNotFound, path)
	}

	value, ok := data[key].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s#%s", ErrSecretNotFound, path, key)
	}
	return value, nil
}
