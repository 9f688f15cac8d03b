package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/store"
)

// KeySource resolves the API key for a provider.
type KeySource interface {
	GetAPIKey(ctx context.Context, provider string, fallback string) string
}

type EncryptedKeyStore interface {
	GetProviderKey(ctx context.Context, provider string) (*store.ProviderKey, error)
}

var providerEnvKeys = map[string][]string{
	"zhipu":           {"ZHIPU_API_KEY", "ZHIPUAI_API_KEY"},
	"openai":          {"OPENAI_API_KEY"},
	"deepseek":        {"DEEPSEEK_API_KEY"},
	"deepseek-aliyun": {"DASHSCOPE_API_KEY"},
	"qwen":            {"DASHSCOPE_API_KEY"},
	"gemini":          {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"anthropic":       {"ANTHROPIC_API_KEY"},
	"grok":            {"XAI_API_KEY"},
	"volcengine":      {"ARK_API_KEY"},
	"siliconflow":     {"SILICONFLOW_API_KEY"},
	"ollama":          {"OLLAMA_API_KEY"},
	"tavily":          {"TAVILY_API_KEY"},
}

// EnvKeys lists the environment variables consulted for a provider.
func EnvKeys(provider string) []string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if keys, ok := providerEnvKeys[provider]; ok {
		return keys
	}
	generic := strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(provider)) + "_API_KEY"
	return []string{generic}
}

type keysFile struct {
	APIKeys map[string]string `yaml:"api_keys"`
}

// LoadKeysFile reads provider keys from a YAML file. A missing file yields no keys.
func LoadKeysFile(path string) (map[string]string, error) {
	keys := map[string]string{}
	if strings.TrimSpace(path) == "" {
		return keys, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return keys, nil
		}
		return nil, err
	}
	var parsed keysFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse keys file %s: %w", path, err)
	}
	for provider, key := range parsed.APIKeys {
		provider = strings.ToLower(strings.TrimSpace(provider))
		key = strings.TrimSpace(key)
		if provider != "" && key != "" {
			keys[provider] = key
		}
	}
	return keys, nil
}

// Keyring resolves keys from the environment, then the keys file, then the
// encrypted store.
type Keyring struct {
	file   map[string]string
	store  EncryptedKeyStore
	cipher *Cipher
}

func NewKeyring(file map[string]string, st EncryptedKeyStore, c *Cipher) *Keyring {
	if file == nil {
		file = map[string]string{}
	}
	return &Keyring{file: file, store: st, cipher: c}
}

func (k *Keyring) GetAPIKey(ctx context.Context, provider string, fallback string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	for _, env := range EnvKeys(provider) {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			return value
		}
	}
	if value := k.file[provider]; value != "" {
		return value
	}
	if value := k.stored(ctx, provider); value != "" {
		return value
	}
	return fallback
}

func (k *Keyring) stored(ctx context.Context, provider string) string {
	if k.store == nil || k.cipher == nil {
		return ""
	}
	record, err := k.store.GetProviderKey(ctx, provider)
	if err != nil {
		log.Printf("[livesearch] provider key lookup failed for %s: %v", provider, err)
		return ""
	}
	if record == nil || record.APIKeyEnc == "" {
		return ""
	}
	plain, err := k.cipher.Decrypt(record.APIKeyEnc)
	if err != nil {
		log.Printf("[livesearch] provider key for %s could not be decrypted: %v", provider, err)
		return ""
	}
	return plain
}
