package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/secrets"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/store"
)

const (
	searchKeyProvider = "tavily"
	keyTestTimeout    = 30 * time.Second
	keyTestMaxTokens  = 16
)

type keyResponse struct {
	Provider   string `json:"provider"`
	HasKey     bool   `json:"has_key"`
	APIKeyHint string `json:"api_key_hint,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

type listKeysResponse struct {
	Keys []keyResponse `json:"keys"`
}

type putKeyRequest struct {
	APIKey string `json:"api_key"`
}

type testKeyRequest struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url"`
}

type testKeyResponse struct {
	OK    bool   `json:"ok"`
	Model string `json:"model,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) knownKeyProvider(provider string) bool {
	if provider == searchKeyProvider {
		return true
	}
	_, ok := s.catalog.Provider(provider)
	return ok
}

func keyProvider(r *http.Request) string {
	return strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
}

func (s *Server) listKeys(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListProviderKeys(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	response := listKeysResponse{Keys: make([]keyResponse, 0, len(records))}
	for _, record := range records {
		entry := keyResponse{Provider: record.Provider, HasKey: record.APIKeyEnc != "", UpdatedAt: record.UpdatedAt}
		if s.cipher != nil && record.APIKeyEnc != "" {
			if plain, err := s.cipher.Decrypt(record.APIKeyEnc); err == nil {
				entry.APIKeyHint = secrets.Hint(plain)
			}
		}
		response.Keys = append(response.Keys, entry)
	}
	writeJSON(w, response)
}

func (s *Server) putKey(w http.ResponseWriter, r *http.Request) {
	provider := keyProvider(r)
	if !s.knownKeyProvider(provider) {
		http.Error(w, llm.ErrUnsupportedProvider{Provider: provider}.Error(), http.StatusNotFound)
		return
	}
	if s.cipher == nil {
		http.Error(w, "secrets key not configured", http.StatusServiceUnavailable)
		return
	}
	var req putKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		http.Error(w, "api_key required", http.StatusBadRequest)
		return
	}
	encrypted, err := s.cipher.Encrypt(apiKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	record := store.ProviderKey{Provider: provider, APIKeyEnc: encrypted, CreatedAt: now, UpdatedAt: now}
	if err := s.store.UpsertProviderKey(r.Context(), record); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, keyResponse{Provider: provider, HasKey: true, APIKeyHint: secrets.Hint(apiKey), UpdatedAt: now})
}

func (s *Server) deleteKey(w http.ResponseWriter, r *http.Request) {
	provider := keyProvider(r)
	if !s.knownKeyProvider(provider) {
		http.Error(w, llm.ErrUnsupportedProvider{Provider: provider}.Error(), http.StatusNotFound)
		return
	}
	if err := s.store.DeleteProviderKey(r.Context(), provider); err != nil && !errors.Is(err, store.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// testKey sends a one-word prompt with the resolved (or supplied) key and
// reports whether the provider answered.
func (s *Server) testKey(w http.ResponseWriter, r *http.Request) {
	provider := keyProvider(r)
	req := testKeyRequest{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
	}
	model, err := llm.ConfigureModel(r.Context(), s.catalog, s.keys, llm.ModelOptions{
		Provider:  provider,
		TextModel: req.Model,
		APIKey:    req.APIKey,
		BaseURL:   req.BaseURL,
		MaxTokens: keyTestMaxTokens,
		Timeout:   keyTestTimeout,
	})
	if err != nil {
		var unsupported llm.ErrUnsupportedProvider
		if errors.As(err, &unsupported) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if model.MissingKey() {
		writeJSONStatus(w, testKeyResponse{Model: model.TextModel, Error: "API key missing"}, http.StatusPreconditionFailed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), keyTestTimeout)
	defer cancel()
	_, err = s.pinger.Generate(ctx, model.Endpoint(false, ""), []llm.ChatMessage{llm.Text(llm.RoleUser, "ping")})
	if err != nil {
		writeJSONStatus(w, testKeyResponse{Model: model.TextModel, Error: err.Error()}, http.StatusBadGateway)
		return
	}
	writeJSON(w, testKeyResponse{OK: true, Model: model.TextModel})
}
