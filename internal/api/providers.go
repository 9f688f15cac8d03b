package api

import (
	"net/http"
	"strconv"
	"strings"
)

type providerResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	BaseURL        string   `json:"base_url,omitempty"`
	TextModels     []string `json:"text_models"`
	VisionModels   []string `json:"vision_models"`
	DualModels     []string `json:"dual_models"`
	SupportsVision bool     `json:"supports_vision"`
	RequiresKey    bool     `json:"requires_key"`
	HasKey         bool     `json:"has_key"`
}

type listProvidersResponse struct {
	Providers []providerResponse `json:"providers"`
}

// listProviders returns the catalogue. ?vision=true keeps only providers
// with vision models.
func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	visionOnly, _ := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get("vision")))
	specs := s.catalog.Providers()
	response := listProvidersResponse{Providers: make([]providerResponse, 0, len(specs))}
	for _, spec := range specs {
		supportsVision := len(spec.VisionModels) > 0
		if visionOnly && !supportsVision {
			continue
		}
		response.Providers = append(response.Providers, providerResponse{
			ID:             spec.ID,
			Name:           spec.Name,
			BaseURL:        spec.BaseURL,
			TextModels:     orEmpty(spec.TextModels),
			VisionModels:   orEmpty(spec.VisionModels),
			DualModels:     orEmpty(spec.DualModels),
			SupportsVision: supportsVision,
			RequiresKey:    !spec.Anonymous,
			HasKey:         s.keys.GetAPIKey(r.Context(), spec.ID, "") != "",
		})
	}
	writeJSON(w, response)
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
