package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/events"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
)

func (a *Agent) runVision(ctx context.Context, r *run) Result {
	model := r.req.Model
	if message, ok := a.visionSupport(model); !ok {
		log.Printf("[livesearch] %s", message)
		return Result{Answer: message, SourceURLs: []string{}, Trace: TraceVisionUnsupported}
	}
	if len(r.req.Image) == 0 {
		return Result{
			Answer:     "TI2T mode requires an image input. Provide an image and try again.",
			SourceURLs: []string{},
			Trace:      TraceVisionMissingImage,
		}
	}
	dataURL, err := EncodeImage(r.req.Image)
	if err != nil {
		log.Printf("[livesearch] failed to encode image: %v", err)
		return Result{
			Answer:     "Unable to read or encode the input image. Check that the image is valid.",
			SourceURLs: []string{},
			Trace:      TraceVisionEncoding,
		}
	}
	if model.MissingKey() {
		return missingKey(model.Provider)
	}

	endpoint := model.Endpoint(true, r.proxy)
	image := endpoint.ImagePart(dataURL)
	if !r.req.Settings.EnableWebSearch {
		return a.visionDirect(ctx, r, endpoint, image)
	}
	return a.visionSearch(ctx, r, endpoint, image)
}

// visionSupport returns the user-facing refusal when the configured vision
// model is not registered as vision capable.
func (a *Agent) visionSupport(model llm.ModelConfig) (string, bool) {
	spec, ok := a.catalog.Provider(model.Provider)
	if ok && spec.SupportsVision(model.VisionModel) {
		return "", true
	}
	if ok && len(spec.VisionModels) > 0 {
		return fmt.Sprintf("TI2T mode: %s model %s does not support vision input. Vision models supported by this provider: %s",
			model.Provider, model.VisionModel, strings.Join(spec.SortedVisionModels(), ", ")), false
	}
	providers := a.catalog.VisionProviders()
	return fmt.Sprintf("TI2T mode: %s does not support vision models. Supported providers: %s",
		model.Provider, strings.Join(providers, ", ")), false
}

func (a *Agent) visionDirect(ctx context.Context, r *run, endpoint llm.Endpoint, image llm.ImagePart) Result {
	question := r.req.Query
	if strings.TrimSpace(question) == "" {
		question = defaultVisionAsk
	}
	messages := []llm.ChatMessage{
		llm.Text(llm.RoleSystem, visionDirectSystemPrompt(r.req.Settings.OutputLanguage, r.req.Role)),
		{Role: llm.RoleUser, Parts: []llm.Part{image, llm.TextPart{Text: question}}},
	}
	answer := a.answer(ctx, r, endpoint, messages)
	return Result{Answer: answer, SourceURLs: []string{}, Trace: TraceVisionDirect}
}

func (a *Agent) visionSearch(ctx context.Context, r *run, endpoint llm.Endpoint, image llm.ImagePart) Result {
	resolution := a.resolve(ctx, r)
	trace := TraceVisionSearch
	searchQuery := r.req.Query

	if r.req.Settings.OptimizeQuery {
		rewritten, err := a.optimizer.OptimizeVision(ctx, endpoint, r.req.Query, resolution.Place, image)
		if err != nil {
			log.Printf("[livesearch] vision query generation failed: %v", err)
			trace = err.Error()
			r.emit(ctx, events.TypeQueryFailed, map[string]any{"reason": err.Error()})
		} else {
			log.Printf("[livesearch] vision generated query: %s", rewritten)
			trace = fmt.Sprintf("User Prompt: %s\nVLM Generated Query: %s", r.req.Query, rewritten)
			searchQuery = rewritten
			r.emit(ctx, events.TypeQueryOptimized, map[string]any{"original": r.req.Query, "optimized": rewritten})
		}
	}

	var blocks, sources []string
	if results := a.retrieve(ctx, r, searchQuery); len(results) > 0 {
		blocks, sources = a.gather(ctx, r, results)
	}
	if sources == nil {
		sources = []string{}
	}
	evidence := noVisionResults
	if len(blocks) > 0 {
		evidence = strings.Join(blocks, "\n")
	}
	evidence = withWeather(resolution.Weather, evidence)

	instruction, suffix := visionSearchInstruction(r.req.Settings.OutputLanguage)
	question := r.req.Query
	if suffix != "" {
		question += " " + suffix
	}
	messages := []llm.ChatMessage{
		llm.Text(llm.RoleSystem, visionSearchSystemPrompt(instruction, r.req.Role)),
		{Role: llm.RoleUser, Parts: []llm.Part{
			image,
			llm.TextPart{Text: fmt.Sprintf("User Question: %s\n\nSearch Results:\n%s", question, evidence)},
		}},
	}
	answer := a.answer(ctx, r, endpoint, messages)
	return Result{Answer: answer, SourceURLs: sources, Trace: trace}
}
