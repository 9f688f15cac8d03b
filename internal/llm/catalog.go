package llm

import (
	"sort"
	"strings"
)

type ProtocolKind string

const (
	StandardChat   ProtocolKind = "standard_chat"
	VendorMessages ProtocolKind = "vendor_messages"
	TokenResponses ProtocolKind = "token_responses"
)

// ModelRule overrides provider defaults for matching models. Exactly one of
// Exact, Prefix or Contains is expected; Contains is case-insensitive.
type ModelRule struct {
	Exact    string
	Prefix   string
	Contains string

	Protocol        ProtocolKind
	OmitTemperature bool
	OmitMaxTokens   bool
}

func (r ModelRule) matches(model string) bool {
	switch {
	case r.Exact != "":
		return model == r.Exact
	case r.Prefix != "":
		return strings.HasPrefix(model, r.Prefix)
	case r.Contains != "":
		return strings.Contains(strings.ToLower(model), strings.ToLower(r.Contains))
	}
	return false
}

type ProviderSpec struct {
	ID              string
	Name            string
	BaseURL         string
	TextModels      []string
	VisionModels    []string
	DualModels      []string
	Anonymous       bool
	OmitImageDetail bool
	DefaultProtocol ProtocolKind
	Rules           []ModelRule
}

// StandardChatRules apply to every provider whose resolved protocol is
// StandardChat, after the provider's own rules.
var StandardChatRules = []ModelRule{
	{Exact: "o1", OmitTemperature: true, OmitMaxTokens: true},
	{Exact: "o1-pro", OmitTemperature: true, OmitMaxTokens: true},
	{Prefix: "o1-", OmitTemperature: true, OmitMaxTokens: true},
}

// Capability is the resolved wire behaviour for one provider/model pair.
type Capability struct {
	Protocol        ProtocolKind
	OmitTemperature bool
	OmitMaxTokens   bool
}

func (p ProviderSpec) Capability(model string) Capability {
	capability := Capability{Protocol: p.DefaultProtocol}
	if capability.Protocol == "" {
		capability.Protocol = StandardChat
	}
	capability = capability.apply(p.Rules, model)
	if capability.Protocol == StandardChat {
		capability = capability.apply(StandardChatRules, model)
	}
	return capability
}

func (c Capability) apply(rules []ModelRule, model string) Capability {
	for _, rule := range rules {
		if !rule.matches(model) {
			continue
		}
		if rule.Protocol != "" {
			c.Protocol = rule.Protocol
		}
		c.OmitTemperature = c.OmitTemperature || rule.OmitTemperature
		c.OmitMaxTokens = c.OmitMaxTokens || rule.OmitMaxTokens
	}
	return c
}

func (p ProviderSpec) SupportsVision(model string) bool {
	return contains(p.VisionModels, model)
}

func (p ProviderSpec) IsDualMode(model string) bool {
	return contains(p.DualModels, model)
}

func (p ProviderSpec) SortedVisionModels() []string {
	models := append([]string(nil), p.VisionModels...)
	sort.Strings(models)
	return models
}

type Catalog struct {
	providers []ProviderSpec
	index     map[string]int
}

func NewCatalog(specs ...ProviderSpec) *Catalog {
	catalog := &Catalog{index: map[string]int{}}
	for _, spec := range specs {
		key := normalizeID(spec.ID)
		if i, ok := catalog.index[key]; ok {
			catalog.providers[i] = spec
			continue
		}
		catalog.index[key] = len(catalog.providers)
		catalog.providers = append(catalog.providers, spec)
	}
	return catalog
}

func (c *Catalog) Provider(id string) (ProviderSpec, bool) {
	if c == nil {
		return ProviderSpec{}, false
	}
	i, ok := c.index[normalizeID(id)]
	if !ok {
		return ProviderSpec{}, false
	}
	return c.providers[i], true
}

func (c *Catalog) Providers() []ProviderSpec {
	if c == nil {
		return nil
	}
	return append([]ProviderSpec(nil), c.providers...)
}

// VisionProviders lists, in catalogue order, the providers with at least one
// vision model.
func (c *Catalog) VisionProviders() []string {
	ids := []string{}
	for _, spec := range c.Providers() {
		if len(spec.VisionModels) > 0 {
			ids = append(ids, spec.ID)
		}
	}
	return ids
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func DefaultCatalog() *Catalog {
	return NewCatalog(
		ProviderSpec{
			ID:              "zhipu",
			Name:            "智谱AI",
			BaseURL:         "https://open.bigmodel.cn/api/paas/v4/",
			TextModels:      []string{"glm-4.5-Flash", "glm-4-Flash-250414", "glm-Z1-Flash"},
			VisionModels:    []string{"glm-4.6V-Flash", "glm-4V-Flash", "glm-4.1V-Thinking-Flash"},
			OmitImageDetail: true,
		},
		ProviderSpec{
			ID:      "openai",
			Name:    "OpenAI",
			BaseURL: "https://api.openai.com/v1",
			TextModels: []string{
				"gpt-5.1", "gpt-5", "gpt-5-mini", "gpt-5-nano", "gpt-5-pro",
				"gpt-4.1", "gpt-4.1-mini", "gpt-4.1-nano", "gpt-4o", "gpt-4o-mini",
				"gpt-4-turbo", "gpt-4", "gpt-3.5-turbo",
				"o3", "o3-pro", "o3-mini", "o3-deep-research", "o4-mini-deep-research",
				"o1", "o1-pro",
			},
			VisionModels: []string{
				"gpt-5.1", "gpt-5.1-mini", "gpt-5", "gpt-5-mini", "gpt-5-pro",
				"gpt-4o", "gpt-4o-mini", "gpt-4-turbo",
			},
			DualModels: []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini", "gpt-4.1-nano"},
			Rules: []ModelRule{
				{Prefix: "gpt-5", Protocol: TokenResponses},
			},
		},
		ProviderSpec{
			ID:         "deepseek",
			Name:       "DeepSeek (Official)",
			BaseURL:    "https://api.deepseek.com",
			TextModels: []string{"deepseek-chat", "deepseek-reasoner", "deepseek-v3"},
		},
		ProviderSpec{
			ID:         "deepseek-aliyun",
			Name:       "DeepSeek (Aliyun)",
			BaseURL:    "https://dashscope.aliyuncs.com/compatible-mode/v1",
			TextModels: []string{"deepseek-v3", "deepseek-v2.5", "deepseek-chat"},
		},
		ProviderSpec{
			ID:      "gemini",
			Name:    "Gemini (OpenAI-Format)",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai",
			TextModels: []string{
				"gemini-3-pro", "gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.5-flash-lite",
				"gemini-2.0-flash", "gemini-2.0-flash-lite", "gemini-1.5-pro", "gemini-1.5-flash",
				"gemini-1.5-flash-8b",
			},
			VisionModels: []string{
				"gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-2.0-flash",
				"gemini-2.0-flash-lite", "gemini-2.0-flash-live",
			},
		},
		ProviderSpec{
			ID:      "anthropic",
			Name:    "Anthropic (Claude)",
			BaseURL: "https://api.anthropic.com/v1",
			TextModels: []string{
				"claude-sonnet-4-5-20250929", "claude-sonnet-4-5",
				"claude-haiku-4-5-20251001", "claude-haiku-4-5",
				"claude-opus-4-1-20250805", "claude-opus-4-1",
			},
			DualModels: []string{
				"claude-sonnet-4-5-20250929", "claude-sonnet-4-5",
				"claude-haiku-4-5-20251001", "claude-haiku-4-5",
				"claude-opus-4-1-20250805", "claude-opus-4-1",
			},
			DefaultProtocol: VendorMessages,
			Rules:           []ModelRule{{Contains: "haiku", OmitTemperature: true}},
		},
		ProviderSpec{
			ID:         "grok",
			Name:       "Grok",
			BaseURL:    "https://api.x.ai/v1",
			TextModels: []string{"grok-2-1212", "grok-2-vision-1212", "grok-2", "grok-beta"},
		},
		ProviderSpec{
			ID:      "volcengine",
			Name:    "Volcengine (Doubao)",
			BaseURL: "https://ark.cn-beijing.volces.com/api/v3",
			TextModels: []string{
				"doubao-seed-1-6-251015", "doubao-seed-1-6-250615", "doubao-seed-1-6-lite-251015",
				"doubao-seed-1-6-flash-250828", "doubao-seed-1-6-thinking-250715",
				"doubao-seed-code-preview-251028", "doubao-seed-1-6-vision-250815",
				"deepseek-v3-1-terminus", "deepseek-v3-1-250821", "custom-endpoint-id",
			},
		},
		ProviderSpec{
			ID:      "qwen",
			Name:    "Qwen (Aliyun)",
			BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
			TextModels: []string{
				"qwen3-max", "qwen3-max-preview", "qwen-plus", "qwen-plus-latest",
				"qwen-flash", "qwen-max", "qwen-turbo",
			},
			VisionModels: []string{
				"qwen3-vl-flash", "qwen3-vl-flash-2025-10-15", "qwen3-vl-plus", "qwen3-vl-plus-2025-09-23",
			},
		},
		ProviderSpec{
			ID:      "siliconflow",
			Name:    "SiliconFlow (硅基流动)",
			BaseURL: "https://api.siliconflow.cn/v1",
			TextModels: []string{
				"deepseek-ai/DeepSeek-V3.2-Exp", "Pro/deepseek-ai/DeepSeek-V3.2-Exp",
				"Pro/deepseek-ai/DeepSeek-V3.1-Terminus", "deepseek-ai/DeepSeek-V3.1-Terminus",
				"Pro/deepseek-ai/DeepSeek-R1", "Pro/deepseek-ai/DeepSeek-V3",
				"deepseek-ai/DeepSeek-R1", "deepseek-ai/DeepSeek-V3",
				"deepseek-ai/DeepSeek-R1-0528-Qwen3-8B", "deepseek-ai/DeepSeek-R1-Distill-Qwen-32B",
				"deepseek-ai/DeepSeek-R1-Distill-Qwen-14B", "deepseek-ai/DeepSeek-R1-Distill-Qwen-7B",
				"Pro/deepseek-ai/DeepSeek-R1-Distill-Qwen-7B", "deepseek-ai/DeepSeek-V2.5",
				"Qwen/Qwen3-Next-80B-A3B-Instruct", "Qwen/Qwen3-Next-80B-A3B-Thinking",
				"Qwen/Qwen3-Coder-30B-A3B-Instruct", "Qwen/Qwen3-Coder-480B-A35B-Instruct",
				"Qwen/Qwen3-30B-A3B-Thinking-2507", "Qwen/Qwen3-30B-A3B-Instruct-2507",
				"Qwen/Qwen3-235B-A22B-Thinking-2507", "Qwen/Qwen3-235B-A22B-Instruct-2507",
				"Qwen/Qwen3-30B-A3B", "Qwen/Qwen3-32B", "Qwen/Qwen3-14B", "Qwen/Qwen3-8B",
				"Qwen/Qwen3-235B-A22B", "Qwen/Qwen2.5-72B-Instruct-128K", "Qwen/Qwen2.5-72B-Instruct",
				"Qwen/Qwen2.5-32B-Instruct", "Qwen/Qwen2.5-14B-Instruct", "Qwen/Qwen2.5-7B-Instruct",
				"Qwen/Qwen2.5-Coder-32B-Instruct", "Qwen/Qwen2.5-Coder-7B-Instruct",
				"Qwen/Qwen2-7B-Instruct", "Qwen/QwQ-32B", "Pro/Qwen/Qwen2.5-7B-Instruct",
				"Pro/Qwen/Qwen2-7B-Instruct",
				"zai-org/glm-4.6", "zai-org/glm-4.5-Air", "zai-org/glm-4.5",
				"THUDM/glm-Z1-32B-0414", "THUDM/glm-4-32B-0414", "THUDM/glm-Z1-Rumination-32B-0414",
				"THUDM/glm-4-9B-0414", "THUDM/glm-4-9b-chat", "Pro/THUDM/glm-4-9b-chat",
				"inclusionAI/Ling-1T", "inclusionAI/Ring-flash-2.0", "inclusionAI/Ling-flash-2.0",
				"inclusionAI/Ling-mini-2.0", "moonshotai/Kimi-K2-Instruct-0905",
				"ByteDance-Seed/Seed-OSS-36B-Instruct", "stepfun-ai/step3", "baidu/ERNIE-4.5-300B-A47B",
				"ascend-tribe/pangu-pro-moe", "tencent/Hunyuan-A13B-Instruct", "MiniMaxAI/MiniMax-M1-80k",
				"Tongyi-Zhiwen/QwenLong-L1-32B", "internlm/internlm2_5-7b-chat",
			},
			VisionModels: []string{
				"deepseek-ai/DeepSeek-OCR", "deepseek-ai/deepseek-vl2",
				"Qwen/Qwen3-VL-32B-Instruct", "Qwen/Qwen3-VL-32B-Thinking",
				"Qwen/Qwen3-VL-8B-Instruct", "Qwen/Qwen3-VL-8B-Thinking",
				"Qwen/Qwen3-VL-30B-A3B-Instruct", "Qwen/Qwen3-VL-30B-A3B-Thinking",
				"Qwen/Qwen3-VL-235B-A22B-Instruct", "Qwen/Qwen3-VL-235B-A22B-Thinking",
				"Qwen/Qwen3-Omni-30B-A3B-Instruct", "Qwen/Qwen3-Omni-30B-A3B-Thinking",
				"Qwen/Qwen3-Omni-30B-A3B-Captioner",
				"Qwen/Qwen2.5-VL-32B-Instruct", "Qwen/Qwen2.5-VL-72B-Instruct", "Pro/Qwen/Qwen2.5-VL-7B-Instruct",
				"Qwen/Qwen2-VL-72B-Instruct", "Qwen/QVQ-72B-Preview",
				"zai-org/GLM-4.5V", "Pro/THUDM/GLM-4.1V-9B-Thinking", "THUDM/GLM-4.1V-9B-Thinking",
			},
			DualModels: []string{"Qwen/Qwen2.5-VL-72B-Instruct", "Qwen/Qwen3-Omni-30B-A3B-Instruct"},
		},
		ProviderSpec{
			ID:      "ollama",
			Name:    "Ollama (Local)",
			BaseURL: "http://127.0.0.1:11434/v1",
			TextModels: []string{
				"huihui_ai/qwen3-vl-abliterated:8b-instruct", "huihui_ai/qwen3-vl-abliterated:4b-instruct",
				"llama4", "llama3.3", "llama3.2", "qwen3", "qwen2.5", "deepseek-r1", "deepseek-v3", "phi4",
			},
			VisionModels: []string{
				"huihui_ai/qwen3-vl-abliterated:8b-instruct", "huihui_ai/qwen3-vl-abliterated:4b-instruct",
				"llama3.2-vision", "llava",
			},
			Anonymous: true,
		},
		ProviderSpec{
			ID:           "custom",
			Name:         "Custom",
			TextModels:   []string{"custom-model"},
			VisionModels: []string{"custom-vlm-model"},
		},
	)
}
