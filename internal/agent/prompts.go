package agent

import (
	"fmt"
	"strings"
)

const (
	instructionEnglish      = "You MUST answer in English."
	instructionChinese      = "You MUST answer in Chinese (简体中文)."
	instructionChineseTerse = "你必须使用简体中文回答。"
	instructionSameLanguage = "You MUST answer in the same language as the user's query."
)

// textInstruction is used by the text pipeline.
func textInstruction(lang Language) string {
	switch lang {
	case LanguageEnglish:
		return instructionEnglish
	case LanguageChinese:
		return instructionChinese
	default:
		return instructionSameLanguage
	}
}

func visionInstruction(lang Language) string {
	switch lang {
	case LanguageEnglish:
		return instructionEnglish
	case LanguageChinese:
		return instructionChineseTerse
	default:
		return instructionSameLanguage
	}
}

// visionSearchInstruction returns the stronger directive and the suffix
// appended to the question when vision answers are grounded in search.
func visionSearchInstruction(lang Language) (string, string) {
	switch lang {
	case LanguageChinese:
		return "Answer in Chinese (简体中文). 必须使用中文回答。", "(请用中文回答)"
	case LanguageEnglish:
		return "Answer in English.", "(Please answer in English)"
	default:
		return instructionSameLanguage, ""
	}
}

func hasRole(role string) bool {
	return strings.TrimSpace(role) != ""
}

func directSystemPrompt(lang Language, role string) string {
	instruction := textInstruction(lang)
	if hasRole(role) {
		return fmt.Sprintf("%s\n\nSystem Rules:\n1. %s", role, instruction)
	}
	return fmt.Sprintf(`You are a helpful assistant.
Rules:
1. %s
2. Answer the user's question directly based on your knowledge
3. Be concise and well-structured`, instruction)
}

func searchSystemPrompt(lang Language, role string) string {
	instruction := textInstruction(lang)
	if hasRole(role) {
		return fmt.Sprintf("%s\n\nSystem Rules:\n1. %s\n2. Base your answer on the provided search results.", role, instruction)
	}
	return fmt.Sprintf(`You are a helpful assistant with access to real-time web search results. 
Rules:
1. %s
2. Base your answer ONLY on the provided search results
3. Prioritize information from professional weather/time websites (timeanddate.com, accuweather.com, openweathermap.org, weather.com, wunderground.com)
4. If you see timeanddate.com results, extract the EXACT time and weather data from the content:
   - Look for time patterns like "12:31:03 am CST", "Tuesday, November 25, 2025", "UTC+8", "CST (China Standard Time)"
   - Look for weather patterns like "36 °F", "Chilly", "47 / 29 °F", "Partly cloudy", temperature forecasts, weather descriptions
   - Extract ALL numerical values (temperatures, times, dates) exactly as shown in the content
5. If results contain time/weather info, be precise with numbers and units - include the exact values you see
6. If search results don't contain real-time data, clearly state that and suggest using a dedicated weather service
7. Keep the answer concise and well-structured, but include all relevant time and weather details`, instruction)
}

func visionSearchSystemPrompt(instruction string, role string) string {
	if hasRole(role) {
		return fmt.Sprintf("%s\n\nSystem Rules:\n1. %s\n2. Use provided search results and image.", role, instruction)
	}
	return fmt.Sprintf(`You are a vision-language assistant with access to web search results.
Rules:
1. %s
2. Answer the user's question by combining visual information from the image and the provided search results.
3. If search results contain specific data (time, temperature), include them in your answer.
4. **CONFLICT RESOLUTION**: The image is static/historical. If the search results (real-time data) contradict the image (e.g., image shows day, search says night), **TRUST THE SEARCH RESULTS** for current status.
5. If the search results are summaries without specific data, summarize what is available but try to be helpful.
6. Be concise.`, instruction)
}

func visionDirectSystemPrompt(lang Language, role string) string {
	instruction := visionInstruction(lang)
	if hasRole(role) {
		return fmt.Sprintf("%s\n\nSystem Rules:\n1. %s", role, instruction)
	}
	return fmt.Sprintf(`You are a vision-language assistant.
Rules:
1. %s
2. Describe or analyze the provided image based on the user's request.
3. Be concise but cover all visible facts. Avoid hallucinating invisible details.`, instruction)
}
