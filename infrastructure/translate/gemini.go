package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var ErrEmptyTranslation = errors.New("translator returned no text")

var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"ta": "Tamil",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
	"ja": "Japanese",
	"ko": "Korean",
	"zh": "Chinese",
}

// LanguageName maps a language code to the name used in prompts. Unknown
// codes are passed through.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

func SupportedLanguage(code string) bool {
	_, ok := languageNames[code]
	return ok
}

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type GeminiTranslator struct {
	client *genai.Client
	model  generator
}

func NewGeminiTranslator(ctx context.Context, apiKey, model string) (*GeminiTranslator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	m := client.GenerativeModel(model)
	m.SetTemperature(0)
	return &GeminiTranslator{client: client, model: m}, nil
}

func buildPrompt(text, targetLanguage string) string {
	return fmt.Sprintf(`You are a translation assistant. Translate the following text into %[1]s.
If the text is already in %[1]s or is a name/common phrase that doesn't need translation, return the original text.
Return ONLY the translated text, nothing else. No "Here is the translation" or quotes.

Text: %[2]q`, targetLanguage, text)
}

// Translate asks the model for a translation of text into the language
// identified by targetLanguage.
func (t *GeminiTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" || targetLanguage == "" {
		return text, nil
	}

	resp, err := t.model.GenerateContent(ctx, genai.Text(buildPrompt(text, LanguageName(targetLanguage))))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	out := responseText(resp)
	if out == "" {
		return "", ErrEmptyTranslation
	}
	return out, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	out := strings.TrimSpace(sb.String())
	if len(out) >= 2 && strings.HasPrefix(out, `"`) && strings.HasSuffix(out, `"`) {
		out = strings.TrimSpace(out[1 : len(out)-1])
	}
	return out
}

func (t *GeminiTranslator) Close() error {
	if t.client == nil {
		return nil
	}
	return t.client.Close()
}
