package usecase

import (
	"context"
	"strings"
	"time"

	"chatify/internal/entity"

	"go.uber.org/zap"
)

type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// TranslationAnnotator attaches a translation for the receiver's language
// to a message before it is stored. Failures never block the send.
type TranslationAnnotator interface {
	Annotate(ctx context.Context, message *entity.Message, targetLanguage string)
}

type syncAnnotator struct {
	translator Translator
	timeout    time.Duration
	log        *zap.Logger
}

// NewTranslationAnnotator returns an annotator that calls translator inline.
// A nil translator yields an annotator that does nothing.
func NewTranslationAnnotator(translator Translator, timeout time.Duration, log *zap.Logger) TranslationAnnotator {
	if translator == nil {
		return NopAnnotator{}
	}
	return &syncAnnotator{
		translator: translator,
		timeout:    timeout,
		log:        log,
	}
}

func (a *syncAnnotator) Annotate(ctx context.Context, message *entity.Message, targetLanguage string) {
	if strings.TrimSpace(message.Text) == "" {
		return
	}
	if message.OriginalLanguage == "" {
		message.OriginalLanguage = entity.DefaultLanguage
	}
	if targetLanguage == "" || targetLanguage == message.OriginalLanguage {
		return
	}
	if _, ok := message.Translations[targetLanguage]; ok {
		return
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	translated, err := a.translator.Translate(ctx, message.Text, targetLanguage)
	if err != nil {
		a.log.Warn("translation failed",
			zap.String("targetLanguage", targetLanguage),
			zap.Error(err))
		return
	}
	translated = strings.TrimSpace(translated)
	if translated == "" || translated == message.Text {
		return
	}

	if message.Translations == nil {
		message.Translations = entity.Translations{}
	}
	message.Translations[targetLanguage] = translated
}

type NopAnnotator struct{}

func (NopAnnotator) Annotate(context.Context, *entity.Message, string) {}
