package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatify/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestSyncAnnotator_Annotate(t *testing.T) {
	tests := []struct {
		name       string
		message    entity.Message
		target     string
		setup      func(tr *MockTranslator)
		want       entity.Translations
		translates bool
	}{
		{
			name:    "stores a translation for the receiver language",
			message: entity.Message{Text: "hello", OriginalLanguage: "en"},
			target:  "hi",
			setup: func(tr *MockTranslator) {
				tr.On("Translate", mock.Anything, "hello", "hi").Return(" नमस्ते ", nil).Once()
			},
			want:       entity.Translations{"hi": "नमस्ते"},
			translates: true,
		},
		{
			name:    "translator failure leaves translations empty",
			message: entity.Message{Text: "hello", OriginalLanguage: "en"},
			target:  "hi",
			setup: func(tr *MockTranslator) {
				tr.On("Translate", mock.Anything, "hello", "hi").Return("", errors.New("timeout")).Once()
			},
			translates: true,
		},
		{
			name:    "identical result is not stored",
			message: entity.Message{Text: "Rahul", OriginalLanguage: "en"},
			target:  "fr",
			setup: func(tr *MockTranslator) {
				tr.On("Translate", mock.Anything, "Rahul", "fr").Return("Rahul", nil).Once()
			},
			translates: true,
		},
		{
			name:    "same language skips the translator",
			message: entity.Message{Text: "hello", OriginalLanguage: "en"},
			target:  "en",
		},
		{
			name:    "image only message skips the translator",
			message: entity.Message{ImageUrl: "http://cdn/x.png", OriginalLanguage: "en"},
			target:  "hi",
		},
		{
			name:    "existing entry is kept",
			message: entity.Message{Text: "hello", OriginalLanguage: "en", Translations: entity.Translations{"hi": "नमस्ते"}},
			target:  "hi",
			want:    entity.Translations{"hi": "नमस्ते"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			translator := new(MockTranslator)
			if tt.setup != nil {
				tt.setup(translator)
			}
			annotator := NewTranslationAnnotator(translator, time.Second, zap.NewNop())

			msg := tt.message
			annotator.Annotate(context.Background(), &msg, tt.target)

			assert.Equal(t, len(tt.want), len(msg.Translations))
			for lang, text := range tt.want {
				assert.Equal(t, text, msg.Translations[lang])
			}
			if !tt.translates {
				translator.AssertNotCalled(t, "Translate", mock.Anything, mock.Anything, mock.Anything)
			}
			translator.AssertExpectations(t)
		})
	}
}

func TestSyncAnnotator_BoundsTranslatorCall(t *testing.T) {
	translator := new(MockTranslator)
	translator.On("Translate", mock.Anything, "hello", "hi").
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
		}).
		Return("नमस्ते", nil)

	annotator := NewTranslationAnnotator(translator, 50*time.Millisecond, zap.NewNop())
	msg := entity.Message{Text: "hello"}
	annotator.Annotate(context.Background(), &msg, "hi")

	assert.Equal(t, entity.DefaultLanguage, msg.OriginalLanguage)
	assert.Equal(t, "नमस्ते", msg.Translations["hi"])
}

func TestNewTranslationAnnotator_NilTranslator(t *testing.T) {
	annotator := NewTranslationAnnotator(nil, time.Second, zap.NewNop())
	assert.IsType(t, NopAnnotator{}, annotator)

	msg := entity.Message{Text: "hello"}
	annotator.Annotate(context.Background(), &msg, "hi")
	assert.Empty(t, msg.Translations)
}
