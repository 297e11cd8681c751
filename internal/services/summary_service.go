package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jyotish-chat/internal/domain/chat"
	chat_errors "jyotish-chat/pkg/errors"
	"jyotish-chat/pkg/logger"

	"go.uber.org/zap"
)

// SummaryFallback is returned whenever the generator cannot produce text.
const SummaryFallback = "Unable to generate content at this time."

// Generator is the text-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type SummaryService struct {
	conversations *ConversationService
	generator     Generator
	timeout       time.Duration
	log           *zap.Logger
}

func NewSummaryService(conversations *ConversationService, generator Generator, timeout time.Duration, log *logger.Logger) *SummaryService {
	if log == nil {
		log = logger.NewNop()
	}
	return &SummaryService{
		conversations: conversations,
		generator:     generator,
		timeout:       timeout,
		log:           log.Logger.With(zap.String("component", "summary")),
	}
}

// Summarize builds the transcript of a conversation and asks the generator for
// a summary. Generator failures degrade to SummaryFallback; only lookup and
// authorization errors are returned.
func (s *SummaryService) Summarize(ctx context.Context, requester chat.Identity, conversationID string) (string, error) {
	transcript, err := s.conversations.Transcript(ctx, requester, conversationID)
	if err != nil {
		return "", err
	}
	return s.generate(ctx, transcript), nil
}

func (s *SummaryService) generate(ctx context.Context, prompt string) string {
	if s.generator == nil {
		return SummaryFallback
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.generator.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("%w: empty response", chat_errors.ErrUpstream)
	}
	if err != nil {
		s.log.Warn("summary generation failed", zap.Error(err))
		return SummaryFallback
	}
	return strings.TrimSpace(text)
}
