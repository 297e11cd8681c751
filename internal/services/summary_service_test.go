package services

import (
	"context"
	"errors"
	"testing"
	"time"

	chat_errors "jyotish-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestSummarizeSendsTranscript(t *testing.T) {
	f := newFixture(t)
	chatID := f.openChat(t)
	f.send(t, testUser, chatID, "hello", "")

	var got string
	svc := NewSummaryService(f.svc, generatorFunc(func(_ context.Context, prompt string) (string, error) {
		got = prompt
		return "  a short summary \n", nil
	}), time.Second, nil)

	summary, err := svc.Summarize(context.Background(), testUser, chatID)
	require.NoError(t, err)
	assert.Equal(t, "a short summary", summary)
	assert.Equal(t, "Sam: hello", got)
}

func TestSummarizeFallsBack(t *testing.T) {
	f := newFixture(t)
	chatID := f.openChat(t)

	failing := NewSummaryService(f.svc, generatorFunc(func(context.Context, string) (string, error) {
		return "", errors.New("quota exceeded")
	}), time.Second, nil)
	summary, err := failing.Summarize(context.Background(), testUser, chatID)
	require.NoError(t, err)
	assert.Equal(t, SummaryFallback, summary)

	slow := NewSummaryService(f.svc, generatorFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), 10*time.Millisecond, nil)
	summary, err = slow.Summarize(context.Background(), testUser, chatID)
	require.NoError(t, err)
	assert.Equal(t, SummaryFallback, summary)

	none := NewSummaryService(f.svc, nil, 0, nil)
	summary, err = none.Summarize(context.Background(), testUser, chatID)
	require.NoError(t, err)
	assert.Equal(t, SummaryFallback, summary)
}

func TestSummarizeRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	chatID := f.openChat(t)
	svc := NewSummaryService(f.svc, nil, 0, nil)

	_, err := svc.Summarize(context.Background(), testOutsider, chatID)
	assert.ErrorIs(t, err, chat_errors.ErrForbidden)
	_, err = svc.Summarize(context.Background(), testUser, "missing")
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
}
