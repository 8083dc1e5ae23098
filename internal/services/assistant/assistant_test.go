package assistant_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"bhasha/internal/catalog"
	"bhasha/internal/services"
	"bhasha/internal/services/assistant"
	"bhasha/internal/testsupport"
)

func TestChatLogsExchangeMetadata(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	service := assistant.New(nil, store)
	ctx := context.Background()

	stream, err := service.Chat(ctx, "hi-IN", []assistant.Message{
		{Role: "user", Content: "Namaste"},
		{Role: "assistant", Content: "Namaste! How can I help?"},
		{Role: "user", Content: "Teach me a proverb"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	defer stream.Close()

	reply, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !strings.Contains(string(reply), "Hindi") {
		t.Fatalf("expected language-tagged reply, got %q", reply)
	}

	if count := storeCountConversations(t, store); count != 1 {
		t.Fatalf("expected one logged conversation, got %d", count)
	}
}

func TestChatRejectsEmptyConversation(t *testing.T) {
	service := assistant.New(nil, nil)
	if _, err := service.Chat(context.Background(), "hi", nil); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestChatRejectsUnknownLanguage(t *testing.T) {
	service := assistant.New(nil, nil)
	messages := []assistant.Message{{Role: "user", Content: "hello"}}
	if _, err := service.Chat(context.Background(), "zz-not-real", messages); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func storeCountConversations(t *testing.T, store *catalog.Store) int {
	t.Helper()
	// Conversations bump the day's bucket, so the bucket series is the
	// observable record.
	buckets, err := store.BucketsBetween(context.Background(),
		timeDaysAgo(1), timeDaysAgo(-1))
	if err != nil {
		t.Fatalf("BucketsBetween: %v", err)
	}
	total := 0
	for _, bucket := range buckets {
		total += int(bucket.ConversationsCount)
	}
	return total
}

func timeDaysAgo(days int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -days)
}
