package assistant

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"bhasha/internal/catalog"
	"bhasha/internal/language"
	"bhasha/internal/services"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client produces a streamed assistant response for a conversation in the
// given language. Implementations own their transport; the pipeline only
// records exchange metadata.
type Client interface {
	Respond(ctx context.Context, languageCode string, messages []Message) (io.ReadCloser, error)
}

// Logger persists conversation metadata; satisfied by the catalog store.
type Logger interface {
	LogConversation(ctx context.Context, log *catalog.ConversationLog) (int64, error)
}

// Service pairs an assistant client with metadata logging. Only the
// language code, message count, and timestamps are recorded; message
// content never touches the catalog.
type Service struct {
	client Client
	log    Logger
}

// New builds the assistant service. A nil client falls back to the stub.
func New(client Client, log Logger) *Service {
	if client == nil {
		client = NewStub()
	}
	return &Service{client: client, log: log}
}

// Chat validates the conversation, obtains the streamed response, and logs
// the exchange metadata.
func (s *Service) Chat(ctx context.Context, languageCode string, messages []Message) (io.ReadCloser, error) {
	code := language.Normalize(languageCode)
	if code == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "assistant", "chat",
			fmt.Sprintf("unrecognized language %q", languageCode), nil)
	}
	if len(messages) == 0 {
		return nil, services.Wrap(services.ErrInvalidInput, "assistant", "chat", "messages are required", nil)
	}

	stream, err := s.client.Respond(ctx, code, messages)
	if err != nil {
		return nil, err
	}

	if s.log != nil {
		now := time.Now().UTC()
		entry := &catalog.ConversationLog{
			LanguageCode: code,
			MessageCount: len(messages),
			StartedAt:    now,
			LastActivity: now,
		}
		if _, err := s.log.LogConversation(ctx, entry); err != nil {
			_ = stream.Close()
			return nil, err
		}
	}
	return stream, nil
}

// Stub is an offline Client that echoes a canned reply, used in tests and
// when no assistant backend is configured.
type Stub struct {
	Reply string
}

// NewStub returns a stub client with a default reply.
func NewStub() *Stub {
	return &Stub{Reply: "I can help you practice. Tell me more."}
}

func (s *Stub) Respond(_ context.Context, languageCode string, messages []Message) (io.ReadCloser, error) {
	last := messages[len(messages)-1].Content
	reply := s.Reply
	if strings.TrimSpace(last) == "" {
		reply = "Could you say that again?"
	}
	body := fmt.Sprintf("[%s] %s", language.DisplayName(languageCode), reply)
	return io.NopCloser(strings.NewReader(body)), nil
}
