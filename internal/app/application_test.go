package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sudoku-arena/arena-api/internal/app/queue"
	authsvc "github.com/sudoku-arena/arena-api/internal/app/services/auth"
	"github.com/sudoku-arena/arena-api/pkg/logger"
)

func newTestTokens(t *testing.T) *authsvc.TokenManager {
	t.Helper()
	tokens, err := authsvc.NewTokenManager("app-test-secret-123456", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	return tokens
}

func newTestLogger() *logger.Logger {
	log := logger.NewDefault("app-test")
	log.SetOutput(io.Discard)
	return log
}

// queueOnlyBroker carries tasks but cannot publish status events.
type queueOnlyBroker struct {
	queue.Broker
}

func TestNew_BrokerDoublesAsPublisher(t *testing.T) {
	broker := queue.NewMemoryBroker()
	application, err := New(Options{Tokens: newTestTokens(t), Broker: broker}, newTestLogger())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if application.Publisher == nil {
		t.Fatal("publisher not defaulted from broker")
	}

	ctx := context.Background()
	events, unsubscribe, err := application.Publisher.Subscribe(ctx, "app-test-channel")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	if err := application.Publisher.Publish(ctx, "app-test-channel", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("published event never delivered")
	}
}

func TestNew_PublisherFallbackWithoutPubSubBroker(t *testing.T) {
	broker := queueOnlyBroker{Broker: queue.NewMemoryBroker()}
	application, err := New(Options{Tokens: newTestTokens(t), Broker: broker}, newTestLogger())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if application.Publisher == nil {
		t.Fatal("publisher missing for a queue-only broker")
	}
	if _, unsubscribe, err := application.Publisher.Subscribe(context.Background(), "ch"); err != nil {
		t.Fatalf("subscribe on fallback publisher: %v", err)
	} else {
		unsubscribe()
	}
}
