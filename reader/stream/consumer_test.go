package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	kafka "github.com/segmentio/kafka-go"

	appconfig "signalflow/config"
)

func TestParseEventFiltersByType(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{
			name:    "pool migrate event",
			payload: `{"event_type":"PoolMigrateEvent","data":{"token_address":"So1AddrA","network":"SOLANA"}}`,
			want:    true,
		},
		{
			name:    "other event type",
			payload: `{"event_type":"SwapEvent","data":{"token_address":"So1AddrA","network":"SOLANA"}}`,
			want:    false,
		},
		{
			name:    "malformed json",
			payload: `{"event_type":`,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, ok := parseEvent([]byte(tt.payload), "PoolMigrateEvent")
			if ok != tt.want {
				t.Fatalf("parseEvent ok = %v, want %v", ok, tt.want)
			}
			if ok && event.Data.TokenAddress != "So1AddrA" {
				t.Errorf("unexpected token address %q", event.Data.TokenAddress)
			}
		})
	}
}

type scriptedReader struct {
	mu       sync.Mutex
	messages []kafka.Message
	closed   bool
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return kafka.Message{}, errors.New("broker gone")
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *scriptedReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestConsumerSubmitsMigrationEvents(t *testing.T) {
	var mu sync.Mutex
	var submissions []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode submission: %v", err)
		}
		mu.Lock()
		submissions = append(submissions, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewConsumer(appconfig.KafkaIngestConfig{
		Brokers:        []string{"localhost:9092"},
		Topics:         []string{"web3_trade_events"},
		GroupID:        "test-consumer",
		EventType:      "PoolMigrateEvent",
		ReconnectDelay: time.Hour,
		SubmitURL:      srv.URL + "/push",
	})
	if err != nil {
		t.Fatal(err)
	}

	reader := &scriptedReader{messages: []kafka.Message{
		{Value: []byte(`{"event_type":"SwapEvent","data":{"token_address":"So1Skip","network":"SOLANA"}}`)},
		{Value: []byte(`{"event_type":"PoolMigrateEvent","data":{"token_address":"So1AddrB","network":"SOLANA"}}`)},
		{Value: []byte(`{"event_type":"PoolMigrateEvent","data":{"token_address":"","network":"SOLANA"}}`)},
	}}
	c.newReader = func() messageReader { return reader }

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(submissions)
		mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	cancel()
	c.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(submissions) != 1 {
		t.Fatalf("expected 1 submission, got %d: %v", len(submissions), submissions)
	}
	if submissions[0]["token_address"] != "So1AddrB" || submissions[0]["chain"] != "SOLANA" {
		t.Errorf("unexpected submission: %v", submissions[0])
	}
	if !reader.closed {
		t.Error("reader should be closed after a read error")
	}
}

func TestNewConsumerValidation(t *testing.T) {
	if _, err := NewConsumer(appconfig.KafkaIngestConfig{Topics: []string{"t"}}); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewConsumer(appconfig.KafkaIngestConfig{Brokers: []string{"b"}}); err == nil {
		t.Error("expected error without topics")
	}
}
