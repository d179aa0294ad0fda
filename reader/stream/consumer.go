package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	appconfig "signalflow/config"
	"signalflow/logger"
)

// messageReader is the slice of kafka.Reader the consumer uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer tails the trade event stream and feeds pool migration
// events into the local submission API. Any reader failure tears the
// reader down and reconnects after a delay.
type Consumer struct {
	config    appconfig.KafkaIngestConfig
	client    *http.Client
	newReader func() messageReader
	ctx       context.Context
	wg        *sync.WaitGroup
	mu        sync.RWMutex
	running   bool
	log       *logger.Log
}

type tradeEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		TokenAddress string `json:"token_address"`
		Network      string `json:"network"`
	} `json:"data"`
}

func NewConsumer(cfg appconfig.KafkaIngestConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("kafka topics not configured")
	}
	c := &Consumer{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		wg:     &sync.WaitGroup{},
		log:    logger.GetLogger(),
	}
	c.newReader = func() messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			GroupTopics: cfg.Topics,
			MinBytes:    1,
			MaxBytes:    10e6,
		})
	}
	c.log.WithComponent("stream_consumer").WithFields(logger.Fields{
		"brokers":  cfg.Brokers,
		"topics":   cfg.Topics,
		"group_id": cfg.GroupID,
	}).Debug("stream consumer initialized")
	return c, nil
}

func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("stream consumer already running")
	}
	c.running = true
	c.ctx = ctx
	c.mu.Unlock()

	c.log.WithComponent("stream_consumer").Info("starting stream consumer")

	c.wg.Add(1)
	go c.run()

	return nil
}

func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	c.wg.Wait()
	c.log.WithComponent("stream_consumer").Info("stream consumer stopped")
}

func (c *Consumer) run() {
	defer c.wg.Done()
	log := c.log.WithComponent("stream_consumer")

	reconnect := c.config.ReconnectDelay
	if reconnect <= 0 {
		reconnect = 3 * time.Second
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		reader := c.newReader()
		err := c.consume(reader)
		reader.Close()
		if c.ctx.Err() != nil {
			return
		}

		log.WithError(err).WithFields(logger.Fields{
			"reconnect_delay": reconnect.String(),
		}).Warn("stream consumer disconnected, reconnecting")

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(reconnect):
		}
	}
}

func (c *Consumer) consume(reader messageReader) error {
	for {
		msg, err := reader.ReadMessage(c.ctx)
		if err != nil {
			return err
		}
		c.handleMessage(msg.Value)
	}
}

func (c *Consumer) handleMessage(payload []byte) {
	log := c.log.WithComponent("stream_consumer")

	event, ok := parseEvent(payload, c.config.EventType)
	if !ok {
		return
	}
	if event.Data.TokenAddress == "" || event.Data.Network == "" {
		log.Debug("event missing token address or network, skipping")
		return
	}

	if err := c.submit(event.Data.TokenAddress, event.Data.Network); err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"token_address": event.Data.TokenAddress,
			"chain":         event.Data.Network,
		}).Warn("candidate submission failed")
		return
	}

	log.WithFields(logger.Fields{
		"token_address": event.Data.TokenAddress,
		"chain":         event.Data.Network,
	}).Debug("pool migration candidate submitted")
}

// parseEvent decodes a stream payload and reports whether it is an
// event of the wanted type.
func parseEvent(payload []byte, wantType string) (tradeEvent, bool) {
	var event tradeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return tradeEvent{}, false
	}
	if event.EventType != wantType {
		return tradeEvent{}, false
	}
	return event, true
}

func (c *Consumer) submit(address, chain string) error {
	body, err := json.Marshal(map[string]string{
		"token_address": address,
		"chain":         chain,
	})
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, c.config.SubmitURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("submission request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("submission returned status %d", resp.StatusCode)
	}
	return nil
}
