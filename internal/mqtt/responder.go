package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"climate-api/internal/config"
)

const (
	requestQoS     = byte(1)
	requestTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Request is the payload accepted on the request topic.
type Request struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	ReplyTo string `json:"reply_to"`
}

// Reply is published to Request.ReplyTo. Body holds the response document
// itself for JSON responses and a JSON string otherwise.
type Reply struct {
	ID          string          `json:"id"`
	Status      int             `json:"status"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
}

// Responder serves GET requests received over MQTT with the same
// http.Handler as the HTTP listener.
type Responder struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	handler   http.Handler
	mu        sync.RWMutex
	connected bool

	baseCtx context.Context
	cancel  context.CancelFunc

	stopCh   chan struct{}
	stopOnce sync.Once

	// publish sends a reply; replaced in tests.
	publish func(topic string, payload []byte) error
}

func NewResponder(cfg config.Config, logger *slog.Logger, handler http.Handler) *Responder {
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Responder{
		cfg:     cfg,
		logger:  logger,
		handler: handler,
		baseCtx: baseCtx,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	opts.SetCleanSession(true)
	opts.SetOrderMatters(false)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Clean sessions drop subscriptions, so every (re)connect subscribes again.
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		if err := s.subscribe(); err != nil {
			logger.Error("mqtt subscribe failed", "topic", cfg.MQTTRequestTopic, "error", err)
		}
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(opts)
	s.publish = s.publishToBroker
	return s
}

// Connect starts the broker connection and waits for the first CONNACK.
func (s *Responder) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return errors.New("responder stopped")
	default:
	}

	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return errors.New("responder stopped")
		default:
		}
	}
}

func (s *Responder) subscribe() error {
	topic := s.cfg.MQTTRequestTopic
	token := s.client.Subscribe(topic, requestQoS, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}

	s.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", requestQoS)
	return nil
}

func (s *Responder) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logger.Warn("failed to parse mqtt request",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}
	if err := validateRequest(req); err != nil {
		s.logger.Warn("invalid mqtt request", "topic", topic, "id", req.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(s.baseCtx, requestTimeout)
	defer cancel()

	reply, err := Serve(ctx, s.handler, req)
	if err != nil {
		s.logger.Error("mqtt request failed", "id", req.ID, "path", req.Path, "error", err)
		return
	}
	out, err := encode(reply)
	if err != nil {
		s.logger.Error("encode mqtt reply", "id", req.ID, "error", err)
		return
	}
	if err := s.publish(req.ReplyTo, out); err != nil {
		s.logger.Error("publish mqtt reply", "id", req.ID, "reply_to", req.ReplyTo, "error", err)
		return
	}
	s.logger.Debug("mqtt reply sent", "id", req.ID, "status", reply.Status, "reply_to", req.ReplyTo)
}

func validateRequest(req Request) error {
	if req.Path == "" {
		return errors.New("path is required")
	}
	if req.Path[0] != '/' {
		return fmt.Errorf("path %q must start with /", req.Path)
	}
	if req.ReplyTo == "" {
		return errors.New("reply_to is required")
	}
	return nil
}

func (s *Responder) publishToBroker(topic string, payload []byte) error {
	token := s.client.Publish(topic, requestQoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	return token.Error()
}

func (s *Responder) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect stops the responder and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (s *Responder) Disconnect() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.cancel()
	})

	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.cfg.MQTTRequestTopic)
		token.WaitTimeout(2 * time.Second)
	}

	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.setConnected(false)
	s.logger.Info("mqtt responder disconnected")
}

func (s *Responder) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
