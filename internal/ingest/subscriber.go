// Package ingest applies sensor status messages from MQTT to the store.
//
// Sensors publish to parking/sensors/{id}/status with either a JSON body
// {"status":"Occupied"} or the bare status text. Open tables see the new
// status on their next load.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/ParkingTable/internal/config"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	maxStatusLen  = 64
	updateTimeout = 5 * time.Second
	disconnectMs  = 250
)

var (
	errEmptyStatus   = errors.New("empty status")
	errNoSensorID    = errors.New("topic has no sensor id")
	errStatusTooLong = fmt.Errorf("status longer than %d characters", maxStatusLen)
)

// StatusWriter persists a sensor status. Satisfied by *store.Store.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, id, status string) (bool, error)
}

// StatusUpdate is one parsed status message.
type StatusUpdate struct {
	SensorID string
	Status   string
}

// Stats counts processed messages.
type Stats struct {
	Applied  int64
	Unknown  int64 // sensor id not in the store
	Rejected int64 // malformed message or store error
}

// Subscriber listens for status messages and writes them to the store.
type Subscriber struct {
	cfg     config.MQTTConfig
	writer  StatusWriter
	logger  *slog.Logger
	idLevel int
	client  mqtt.Client

	applied  atomic.Int64
	unknown  atomic.Int64
	rejected atomic.Int64
}

// NewSubscriber creates a subscriber. Call Start to connect.
func NewSubscriber(cfg config.MQTTConfig, writer StatusWriter, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		cfg:     cfg,
		writer:  writer,
		logger:  logger.With("component", "ingest"),
		idLevel: sensorIDLevel(cfg.StatusTopic),
	}
}

// Start connects to the broker and subscribes to the status topic. The
// subscription is renewed on every reconnect.
func (s *Subscriber) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetUsername(s.cfg.Username).
		SetPassword(s.cfg.Password).
		SetAutoReconnect(true).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetConnectTimeout(s.cfg.ConnectTimeout).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.logger.Warn("mqtt connection lost", "error", err)
		})

	s.client = mqtt.NewClient(opts)

	token := s.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("connect to mqtt broker: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to mqtt broker: %w", err)
	}

	s.logger.Info("mqtt connected", "broker", s.cfg.Broker, "topic", s.cfg.StatusTopic)
	return nil
}

func (s *Subscriber) onConnect(c mqtt.Client) {
	token := c.Subscribe(s.cfg.StatusTopic, byte(s.cfg.QoS), s.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		s.logger.Error("mqtt subscribe failed", "topic", s.cfg.StatusTopic, "error", err)
		return
	}
	s.logger.Debug("mqtt subscribed", "topic", s.cfg.StatusTopic, "qos", s.cfg.QoS)
}

// handleMessage is the paho callback for the status topic.
func (s *Subscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	update, err := parseStatusMessage(msg.Topic(), msg.Payload(), s.idLevel)
	if err != nil {
		s.rejected.Add(1)
		s.logger.Warn("dropping status message", "topic", msg.Topic(), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	found, err := s.writer.UpdateStatus(ctx, update.SensorID, update.Status)
	switch {
	case err != nil:
		s.rejected.Add(1)
		s.logger.Error("status update failed",
			"sensor_id", update.SensorID,
			"status", update.Status,
			"error", err,
		)
	case !found:
		s.unknown.Add(1)
		s.logger.Debug("status for unknown sensor", "sensor_id", update.SensorID)
	default:
		s.applied.Add(1)
		s.logger.Debug("status updated", "sensor_id", update.SensorID, "status", update.Status)
	}
}

// Stats returns message counters since start.
func (s *Subscriber) Stats() Stats {
	return Stats{
		Applied:  s.applied.Load(),
		Unknown:  s.unknown.Load(),
		Rejected: s.rejected.Load(),
	}
}

// Close unsubscribes and disconnects.
func (s *Subscriber) Close() {
	if s.client == nil || !s.client.IsConnected() {
		return
	}
	s.client.Unsubscribe(s.cfg.StatusTopic).WaitTimeout(time.Second)
	s.client.Disconnect(disconnectMs)
	s.logger.Info("mqtt disconnected", "stats", s.Stats())
}

// sensorIDLevel returns the index of the single-level wildcard in filter,
// which is where the sensor id sits in a concrete topic.
func sensorIDLevel(filter string) int {
	for i, level := range strings.Split(filter, "/") {
		if level == "+" {
			return i
		}
	}
	return 2
}

// parseStatusMessage extracts the sensor id from topic and the status from
// payload.
func parseStatusMessage(topic string, payload []byte, idLevel int) (StatusUpdate, error) {
	levels := strings.Split(topic, "/")
	if idLevel < 0 || idLevel >= len(levels) || strings.TrimSpace(levels[idLevel]) == "" {
		return StatusUpdate{}, fmt.Errorf("%w: %q", errNoSensorID, topic)
	}

	body := strings.TrimSpace(string(payload))
	status := body
	if strings.HasPrefix(body, "{") {
		var msg struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal([]byte(body), &msg); err != nil {
			return StatusUpdate{}, fmt.Errorf("decode status payload: %w", err)
		}
		status = strings.TrimSpace(msg.Status)
	}

	switch {
	case status == "":
		return StatusUpdate{}, errEmptyStatus
	case len(status) > maxStatusLen:
		return StatusUpdate{}, errStatusTooLong
	}

	return StatusUpdate{SensorID: strings.TrimSpace(levels[idLevel]), Status: status}, nil
}
