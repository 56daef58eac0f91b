// Package telemetry publishes device snapshots to an MQTT broker so home
// automation can follow the cave without polling the HTTP API.
package telemetry

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"cheesecave/internal/display"
	"cheesecave/internal/logger"
	"cheesecave/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// Publisher renders snapshots as retained MQTT messages:
//
//	<topic>/snapshot    JSON snapshot plus the panel text
//	<topic>/humidifier  "1" when running, "0" otherwise
type Publisher struct {
	client mqtt.Client
	topic  string
	log    *logger.Logger
}

type message struct {
	models.Snapshot
	Panel display.Panel `json:"panel"`
}

// Connect dials broker and returns a publisher rooted at topic.
func Connect(broker, clientID, topic string, log *logger.Logger) (*Publisher, error) {
	if _, err := url.Parse(broker); err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnw("mqtt_connection_lost", "error", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		log.Warnw("mqtt_connect_pending", "broker", broker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, err)
	}
	log.Infow("mqtt_connected", "broker", broker, "client_id", clientID)
	return NewPublisher(client, topic, log), nil
}

func NewPublisher(client mqtt.Client, topic string, log *logger.Logger) *Publisher {
	return &Publisher{client: client, topic: topic, log: log.Named("telemetry")}
}

func (p *Publisher) Render(snap models.Snapshot) error {
	body, err := json.Marshal(message{Snapshot: snap, Panel: display.Compose(snap)})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := p.publish(p.topic+"/snapshot", body); err != nil {
		return err
	}

	state := "0"
	if snap.HumidifierOn {
		state = "1"
	}
	return p.publish(p.topic+"/humidifier", state)
}

func (p *Publisher) publish(topic string, payload any) error {
	token := p.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
