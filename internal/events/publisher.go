package events

import (
	"crypto/tls"
	"encoding/json"
	"log/slog"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/voxhome/assist-service/internal/dispatch"
)

const (
	topicTurns = "voxhome/assist/turns"
	topicTools = "voxhome/assist/tool_calls"
)

// Publisher emits assistant activity onto the home's MQTT fabric so other
// services (dashboards, history) can follow what the assistant did. A nil
// Publisher is valid and publishes nothing.
type Publisher struct {
	cli mqtt.Client
}

// Connect dials the broker. brokerURL accepts mqtt://, tcp://, ssl:// and
// ws:// schemes.
func Connect(brokerURL string) (*Publisher, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, err
	}
	opts := mqtt.NewClientOptions()
	server := u.Host
	switch u.Scheme {
	case "mqtt", "tcp":
		server = "tcp://" + server
	case "ssl", "tls":
		server = "ssl://" + server
	case "ws", "wss":
		server = u.Scheme + "://" + server + u.Path
	}
	opts.AddBroker(server)
	opts.SetClientID("assist-service-" + time.Now().Format("150405.000"))
	opts.OnConnect = func(c mqtt.Client) { slog.Info("mqtt connected", "broker", brokerURL) }
	opts.OnConnectionLost = func(c mqtt.Client, err error) { slog.Error("mqtt connection lost", "error", err) }
	if u.User != nil {
		pw, _ := u.User.Password()
		opts.SetUsername(u.User.Username())
		opts.SetPassword(pw)
	}
	if u.Scheme == "ssl" || u.Scheme == "tls" || u.Scheme == "wss" {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}

	cli := mqtt.NewClient(opts)
	if t := cli.Connect(); t.Wait() && t.Error() != nil {
		return nil, t.Error()
	}
	return &Publisher{cli: cli}, nil
}

type turnEvent struct {
	TurnID string `json:"turn_id"`
	Status string `json:"status"`
	Rounds int    `json:"rounds"`
	At     string `json:"at"`
}

type toolEvent struct {
	TurnID  string `json:"turn_id"`
	CallID  string `json:"call_id"`
	Tool    string `json:"tool"`
	Outcome string `json:"outcome"`
	At      string `json:"at"`
}

// TurnFinished publishes a terminal turn event.
func (p *Publisher) TurnFinished(turnID string, status string, rounds int) {
	if p == nil || p.cli == nil {
		return
	}
	p.publish(topicTurns, turnEvent{
		TurnID: turnID,
		Status: status,
		Rounds: rounds,
		At:     time.Now().UTC().Format(time.RFC3339),
	})
}

// ToolDispatched publishes one dispatched tool call.
func (p *Publisher) ToolDispatched(turnID string, result dispatch.Result) {
	if p == nil || p.cli == nil {
		return
	}
	p.publish(topicTools, toolEvent{
		TurnID:  turnID,
		CallID:  result.CallID,
		Tool:    result.Tool,
		Outcome: string(result.Outcome),
		At:      time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *Publisher) publish(topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if t := p.cli.Publish(topic, 0, false, payload); t.Wait() && t.Error() != nil {
		slog.Warn("mqtt publish failed", "topic", topic, "error", t.Error())
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p == nil || p.cli == nil {
		return
	}
	p.cli.Disconnect(250)
}
