package realtime

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

const (
	eventJoin      = "phx_join"
	eventLeave     = "phx_leave"
	eventReply     = "phx_reply"
	eventHeartbeat = "heartbeat"
	eventChanges   = "postgres_changes"

	topicPhoenix = "phoenix"
	topicPrefix  = "realtime:public:"
)

type message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

type joinPayload struct {
	Config struct {
		PostgresChanges []changeFilter `json:"postgres_changes"`
	} `json:"config"`
	AccessToken string `json:"access_token,omitempty"`
}

type replyPayload struct {
	Status string `json:"status"`
}

type changePayload struct {
	Data struct {
		Table string `json:"table"`
		Type  string `json:"type"`
	} `json:"data"`
}

func topicFor(table string) string { return topicPrefix + table }

func tableOf(topic string) string { return strings.TrimPrefix(topic, topicPrefix) }

func newRef() string { return uuid.NewString() }

func joinMessage(table, token string) message {
	var p joinPayload
	p.Config.PostgresChanges = []changeFilter{{Event: "*", Schema: "public", Table: table}}
	p.AccessToken = token
	raw, _ := json.Marshal(p)
	return message{Topic: topicFor(table), Event: eventJoin, Payload: raw, Ref: newRef()}
}

func heartbeatMessage() message {
	return message{Topic: topicPhoenix, Event: eventHeartbeat, Payload: json.RawMessage(`{}`), Ref: newRef()}
}

func leaveMessage(table string) message {
	return message{Topic: topicFor(table), Event: eventLeave, Payload: json.RawMessage(`{}`), Ref: newRef()}
}
