package push

import (
	"encoding/json"
	"time"

	"sltk-monitor/internal/model"
)

// Message types on the push channel.
const (
	// Client -> Server
	MsgTypeMonitor     = "monitor"
	MsgTypeStopMonitor = "stop-monitor"
	MsgTypePing        = "ping"

	// Server -> Client
	MsgTypeConnected          = "connected"
	MsgTypeStatusUpdate       = "status-update"
	MsgTypeProcessingComplete = "processing-complete"
	MsgTypeError              = "error"
	MsgTypePong               = "pong"
)

// Message is the JSON envelope for every frame in both directions.
type Message struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type ErrorPayload struct {
	GroupID string `json:"groupId,omitempty"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type ConnectedPayload struct {
	Message string `json:"message"`
}

type EventKind string

const (
	EventConnected          EventKind = MsgTypeConnected
	EventStatusUpdate       EventKind = MsgTypeStatusUpdate
	EventProcessingComplete EventKind = MsgTypeProcessingComplete
	EventError              EventKind = MsgTypeError
)

// Event is a decoded server notification, delivered in receive order.
type Event struct {
	Kind    EventKind
	Status  model.UploadStatus
	GroupID string
	Message string
}

func newMessage(msgType, id string, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:      msgType,
		ID:        id,
		Payload:   raw,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// decodeEvent maps a server frame to an Event. ok=false means the frame
// carries nothing the controller acts on.
func decodeEvent(msg Message) (Event, bool, error) {
	switch msg.Type {
	case MsgTypeStatusUpdate, MsgTypeProcessingComplete:
		var st model.UploadStatus
		if err := json.Unmarshal(msg.Payload, &st); err != nil {
			return Event{}, false, err
		}
		return Event{Kind: EventKind(msg.Type), Status: st, GroupID: st.GroupID}, true, nil
	case MsgTypeError:
		var p ErrorPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				return Event{}, false, err
			}
		}
		text := p.Message
		if p.Error != "" {
			text = text + ": " + p.Error
		}
		if text == "" {
			text = "unknown push channel error"
		}
		return Event{Kind: EventError, GroupID: p.GroupID, Message: text}, true, nil
	case MsgTypeConnected:
		var p ConnectedPayload
		_ = json.Unmarshal(msg.Payload, &p)
		return Event{Kind: EventConnected, Message: p.Message}, true, nil
	default:
		return Event{}, false, nil
	}
}
