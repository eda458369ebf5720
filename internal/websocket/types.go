package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raaihank/mask-sentinel/internal/privacy"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeMaskResult is sent after a masking pass. It never carries
	// original values.
	EventTypeMaskResult EventType = "mask_result"
	// EventTypeRestoreResult is sent after a restore.
	EventTypeRestoreResult EventType = "restore_result"
	// EventTypePatternUpdate is sent when the rule registry changes.
	EventTypePatternUpdate EventType = "pattern_update"
	// EventTypeSnapshotSaved is sent when a mapping snapshot is stored.
	EventTypeSnapshotSaved EventType = "snapshot_saved"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping.
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// DetectionInfo describes a masked span without its original text.
type DetectionInfo struct {
	RuleKey     string `json:"rule_key"`
	Placeholder string `json:"placeholder"`
	Start       int    `json:"start_offset"`
	End         int    `json:"end_offset"`
}

// MaskResultEvent is the display view of a masking pass.
type MaskResultEvent struct {
	MaskedText      string          `json:"masked_text"`
	Detections      []DetectionInfo `json:"detections"`
	Summary         map[string]int  `json:"summary"`
	TotalDetections int             `json:"total_detections"`
	ProcessingMS    float64         `json:"processing_ms"`
}

// RestoreResultEvent reports a restore without revealing restored text.
type RestoreResultEvent struct {
	MappingEntries int     `json:"mapping_entries"`
	SnapshotID     string  `json:"snapshot_id,omitempty"`
	TextLength     int     `json:"text_length"`
	ProcessingMS   float64 `json:"processing_ms"`
}

// PatternUpdateEvent reports a registry change.
type PatternUpdateEvent struct {
	Action  string `json:"action"` // added, removed, toggled, reloaded
	Key     string `json:"key,omitempty"`
	Label   string `json:"label,omitempty"`
	Enabled bool   `json:"enabled"`
}

// SnapshotSavedEvent reports a stored snapshot.
type SnapshotSavedEvent struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	EntryCount int    `json:"entry_count"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type   string      `json:"type"`
	Events []EventType `json:"events,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string

	conn *websocket.Conn

	mu            sync.RWMutex
	subscriptions map[EventType]bool // nil means everything
}

func (c *Client) subscribe(events []EventType) {
	subs := make(map[EventType]bool, len(events))
	for _, e := range events {
		subs[e] = true
	}
	c.mu.Lock()
	c.subscriptions = subs
	c.mu.Unlock()
}

func (c *Client) wants(t EventType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.subscriptions == nil {
		return true
	}
	return c.subscriptions[t]
}

// NewMaskResultEvent builds a mask_result event. Original values are
// dropped.
func NewMaskResultEvent(requestID string, result privacy.Result, elapsed time.Duration) Event {
	detections := make([]DetectionInfo, len(result.Detections))
	for i, d := range result.Detections {
		detections[i] = DetectionInfo{
			RuleKey:     d.RuleKey,
			Placeholder: d.Placeholder,
			Start:       d.Start,
			End:         d.End,
		}
	}
	summary := privacy.Summarize(result.Detections)

	return Event{
		Type:      EventTypeMaskResult,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: MaskResultEvent{
			MaskedText:      result.MaskedText,
			Detections:      detections,
			Summary:         summary.Counts(),
			TotalDetections: summary.Total(),
			ProcessingMS:    float64(elapsed.Microseconds()) / 1000,
		},
	}
}
