package hub

import "time"

// Event types understood by dashboard frontend
const (
	TypeLog        = "log"
	TypeNewMessage = "newMessage"
)

// Event is a realtime notification pushed to every connected client
type Event struct {
	Type      string `json:"type"`
	Action    string `json:"action,omitempty"`
	Time      string `json:"time,omitempty"`
	GuildID   string `json:"guildId,omitempty"`
	ChannelID string `json:"channelId,omitempty"`
	Author    string `json:"author,omitempty"`
	Content   string `json:"content,omitempty"`
	ID        int64  `json:"id,omitempty"`
}

// LogEvent returns event announcing new action log entry
func LogEvent(id int64, action string, ts time.Time) Event {
	return Event{
		Type:   TypeLog,
		ID:     id,
		Action: action,
		Time:   ts.UTC().Format(time.RFC3339),
	}
}

// MessageEvent returns event announcing message posted to a channel
func MessageEvent(guildID, channelID, author, content string) Event {
	return Event{
		Type:      TypeNewMessage,
		GuildID:   guildID,
		ChannelID: channelID,
		Author:    author,
		Content:   content,
	}
}

// Broadcaster delivers events to all realtime subscribers
type Broadcaster interface {
	Broadcast(event Event)
}
