// Package notify delivers fire-and-forget user notifications. Delivery
// failures are logged and never reach the operation that raised the event.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// LoginTimeLayout is how login times are rendered in notifications.
const LoginTimeLayout = "2006-01-02 15:04:05"

// Event is anything a Sink can deliver. It must marshal to JSON.
type Event interface {
	RoutingKey() string
}

// Sink delivers a single event. Implementations must honour ctx.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// LoginEvent is raised after a successful login.
type LoginEvent struct {
	UserID      string
	Username    string
	DisplayName string
	LoginAt     time.Time
	Location    string
	Device      string
	IP          string
}

func (LoginEvent) RoutingKey() string { return "notification.login" }

type loginPayload struct {
	UserID        string `json:"user_id"`
	Type          string `json:"type"`
	Content       string `json:"content"`
	LoginTime     string `json:"login_time"`
	LoginLocation string `json:"login_location"`
	DeviceInfo    string `json:"device_info"`
	EventTime     string `json:"event_time"`
}

// Name is the display name, or the username when none is set.
func (e LoginEvent) Name() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.Username
}

// Content is the human-readable notification text.
func (e LoginEvent) Content() string {
	return fmt.Sprintf("Welcome back, %s! You have signed in successfully.\nLogin time: %s\nLocation: %s\nDevice: %s",
		e.Name(), e.LoginAt.Format(LoginTimeLayout), e.Location, e.Device)
}

// MarshalJSON renders the system-notification payload. The raw IP is not
// included; the location stands in for it.
func (e LoginEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(loginPayload{
		UserID:        e.UserID,
		Type:          "system",
		Content:       e.Content(),
		LoginTime:     e.LoginAt.Format(LoginTimeLayout),
		LoginLocation: e.Location,
		DeviceInfo:    e.Device,
		EventTime:     e.LoginAt.Format(time.RFC3339),
	})
}
