package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type Booking struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid,omitempty"`
	Title     string    `json:"title,omitempty"`
	Status    string    `json:"status,omitempty"`
	EventType EventType `json:"event_type"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	TimeZone  string    `json:"time_zone,omitempty"`
	Invitee   Person    `json:"invitee"`
	Attendees []Person  `json:"attendees,omitempty"`
	Organizer Organizer `json:"organizer"`
}

type EventType struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

type Person struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	TimeZone string `json:"time_zone,omitempty"`
}

type Organizer struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
}

// Duration prefers the event type length and falls back to the booked interval.
func (b *Booking) Duration() time.Duration {
	if b.EventType.DurationMinutes > 0 {
		return time.Duration(b.EventType.DurationMinutes) * time.Minute
	}
	if !b.StartTime.IsZero() && b.EndTime.After(b.StartTime) {
		return b.EndTime.Sub(b.StartTime)
	}
	return 0
}

// AttendeeCount counts the invitee plus any additional guests.
func (b *Booking) AttendeeCount() int {
	count := len(b.Attendees)
	if b.Invitee.Email != "" || b.Invitee.Name != "" {
		count++
	}
	return count
}

type BookingEvent struct {
	Trigger    string    `json:"trigger"`
	Booking    Booking   `json:"booking"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e BookingEvent) ToPayload() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal booking event: %w", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal booking event: %w", err)
	}
	return payload, nil
}

func BookingEventFromPayload(payload map[string]interface{}) (*BookingEvent, error) {
	if payload == nil {
		return nil, &ValidationError{Field: "payload", Message: "message payload cannot be nil"}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	var event BookingEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, &ValidationError{Field: "payload", Message: fmt.Sprintf("not a booking event: %v", err)}
	}
	if event.Trigger == "" {
		return nil, &ValidationError{Field: "payload.trigger", Message: "trigger is required"}
	}
	if event.Booking.ID == "" {
		return nil, &ValidationError{Field: "payload.booking.id", Message: "booking id is required"}
	}
	return &event, nil
}
