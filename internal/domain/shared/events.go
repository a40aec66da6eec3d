package shared

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	EventActivityTracked     EventType = "analytics.activity_tracked"
	EventStudyTimeRecorded   EventType = "analytics.study_time_recorded"
	EventDailyProgressReset  EventType = "analytics.daily_progress_reset"
	EventAnalyticsRecomputed EventType = "analytics.recomputed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ActivityTrackedEvent is emitted when the platform reports a user action.
// The user's daily row is updated by whoever subscribes to it.
type ActivityTrackedEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	ActivityType   string `json:"activity_type"`
	Correct        bool   `json:"correct,omitempty"`
	SessionSeconds int    `json:"session_seconds,omitempty"`
	Area           string `json:"area,omitempty"`
	Date           string `json:"date"`
}

// Payload implements Event interface.
func (e ActivityTrackedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"activity_type":   e.ActivityType,
		"correct":         e.Correct,
		"session_seconds": e.SessionSeconds,
		"area":            e.Area,
		"date":            e.Date,
	}
}

// NewActivityTrackedEvent creates a new ActivityTrackedEvent.
func NewActivityTrackedEvent(userID, activityType, date string) ActivityTrackedEvent {
	return ActivityTrackedEvent{
		BaseEvent:    NewBaseEvent(EventActivityTracked, userID),
		UserID:       userID,
		ActivityType: activityType,
		Date:         date,
	}
}

// StudyTimeRecordedEvent is emitted after study time was added to a day.
type StudyTimeRecordedEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	Seconds int    `json:"seconds"`
	Date    string `json:"date"`
}

// Payload implements Event interface.
func (e StudyTimeRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"seconds": e.Seconds,
		"date":    e.Date,
	}
}

// NewStudyTimeRecordedEvent creates a new StudyTimeRecordedEvent.
func NewStudyTimeRecordedEvent(userID string, seconds int, date string) StudyTimeRecordedEvent {
	return StudyTimeRecordedEvent{
		BaseEvent: NewBaseEvent(EventStudyTimeRecorded, userID),
		UserID:    userID,
		Seconds:   seconds,
		Date:      date,
	}
}

// DailyProgressResetEvent is emitted when the login reset zeroed today's row.
type DailyProgressResetEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Date   string `json:"date"`
}

// Payload implements Event interface.
func (e DailyProgressResetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"date":    e.Date,
	}
}

// NewDailyProgressResetEvent creates a new DailyProgressResetEvent.
func NewDailyProgressResetEvent(userID, date string) DailyProgressResetEvent {
	return DailyProgressResetEvent{
		BaseEvent: NewBaseEvent(EventDailyProgressReset, userID),
		UserID:    userID,
		Date:      date,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
