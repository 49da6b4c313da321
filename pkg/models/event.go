package models

import "time"

type EventType string

const (
	EventImageDecided  EventType = "image_decided"
	EventItemCompleted EventType = "item_completed"
	EventItemFailed    EventType = "item_failed"
)

// CollectionEvent is published for every image decision and every terminal item state.
type CollectionEvent struct {
	Type       EventType `json:"type"`
	ItemID     string    `json:"item_id"`
	CategoryID string    `json:"category_id"`
	ImageID    string    `json:"image_id,omitempty"`
	Source     string    `json:"source,omitempty"`
	Status     string    `json:"status"`
	Overall    float64   `json:"overall,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
