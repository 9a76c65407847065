package model

import "time"

type AlertStatus string

const (
	AlertStatusSent    AlertStatus = "sent"
	AlertStatusFailed  AlertStatus = "failed"
	AlertStatusSkipped AlertStatus = "skipped"
)

// Alert is a notification raised for a critical health record.
type Alert struct {
	FileName   string
	Level      Level
	Subject    string
	Body       string
	Recipients []string
	Status     AlertStatus
	CreatedAt  time.Time
}
