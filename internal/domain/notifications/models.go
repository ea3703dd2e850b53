package notifications

import (
	"errors"
	"time"
)

var (
	ErrTemplateNotFound = errors.New("email template not found")
	ErrTemplateInvalid  = errors.New("email template invalid")
)

// Notification addresses every user behind one recipient role for a single
// evaluated employee.
type Notification struct {
	Role               string
	TemplateKey        string
	Variables          map[string]any
	EmployeeIdentifier string
	UserID             string
	DedupeKey          string
}

type Template struct {
	Key       string    `json:"key"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

type Item struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}
