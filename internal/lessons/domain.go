package lessons

import "time"

// Lesson is a unit of learning content.
type Lesson struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Subject   string    `json:"subject"`
	Content   string    `json:"content"`
	CreatedBy *int64    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Input is the writable part of a lesson.
type Input struct {
	Title   string `json:"title" validate:"required,max=200"`
	Subject string `json:"subject" validate:"max=100"`
	Content string `json:"content" validate:"required"`
}

// DefaultSubject is assigned when a lesson is saved without one.
const DefaultSubject = "General"
