package models

import "time"

// ContactMessage is a contact form submission.
type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	Company string `json:"company"` // honeypot, humans leave it empty
}

// ThrottlePeriod defines the time window for a submission policy.
type ThrottlePeriod string

const (
	ThrottleHourly ThrottlePeriod = "hourly"
	ThrottleDaily  ThrottlePeriod = "daily"
)

// ThrottlePolicy caps submissions per sender per period.
type ThrottlePolicy struct {
	MaxSubmissions int64          `json:"max_submissions" yaml:"max_submissions"`
	Period         ThrottlePeriod `json:"period" yaml:"period"`
}

// ThrottleStatus shows current submissions against a policy.
type ThrottleStatus struct {
	Policy    ThrottlePolicy `json:"policy"`
	Sender    string         `json:"sender"`
	Used      int64          `json:"used"`
	Remaining int64          `json:"remaining"`
}

// Submission is a recorded contact form delivery.
type Submission struct {
	ID        int64     `json:"id"`
	Site      string    `json:"site"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"created_at"`
}
