package model

import "time"

type SessionPayload struct {
	SessionID  string            `json:"sid"`
	DistinctID string            `json:"did,omitempty"`
	Status     string            `json:"status"`
	Errors     int               `json:"errors"`
	Init       bool              `json:"init"`
	Started    time.Time         `json:"started"`
	Timestamp  time.Time         `json:"timestamp"`
	Duration   float64           `json:"duration,omitempty"`
	Attributes SessionAttributes `json:"attrs"`
	Sequence   uint64            `json:"seq"`
}

type SessionAttributes struct {
	Release     string `json:"release,omitempty"`
	Environment string `json:"environment,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
}
