package models

import "time"

// SystemMetrics is the JSON snapshot served next to the Prometheus endpoint.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	StateTransitions         uint64    `json:"stateTransitions"`
	RegistrationsPublished   uint64    `json:"registrationsPublished"`
	PublishFailures          uint64    `json:"publishFailures"`
	AcksProcessed            uint64    `json:"acksProcessed"`
	MailsQueued              uint64    `json:"mailsQueued"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
