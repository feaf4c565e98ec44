package models

import "time"

// These structs define the payloads exchanged with the trigger that starts a run
// and the summary a run reports back.

// PubSubMessage is the message wrapper Cloud Scheduler publishes through Pub/Sub.
type PubSubMessage struct {
	Message struct {
		Data       []byte            `json:"data,omitempty"`
		Attributes map[string]string `json:"attributes,omitempty"`
		MessageID  string            `json:"messageId,omitempty"`
	} `json:"message"`
	Subscription string `json:"subscription,omitempty"`
}

// RunTrigger describes what started a run.
type RunTrigger struct {
	Source    string `json:"source"`
	MessageID string `json:"messageId,omitempty"`
}

// RunSummary is the outcome of a single export-and-purge run.
type RunSummary struct {
	RunID      string    `json:"runId"`
	Trigger    string    `json:"trigger"`
	Cutoff     time.Time `json:"cutoff"`
	Visited    int       `json:"visited"`
	Archived   int       `json:"archived"`
	Purged     int       `json:"purged"`
	Absent     int       `json:"absent"`
	Throttled  int       `json:"throttled"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}
