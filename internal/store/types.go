package store

import "github.com/roach88/escalate/internal/trace"

// Relay is one complete multi-boot run.
type Relay struct {
	ID       string        `json:"id"`
	Scenario string        `json:"scenario"`
	Verdict  string        `json:"verdict"`
	Digest   string        `json:"digest"`
	Boots    []Boot        `json:"boots"`
	Events   []trace.Event `json:"events"`
}

// Boot is one lifetime within a relay.
type Boot struct {
	Index     int    `json:"index"`
	ResetInfo uint32 `json:"reset_info"`
	Cause     string `json:"cause"`
	Result    string `json:"result"`
}

// RelaySummary is a relay without its boots and events.
type RelaySummary struct {
	ID        string `json:"id"`
	Scenario  string `json:"scenario"`
	Verdict   string `json:"verdict"`
	BootCount int    `json:"boot_count"`
	Digest    string `json:"digest"`
}
