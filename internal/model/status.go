package model

import "fmt"

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusPaused    JobStatus = "paused"
)

type CoordinationStatus string

const (
	CoordinationStatusAssigned  CoordinationStatus = "assigned"
	CoordinationStatusRunning   CoordinationStatus = "running"
	CoordinationStatusCompleted CoordinationStatus = "completed"
	CoordinationStatusFailed    CoordinationStatus = "failed"
)

type MessageStatus string

const (
	MessageStatusPending      MessageStatus = "pending"
	MessageStatusDelivered    MessageStatus = "delivered"
	MessageStatusAcknowledged MessageStatus = "acknowledged"
	MessageStatusResolved     MessageStatus = "resolved"
)

type CollaborationStatus string

const (
	CollaborationStatusPlanning  CollaborationStatus = "planning"
	CollaborationStatusActive    CollaborationStatus = "active"
	CollaborationStatusCompleted CollaborationStatus = "completed"
	CollaborationStatusFailed    CollaborationStatus = "failed"
)

type ConflictStatus string

const (
	ConflictStatusOpen      ConflictStatus = "open"
	ConflictStatusResolved  ConflictStatus = "resolved"
	ConflictStatusEscalated ConflictStatus = "escalated"
)

type TaskStatus string

const (
	TaskStatusPending      TaskStatus = "pending"
	TaskStatusAnalyzing    TaskStatus = "analyzing"
	TaskStatusImplementing TaskStatus = "implementing"
	TaskStatusTesting      TaskStatus = "testing"
	TaskStatusCompleted    TaskStatus = "completed"
	TaskStatusFailed       TaskStatus = "failed"
)

var terminalJobStatuses = map[JobStatus]bool{
	JobStatusCompleted: true,
}

var terminalCoordinationStatuses = map[CoordinationStatus]bool{
	CoordinationStatusCompleted: true,
	CoordinationStatusFailed:    true,
}

var terminalTaskStatuses = map[TaskStatus]bool{
	TaskStatusCompleted: true,
	TaskStatusFailed:    true,
}

// Job transitions: failed → pending exists only for the retry re-arm path.
// completed is the sole terminal status; cancellation maps onto failed.
var validJobTransitions = map[JobStatus]map[JobStatus]bool{
	JobStatusPending: {
		JobStatusRunning: true,
		JobStatusFailed:  true, // cancel before first run
	},
	JobStatusRunning: {
		JobStatusCompleted: true,
		JobStatusFailed:    true,
		JobStatusPaused:    true,
	},
	JobStatusPaused: {
		JobStatusRunning: true,
		JobStatusFailed:  true, // cancel while paused
	},
	JobStatusFailed: {
		JobStatusPending: true, // retry re-arm
	},
}

var validCoordinationTransitions = map[CoordinationStatus]map[CoordinationStatus]bool{
	CoordinationStatusAssigned: {
		CoordinationStatusRunning:   true,
		CoordinationStatusCompleted: true, // task observed only after finishing
		CoordinationStatusFailed:    true,
	},
	CoordinationStatusRunning: {
		CoordinationStatusCompleted: true,
		CoordinationStatusFailed:    true,
	},
}

var validCollaborationTransitions = map[CollaborationStatus]map[CollaborationStatus]bool{
	CollaborationStatusPlanning: {
		CollaborationStatusActive: true,
		CollaborationStatusFailed: true,
	},
	CollaborationStatusActive: {
		CollaborationStatusCompleted: true,
		CollaborationStatusFailed:    true,
	},
}

// Message statuses only move forward: pending → delivered → acknowledged → resolved.
// A handler may skip intermediate states (e.g. pending directly to resolved).
var messageStatusRank = map[MessageStatus]int{
	MessageStatusPending:      0,
	MessageStatusDelivered:    1,
	MessageStatusAcknowledged: 2,
	MessageStatusResolved:     3,
}

func IsJobTerminal(s JobStatus) bool {
	return terminalJobStatuses[s]
}

func IsCoordinationTerminal(s CoordinationStatus) bool {
	return terminalCoordinationStatuses[s]
}

func IsTaskTerminal(s TaskStatus) bool {
	return terminalTaskStatuses[s]
}

func ValidateJobTransition(from, to JobStatus) error {
	if IsJobTerminal(from) {
		return fmt.Errorf("cannot transition from terminal job status %q", from)
	}
	allowed, ok := validJobTransitions[from]
	if !ok {
		return fmt.Errorf("unknown job status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid job transition: %q → %q", from, to)
	}
	return nil
}

func ValidateCoordinationTransition(from, to CoordinationStatus) error {
	if IsCoordinationTerminal(from) {
		return fmt.Errorf("cannot transition from terminal coordination status %q", from)
	}
	allowed, ok := validCoordinationTransitions[from]
	if !ok {
		return fmt.Errorf("unknown coordination status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid coordination transition: %q → %q", from, to)
	}
	return nil
}

func ValidateCollaborationTransition(from, to CollaborationStatus) error {
	allowed, ok := validCollaborationTransitions[from]
	if !ok {
		return fmt.Errorf("cannot transition from status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid collaboration transition: %q → %q", from, to)
	}
	return nil
}

func ValidateMessageTransition(from, to MessageStatus) error {
	fromRank, ok := messageStatusRank[from]
	if !ok {
		return fmt.Errorf("unknown message status %q", from)
	}
	toRank, ok := messageStatusRank[to]
	if !ok {
		return fmt.Errorf("unknown message status %q", to)
	}
	if toRank <= fromRank {
		return fmt.Errorf("message status may only move forward: %q → %q", from, to)
	}
	return nil
}
