package model

import "time"

type MessageType string

const (
	MessageRequestAssistance  MessageType = "request_assistance"
	MessageShareKnowledge     MessageType = "share_knowledge"
	MessageCoordinateTask     MessageType = "coordinate_task"
	MessageReportStatus       MessageType = "report_status"
	MessageConflictResolution MessageType = "conflict_resolution"
)

// Payload is the tagged union of per-type message bodies. Each concrete
// payload reports the message type it belongs to; free-form extensibility
// lives in the Extra map, not in untyped fields.
type Payload interface {
	Kind() MessageType
}

// AssistanceRequest asks for recommendations in a knowledge domain.
type AssistanceRequest struct {
	Domain   string
	Question string
	Extra    map[string]any
}

func (AssistanceRequest) Kind() MessageType { return MessageRequestAssistance }

// KnowledgeShare carries learned knowledge from one agent to another.
type KnowledgeShare struct {
	Domain     string
	Knowledge  KnowledgeSet
	Confidence float64
	Extra      map[string]any
}

func (KnowledgeShare) Kind() MessageType { return MessageShareKnowledge }

// TaskCoordination informs an agent of its role in a collaboration.
type TaskCoordination struct {
	CollaborationID  string
	TaskIDs          []string
	Role             string
	CoordinationType CoordinationType
	Extra            map[string]any
}

func (TaskCoordination) Kind() MessageType { return MessageCoordinateTask }

// StatusReport reports progress on a job or task.
type StatusReport struct {
	JobID  string
	TaskID string
	Status string
	Detail string
	Extra  map[string]any
}

func (StatusReport) Kind() MessageType { return MessageReportStatus }

// ConflictNotice requests a proposal for, or announces the outcome of, a
// disputed decision.
type ConflictNotice struct {
	ConflictID   string
	ConflictType ConflictType
	Description  string
	Outcome      *Resolution
	Extra        map[string]any
}

func (ConflictNotice) Kind() MessageType { return MessageConflictResolution }

// Response is the reply attached to a message that required one.
type Response struct {
	Payload   map[string]any
	Timestamp time.Time
}

// Communication is a directed message between two named actors (agents or the
// coordinator itself).
type Communication struct {
	ID               string
	From             string
	To               string
	Type             MessageType
	Payload          Payload
	Priority         Priority
	Timestamp        time.Time
	Status           MessageStatus
	RequiresResponse bool
	Response         *Response
}

// Closed reports whether the communication needs no further action. A message
// that requires a response is not closed until one is attached.
func (c *Communication) Closed() bool {
	if c.Status != MessageStatusAcknowledged && c.Status != MessageStatusResolved {
		return false
	}
	if c.RequiresResponse && c.Response == nil {
		return false
	}
	return true
}
