package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	SessionID ID
	JobID     ID
	TaskID    ID
)

func NewSessionID() SessionID { return SessionID(NewID()) }
func NewJobID() JobID         { return JobID(NewID()) }
func NewTaskID() TaskID       { return TaskID(NewID()) }

// String conversions for domain IDs
func (id SessionID) String() string { return ID(id).String() }
func (id JobID) String() string     { return ID(id).String() }
func (id TaskID) String() string    { return ID(id).String() }

// ParseSessionID parses a string into SessionID
func ParseSessionID(s string) (SessionID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("session ID cannot be empty")
	}
	return SessionID(s), nil
}

// ParseJobID parses a string into JobID
func ParseJobID(s string) (JobID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("job ID cannot be empty")
	}
	return JobID(s), nil
}

// ParseTaskID parses a string into TaskID
func ParseTaskID(s string) (TaskID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("task ID cannot be empty")
	}
	return TaskID(s), nil
}
