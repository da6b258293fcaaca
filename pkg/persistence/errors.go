// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrChecklistItemNotFound indicates a checklist item was not found in the workflow.
	ErrChecklistItemNotFound = errors.New("checklist item not found")

	// ErrChecklistAlreadySeeded indicates the workflow's checklist has already been created.
	ErrChecklistAlreadySeeded = errors.New("checklist already seeded")

	// ErrCertificateAlreadyExists indicates a certificate record already exists for the workflow.
	ErrCertificateAlreadyExists = errors.New("certificate already exists")

	// ErrInvalidSortField indicates an unsupported sort field was requested.
	ErrInvalidSortField = errors.New("invalid sort field")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "SeedItems")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// ChecklistItemError wraps checklist-item errors with additional context.
type ChecklistItemError struct {
	Op         string
	WorkflowID string
	ItemID     string
	Err        error
}

func (e *ChecklistItemError) Error() string {
	return fmt.Sprintf("%s operation failed for item %s in workflow %s: %v", e.Op, e.ItemID, e.WorkflowID, e.Err)
}

func (e *ChecklistItemError) Unwrap() error {
	return e.Err
}

func (e *ChecklistItemError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsChecklistItemNotFound checks if an error indicates a checklist item was not found.
func IsChecklistItemNotFound(err error) bool {
	return errors.Is(err, ErrChecklistItemNotFound)
}

// IsChecklistAlreadySeeded checks if an error indicates the checklist already exists.
func IsChecklistAlreadySeeded(err error) bool {
	return errors.Is(err, ErrChecklistAlreadySeeded)
}

// IsInvalidSortField checks if an error indicates an unsupported sort field.
func IsInvalidSortField(err error) bool {
	return errors.Is(err, ErrInvalidSortField)
}
