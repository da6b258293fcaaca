// Package services provides standardized error types for the closure
// business logic.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/diligince/closeout/pkg/persistence"
)

// Business-rule errors. Every one of these is a clean rejection: the command
// leaves state unchanged and the caller gets a specific message to render.
var (
	// ErrInvalidTransition indicates the command is not valid for the
	// workflow's current status.
	ErrInvalidTransition = errors.New("action not allowed in the current workflow status")

	// ErrGateNotSatisfied indicates closure preconditions are not met. Use
	// GateError to tell the caller which.
	ErrGateNotSatisfied = errors.New("closure gate not satisfied")

	// ErrForbidden indicates the acting party may not perform this action.
	ErrForbidden = errors.New("acting party is not allowed to perform this action")

	// ErrMissingDocument indicates verification was attempted on an item
	// with no document attached.
	ErrMissingDocument = errors.New("checklist item has no document attached")

	// ErrNoRetention indicates a retention action on a workflow created
	// without retention.
	ErrNoRetention = errors.New("workflow has no retention payment")

	// Already-done conflicts.
	ErrItemAlreadyVerified      = errors.New("checklist item is already verified")
	ErrRetentionAlreadyReleased = errors.New("retention payment is already released")
	ErrMilestoneAlreadyComplete = errors.New("milestone is already marked complete")
	ErrMilestoneAlreadyPaid     = errors.New("milestone payment is already recorded as paid")
	ErrMilestoneNotCompleted    = errors.New("milestone must be completed before recording payment")

	// ErrMilestoneNotFound indicates an unknown milestone within the workflow.
	ErrMilestoneNotFound = errors.New("milestone not found")

	// Not-found errors shared with the persistence layer.
	ErrWorkflowNotFound      = persistence.ErrWorkflowNotFound
	ErrChecklistItemNotFound = persistence.ErrChecklistItemNotFound

	// ErrDocumentNotFound indicates a view link was requested for an item
	// without a document.
	ErrDocumentNotFound = errors.New("no document uploaded for this checklist item")
)

// GateError reports a failed gate check along with the conditions that were
// not met, so the caller can render a specific message.
type GateError struct {
	Unmet []string
}

func (e *GateError) Error() string {
	return fmt.Sprintf("%v: %s", ErrGateNotSatisfied, strings.Join(e.Unmet, "; "))
}

func (e *GateError) Is(target error) bool {
	return target == ErrGateNotSatisfied
}

// NewGateError creates a gate error listing the unmet conditions.
func NewGateError(unmet ...string) *GateError {
	return &GateError{Unmet: unmet}
}

// StorageError wraps failures of external storage collaborators (document
// store, certificate rendering). These are infrastructure faults, reported
// distinctly from business-rule rejections so clients can offer a retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps an external storage failure.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// IsStorageError checks whether an error is an infrastructure storage fault.
func IsStorageError(err error) bool {
	var storageErr *StorageError

	return errors.As(err, &storageErr)
}

// IsConflict checks whether an error is an already-done conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrItemAlreadyVerified) ||
		errors.Is(err, ErrRetentionAlreadyReleased) ||
		errors.Is(err, ErrMilestoneAlreadyComplete) ||
		errors.Is(err, ErrMilestoneAlreadyPaid) ||
		errors.Is(err, persistence.ErrChecklistAlreadySeeded)
}
