// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed client request. Nothing is persisted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidation(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// DateFormatError carries the raw date value that could not be parsed.
type DateFormatError struct {
	Raw string
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("Invalid date format: %s", e.Raw)
}

func NewDateFormat(raw string) error {
	return &DateFormatError{Raw: raw}
}

// PersistenceError wraps a store failure or a rejected write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("persistence: %s failed", e.Op)
	}
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func NewPersistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// NotFoundError is returned when an id is absent on update or delete.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// TransitionError rejects a status change out of a terminal status.
type TransitionError struct {
	ID   string
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("schedule %s cannot move from %s to %s", e.ID, e.From, e.To)
}

func NewTransition(id, from, to string) error {
	return &TransitionError{ID: id, From: from, To: to}
}

// MissingContactError marks a schedule whose customer is unresolvable or has no number.
type MissingContactError struct {
	ScheduleID string
	CustomerID string
}

func (e *MissingContactError) Error() string {
	return fmt.Sprintf("schedule %s: customer %q WhatsApp number not found", e.ScheduleID, e.CustomerID)
}

func NewMissingContact(scheduleID, customerID string) error {
	return &MissingContactError{ScheduleID: scheduleID, CustomerID: customerID}
}

// UnresolvedReferenceError marks a schedule whose poster no longer resolves.
type UnresolvedReferenceError struct {
	ScheduleID string
	Resource   string
	ID         string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("schedule %s: %s %q not found", e.ScheduleID, e.Resource, e.ID)
}

func NewUnresolvedReference(scheduleID, resource, id string) error {
	return &UnresolvedReferenceError{ScheduleID: scheduleID, Resource: resource, ID: id}
}

// RemoteDispatchError wraps a transport failure or a non-success reply from the messaging API.
type RemoteDispatchError struct {
	ScheduleID string
	Err        error
}

func (e *RemoteDispatchError) Error() string {
	return fmt.Sprintf("schedule %s: send failed: %v", e.ScheduleID, e.Err)
}

func (e *RemoteDispatchError) Unwrap() error {
	return e.Err
}

func NewRemoteDispatch(scheduleID string, err error) error {
	return &RemoteDispatchError{ScheduleID: scheduleID, Err: err}
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
