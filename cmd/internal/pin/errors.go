package pin

import (
	"errors"
	"fmt"
)

// Sentinel error kinds (stable for errors.Is and for mapping to user-facing outcomes).
var (
	ErrValidation    = errors.New("validation")
	ErrNotFound      = errors.New("not_found")
	ErrDuplicateUser = errors.New("duplicate_user")
	ErrDuplicatePin  = errors.New("duplicate_pin")
	ErrStore         = errors.New("store")
)

// Validation reasons. Each one is also ErrValidation.
var (
	ErrInvalidRole     = fmt.Errorf("%w: invalid role", ErrValidation)
	ErrInvalidDate     = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrMissingSelector = fmt.Errorf("%w: missing selector", ErrValidation)
	ErrInvalidPage     = fmt.Errorf("%w: invalid page", ErrValidation)
)

// Logical conflict fields reported by ConflictError.
const (
	FieldPin    = "pin"
	FieldUserID = "user_id"
)

// OpError is a typed operation error with a stable Op + Kind contract.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// ConflictError reports a uniqueness conflict on Field.
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Unwrap())
}

// Unwrap maps the conflicting field to its duplicate kind.
func (e ConflictError) Unwrap() error {
	if e.Field == FieldUserID {
		return ErrDuplicateUser
	}
	return ErrDuplicatePin
}

// StoreError wraps an underlying persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStore, e.Err)
}

func (e StoreError) Unwrap() []error { return []error{ErrStore, e.Err} }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se StoreError
	if errors.As(err, &se) {
		return err
	}
	return StoreError{Op: op, Err: err}
}

func notFound(op, msg string) error { return OpError{Op: op, Kind: ErrNotFound, Msg: msg} }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err represents ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsDuplicate reports whether err is a duplicate user or duplicate pin conflict.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateUser) || errors.Is(err, ErrDuplicatePin)
}

// IsStore reports whether err is a persistence failure.
func IsStore(err error) bool { return errors.Is(err, ErrStore) }

var errDuplicateID = errors.New("duplicate id")
