package customer

import "errors"

// Domain errors for the customer package.
var (
	// ErrCustomerNotFound is returned when a customer ID does not exist.
	ErrCustomerNotFound = errors.New("customer: not found")

	// ErrCodeNotFound is returned when a setup code does not exist.
	ErrCodeNotFound = errors.New("customer: code not found")

	// ErrCodeExists is returned when creating a setup code that is already taken.
	ErrCodeExists = errors.New("customer: code already exists")

	// ErrCodeExhausted is returned when no free setup code could be generated.
	ErrCodeExhausted = errors.New("customer: code space exhausted")

	// ErrAssignmentNotFound is returned when a device has no customer assignment.
	ErrAssignmentNotFound = errors.New("customer: assignment not found")

	// ErrLocationNotFound is returned when a device has no recorded location.
	ErrLocationNotFound = errors.New("customer: location not found")
)
