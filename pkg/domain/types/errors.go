package types

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrStorageFailure tags I/O or integrity failures in the persistence store
	ErrStorageFailure = goerr.New("storage failure")

	// ErrDuplicateKey is returned when a user row collides on corporate email
	ErrDuplicateKey = goerr.New("duplicate key")

	// ErrUnknownTool is returned when a delegate or function name cannot be resolved
	ErrUnknownTool = goerr.New("unknown tool")

	// ErrNonSerializable is returned when a tool result cannot be encoded to JSON
	ErrNonSerializable = goerr.New("non-serializable tool result")
)
