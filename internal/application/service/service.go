// Package service implements the workflow engine operations: version
// management, the item decision ledger, phase state transitions, assignment
// routing, and audit recording. Services validate preconditions inside
// transactions, dispatch transition events after commit, and return typed
// failures from the entity package.
package service

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
