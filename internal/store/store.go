// Package store provides persistence for project build histories.
package store

import (
	"errors"
	"strings"

	"github.com/caevv/buildtime/internal/history"
)

var (
	// ErrNotInitialized is returned when an operation needs a loaded record
	// but Initialize has not succeeded.
	ErrNotInitialized = errors.New("history store has not been initialized")

	// ErrStorageUnavailable wraps read, write and decode failures.
	ErrStorageUnavailable = errors.New("history storage unavailable")

	// ErrRecordNotFound is returned by a Backend when no record exists yet.
	ErrRecordNotFound = errors.New("history record not found")

	// ErrInvalidProject is returned for names that cannot address a record.
	ErrInvalidProject = errors.New("invalid project name")

	// ErrInvalidEvent is returned when appending an event that may not be stored.
	ErrInvalidEvent = errors.New("invalid build event")
)

// Backend persists one history document per project.
type Backend interface {
	// Load reads the record for project. Returns ErrRecordNotFound when the
	// project has never been saved.
	Load(project string) (*history.Project, error)

	// Save atomically replaces the record stored under project.
	Save(project string, p *history.Project) error

	// Quarantine moves an existing record aside so it is not overwritten.
	// It is a no-op when no record exists.
	Quarantine(project string) error

	// Location describes where the record for project lives.
	Location(project string) string

	// Close releases any resources held by the backend.
	Close() error
}

// ValidateProjectName checks that name can be used as a record key.
func ValidateProjectName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return ErrInvalidProject
	case strings.ContainsAny(name, `/\`+"\x00"):
		return ErrInvalidProject
	case name == "." || name == "..":
		return ErrInvalidProject
	}
	return nil
}
