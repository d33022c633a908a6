// Package core defines the engine's domain errors and the interfaces the
// service layer depends on: persistence, the order channel to appliances,
// the fleet registry, and artifact storage.
package core

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness conflict on create.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidArgument indicates the caller supplied bad input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidTransition indicates a rollout state change that the
	// lifecycle does not permit from the current status.
	ErrInvalidTransition = errors.New("invalid transition")
)
