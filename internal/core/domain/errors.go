package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the collection was never registered and has no source document file
	ErrNotFound = errors.New("not found")

	// ErrNotReady indicates the collection exists but is in the wrong lifecycle stage
	ErrNotReady = errors.New("not ready")

	// ErrAlreadyIndexed indicates a build was requested for a collection that already has an index
	ErrAlreadyIndexed = errors.New("already indexed")

	// ErrBusy indicates the accelerator is held by another build or activation
	ErrBusy = errors.New("accelerator busy")

	// ErrTimeout indicates the accelerator did not become free within the configured wait bound
	ErrTimeout = errors.New("timed out waiting for accelerator")

	// ErrBuildFailed indicates the retrieval engine failed to build an index
	ErrBuildFailed = errors.New("build failed")

	// ErrActivationFailed indicates the retrieval engine failed to load a searcher
	ErrActivationFailed = errors.New("activation failed")

	// ErrSearchFailed indicates the searcher failed to answer a query
	ErrSearchFailed = errors.New("search failed")

	// ErrInvalidArgument indicates malformed input (collection name, query, k)
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")
)

// NotReadyError builds an ErrNotReady that names the step the caller must run next.
func NotReadyError(name string, status CollectionStatus) error {
	switch status {
	case StatusUnindexed:
		return fmt.Errorf("%w: collection %q is not indexed yet; call POST /api/index/%s first", ErrNotReady, name, name)
	case StatusIndexed:
		return fmt.Errorf("%w: collection %q is indexed but has no searcher; call POST /init_searchers first", ErrNotReady, name)
	default:
		return fmt.Errorf("%w: collection %q is %s", ErrNotReady, name, status)
	}
}
