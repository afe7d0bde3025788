package domain

import "errors"

var (
	// ErrNotFound is returned by KV implementations for a missing key
	ErrNotFound = errors.New("not found")

	// ErrNotAuthenticated is returned when an operation requires a
	// resolved identity and none is present
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAdminRequired is returned when a non-admin identity attempts
	// to upload knowledge-base documents
	ErrAdminRequired = errors.New("uploading documents requires an admin account")

	// ErrConversationNotFound is returned when a conversation ID does
	// not resolve against the live mapping
	ErrConversationNotFound = errors.New("conversation not found")
)
