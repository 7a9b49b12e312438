package command

import "errors"

// Precondition errors, one distinct case each. Validation errors from the
// input validator are returned verbatim for direct display.
var (
	ErrEntryNotFound        = errors.New("entry not found")
	ErrEntryDeleted         = errors.New("entry is deleted")
	ErrEntryNotDeleted      = errors.New("entry is not deleted")
	ErrEntryMigrated        = errors.New("entry has been migrated")
	ErrNotInCollection      = errors.New("entry is not in that collection")
	ErrCollectionNotFound   = errors.New("collection not found")
	ErrCollectionDeleted    = errors.New("collection is deleted")
	ErrCollectionNotDeleted = errors.New("collection is not deleted")
	ErrInvalidDate          = errors.New("invalid collection date")
)
