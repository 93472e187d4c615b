package workitems

import "errors"

// ErrEmptyBatch indicates an ingestion call with no rows (caller error).
var ErrEmptyBatch = errors.New("rows array required")

// ErrReleaseRequired indicates an analytics query without the release parameter.
var ErrReleaseRequired = errors.New("release is required")

// ErrBadRow indicates an ingested row missing its identity; field-level
// problems degrade to absent instead, so this only fires on a bad workItemId.
var ErrBadRow = errors.New("invalid row")
