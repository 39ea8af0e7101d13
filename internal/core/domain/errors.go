package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidCoordinate is returned for points outside the WGS 84 range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// StoreError reports a failed cache read or write.
type StoreError struct {
	Op    string // "find_near" or "insert"
	Point Coordinate
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cache store %s at %s: %v", e.Op, e.Point, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ResolverError reports an unreachable, failing or unparseable external resolver.
type ResolverError struct {
	Resolver string
	Point    Coordinate
	Err      error
}

func (e *ResolverError) Error() string {
	return fmt.Sprintf("resolver %s at %s: %v", e.Resolver, e.Point, e.Err)
}

func (e *ResolverError) Unwrap() error { return e.Err }
