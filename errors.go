package bazbom

import (
	"errors"
	"strings"
)

// ErrorKind classifies an *Error: ingestion, network, parse, version-parse,
// cache-corruption, audit-tamper, and config failures each get a distinct
// kind so callers can branch on cause.
type ErrorKind uint8

const (
	ErrKindUnknown ErrorKind = iota
	ErrKindIngestion
	ErrKindNetwork
	ErrKindParse
	ErrKindVersionParse
	ErrKindCacheCorruption
	ErrKindAuditTamper
	ErrKindConfig
	ErrKindDuplicate
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindIngestion:
		return "ingestion"
	case ErrKindNetwork:
		return "network"
	case ErrKindParse:
		return "parse"
	case ErrKindVersionParse:
		return "version_parse"
	case ErrKindCacheCorruption:
		return "cache_corruption"
	case ErrKindAuditTamper:
		return "audit_tamper"
	case ErrKindConfig:
		return "config"
	case ErrKindDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Error is the bazbom error domain type. Components should construct an
// Error at the system boundary (network call, file read, parse) and
// intermediate layers should prefer fmt.Errorf with "%w" to add context
// rather than nesting another Error.
type Error struct {
	Inner   error
	Kind    ErrorKind
	Message string
	Op      string
}

var (
	_ error                       = (*Error)(nil)
	_ interface{ Is(error) bool } = (*Error)(nil)
	_ interface{ Unwrap() error } = (*Error)(nil)
)

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString("[")
	b.WriteString(e.Kind.String())
	b.WriteString("] ")
	b.WriteString(e.Message)
	if e.Inner != nil {
		b.WriteString(": ")
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	o, ok := target.(*Error)
	if !ok {
		return false
	}
	return o.Kind == e.Kind
}

// ErrEmptyMergeSet is returned by advisory.Merge when called with no
// vulnerabilities.
var ErrEmptyMergeSet = errors.New("bazbom: empty merge set")

// ErrBackendUnimplemented reports a declared-but-unimplemented remote cache
// backend. The cache package's S3 and Redis stubs return their own
// cache.ErrUnimplemented instead; nothing in this module returns this value.
var ErrBackendUnimplemented = errors.New("bazbom: cache backend not implemented")
