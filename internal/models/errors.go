package models

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of the document QA core
type Kind int

const (
	KindQA Kind = iota
	KindChainBuild
	KindVectorStore
	KindSession
	KindReRanker
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindChainBuild:
		return "chain build"
	case KindVectorStore:
		return "vector store"
	case KindSession:
		return "session"
	case KindReRanker:
		return "re-ranker"
	case KindValidation:
		return "validation"
	default:
		return "document qa"
	}
}

var (
	// ErrDocumentQA matches every backend failure of the core.
	ErrDocumentQA  = errors.New("document qa error")
	ErrChainBuild  = errors.New("chain build error")
	ErrVectorStore = errors.New("vector store error")
	ErrSession     = errors.New("session error")
	ErrReRanker    = errors.New("re-ranker error")

	// ErrValidation matches caller mistakes; these map to client errors.
	ErrValidation        = errors.New("validation error")
	ErrEmptyQuery        = fmt.Errorf("%w: query cannot be empty", ErrValidation)
	ErrEmptyMessage      = fmt.Errorf("%w: message is empty", ErrValidation)
	ErrNoDocuments       = fmt.Errorf("%w: no documents provided", ErrValidation)
	ErrEmptyCorpus       = fmt.Errorf("%w: no content available for processing", ErrValidation)
	ErrUploadLimit       = fmt.Errorf("%w: upload limit reached", ErrValidation)
	ErrUnsupportedSource = fmt.Errorf("%w: unsupported source", ErrValidation)
)

var kindSentinels = map[Kind]error{
	KindQA:          ErrDocumentQA,
	KindChainBuild:  ErrChainBuild,
	KindVectorStore: ErrVectorStore,
	KindSession:     ErrSession,
	KindReRanker:    ErrReRanker,
	KindValidation:  ErrValidation,
}

// Error is the typed failure returned by the core packages
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel; all kinds except validation also match ErrDocumentQA.
func (e *Error) Is(target error) bool {
	if target == kindSentinels[e.Kind] {
		return true
	}
	return target == ErrDocumentQA && e.Kind != KindValidation
}

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func QAError(op string, err error) error          { return newError(KindQA, op, err) }
func ChainBuildError(op string, err error) error  { return newError(KindChainBuild, op, err) }
func VectorStoreError(op string, err error) error { return newError(KindVectorStore, op, err) }
func SessionError(op string, err error) error     { return newError(KindSession, op, err) }
func ReRankerError(op string, err error) error    { return newError(KindReRanker, op, err) }
func ValidationError(op string, err error) error  { return newError(KindValidation, op, err) }

// IsValidation reports whether err was caused by bad input rather than a backend.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
