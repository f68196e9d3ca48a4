// errors.go - Error taxonomy shared by every saplingcore package.
//
// Every failure surfaced to a caller carries a Kind. Callers match on the
// kind with errors.Is against the Err* sentinels, never on message text.

package saplingerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	InvalidInput Kind = iota + 1
	InvalidScalar
	InvalidPoint
	InvalidDerivationPath
	MalformedAddress
	NoValidDiversifier
	InvalidDepth
	ParametersNotLoaded
	SessionFinalized
	UseAfterDestroy
	UnbalancedTransaction
	ProofGenerationFailed
)

var kindNames = map[Kind]string{
	InvalidInput:          "invalid input",
	InvalidScalar:         "invalid scalar",
	InvalidPoint:          "invalid point",
	InvalidDerivationPath: "invalid derivation path",
	MalformedAddress:      "malformed address",
	NoValidDiversifier:    "no valid diversifier",
	InvalidDepth:          "invalid depth",
	ParametersNotLoaded:   "parameters not loaded",
	SessionFinalized:      "session finalized",
	UseAfterDestroy:       "use after destroy",
	UnbalancedTransaction: "unbalanced transaction",
	ProofGenerationFailed: "proof generation failed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is matching.
var (
	ErrInvalidInput          = &Error{Kind: InvalidInput}
	ErrInvalidScalar         = &Error{Kind: InvalidScalar}
	ErrInvalidPoint          = &Error{Kind: InvalidPoint}
	ErrInvalidDerivationPath = &Error{Kind: InvalidDerivationPath}
	ErrMalformedAddress      = &Error{Kind: MalformedAddress}
	ErrNoValidDiversifier    = &Error{Kind: NoValidDiversifier}
	ErrInvalidDepth          = &Error{Kind: InvalidDepth}
	ErrParametersNotLoaded   = &Error{Kind: ParametersNotLoaded}
	ErrSessionFinalized      = &Error{Kind: SessionFinalized}
	ErrUseAfterDestroy       = &Error{Kind: UseAfterDestroy}
	ErrUnbalancedTransaction = &Error{Kind: UnbalancedTransaction}
	ErrProofGenerationFailed = &Error{Kind: ProofGenerationFailed}
)

// Error is returned by every exported operation that can fail.
type Error struct {
	Kind    Kind   // Failure class
	Op      string // Operation that failed (e.g. "keys.Derive")
	Message string // Human-readable detail
	Err     error  // Underlying error (if any)
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around cause. A cause that already
// carries a different kind is reclassified: its text is kept but it is not
// chained, so errors.Is matches kind alone.
func Wrap(kind Kind, op string, cause error) error {
	var inner *Error
	if errors.As(cause, &inner) && inner.Kind != kind {
		return &Error{Kind: kind, Op: op, Message: cause.Error()}
	}
	return &Error{Kind: kind, Op: op, Err: cause}
}

// KindOf returns the kind carried by err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
