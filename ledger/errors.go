package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure so callers can distinguish business-rule
// rejections from referential and store errors.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindNotFound
	KindInsufficientFunds
	KindNegativeReceiverBalance
	KindNegativeUserBalance
	KindAlreadyReversed
	KindStoreFailure
)

// Error carries the failure kind alongside the underlying cause, if any.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// Unwrap lets errors.Is and errors.As look into the original error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from any error returned by the engine.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func errInvalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Msg: msg}
}

func errInsufficientFunds() *Error {
	return &Error{Kind: KindInsufficientFunds, Msg: "insufficient funds"}
}

func errNegativeReceiverBalance() *Error {
	return &Error{Kind: KindNegativeReceiverBalance, Msg: "transfer canceled due to receiver's negative balance"}
}

func errNegativeUserBalance() *Error {
	return &Error{Kind: KindNegativeUserBalance, Msg: "deposit canceled due to user's negative balance"}
}

func errAlreadyReversed() *Error {
	return &Error{Kind: KindAlreadyReversed, Msg: "transaction has already been reversed"}
}
