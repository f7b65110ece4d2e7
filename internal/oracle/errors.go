package oracle

import (
	"errors"
	"fmt"
)

// Codespace tags oracle failures in ABCI responses.
const Codespace = "oracle"

// Error is a program failure with a stable numeric code.
type Error struct {
	Code uint32
	Name string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

var (
	ErrInvalidAuthority = &Error{
		Code: 6000, Name: "InvalidAuthority",
		Msg: "Invalid authority to perform this action.",
	}
	ErrAlreadyInitialized = &Error{
		Code: 6001, Name: "AlreadyInitialized",
		Msg: "The price account is already initialized.",
	}
	ErrInvalidInput = &Error{
		Code: 6002, Name: "InvalidInput",
		Msg: "Instruction arguments are out of range.",
	}
	ErrAddressMismatch = &Error{
		Code: 2006, Name: "AddressMismatch",
		Msg: "Derived address does not match the supplied account.",
	}
	ErrAccountDiscriminatorMismatch = &Error{
		Code: 3002, Name: "AccountDiscriminatorMismatch",
		Msg: "Account discriminator did not match what was expected.",
	}
	ErrAccountDidNotDeserialize = &Error{
		Code: 3003, Name: "AccountDidNotDeserialize",
		Msg: "Failed to deserialize the account.",
	}
	ErrAccountOwnedByWrongProgram = &Error{
		Code: 3007, Name: "AccountOwnedByWrongProgram",
		Msg: "The given account is owned by a different program than expected.",
	}
	ErrAccountNotInitialized = &Error{
		Code: 3012, Name: "AccountNotInitialized",
		Msg: "The program expected this account to be already initialized.",
	}
)

// ErrorCode extracts the program error code from err, if any.
func ErrorCode(err error) (uint32, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code, true
	}
	return 0, false
}

// ErrorByCode returns the sentinel for code, or nil.
func ErrorByCode(code uint32) *Error {
	for _, e := range []*Error{
		ErrInvalidAuthority,
		ErrAlreadyInitialized,
		ErrInvalidInput,
		ErrAddressMismatch,
		ErrAccountDiscriminatorMismatch,
		ErrAccountDidNotDeserialize,
		ErrAccountOwnedByWrongProgram,
		ErrAccountNotInitialized,
	} {
		if e.Code == code {
			return e
		}
	}
	return nil
}
