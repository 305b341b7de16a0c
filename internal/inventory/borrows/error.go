package borrows

import (
	"errors"
	"fmt"
)

// ===== Error model (items/categories と同型) =====
type Code string

const (
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeInvalidQuantity   Code = "INVALID_QUANTITY"
	CodeInvalidStatus     Code = "INVALID_STATUS"
	CodeNotFound          Code = "NOT_FOUND"
	CodeNotBorrowable     Code = "NOT_BORROWABLE"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeAlreadyReturned   Code = "ALREADY_RETURNED"
	CodeConflict          Code = "CONFLICT"
	CodeInternal          Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func ErrInvalidQuantity(msg string) *APIError {
	return &APIError{Code: CodeInvalidQuantity, Message: msg}
}

func ErrInvalidStatus(s string) *APIError {
	return &APIError{Code: CodeInvalidStatus, Message: fmt.Sprintf("unknown status %q", s)}
}

func ErrNotBorrowable() *APIError {
	return &APIError{Code: CodeNotBorrowable, Message: "item is not borrowable"}
}

func ErrInsufficientStock(available, requested int) *APIError {
	return &APIError{
		Code:    CodeInsufficientStock,
		Message: fmt.Sprintf("requested %d but only %d available", requested, available),
	}
}

func ErrAlreadyReturned() *APIError {
	return &APIError{Code: CodeAlreadyReturned, Message: "borrow log already returned"}
}

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument, CodeInvalidQuantity, CodeInvalidStatus:
			return 400
		case CodeNotFound:
			return 404
		case CodeNotBorrowable, CodeInsufficientStock, CodeAlreadyReturned, CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}

// HasCode reports whether err is an APIError carrying the given code.
func HasCode(err error, code Code) bool {
	var api *APIError
	return errors.As(err, &api) && api.Code == code
}
