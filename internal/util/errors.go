package util

import "fmt"

// ResponseError carries the HTTP status and a machine readable code for the client.
type ResponseError struct {
	Msg    string
	Code   string
	Status int
}

func (e ResponseError) Error() string { return e.Msg }

func NewResponseError(status int, code, format string, args ...interface{}) error {
	return ResponseError{
		Msg:    fmt.Sprintf(format, args...),
		Code:   code,
		Status: status,
	}
}
