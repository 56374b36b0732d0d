package helpers

import (
	"errors"

	"github.com/ztrue/tracerr"
)

// Error carries a stack trace for every failure that crosses a package
// boundary. Compare with IsNil, never with == nil.
type Error struct {
	errs []tracerr.Error
}

var NilError = Error{nil}

func (e Error) IsNil() bool {
	return e.First() == nil
}

func (e Error) HasError() bool {
	return !e.IsNil()
}

func (e Error) First() tracerr.Error {
	if e.errs == nil {
		return nil
	}
	return e.errs[0]
}

func IsNil(err error) bool {
	if traceableErr, ok := err.(Error); ok {
		return traceableErr.First() == nil
	}
	if traceableErr, ok := err.(*Error); ok {
		return traceableErr.First() == nil
	}
	return err == nil
}

func (e Error) Error() string {
	result := ""
	for _, err := range e.errs {
		result += Indent(tracerr.Sprint(err), ".  ") + "\n"
	}
	return result
}

func (e Error) String() string {
	result := ""
	for _, err := range e.errs {
		result += tracerr.SprintSource(err, 3) + "\n"
	}
	return result
}

func Wrap(err error) Error {
	return Error{[]tracerr.Error{tracerr.Wrap(err)}}
}

func WrapReturn[T any](x T, err error) (T, Error) {
	return x, Wrap(err)
}

func Errorf(format string, args ...interface{}) Error {
	return Error{[]tracerr.Error{tracerr.Errorf(format, args...)}}
}

func Join(others ...Error) Error {
	others = FilterSlice(others, func(err Error) bool {
		return !IsNil(err)
	})
	if len(others) == 0 {
		return NilError
	}
	if len(others) == 1 {
		return others[0]
	}

	result := Error{}
	for _, o := range others {
		result.errs = append(result.errs, o.errs...)
	}
	return result
}

// ErrorIs reports whether any wrapped error matches target, so sentinel
// errors survive the trace wrapping.
func ErrorIs(err Error, target error) bool {
	for _, e := range err.errs {
		if e != nil && errors.Is(e, target) {
			return true
		}
	}
	return false
}

func (e Error) NumErrors() int {
	num := 0
	for _, err := range e.errs {
		if err != nil {
			num++
		}
	}
	return num
}
