package engine

import (
	"errors"
	"fmt"

	"github.com/annel0/voxel-engine/internal/csg"
)

// Kind категория ошибки движка
type Kind int

const (
	InitError Kind = iota + 1
	LoadError
	OutOfBounds
	InvalidParameter
)

func (k Kind) String() string {
	switch k {
	case InitError:
		return "init"
	case LoadError:
		return "load"
	case OutOfBounds:
		return "out of bounds"
	case InvalidParameter:
		return "invalid parameter"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error ошибка операции движка
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Сравниваются через errors.Is по категории
var (
	ErrInit             = &Error{Kind: InitError}
	ErrLoad             = &Error{Kind: LoadError}
	ErrOutOfBounds      = &Error{Kind: OutOfBounds}
	ErrInvalidParameter = &Error{Kind: InvalidParameter}
)

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return "engine: " + e.Kind.String()
	case e.Err == nil:
		return fmt.Sprintf("engine: %s: %s", e.Op, e.Kind)
	default:
		return fmt.Sprintf("engine: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is сопоставляет ошибку с сентинелом той же категории
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func invalidf(op, format string, args ...interface{}) error {
	return newError(InvalidParameter, op, fmt.Errorf(format, args...))
}

// wrap переводит ошибки параметров нижних пакетов в категории движка
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *Error
	if errors.As(err, &ee) {
		return err
	}
	if errors.Is(err, csg.ErrOutOfBounds) {
		return newError(OutOfBounds, op, err)
	}
	return newError(InvalidParameter, op, err)
}
