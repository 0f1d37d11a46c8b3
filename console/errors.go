package console

import (
	"fmt"
	"reflect"

	"github.com/kbukum/consolehost/errors"
)

const (
	shapeMessage     = "Could not construct console host for application '%s' because the 'Run' method's return type is not of type 'Task'."
	bootstrapMessage = "Could not construct console host for application '%s', see innerException for details."
)

var applicationType = reflect.TypeFor[Application]()

// IsBootstrapError reports whether err is the error returned by Run and
// RunApplication. The fixed text naming the application is the AppError's
// Message; Error() adds the code and the cause.
func IsBootstrapError(err error) bool {
	return errors.IsCode(err, errors.ErrCodeBootstrap)
}

func shapeError(name string) *errors.AppError {
	return errors.Bootstrap(name, fmt.Sprintf(shapeMessage, name), nil)
}

func bootstrapError(name string, cause error) *errors.AppError {
	return errors.Bootstrap(name, fmt.Sprintf(bootstrapMessage, name), cause)
}

// typeName returns the unqualified name of T, ignoring pointers.
func typeName[T any]() string {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// hasRunMethod reports whether T has a Run method taking no arguments and
// returning exactly *Task.
func hasRunMethod[T any]() bool {
	return reflect.TypeFor[T]().Implements(applicationType)
}
