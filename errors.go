package beanctx

import (
	"errors"
	"fmt"
)

var (
	ErrBeanNameIsEmpty      = errors.New("bean name is empty")
	ErrDefinitionIsNil      = errors.New("bean definition is nil")
	ErrBeanTypeParamIsNil   = errors.New("beanType parameter is nil")
	ErrBeanTypeNotSupported = errors.New("beanType is not supported")
	ErrConstructorInvalid   = errors.New("constructor is not valid for bean type")

	ErrDefinitionNotFound  = errors.New("no bean definition found")
	ErrDuplicateDefinition = errors.New("duplicate bean definition")
	ErrInstantiation       = errors.New("bean instantiation failed")
	ErrPropertyBinding     = errors.New("property binding failed")
	ErrInitialization      = errors.New("bean initialization failed")
	ErrMethodNotFound      = errors.New("method not found")
	ErrTypeMismatch        = errors.New("bean is not of requested type")
	ErrCircularReference   = errors.New("circular reference detected")

	ErrContextNotRefreshed = errors.New("application context has not been refreshed")
	ErrAlreadyRefreshed    = errors.New("application context already refreshed")
	ErrContextClosed       = errors.New("application context is closed")
)

// BeanCreationError reports a failed realization of the named bean.
type BeanCreationError struct {
	BeanName string
	Err      error
}

func (e *BeanCreationError) Error() string {
	return fmt.Sprintf("error creating bean '%s': %v", e.BeanName, e.Err)
}

func (e *BeanCreationError) Unwrap() error { return e.Err }

func newCreationError(name string, err error) error {
	if bce, ok := err.(*BeanCreationError); ok && bce.BeanName == name {
		return err
	}
	return &BeanCreationError{BeanName: name, Err: err}
}
