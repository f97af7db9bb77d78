package beanctx

import (
	"fmt"
	"reflect"
	"strings"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// BeanType describes what the factory constructs for a definition: the type of the
// produced instance and the constructors that may produce it.
//
// Struct types are normalized to pointer-to-struct for consistent binding semantics,
// matching the way instances are handed out by the factory.
type BeanType struct {
	typ          reflect.Type
	constructors []reflect.Value
}

// NewBeanType builds a BeanType for beanType. Each constructor must be a non-variadic
// func returning a value assignable to the (normalized) bean type, optionally
// followed by an error. Constructor declaration order is preserved and decides
// which constructor wins when several share an arity.
//
// Types other than structs and pointers to structs need at least one constructor,
// since there is no zero value the container could meaningfully populate.
func NewBeanType(beanType reflect.Type, constructors ...any) (*BeanType, error) {
	if beanType == nil {
		return nil, ErrBeanTypeParamIsNil
	}

	if beanType.Kind() == reflect.Struct {
		beanType = reflect.PointerTo(beanType)
	}

	bt := &BeanType{typ: beanType}
	for i, ctor := range constructors {
		cv := reflect.ValueOf(ctor)
		if err := validateConstructor(beanType, cv); err != nil {
			return nil, fmt.Errorf("constructor #%d for %v: %w", i, beanType, err)
		}
		bt.constructors = append(bt.constructors, cv)
	}

	if len(bt.constructors) == 0 && !isStructPointer(beanType) {
		return nil, fmt.Errorf("%w: %v needs a constructor", ErrBeanTypeNotSupported, beanType)
	}
	return bt, nil
}

// TypeOf is the generic form of NewBeanType. It panics on an invalid constructor,
// so it is meant for package-level type tables and tests.
func TypeOf[T any](constructors ...any) *BeanType {
	bt, err := NewBeanType(reflect.TypeOf((*T)(nil)).Elem(), constructors...)
	if err != nil {
		panic(err)
	}
	return bt
}

// Type returns the type of instances this BeanType produces.
func (t *BeanType) Type() reflect.Type { return t.typ }

// Name returns the simple type name, without package path or pointer marker.
func (t *BeanType) Name() string {
	typ := t.typ
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return typ.Name()
}

func (t *BeanType) String() string { return t.typ.String() }

// Implements reports whether instances of this type satisfy iface, which must be an
// interface type.
func (t *BeanType) Implements(iface reflect.Type) bool {
	if iface == nil || iface.Kind() != reflect.Interface {
		return false
	}
	return t.typ.Implements(iface)
}

func validateConstructor(beanType reflect.Type, cv reflect.Value) error {
	if !cv.IsValid() || cv.Kind() != reflect.Func || cv.IsNil() {
		return ErrConstructorInvalid
	}
	ft := cv.Type()
	if ft.IsVariadic() {
		return fmt.Errorf("%w: variadic constructors are not supported", ErrConstructorInvalid)
	}
	switch ft.NumOut() {
	case 1:
	case 2:
		if ft.Out(1) != errorType {
			return fmt.Errorf("%w: second result must be error", ErrConstructorInvalid)
		}
	default:
		return fmt.Errorf("%w: must return the bean and an optional error", ErrConstructorInvalid)
	}
	if !ft.Out(0).AssignableTo(beanType) {
		return fmt.Errorf("%w: returns %v", ErrConstructorInvalid, ft.Out(0))
	}
	return nil
}

func isStructPointer(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct
}

// BeanReference is a property value pointing at another bean by name. It is resolved
// through the factory on every realization of the owning bean.
type BeanReference struct {
	BeanName string
}

// Ref is shorthand for BeanReference{BeanName: name}.
func Ref(name string) BeanReference { return BeanReference{BeanName: name} }

// PropertyValue is a single named assignment. Value is either a literal or a
// BeanReference.
type PropertyValue struct {
	Name  string
	Value any
}

// PropertyValues holds the property assignments of one definition. Adding a name that
// is already present replaces the earlier value in place.
type PropertyValues struct {
	values []PropertyValue
}

func NewPropertyValues(values ...PropertyValue) *PropertyValues {
	pvs := &PropertyValues{}
	for _, pv := range values {
		pvs.Add(pv)
	}
	return pvs
}

func (p *PropertyValues) Add(pv PropertyValue) {
	for i := range p.values {
		if p.values[i].Name == pv.Name {
			p.values[i] = pv
			return
		}
	}
	p.values = append(p.values, pv)
}

func (p *PropertyValues) Get(name string) (PropertyValue, bool) {
	for _, pv := range p.values {
		if pv.Name == name {
			return pv, true
		}
	}
	return PropertyValue{}, false
}

func (p *PropertyValues) Contains(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// All returns a copy of the assignments in insertion order.
func (p *PropertyValues) All() []PropertyValue {
	out := make([]PropertyValue, len(p.values))
	copy(out, p.values)
	return out
}

func (p *PropertyValues) Len() int { return len(p.values) }

// Setter binds a resolved property value onto an instance without reflection.
type Setter func(instance any, value any) error

// BeanDefinition is the construction recipe for one named bean.
type BeanDefinition struct {
	beanType          *BeanType
	propertyValues    *PropertyValues
	initMethodName    string
	destroyMethodName string
	scope             Scope
	setters           map[string]Setter
}

// NewBeanDefinition returns a singleton-scoped definition with no properties.
func NewBeanDefinition(beanType *BeanType) *BeanDefinition {
	return &BeanDefinition{
		beanType:       beanType,
		propertyValues: NewPropertyValues(),
		scope:          ScopeSingleton,
	}
}

func (d *BeanDefinition) BeanType() *BeanType             { return d.beanType }
func (d *BeanDefinition) PropertyValues() *PropertyValues { return d.propertyValues }
func (d *BeanDefinition) InitMethodName() string          { return d.initMethodName }
func (d *BeanDefinition) DestroyMethodName() string       { return d.destroyMethodName }
func (d *BeanDefinition) Scope() Scope                    { return d.scope }
func (d *BeanDefinition) IsSingleton() bool               { return d.scope == ScopeSingleton }
func (d *BeanDefinition) IsPrototype() bool               { return d.scope == ScopePrototype }

// SetPropertyValues replaces the whole property set. A nil set clears it.
func (d *BeanDefinition) SetPropertyValues(pvs *PropertyValues) {
	if pvs == nil {
		pvs = NewPropertyValues()
	}
	d.propertyValues = pvs
}

// WithScope sets the scope; an empty scope means singleton.
func (d *BeanDefinition) WithScope(scope Scope) *BeanDefinition {
	if scope == emptyString {
		scope = ScopeSingleton
	}
	d.scope = Scope(strings.ToLower(string(scope)))
	return d
}

func (d *BeanDefinition) WithInitMethod(name string) *BeanDefinition {
	d.initMethodName = name
	return d
}

func (d *BeanDefinition) WithDestroyMethod(name string) *BeanDefinition {
	d.destroyMethodName = name
	return d
}

// WithProperty adds or replaces the named property. Pass a BeanReference to wire
// another bean.
func (d *BeanDefinition) WithProperty(name string, value any) *BeanDefinition {
	d.propertyValues.Add(PropertyValue{Name: name, Value: value})
	return d
}

// WithSetter registers an explicit setter for the named property. Setters take
// precedence over reflective field binding.
func (d *BeanDefinition) WithSetter(name string, fn Setter) *BeanDefinition {
	if d.setters == nil {
		d.setters = make(map[string]Setter)
	}
	d.setters[name] = fn
	return d
}

func (d *BeanDefinition) setter(name string) (Setter, bool) {
	fn, ok := d.setters[name]
	return fn, ok && fn != nil
}

// DefaultName derives a bean name from the type name, e.g. UserDao becomes userDao.
func (t *BeanType) DefaultName() string { return lowerFirst(t.Name()) }
