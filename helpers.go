package beanctx

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// createInstance allocates a zero value of the bean type. Go may hand out the
// same address for every zero-size allocation, so instances of empty structs are
// not distinguishable by pointer, prototypes included.
func createInstance(beanType reflect.Type) (any, error) {
	if beanType.Kind() == reflect.Ptr {
		return reflect.New(beanType.Elem()).Interface(), nil
	}
	// Support direct struct kinds by creating a pointer to it,
	// so all created instances are pointers for consistency.
	if beanType.Kind() == reflect.Struct {
		return reflect.New(beanType).Interface(), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrBeanTypeNotSupported, beanType.Kind())
}

// normalizeInstance turns struct values into pointers so that registered instances
// behave like factory-created ones.
func normalizeInstance(instance any) any {
	rv := reflect.ValueOf(instance)
	if rv.Kind() != reflect.Struct {
		return instance
	}
	ptr := reflect.New(rv.Type())
	ptr.Elem().Set(rv)
	return ptr.Interface()
}

func isNilValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// isNil reports whether v is nil or a typed nil.
func isNil(v any) bool {
	return v == nil || isNilValue(reflect.ValueOf(v))
}

// convertValue adapts value to target. The rules mirror field injection: exact and
// assignable types pass through, pointer and value forms of the same struct are
// normalized, numeric kinds convert, and strings are parsed into scalar kinds.
func convertValue(value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(target), nil
	}

	rv := reflect.ValueOf(value)
	rt := rv.Type()

	if rt == target || rt.AssignableTo(target) {
		return rv, nil
	}

	// field: *T, value: T
	if target.Kind() == reflect.Ptr && target.Elem() == rt {
		ptr := reflect.New(rt)
		ptr.Elem().Set(rv)
		return ptr, nil
	}

	// field: T, value: *T
	if rt.Kind() == reflect.Ptr && rt.Elem() == target {
		if rv.IsNil() {
			return reflect.Zero(target), nil
		}
		return rv.Elem(), nil
	}

	if rt.Kind() == reflect.String && target.Kind() != reflect.String {
		return parseLiteral(rv.String(), target)
	}

	if isNumericKind(rt.Kind()) && isNumericKind(target.Kind()) {
		if err := checkNumeric(rv, target); err != nil {
			return reflect.Value{}, err
		}
		return rv.Convert(target), nil
	}

	if target.Kind() == reflect.String && (isNumericKind(rt.Kind()) || rt.Kind() == reflect.Bool) {
		return reflect.ValueOf(fmt.Sprint(value)).Convert(target), nil
	}

	// Named types over the same kind, e.g. a Scope field set from a string constant type.
	if rt.Kind() == target.Kind() && rt.ConvertibleTo(target) {
		return rv.Convert(target), nil
	}

	return reflect.Value{}, fmt.Errorf("cannot use %v as %v", rt, target)
}

func parseLiteral(s string, target reflect.Type) (reflect.Value, error) {
	s = strings.TrimSpace(s)
	out := reflect.New(target).Elem()

	if target == durationType {
		d, err := time.ParseDuration(s)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetInt(int64(d))
		return out, nil
	}

	switch target.Kind() {
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, target.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(s, 10, target.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, target.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetFloat(f)
	case reflect.Ptr:
		elem, err := parseLiteral(s, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	default:
		return reflect.Value{}, fmt.Errorf("cannot parse %q into %v", s, target)
	}
	return out, nil
}

// checkNumeric rejects conversions that would lose the value: overflow, a sign
// change, or a fractional part dropped on the way to an integer.
func checkNumeric(rv reflect.Value, target reflect.Type) error {
	zero := reflect.Zero(target)
	lossy := fmt.Errorf("%v does not fit in %v", rv.Interface(), target)

	switch {
	case rv.CanInt():
		i := rv.Int()
		switch {
		case zero.CanInt() && zero.OverflowInt(i):
			return lossy
		case zero.CanUint() && (i < 0 || zero.OverflowUint(uint64(i))):
			return lossy
		case zero.CanFloat() && zero.OverflowFloat(float64(i)):
			return lossy
		}
	case rv.CanUint():
		u := rv.Uint()
		switch {
		case zero.CanInt() && (u > math.MaxInt64 || zero.OverflowInt(int64(u))):
			return lossy
		case zero.CanUint() && zero.OverflowUint(u):
			return lossy
		case zero.CanFloat() && zero.OverflowFloat(float64(u)):
			return lossy
		}
	case rv.CanFloat():
		f := rv.Float()
		switch {
		case zero.CanFloat():
			if zero.OverflowFloat(f) {
				return lossy
			}
		case math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f):
			return lossy
		case zero.CanInt() && (f < math.MinInt64 || f >= math.MaxInt64 || zero.OverflowInt(int64(f))):
			return lossy
		case zero.CanUint() && (f < 0 || f >= math.MaxUint64 || zero.OverflowUint(uint64(f))):
			return lossy
		}
	}
	return nil
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// lowerFirst is used to derive default bean names from type names.
func lowerFirst(s string) string {
	if s == emptyString {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
