package beanctx

import (
	"fmt"
	"reflect"
	"strings"
)

// applyPropertyValues resolves every property of def and binds it onto instance.
// Bean references are realized depth first through the factory, extending path so
// that reference cycles are reported instead of recursing forever.
func (f *BeanFactory) applyPropertyValues(name string, instance any, def *BeanDefinition, path []string) error {
	for _, pv := range def.PropertyValues().All() {
		value := pv.Value
		if ref, ok := value.(BeanReference); ok {
			resolved, err := f.doGetBean(ref.BeanName, nil, path)
			if err != nil {
				return fmt.Errorf("resolving reference '%s' for property '%s': %w", ref.BeanName, pv.Name, err)
			}
			value = resolved
		}
		if err := bindProperty(instance, def, pv.Name, value); err != nil {
			return fmt.Errorf("%w: property '%s' on '%s': %v", ErrPropertyBinding, pv.Name, name, err)
		}
	}
	return nil
}

// bindProperty writes value into the slot called name. A setter registered on the
// definition wins; otherwise an exported field is located by its di.property tag or,
// failing that, by a case-insensitive match on the field name.
func bindProperty(instance any, def *BeanDefinition, name string, value any) error {
	if fn, ok := def.setter(name); ok {
		return fn(instance, value)
	}

	rv := reflect.ValueOf(instance)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("instance of type %T has no settable fields", instance)
	}
	rv = rv.Elem()

	fv, sf, err := lookupField(rv, name)
	if err != nil {
		return err
	}
	if !sf.IsExported() || !fv.CanSet() {
		return fmt.Errorf("field '%s' is not settable", sf.Name)
	}

	v, err := convertValue(value, fv.Type())
	if err != nil {
		return err
	}
	fv.Set(v)
	return nil
}

func lookupField(rv reflect.Value, name string) (reflect.Value, reflect.StructField, error) {
	fields := reflect.VisibleFields(rv.Type())

	match := func(pred func(reflect.StructField) bool) (reflect.Value, reflect.StructField, bool, error) {
		for _, sf := range fields {
			if !pred(sf) {
				continue
			}
			fv, err := rv.FieldByIndexErr(sf.Index)
			if err != nil {
				return reflect.Value{}, sf, true, fmt.Errorf("field '%s': %v", sf.Name, err)
			}
			return fv, sf, true, nil
		}
		return reflect.Value{}, reflect.StructField{}, false, nil
	}

	// Tagged fields first, so a tag can claim a name that also matches another field.
	if fv, sf, ok, err := match(func(sf reflect.StructField) bool {
		return sf.Tag.Get(string(property)) == name
	}); ok {
		return fv, sf, err
	}
	if fv, sf, ok, err := match(func(sf reflect.StructField) bool {
		return !sf.Anonymous && strings.EqualFold(sf.Name, name)
	}); ok {
		return fv, sf, err
	}
	return reflect.Value{}, reflect.StructField{}, fmt.Errorf("no field matches property '%s'", name)
}
