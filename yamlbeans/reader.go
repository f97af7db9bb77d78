// Package yamlbeans loads bean definitions from YAML documents.
//
// A document lists beans with their class, scope, lifecycle methods and
// properties. A property carries either a literal value or a ref to another bean:
//
//	beans:
//	  - id: userDao
//	    class: dao.UserDao
//	    init-method: InitData
//	    destroy-method: DestroyData
//	  - id: userService
//	    class: service.UserService
//	    scope: prototype
//	    properties:
//	      - name: uId
//	        value: "10001"
//	      - name: userDao
//	        ref: userDao
//
// Class names are resolved through a TypeRegistry.
package yamlbeans

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Station-Manager/beanctx"
	"github.com/Station-Manager/beanctx/resource"
	"gopkg.in/yaml.v3"
)

type document struct {
	Beans []beanSpec `yaml:"beans"`
}

type beanSpec struct {
	ID            string         `yaml:"id"`
	Name          string         `yaml:"name"`
	Class         string         `yaml:"class"`
	Scope         string         `yaml:"scope"`
	InitMethod    string         `yaml:"init-method"`
	DestroyMethod string         `yaml:"destroy-method"`
	Properties    []propertySpec `yaml:"properties"`
}

type propertySpec struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
	Ref   string `yaml:"ref"`
}

// Reader implements beanctx.DefinitionLoader for YAML documents.
type Reader struct {
	types  *TypeRegistry
	loader resource.Loader
}

// NewReader returns a Reader resolving classes through types and locations through
// loader. A nil loader means resource.NewLoader().
func NewReader(types *TypeRegistry, loader resource.Loader) *Reader {
	if loader == nil {
		loader = resource.NewLoader()
	}
	return &Reader{types: types, loader: loader}
}

// LoadBeanDefinitions loads every location in order. A bean name may be declared
// only once across all of them.
func (r *Reader) LoadBeanDefinitions(registry beanctx.BeanDefinitionRegistry, locations ...string) error {
	for _, location := range locations {
		res, err := r.loader.Resource(location)
		if err != nil {
			return err
		}
		if err := r.LoadResource(registry, res); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) LoadResource(registry beanctx.BeanDefinitionRegistry, res resource.Resource) error {
	rc, err := res.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return r.Load(registry, rc, res.Location())
}

// Load parses one document from in. source is only used in error messages.
func (r *Reader) Load(registry beanctx.BeanDefinitionRegistry, in io.Reader, source string) error {
	var doc document
	dec := yaml.NewDecoder(in)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse bean document '%s': %w", source, err)
	}

	for i, entry := range doc.Beans {
		name, def, err := r.definition(entry)
		if err != nil {
			return fmt.Errorf("%s: bean #%d: %w", source, i, err)
		}
		if registry.ContainsBeanDefinition(name) {
			return fmt.Errorf("%s: %w: '%s'", source, beanctx.ErrDuplicateDefinition, name)
		}
		if err := registry.RegisterBeanDefinition(name, def); err != nil {
			return fmt.Errorf("%s: %w", source, err)
		}
	}
	return nil
}

func (r *Reader) definition(spec beanSpec) (string, *beanctx.BeanDefinition, error) {
	class := strings.TrimSpace(spec.Class)
	if class == "" {
		return "", nil, errors.New("class is required")
	}
	bt, ok := r.types.Lookup(class)
	if !ok {
		return "", nil, fmt.Errorf("cannot find class named '%s'", class)
	}

	name := spec.ID
	if name == "" {
		name = spec.Name
	}
	if name == "" {
		name = bt.DefaultName()
	}

	scope, err := parseScope(spec.Scope)
	if err != nil {
		return "", nil, fmt.Errorf("bean '%s': %w", name, err)
	}

	def := beanctx.NewBeanDefinition(bt).
		WithScope(scope).
		WithInitMethod(spec.InitMethod).
		WithDestroyMethod(spec.DestroyMethod)

	for _, p := range spec.Properties {
		if p.Name == "" {
			return "", nil, fmt.Errorf("bean '%s': property name is empty", name)
		}
		switch {
		case p.Ref != "" && p.Value != nil:
			return "", nil, fmt.Errorf("bean '%s': property '%s' has both value and ref", name, p.Name)
		case p.Ref != "":
			def.WithProperty(p.Name, beanctx.Ref(p.Ref))
		case p.Value != nil:
			def.WithProperty(p.Name, p.Value)
		default:
			return "", nil, fmt.Errorf("bean '%s': property '%s' needs a value or a ref", name, p.Name)
		}
	}
	return name, def, nil
}

func parseScope(s string) (beanctx.Scope, error) {
	switch scope := beanctx.Scope(strings.ToLower(strings.TrimSpace(s))); scope {
	case "", beanctx.ScopeSingleton:
		return beanctx.ScopeSingleton, nil
	case beanctx.ScopePrototype:
		return scope, nil
	default:
		return "", fmt.Errorf("unknown scope '%s'", s)
	}
}
