// Package placeholder resolves ${KEY} tokens in literal bean properties before any
// bean is created.
//
// Values come from .env files (parsed with godotenv) and, optionally, the process
// environment. A token may carry a default: ${DB_HOST:localhost}.
package placeholder

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Station-Manager/beanctx"
	"github.com/Station-Manager/beanctx/resource"
	"github.com/joho/godotenv"
)

var token = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// ErrUnresolved is returned when a token has no value and no default.
var ErrUnresolved = errors.New("unresolved placeholder")

// Configurer is a beanctx.BeanFactoryPostProcessor. It can be passed to a context
// with beanctx.WithBeanFactoryPostProcessor or declared as a bean, in which case its
// fields are set like any other properties.
type Configurer struct {
	// Locations is a comma separated list of .env resources; later ones override
	// earlier ones.
	Locations string `di.property:"locations"`
	// SystemEnv lets process environment variables override file values.
	SystemEnv bool `di.property:"systemEnv"`
	// IgnoreMissing skips locations that do not exist.
	IgnoreMissing bool `di.property:"ignoreMissing"`

	// Loader resolves Locations; nil means resource.NewLoader().
	Loader resource.Loader
}

// New returns a Configurer reading the given .env locations with the process
// environment taking precedence.
func New(locations ...string) *Configurer {
	return &Configurer{
		Locations: strings.Join(locations, ","),
		SystemEnv: true,
	}
}

func (c *Configurer) PostProcessBeanFactory(registry beanctx.BeanDefinitionRegistry) error {
	values, err := c.load()
	if err != nil {
		return err
	}

	for name := range registry.AllNames() {
		def, err := registry.BeanDefinition(name)
		if err != nil {
			return err
		}
		pvs := def.PropertyValues()
		for _, pv := range pvs.All() {
			s, ok := pv.Value.(string)
			if !ok || !strings.Contains(s, "${") {
				continue
			}
			resolved, err := c.resolve(s, values)
			if err != nil {
				return fmt.Errorf("bean '%s' property '%s': %w", name, pv.Name, err)
			}
			pvs.Add(beanctx.PropertyValue{Name: pv.Name, Value: resolved})
		}
	}
	return nil
}

func (c *Configurer) load() (map[string]string, error) {
	loader := c.Loader
	if loader == nil {
		loader = resource.NewLoader()
	}

	values := make(map[string]string)
	for _, location := range strings.Split(c.Locations, ",") {
		location = strings.TrimSpace(location)
		if location == "" {
			continue
		}
		parsed, err := readEnv(loader, location)
		if err != nil {
			if c.IgnoreMissing && errors.Is(err, resource.ErrResourceNotFound) {
				continue
			}
			return nil, err
		}
		for k, v := range parsed {
			values[k] = v
		}
	}
	return values, nil
}

func readEnv(loader resource.Loader, location string) (map[string]string, error) {
	res, err := loader.Resource(location)
	if err != nil {
		return nil, err
	}
	rc, err := res.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	parsed, err := godotenv.Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse env resource '%s': %w", location, err)
	}
	return parsed, nil
}

func (c *Configurer) resolve(s string, values map[string]string) (string, error) {
	var firstErr error
	out := token.ReplaceAllStringFunc(s, func(match string) string {
		groups := token.FindStringSubmatch(match)
		key, def, hasDefault := strings.TrimSpace(groups[1]), groups[2], strings.Contains(match, ":")
		if c.SystemEnv {
			if v, ok := os.LookupEnv(key); ok {
				return v
			}
		}
		if v, ok := values[key]; ok {
			return v
		}
		if hasDefault {
			return def
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("%w: ${%s}", ErrUnresolved, key)
		}
		return match
	})
	return out, firstErr
}
