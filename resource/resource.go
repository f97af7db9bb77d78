// Package resource resolves location strings into readable streams.
//
// Three location styles are understood:
//
//	classpath:beans.yaml      resolved against the loader's fs.FS (os.DirFS(".") by default)
//	https://host/beans.yaml   fetched with the loader's *http.Client
//	file:/etc/app/beans.yaml  read from the filesystem; a bare path works too
//
// Go has no classpath, so the classpath root is an fs.FS; pass an embed.FS to ship
// definitions inside the binary.
package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	ClasspathPrefix = "classpath:"
	FilePrefix      = "file:"
)

// ErrResourceNotFound is matched by every error caused by a missing resource.
var ErrResourceNotFound = errors.New("resource not found")

// Resource is a handle to a byte stream. Open may be called more than once.
type Resource interface {
	Open() (io.ReadCloser, error)
	Location() string
}

// Loader resolves a location string into a Resource.
type Loader interface {
	Resource(location string) (Resource, error)
}

// DefaultLoader dispatches on the location prefix.
type DefaultLoader struct {
	classpath fs.FS
	client    *http.Client
}

// Option configures a DefaultLoader.
type Option func(*DefaultLoader)

// WithClasspath sets the filesystem that classpath: locations resolve against.
func WithClasspath(fsys fs.FS) Option {
	return func(l *DefaultLoader) {
		if fsys != nil {
			l.classpath = fsys
		}
	}
}

// WithHTTPClient sets the client used for http and https locations.
func WithHTTPClient(client *http.Client) Option {
	return func(l *DefaultLoader) {
		if client != nil {
			l.client = client
		}
	}
}

func NewLoader(opts ...Option) *DefaultLoader {
	l := &DefaultLoader{
		classpath: os.DirFS("."),
		client:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *DefaultLoader) Resource(location string) (Resource, error) {
	if strings.TrimSpace(location) == "" {
		return nil, errors.New("resource location is empty")
	}

	switch {
	case strings.HasPrefix(location, ClasspathPrefix):
		name := strings.TrimPrefix(strings.TrimPrefix(location, ClasspathPrefix), "/")
		return &fsResource{fsys: l.classpath, name: name, location: location}, nil
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return &urlResource{client: l.client, url: location}, nil
	default:
		return &fileResource{path: strings.TrimPrefix(location, FilePrefix), location: location}, nil
	}
}

type fsResource struct {
	fsys     fs.FS
	name     string
	location string
}

func (r *fsResource) Open() (io.ReadCloser, error) {
	f, err := r.fsys.Open(r.name)
	if err != nil {
		return nil, wrapOpenError(r.location, err)
	}
	return f, nil
}

func (r *fsResource) Location() string { return r.location }

type fileResource struct {
	path     string
	location string
}

func (r *fileResource) Open() (io.ReadCloser, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, wrapOpenError(r.location, err)
	}
	return f, nil
}

func (r *fileResource) Location() string { return r.location }

type urlResource struct {
	client *http.Client
	url    string
}

func (r *urlResource) Open() (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("resource '%s': %w", r.url, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resource '%s': %w", r.url, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, r.url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("resource '%s': unexpected status %s", r.url, resp.Status)
	}
	return resp.Body, nil
}

func (r *urlResource) Location() string { return r.url }

func wrapOpenError(location string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrResourceNotFound, location)
	}
	return fmt.Errorf("resource '%s': %w", location, err)
}
