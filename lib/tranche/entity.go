// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tranche

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// DefaultControlName is the name of the control file when none is
// configured. Releasing it unmounts the filesystem.
const DefaultControlName = "kill"

// Resolution errors.
var (
	ErrNotFound     = errors.New("no such entry")
	ErrNotDirectory = errors.New("not a directory")
)

// Kind classifies a requested path.
type Kind int

const (
	KindNotFound Kind = iota
	KindRoot
	KindDefault
	KindRange
	KindControl
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindRoot:
		return "root"
	case KindDefault:
		return "default"
	case KindRange:
		return "range"
	case KindControl:
		return "control"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Entity is the virtual filesystem object a path names. Entities are
// computed per request from the path and the window; nothing about
// them is stored.
type Entity struct {
	Kind Kind

	// Name is the path segment below the root. Empty for the root
	// and for paths that do not resolve.
	Name string

	// Span is the clamped region of the underlying file. Only
	// meaningful for KindDefault and KindRange.
	Span Span
}

// Readable reports whether the entity is backed by file content.
func (e Entity) Readable() bool {
	return e.Kind == KindDefault || e.Kind == KindRange
}

// Attr is the attribute set reported for an entity. Mode carries the
// file type bits as well as the permissions.
type Attr struct {
	Mode  uint32
	Nlink uint32
	Size  uint64
}

// Attr returns the attributes of the entity. Files are read-only with
// the span length as their size; zero is a legal size. The control
// file is an empty, permissive regular file.
func (e Entity) Attr() (Attr, error) {
	switch e.Kind {
	case KindRoot:
		return Attr{Mode: syscall.S_IFDIR | 0o755, Nlink: 2}, nil
	case KindControl:
		return Attr{Mode: syscall.S_IFREG | 0o777, Nlink: 1}, nil
	case KindDefault, KindRange:
		return Attr{Mode: syscall.S_IFREG | 0o444, Nlink: 1, Size: e.Span.Length}, nil
	default:
		return Attr{}, ErrNotFound
	}
}

// DirEntry is one line of a directory listing.
type DirEntry struct {
	Name string
	Mode uint32
}

// Resolver classifies paths into entities. It holds the window and
// the two fixed names; all of it is immutable.
type Resolver struct {
	window      *Window
	defaultName string
	controlName string
}

// NewResolver creates a resolver for window. defaultName is the name
// of the whole-window file; controlName is the name of the control
// file (DefaultControlName if empty). Names must be single path
// components, must differ, and must not parse as a range, since a
// range-shaped name would be unreachable.
func NewResolver(window *Window, defaultName, controlName string) (*Resolver, error) {
	if window == nil {
		return nil, fmt.Errorf("window is required")
	}
	if controlName == "" {
		controlName = DefaultControlName
	}
	if err := validateName("default name", defaultName); err != nil {
		return nil, err
	}
	if err := validateName("control name", controlName); err != nil {
		return nil, err
	}
	if defaultName == controlName {
		return nil, fmt.Errorf("default name and control name are both %q", defaultName)
	}
	return &Resolver{
		window:      window,
		defaultName: defaultName,
		controlName: controlName,
	}, nil
}

func validateName(field, name string) error {
	if name == "" {
		return fmt.Errorf("%s is required", field)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%s %q is not a valid file name", field, name)
	}
	if _, err := ParseRange(name); err == nil {
		return fmt.Errorf("%s %q collides with the range grammar", field, name)
	}
	return nil
}

// DefaultName returns the name of the whole-window file.
func (r *Resolver) DefaultName() string { return r.defaultName }

// ControlName returns the name of the control file.
func (r *Resolver) ControlName() string { return r.controlName }

// Window returns the window the resolver clamps against.
func (r *Resolver) Window() *Window { return r.window }

// Resolve classifies an absolute path below the mount root. Range
// names that fail to parse or clamp resolve to KindNotFound: a
// malformed range is indistinguishable from an unknown name.
func (r *Resolver) Resolve(path string) Entity {
	if path == "/" {
		return Entity{Kind: KindRoot}
	}
	name, ok := strings.CutPrefix(path, "/")
	if !ok {
		return Entity{Kind: KindNotFound}
	}
	return r.Lookup(name)
}

// Lookup classifies a single name in the root directory.
func (r *Resolver) Lookup(name string) Entity {
	switch name {
	case "":
		return Entity{Kind: KindRoot}
	case r.controlName:
		return Entity{Kind: KindControl, Name: name}
	case r.defaultName:
		return Entity{Kind: KindDefault, Name: name, Span: r.window.Whole()}
	}

	requested, err := ParseRange(name)
	if err != nil {
		return Entity{Kind: KindNotFound}
	}
	span, ok := r.window.Clamp(requested)
	if !ok {
		return Entity{Kind: KindNotFound}
	}
	return Entity{Kind: KindRange, Name: name, Span: span}
}

// List returns the directory listing for path. Only the root is a
// directory. The listing holds the self and parent entries and the
// default file; range files are synthesized on lookup and never
// listed, and neither is the control file.
func (r *Resolver) List(path string) ([]DirEntry, error) {
	entity := r.Resolve(path)
	switch entity.Kind {
	case KindRoot:
		return []DirEntry{
			{Name: ".", Mode: syscall.S_IFDIR},
			{Name: "..", Mode: syscall.S_IFDIR},
			{Name: r.defaultName, Mode: syscall.S_IFREG},
		}, nil
	case KindNotFound:
		return nil, fmt.Errorf("listing %s: %w", path, ErrNotFound)
	default:
		return nil, fmt.Errorf("listing %s: %w", path, ErrNotDirectory)
	}
}
