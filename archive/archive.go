// Package archive persists coadd aggregates and their collaborators as a
// YAML document.
//
// Each persistable object is written once, under a numeric id; objects
// that are shared by several referrers (the same exposure WCS used by many
// coadd elements) are referenced by id and are shared again after reading.
// Floating-point values are written with the shortest representation that
// round-trips exactly.
//
//	version: 1
//	root: 1
//	objects:
//	  - id: 1
//	    type: CoaddBoundedField
//	    module: github.com/measalg/coaddpsf/coadd
//	    data: {...}
package archive

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/measalg/coaddpsf"
)

// FormatVersion is the archive layout version written by Encode.
const FormatVersion = 1

// Errors returned while reading archives.
var (
	// ErrUnknownType is returned for records whose type has no factory.
	ErrUnknownType = errors.New("archive: unknown persistence type")

	// ErrMissingObject is returned for dangling object ids.
	ErrMissingObject = errors.New("archive: missing object")

	// ErrCycle is returned when objects reference each other circularly.
	ErrCycle = errors.New("archive: reference cycle")

	// ErrUnsupportedVersion is returned for archives written by a newer layout.
	ErrUnsupportedVersion = errors.New("archive: unsupported format version")

	// ErrWrongType is returned when an id resolves to an unexpected Go type.
	ErrWrongType = errors.New("archive: object has unexpected type")
)

// Persistable is implemented by objects that can be written to an archive.
// Implementations must be pointer types so that identity can be tracked.
type Persistable interface {
	// PersistenceName is the stable type name used to find the factory.
	PersistenceName() string
	// ModuleName identifies the package that registers the factory.
	ModuleName() string
	// WriteRecord returns a YAML-marshalable record. Sub-objects are stored
	// with out.Put and referenced by the returned id.
	WriteRecord(out *OutputArchive) (any, error)
}

type object struct {
	ID     int       `yaml:"id"`
	Type   string    `yaml:"type"`
	Module string    `yaml:"module"`
	Data   yaml.Node `yaml:"data"`
}

type document struct {
	Version int       `yaml:"version"`
	Root    int       `yaml:"root"`
	Objects []*object `yaml:"objects"`
}

// OutputArchive collects objects for writing.
type OutputArchive struct {
	objects []*object
	ids     map[Persistable]int
}

// NewOutputArchive creates an empty archive.
func NewOutputArchive() *OutputArchive {
	return &OutputArchive{ids: make(map[Persistable]int)}
}

// Put stores obj (and, recursively, everything it references) and returns
// its id. Storing the same object twice returns the same id. A nil object
// has id 0.
func (a *OutputArchive) Put(obj Persistable) (int, error) {
	if obj == nil {
		return 0, nil
	}
	if id, ok := a.ids[obj]; ok {
		if id < 0 {
			return 0, fmt.Errorf("archive: writing %s: %w", obj.PersistenceName(), ErrCycle)
		}
		return id, nil
	}

	a.ids[obj] = -1 // in progress
	rec, err := obj.WriteRecord(a)
	if err != nil {
		delete(a.ids, obj)
		return 0, fmt.Errorf("archive: writing %s: %w", obj.PersistenceName(), err)
	}

	o := &object{Type: obj.PersistenceName(), Module: obj.ModuleName()}
	if err := o.Data.Encode(rec); err != nil {
		delete(a.ids, obj)
		return 0, fmt.Errorf("archive: encoding %s: %w", obj.PersistenceName(), err)
	}
	a.objects = append(a.objects, o)
	o.ID = len(a.objects)
	a.ids[obj] = o.ID
	return o.ID, nil
}

// Len returns the number of stored objects.
func (a *OutputArchive) Len() int { return len(a.objects) }

// Encode writes the archive with the given root id.
func (a *OutputArchive) Encode(w io.Writer, root int) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&document{Version: FormatVersion, Root: root, Objects: a.objects}); err != nil {
		return fmt.Errorf("archive: encode: %w", err)
	}
	return enc.Close()
}

// Write stores obj as the root of a new archive and encodes it to w.
func Write(w io.Writer, obj Persistable) error {
	out := NewOutputArchive()
	root, err := out.Put(obj)
	if err != nil {
		return err
	}
	if err := out.Encode(w, root); err != nil {
		return err
	}
	coaddpsf.Logger().Info("archive written", "type", obj.PersistenceName(), "objects", out.Len())
	return nil
}

// InputArchive resolves objects from a decoded archive. Each id is
// reconstructed at most once.
type InputArchive struct {
	root     int
	records  map[int]*object
	resolved map[int]Persistable
	pending  map[int]bool
}

// Decode parses an archive document.
func Decode(r io.Reader) (*InputArchive, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("archive: decode: %w", err)
	}
	if doc.Version > FormatVersion || doc.Version <= 0 {
		return nil, fmt.Errorf("archive: version %d: %w", doc.Version, ErrUnsupportedVersion)
	}
	in := &InputArchive{
		root:     doc.Root,
		records:  make(map[int]*object, len(doc.Objects)),
		resolved: make(map[int]Persistable, len(doc.Objects)),
		pending:  make(map[int]bool),
	}
	for _, o := range doc.Objects {
		in.records[o.ID] = o
	}
	return in, nil
}

// Get reconstructs the object with the given id. Id 0 yields nil.
func (a *InputArchive) Get(id int) (Persistable, error) {
	if id == 0 {
		return nil, nil
	}
	if obj, ok := a.resolved[id]; ok {
		return obj, nil
	}
	rec, ok := a.records[id]
	if !ok {
		return nil, fmt.Errorf("archive: id %d: %w", id, ErrMissingObject)
	}
	if a.pending[id] {
		return nil, fmt.Errorf("archive: id %d: %w", id, ErrCycle)
	}
	factory, err := lookup(rec.Type)
	if err != nil {
		return nil, err
	}

	a.pending[id] = true
	obj, err := factory(a, &rec.Data)
	delete(a.pending, id)
	if err != nil {
		return nil, fmt.Errorf("archive: reading %s (id %d): %w", rec.Type, id, err)
	}
	a.resolved[id] = obj
	return obj, nil
}

// Root reconstructs the root object.
func (a *InputArchive) Root() (Persistable, error) {
	return a.Get(a.root)
}

// Read decodes an archive and returns its root object.
func Read(r io.Reader) (Persistable, error) {
	in, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return in.Root()
}

// GetAs resolves id and asserts the result to T. Id 0 yields the zero T.
func GetAs[T any](in *InputArchive, id int) (T, error) {
	var zero T
	obj, err := in.Get(id)
	if err != nil || obj == nil {
		return zero, err
	}
	t, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("archive: id %d is %T: %w", id, obj, ErrWrongType)
	}
	return t, nil
}
