package archive

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/measalg/coaddpsf/geom"
)

// leaf and pair are minimal persistables used to exercise the archive.
type leaf struct {
	Value float64
}

func (*leaf) PersistenceName() string { return "testLeaf" }
func (*leaf) ModuleName() string      { return "archive_test" }
func (l *leaf) WriteRecord(*OutputArchive) (any, error) {
	return struct {
		Value float64 `yaml:"value"`
	}{l.Value}, nil
}

type pair struct {
	A, B *leaf
	Next *pair
}

type pairRecord struct {
	A    int `yaml:"a"`
	B    int `yaml:"b"`
	Next int `yaml:"next"`
}

func (*pair) PersistenceName() string { return "testPair" }
func (*pair) ModuleName() string      { return "archive_test" }
func (p *pair) WriteRecord(out *OutputArchive) (any, error) {
	var rec pairRecord
	var err error
	if rec.A, err = out.Put(p.A); err != nil {
		return nil, err
	}
	if rec.B, err = out.Put(p.B); err != nil {
		return nil, err
	}
	if p.Next != nil {
		if rec.Next, err = out.Put(p.Next); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func init() {
	Register("testLeaf", func(_ *InputArchive, rec *yaml.Node) (Persistable, error) {
		var r struct {
			Value float64 `yaml:"value"`
		}
		if err := rec.Decode(&r); err != nil {
			return nil, err
		}
		return &leaf{Value: r.Value}, nil
	})
	Register("testPair", func(in *InputArchive, rec *yaml.Node) (Persistable, error) {
		var r pairRecord
		if err := rec.Decode(&r); err != nil {
			return nil, err
		}
		a, err := GetAs[*leaf](in, r.A)
		if err != nil {
			return nil, err
		}
		b, err := GetAs[*leaf](in, r.B)
		if err != nil {
			return nil, err
		}
		next, err := GetAs[*pair](in, r.Next)
		if err != nil {
			return nil, err
		}
		return &pair{A: a, B: b, Next: next}, nil
	})
}

func TestRoundTripSharedObjects(t *testing.T) {
	shared := &leaf{Value: 0.1 + 0.2} // not exactly representable in decimal
	p := &pair{A: shared, B: shared}

	var buf bytes.Buffer
	if err := Write(&buf, p); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(buf.String(), "type: testLeaf"); n != 1 {
		t.Errorf("shared leaf written %d times, want 1\n%s", n, buf.String())
	}

	obj, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := obj.(*pair)
	if !ok {
		t.Fatalf("Read returned %T", obj)
	}
	if got.A != got.B {
		t.Error("shared leaf is no longer shared after reading")
	}
	if got.A.Value != shared.Value {
		t.Errorf("value = %v, want bit-exact %v", got.A.Value, shared.Value)
	}
	if got.Next != nil {
		t.Errorf("nil reference read back as %v", got.Next)
	}
}

func TestWriteCycle(t *testing.T) {
	p := &pair{A: &leaf{}, B: &leaf{}}
	p.Next = p
	if err := Write(&bytes.Buffer{}, p); !errors.Is(err, ErrCycle) {
		t.Errorf("Write(cycle) err = %v, want ErrCycle", err)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"unknown type", "version: 1\nroot: 1\nobjects:\n  - id: 1\n    type: nope\n    module: x\n    data: {}\n", ErrUnknownType},
		{"missing root", "version: 1\nroot: 7\nobjects: []\n", ErrMissingObject},
		{"future version", "version: 99\nroot: 1\nobjects: []\n", ErrUnsupportedVersion},
		{"wrong type", "version: 1\nroot: 2\nobjects:\n  - id: 1\n    type: testPair\n    module: x\n    data: {a: 0, b: 0, next: 0}\n  - id: 2\n    type: testPair\n    module: x\n    data: {a: 1, b: 0, next: 0}\n", ErrWrongType},
		{"cycle", "version: 1\nroot: 1\nobjects:\n  - id: 1\n    type: testPair\n    module: x\n    data: {a: 0, b: 0, next: 1}\n", ErrCycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.doc))
			if !errors.Is(err, tt.want) {
				t.Errorf("Read err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	if !IsRegistered("testLeaf") {
		t.Fatal("testLeaf not registered")
	}
	found := false
	for _, n := range Registered() {
		if n == "testPair" {
			found = true
		}
	}
	if !found {
		t.Error("Registered() misses testPair")
	}

	defer func() {
		if recover() == nil {
			t.Error("duplicate Register did not panic")
		}
	}()
	Register("testLeaf", func(*InputArchive, *yaml.Node) (Persistable, error) { return nil, nil })
}

func TestRegionRecords(t *testing.T) {
	poly, _ := geom.NewPolygon([]geom.Point{geom.Pt(0, 0), geom.Pt(1.25, 0), geom.Pt(0, 3)})
	for _, r := range []geom.Region{nil, geom.NewBox(-1, 2, 30, 40), poly} {
		rec, err := EncodeRegion(r)
		if err != nil {
			t.Fatal(err)
		}
		back, err := DecodeRegion(rec)
		if err != nil {
			t.Fatal(err)
		}
		if !geom.RegionEqual(r, back) {
			t.Errorf("region %v read back as %v", r, back)
		}
	}
}
