package dextest

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/roach88/dexscope/internal/dex"
)

// ClassSpec describes one class to place in the generated file.
// Names are Java names, as the dex package exposes them.
type ClassSpec struct {
	Name        string
	AccessFlags uint32
	Super       string // "" for no superclass
	Interfaces  []string
	Fields      []FieldSpec
	Methods     []MethodSpec
}

// FieldSpec describes one declared field.
type FieldSpec struct {
	Name        string
	Type        string
	AccessFlags uint32
}

// MethodSpec describes one declared method or constructor.
type MethodSpec struct {
	Name        string
	Return      string
	Params      []string
	AccessFlags uint32
}

// Parse builds a DEX file from the specs and parses it, failing the
// test on any error.
func Parse(t *testing.T, classes ...ClassSpec) *dex.File {
	t.Helper()
	f, err := dex.Parse(Build(classes...))
	if err != nil {
		t.Fatalf("parsing generated dex: %v", err)
	}
	return f
}

// Build serializes the specs into DEX file bytes.
func Build(classes ...ClassSpec) []byte {
	b := &builder{
		stringIdx: map[string]uint32{},
		typeIdx:   map[string]uint32{},
		protoIdx:  map[string]uint32{},
		fieldIdx:  map[string]uint32{},
		methodIdx: map[string]uint32{},
	}
	return b.build(classes)
}

type proto struct {
	shorty  uint32 // string idx
	ret     uint32 // type idx
	params  []uint32
	listOff uint32 // filled during data layout
}

type fieldRef struct {
	class, typ uint32 // type idx
	name       uint32 // string idx
}

type methodRef struct {
	class uint32 // type idx
	proto uint32
	name  uint32 // string idx
}

type classEntry struct {
	classIdx      uint32
	accessFlags   uint32
	superIdx      uint32
	interfaces    []uint32 // type idxs
	interfacesOff uint32
	classDataOff  uint32
	staticFields  []member
	instFields    []member
	directMethods []member
	virtMethods   []member
}

type member struct {
	idx    uint32 // field or method idx
	access uint32
}

type builder struct {
	strings   []string
	stringIdx map[string]uint32
	types     []uint32 // string idx per type
	typeIdx   map[string]uint32
	protos    []proto
	protoIdx  map[string]uint32
	fields    []fieldRef
	fieldIdx  map[string]uint32
	methods   []methodRef
	methodIdx map[string]uint32
	classes   []classEntry
}

func (b *builder) str(s string) uint32 {
	if i, ok := b.stringIdx[s]; ok {
		return i
	}
	i := uint32(len(b.strings))
	b.strings = append(b.strings, s)
	b.stringIdx[s] = i
	return i
}

func (b *builder) typ(javaName string) uint32 {
	desc := dex.Descriptor(javaName)
	if i, ok := b.typeIdx[desc]; ok {
		return i
	}
	i := uint32(len(b.types))
	b.types = append(b.types, b.str(desc))
	b.typeIdx[desc] = i
	return i
}

func shortyChar(javaName string) byte {
	switch javaName {
	case "void":
		return 'V'
	case "boolean":
		return 'Z'
	case "byte":
		return 'B'
	case "short":
		return 'S'
	case "char":
		return 'C'
	case "int":
		return 'I'
	case "long":
		return 'J'
	case "float":
		return 'F'
	case "double":
		return 'D'
	}
	return 'L'
}

func (b *builder) proto(ret string, params []string) uint32 {
	key := ret + "(" + strings.Join(params, ",") + ")"
	if i, ok := b.protoIdx[key]; ok {
		return i
	}
	var shorty strings.Builder
	shorty.WriteByte(shortyChar(ret))
	for _, p := range params {
		shorty.WriteByte(shortyChar(p))
	}
	p := proto{shorty: b.str(shorty.String()), ret: b.typ(ret)}
	for _, param := range params {
		p.params = append(p.params, b.typ(param))
	}
	i := uint32(len(b.protos))
	b.protos = append(b.protos, p)
	b.protoIdx[key] = i
	return i
}

func (b *builder) field(class uint32, spec FieldSpec) uint32 {
	typ := b.typ(spec.Type)
	name := b.str(spec.Name)
	key := fmt.Sprintf("%d\x00%s\x00%s", class, spec.Type, spec.Name)
	if i, ok := b.fieldIdx[key]; ok {
		return i
	}
	i := uint32(len(b.fields))
	b.fields = append(b.fields, fieldRef{class: class, typ: typ, name: name})
	b.fieldIdx[key] = i
	return i
}

func (b *builder) method(class uint32, spec MethodSpec) uint32 {
	p := b.proto(spec.Return, spec.Params)
	name := b.str(spec.Name)
	key := fmt.Sprintf("%d\x00%s(%s)\x00%s", class, spec.Return, strings.Join(spec.Params, ","), spec.Name)
	if i, ok := b.methodIdx[key]; ok {
		return i
	}
	i := uint32(len(b.methods))
	b.methods = append(b.methods, methodRef{class: class, proto: p, name: name})
	b.methodIdx[key] = i
	return i
}

const (
	headerSize = 112
	noIndex    = 0xFFFFFFFF
)

func (b *builder) build(specs []ClassSpec) []byte {
	// Pass 1: intern everything so table sizes are fixed.
	for _, spec := range specs {
		ce := classEntry{
			classIdx:    b.typ(spec.Name),
			accessFlags: spec.AccessFlags,
			superIdx:    noIndex,
		}
		if spec.Super != "" {
			ce.superIdx = b.typ(spec.Super)
		}
		for _, iface := range spec.Interfaces {
			ce.interfaces = append(ce.interfaces, b.typ(iface))
		}
		for _, fs := range spec.Fields {
			m := member{idx: b.field(ce.classIdx, fs), access: fs.AccessFlags}
			if fs.AccessFlags&dex.AccStatic != 0 {
				ce.staticFields = append(ce.staticFields, m)
			} else {
				ce.instFields = append(ce.instFields, m)
			}
		}
		for _, ms := range spec.Methods {
			m := member{idx: b.method(ce.classIdx, ms), access: ms.AccessFlags}
			direct := ms.AccessFlags&(dex.AccStatic|dex.AccPrivate|dex.AccConstructor) != 0 ||
				ms.Name == "<init>" || ms.Name == "<clinit>"
			if direct {
				ce.directMethods = append(ce.directMethods, m)
			} else {
				ce.virtMethods = append(ce.virtMethods, m)
			}
		}
		b.classes = append(b.classes, ce)
	}

	// Fixed-size table offsets.
	stringIdsOff := uint32(headerSize)
	typeIdsOff := stringIdsOff + 4*uint32(len(b.strings))
	protoIdsOff := typeIdsOff + 4*uint32(len(b.types))
	fieldIdsOff := protoIdsOff + 12*uint32(len(b.protos))
	methodIdsOff := fieldIdsOff + 8*uint32(len(b.fields))
	classDefsOff := methodIdsOff + 8*uint32(len(b.methods))
	dataOff := classDefsOff + 32*uint32(len(b.classes))

	// Pass 2: lay out the data section.
	var data []byte
	align4 := func() {
		for uint32(len(data))%4 != 0 {
			data = append(data, 0)
		}
	}
	putU32 := func(v uint32) {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], v)
		data = append(data, buf[:]...)
	}
	putU16 := func(v uint16) {
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], v)
		data = append(data, buf[:]...)
	}
	typeListOff := func(idxs []uint32) uint32 {
		if len(idxs) == 0 {
			return 0
		}
		align4()
		off := dataOff + uint32(len(data))
		putU32(uint32(len(idxs)))
		for _, idx := range idxs {
			putU16(uint16(idx))
		}
		return off
	}

	for i := range b.protos {
		b.protos[i].listOff = typeListOff(b.protos[i].params)
	}
	for i := range b.classes {
		b.classes[i].interfacesOff = typeListOff(b.classes[i].interfaces)
	}

	// class_data_items (byte-aligned).
	for i := range b.classes {
		ce := &b.classes[i]
		ce.classDataOff = dataOff + uint32(len(data))
		data = append(data, uleb128(uint32(len(ce.staticFields)))...)
		data = append(data, uleb128(uint32(len(ce.instFields)))...)
		data = append(data, uleb128(uint32(len(ce.directMethods)))...)
		data = append(data, uleb128(uint32(len(ce.virtMethods)))...)
		for _, group := range [][]member{ce.staticFields, ce.instFields} {
			sortMembers(group)
			prev := uint32(0)
			for j, m := range group {
				diff := m.idx
				if j > 0 {
					diff = m.idx - prev
				}
				prev = m.idx
				data = append(data, uleb128(diff)...)
				data = append(data, uleb128(m.access)...)
			}
		}
		for _, group := range [][]member{ce.directMethods, ce.virtMethods} {
			sortMembers(group)
			prev := uint32(0)
			for j, m := range group {
				diff := m.idx
				if j > 0 {
					diff = m.idx - prev
				}
				prev = m.idx
				data = append(data, uleb128(diff)...)
				data = append(data, uleb128(m.access)...)
				data = append(data, uleb128(0)...) // code_off
			}
		}
	}

	// string_data_items.
	stringDataOffs := make([]uint32, len(b.strings))
	for i, s := range b.strings {
		stringDataOffs[i] = dataOff + uint32(len(data))
		data = append(data, uleb128(uint32(len(s)))...)
		data = append(data, s...)
		data = append(data, 0)
	}

	// Assemble the file.
	total := dataOff + uint32(len(data))
	out := make([]byte, 0, total)
	w32 := func(v uint32) {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], v)
		out = append(out, buf[:]...)
	}
	w16 := func(v uint16) {
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], v)
		out = append(out, buf[:]...)
	}

	// header_item
	out = append(out, 'd', 'e', 'x', '\n', '0', '3', '5', 0)
	w32(0)                        // checksum (unverified)
	out = append(out, make([]byte, 20)...) // signature
	w32(total)
	w32(headerSize)
	w32(0x12345678) // endian_tag
	w32(0)          // link_size
	w32(0)          // link_off
	w32(0)          // map_off
	w32(uint32(len(b.strings)))
	w32(stringIdsOff)
	w32(uint32(len(b.types)))
	w32(typeIdsOff)
	w32(uint32(len(b.protos)))
	w32(protoIdsOff)
	w32(uint32(len(b.fields)))
	w32(fieldIdsOff)
	w32(uint32(len(b.methods)))
	w32(methodIdsOff)
	w32(uint32(len(b.classes)))
	w32(classDefsOff)
	w32(uint32(len(data)))
	w32(dataOff)

	for i := range b.strings {
		w32(stringDataOffs[i])
	}
	for _, stringIdx := range b.types {
		w32(stringIdx)
	}
	for _, p := range b.protos {
		w32(p.shorty)
		w32(p.ret)
		w32(p.listOff)
	}
	for _, fr := range b.fields {
		w16(uint16(fr.class))
		w16(uint16(fr.typ))
		w32(fr.name)
	}
	for _, mr := range b.methods {
		w16(uint16(mr.class))
		w16(uint16(mr.proto))
		w32(mr.name)
	}
	for _, ce := range b.classes {
		w32(ce.classIdx)
		w32(ce.accessFlags)
		w32(ce.superIdx)
		w32(ce.interfacesOff)
		w32(noIndex) // source_file_idx
		w32(0)       // annotations_off
		w32(ce.classDataOff)
		w32(0) // static_values_off
	}
	out = append(out, data...)
	return out
}

// sortMembers orders a class_data group by member index so the delta
// encoding stays non-negative. Interning assigns indices in declaration
// order, so for typical specs this is a no-op.
func sortMembers(ms []member) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].idx < ms[j].idx })
}

func uleb128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}
