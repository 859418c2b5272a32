package dex

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

// Format constants.
// https://source.android.com/devices/tech/dalvik/dex-format#header-item
const (
	headerSize   = 112
	classDefSize = 32

	// NoIndex marks an absent index reference (e.g. a class with no
	// superclass).
	NoIndex = 0xFFFFFFFF

	endianConstant = 0x12345678
)

// dexMagic is the first four bytes of every DEX file ("dex\n"); the
// following four bytes carry the format version and are not checked.
var dexMagic = [4]byte{0x64, 0x65, 0x78, 0x0a}

// Header is the fixed-size header_item at the start of a DEX file.
// Upper-case fields are required so binary.Read can fill the struct.
type Header struct {
	Magic         [8]byte
	Checksum      uint32
	Signature     [20]byte
	FileSize      uint32
	HeaderSize    uint32
	EndianTag     uint32
	LinkSize      uint32
	LinkOff       uint32
	MapOff        uint32
	StringIdsSize uint32
	StringIdsOff  uint32
	TypeIdsSize   uint32
	TypeIdsOff    uint32
	ProtoIdsSize  uint32
	ProtoIdsOff   uint32
	FieldIdsSize  uint32
	FieldIdsOff   uint32
	MethodIdsSize uint32
	MethodIdsOff  uint32
	ClassDefsSize uint32
	ClassDefsOff  uint32
	DataSize      uint32
	DataOff       uint32
}

type protoID struct {
	ShortyIdx     uint32
	ReturnTypeIdx uint32
	ParametersOff uint32
}

type fieldID struct {
	ClassIdx uint16
	TypeIdx  uint16
	NameIdx  uint32
}

type methodID struct {
	ClassIdx uint16
	ProtoIdx uint16
	NameIdx  uint32
}

// classDef is the raw class_def_item.
type classDef struct {
	ClassIdx        uint32
	AccessFlags     uint32
	SuperclassIdx   uint32
	InterfacesOff   uint32
	SourceFileIdx   uint32
	AnnotationsOff  uint32
	ClassDataOff    uint32
	StaticValuesOff uint32
}

// File is a parsed DEX file. All methods are safe for concurrent use.
type File struct {
	data   []byte
	header Header
	hash   uint64

	strings   []string
	typeDescs []string // Java names, indexed by type id
	protos    []protoID
	fieldIDs  []fieldID
	methodIDs []methodID
	classDefs []classDef

	defByName map[string]int // Java class name -> classDefs index
	names     []string       // class names in class_defs order

	classes *xsync.MapOf[string, *Class] // lazily decoded class data
}

// Parse reads a complete DEX file from data. The byte slice is retained;
// callers must not mutate it afterwards.
func Parse(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("dex: file too small (%d bytes)", len(data))
	}

	f := &File{
		data:    data,
		hash:    xxhash.Sum64(data),
		classes: xsync.NewMapOf[string, *Class](),
	}

	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &f.header); err != nil {
		return nil, fmt.Errorf("dex: failed to decode header: %w", err)
	}
	if [4]byte(f.header.Magic[:4]) != dexMagic {
		return nil, fmt.Errorf("dex: bad magic %x", f.header.Magic[:4])
	}

	if err := f.readStringIDs(); err != nil {
		return nil, err
	}
	if err := f.readTypeIDs(); err != nil {
		return nil, err
	}
	if err := f.readProtoIDs(); err != nil {
		return nil, err
	}
	if err := f.readFieldIDs(); err != nil {
		return nil, err
	}
	if err := f.readMethodIDs(); err != nil {
		return nil, err
	}
	if err := f.readClassDefs(); err != nil {
		return nil, err
	}

	return f, nil
}

// Hash is a content hash of the raw file bytes, used as the file's
// identity in cache keys and the persistent class index.
func (f *File) Hash() uint64 { return f.hash }

// ClassNames lists every class defined in this file, in class_defs
// order, as Java names.
func (f *File) ClassNames() []string { return f.names }

// HasClass reports whether the file defines the named class.
func (f *File) HasClass(name string) bool {
	_, ok := f.defByName[name]
	return ok
}

func (f *File) readStringIDs() error {
	n := int(f.header.StringIdsSize)
	f.strings = make([]string, n)
	for i := 0; i < n; i++ {
		off := int(f.header.StringIdsOff) + i*4
		if off+4 > len(f.data) {
			return fmt.Errorf("dex: string id %d out of bounds", i)
		}
		dataOff := binary.LittleEndian.Uint32(f.data[off : off+4])
		s, err := f.readStringData(dataOff)
		if err != nil {
			return fmt.Errorf("dex: string %d: %w", i, err)
		}
		f.strings[i] = s
	}
	return nil
}

// readStringData decodes a string_data_item: a uleb128 length followed
// by MUTF-8 bytes. Plain UTF-8 decoding is close enough for identifier
// strings, which is all the engine consumes.
func (f *File) readStringData(off uint32) (string, error) {
	r := &reader{data: f.data, pos: int(off)}
	// The uleb128 length counts UTF-16 code units; scan to the NUL
	// terminator instead of trusting it for byte length.
	r.uleb128()
	if r.err != nil {
		return "", r.err
	}
	start := r.pos
	end := start
	for end < len(f.data) && f.data[end] != 0 {
		end++
	}
	if end >= len(f.data) {
		return "", fmt.Errorf("unterminated string data at offset %d", off)
	}
	return string(f.data[start:end]), nil
}

func (f *File) readTypeIDs() error {
	n := int(f.header.TypeIdsSize)
	f.typeDescs = make([]string, n)
	for i := 0; i < n; i++ {
		off := int(f.header.TypeIdsOff) + i*4
		if off+4 > len(f.data) {
			return fmt.Errorf("dex: type id %d out of bounds", i)
		}
		descIdx := binary.LittleEndian.Uint32(f.data[off : off+4])
		desc, err := f.str(descIdx)
		if err != nil {
			return fmt.Errorf("dex: type id %d: %w", i, err)
		}
		f.typeDescs[i] = JavaName(desc)
	}
	return nil
}

func (f *File) readProtoIDs() error {
	n := int(f.header.ProtoIdsSize)
	f.protos = make([]protoID, n)
	for i := 0; i < n; i++ {
		off := int(f.header.ProtoIdsOff) + i*12
		if off+12 > len(f.data) {
			return fmt.Errorf("dex: proto id %d out of bounds", i)
		}
		f.protos[i] = protoID{
			ShortyIdx:     binary.LittleEndian.Uint32(f.data[off : off+4]),
			ReturnTypeIdx: binary.LittleEndian.Uint32(f.data[off+4 : off+8]),
			ParametersOff: binary.LittleEndian.Uint32(f.data[off+8 : off+12]),
		}
	}
	return nil
}

func (f *File) readFieldIDs() error {
	n := int(f.header.FieldIdsSize)
	f.fieldIDs = make([]fieldID, n)
	for i := 0; i < n; i++ {
		off := int(f.header.FieldIdsOff) + i*8
		if off+8 > len(f.data) {
			return fmt.Errorf("dex: field id %d out of bounds", i)
		}
		f.fieldIDs[i] = fieldID{
			ClassIdx: binary.LittleEndian.Uint16(f.data[off : off+2]),
			TypeIdx:  binary.LittleEndian.Uint16(f.data[off+2 : off+4]),
			NameIdx:  binary.LittleEndian.Uint32(f.data[off+4 : off+8]),
		}
	}
	return nil
}

func (f *File) readMethodIDs() error {
	n := int(f.header.MethodIdsSize)
	f.methodIDs = make([]methodID, n)
	for i := 0; i < n; i++ {
		off := int(f.header.MethodIdsOff) + i*8
		if off+8 > len(f.data) {
			return fmt.Errorf("dex: method id %d out of bounds", i)
		}
		f.methodIDs[i] = methodID{
			ClassIdx: binary.LittleEndian.Uint16(f.data[off : off+2]),
			ProtoIdx: binary.LittleEndian.Uint16(f.data[off+2 : off+4]),
			NameIdx:  binary.LittleEndian.Uint32(f.data[off+4 : off+8]),
		}
	}
	return nil
}

func (f *File) readClassDefs() error {
	n := int(f.header.ClassDefsSize)
	f.classDefs = make([]classDef, n)
	f.defByName = make(map[string]int, n)
	f.names = make([]string, n)
	for i := 0; i < n; i++ {
		off := int(f.header.ClassDefsOff) + i*classDefSize
		if off+classDefSize > len(f.data) {
			return fmt.Errorf("dex: class def %d out of bounds", i)
		}
		if err := binary.Read(bytes.NewReader(f.data[off:off+classDefSize]), binary.LittleEndian, &f.classDefs[i]); err != nil {
			return fmt.Errorf("dex: class def %d: %w", i, err)
		}
		name, err := f.typeName(f.classDefs[i].ClassIdx)
		if err != nil {
			return fmt.Errorf("dex: class def %d: %w", i, err)
		}
		f.defByName[name] = i
		f.names[i] = name
	}
	return nil
}

func (f *File) str(idx uint32) (string, error) {
	if int(idx) >= len(f.strings) {
		return "", fmt.Errorf("string index %d out of range", idx)
	}
	return f.strings[idx], nil
}

func (f *File) typeName(idx uint32) (string, error) {
	if int(idx) >= len(f.typeDescs) {
		return "", fmt.Errorf("type index %d out of range", idx)
	}
	return f.typeDescs[idx], nil
}

// typeList reads a type_list at off and returns the Java names of its
// entries. A zero offset means an empty list.
func (f *File) typeList(off uint32) ([]string, error) {
	if off == 0 {
		return nil, nil
	}
	if int(off)+4 > len(f.data) {
		return nil, fmt.Errorf("type list at %d out of bounds", off)
	}
	size := binary.LittleEndian.Uint32(f.data[off : off+4])
	out := make([]string, 0, size)
	for i := uint32(0); i < size; i++ {
		itemOff := int(off) + 4 + int(i)*2
		if itemOff+2 > len(f.data) {
			return nil, fmt.Errorf("type list item %d out of bounds", i)
		}
		typeIdx := binary.LittleEndian.Uint16(f.data[itemOff : itemOff+2])
		name, err := f.typeName(uint32(typeIdx))
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

// reader is a sticky-error cursor over the file's data section, used
// for the uleb128-encoded parts (string data, class_data_item).
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) uleb128() uint32 {
	if r.err != nil {
		return 0
	}
	var result uint32
	var shift uint
	for {
		if r.pos >= len(r.data) {
			r.err = fmt.Errorf("uleb128 runs past end of file at %d", r.pos)
			return 0
		}
		b := r.data[r.pos]
		r.pos++
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result
}
