package dex

import (
	"fmt"
	"strings"
)

// Access flags, per the access_flags tables in the DEX specification.
const (
	AccPublic       = 0x1
	AccPrivate      = 0x2
	AccProtected    = 0x4
	AccStatic       = 0x8
	AccFinal        = 0x10
	AccSynchronized = 0x20
	AccVolatile     = 0x40
	AccTransient    = 0x80
	AccNative       = 0x100
	AccInterface    = 0x200
	AccAbstract     = 0x400
	AccStrict       = 0x800
	AccSynthetic    = 0x1000
	AccAnnotation   = 0x2000
	AccEnum         = 0x4000
	AccConstructor  = 0x10000
)

// Field is one field declared on a class. Name and Type are Java names.
type Field struct {
	Class       string
	Name        string
	Type        string
	AccessFlags uint32
}

func (f Field) String() string {
	return fmt.Sprintf("%s %s.%s", f.Type, f.Class, f.Name)
}

// Method is one method (or constructor) declared on a class.
type Method struct {
	Class       string
	Name        string
	ReturnType  string
	Params      []string
	AccessFlags uint32
}

// IsConstructor reports whether the method is an instance or static
// initializer.
func (m Method) IsConstructor() bool {
	return m.AccessFlags&AccConstructor != 0 || m.Name == "<init>" || m.Name == "<clinit>"
}

func (m Method) String() string {
	return fmt.Sprintf("%s %s.%s(%s)", m.ReturnType, m.Class, m.Name, strings.Join(m.Params, ", "))
}

// Class is the decoded view of one class_def_item plus its
// class_data_item member lists.
type Class struct {
	file *File

	Name        string // full Java name, e.g. com.example.Outer$Inner
	AccessFlags uint32
	SuperName   string // "" when the class has no superclass
	Interfaces  []string

	// Declaration order is preserved: static fields before instance
	// fields, direct methods before virtual methods, exactly as the
	// class_data_item lays them out.
	Fields  []Field
	Methods []Method
}

// File returns the DEX file the class was defined in.
func (c *Class) File() *File { return c.file }

// SimpleName is the innermost name segment: "Inner" for
// com.example.Outer$Inner.
func (c *Class) SimpleName() string {
	s := c.SingleName()
	if i := strings.LastIndexByte(s, '$'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// SingleName is the class name without its package: "Outer$Inner" for
// com.example.Outer$Inner.
func (c *Class) SingleName() string {
	if i := strings.LastIndexByte(c.Name, '.'); i >= 0 {
		return c.Name[i+1:]
	}
	return c.Name
}

// Package is the package portion of the class name, "" for the default
// package.
func (c *Class) Package() string {
	if i := strings.LastIndexByte(c.Name, '.'); i >= 0 {
		return c.Name[:i]
	}
	return ""
}

// EnclosingName is the full name of the lexically enclosing class, ""
// for top-level classes. Derived from the $-nesting convention in the
// class name.
func (c *Class) EnclosingName() string {
	if i := strings.LastIndexByte(c.Name, '$'); i >= 0 {
		return c.Name[:i]
	}
	return ""
}

// IsAnonymous reports whether the class is an anonymous inner class
// (its innermost name segment is purely numeric, e.g. Outer$1).
func (c *Class) IsAnonymous() bool {
	s := c.SimpleName()
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Constructors returns the subset of Methods that are constructors, in
// declaration order.
func (c *Class) Constructors() []Method {
	var out []Method
	for _, m := range c.Methods {
		if m.IsConstructor() {
			out = append(out, m)
		}
	}
	return out
}

// Class decodes the named class. The decoded value is memoized; the
// same *Class is returned for repeated lookups. Returns false when the
// file does not define the class.
func (f *File) Class(name string) (*Class, bool, error) {
	if c, ok := f.classes.Load(name); ok {
		return c, true, nil
	}
	idx, ok := f.defByName[name]
	if !ok {
		return nil, false, nil
	}
	c, err := f.decodeClass(idx)
	if err != nil {
		return nil, true, err
	}
	// Concurrent first decodes converge to one canonical instance.
	actual, _ := f.classes.LoadOrStore(name, c)
	return actual, true, nil
}

func (f *File) decodeClass(idx int) (*Class, error) {
	def := f.classDefs[idx]

	c := &Class{
		file:        f,
		Name:        f.names[idx],
		AccessFlags: def.AccessFlags,
	}

	if def.SuperclassIdx != NoIndex {
		super, err := f.typeName(def.SuperclassIdx)
		if err != nil {
			return nil, fmt.Errorf("dex: class %s: superclass: %w", c.Name, err)
		}
		c.SuperName = super
	}

	ifaces, err := f.typeList(def.InterfacesOff)
	if err != nil {
		return nil, fmt.Errorf("dex: class %s: interfaces: %w", c.Name, err)
	}
	c.Interfaces = ifaces

	if def.ClassDataOff == 0 {
		return c, nil // marker interface or empty class
	}
	if err := f.decodeClassData(c, def.ClassDataOff); err != nil {
		return nil, fmt.Errorf("dex: class %s: %w", c.Name, err)
	}
	return c, nil
}

// decodeClassData reads a class_data_item: four uleb128 counts followed
// by encoded_field and encoded_method lists with delta-encoded indices.
func (f *File) decodeClassData(c *Class, off uint32) error {
	r := &reader{data: f.data, pos: int(off)}

	staticFields := r.uleb128()
	instanceFields := r.uleb128()
	directMethods := r.uleb128()
	virtualMethods := r.uleb128()
	if r.err != nil {
		return fmt.Errorf("class data header: %w", r.err)
	}

	c.Fields = make([]Field, 0, staticFields+instanceFields)
	for _, n := range []uint32{staticFields, instanceFields} {
		fieldIdx := uint32(0)
		for i := uint32(0); i < n; i++ {
			fieldIdx += r.uleb128()
			access := r.uleb128()
			if r.err != nil {
				return fmt.Errorf("encoded field: %w", r.err)
			}
			fld, err := f.field(fieldIdx, access)
			if err != nil {
				return err
			}
			c.Fields = append(c.Fields, fld)
		}
	}

	c.Methods = make([]Method, 0, directMethods+virtualMethods)
	for _, n := range []uint32{directMethods, virtualMethods} {
		methodIdx := uint32(0)
		for i := uint32(0); i < n; i++ {
			methodIdx += r.uleb128()
			access := r.uleb128()
			r.uleb128() // code_off, unused
			if r.err != nil {
				return fmt.Errorf("encoded method: %w", r.err)
			}
			m, err := f.method(methodIdx, access)
			if err != nil {
				return err
			}
			c.Methods = append(c.Methods, m)
		}
	}
	return nil
}

func (f *File) field(idx uint32, access uint32) (Field, error) {
	if int(idx) >= len(f.fieldIDs) {
		return Field{}, fmt.Errorf("field index %d out of range", idx)
	}
	id := f.fieldIDs[idx]
	cls, err := f.typeName(uint32(id.ClassIdx))
	if err != nil {
		return Field{}, err
	}
	typ, err := f.typeName(uint32(id.TypeIdx))
	if err != nil {
		return Field{}, err
	}
	name, err := f.str(id.NameIdx)
	if err != nil {
		return Field{}, err
	}
	return Field{Class: cls, Name: name, Type: typ, AccessFlags: access}, nil
}

func (f *File) method(idx uint32, access uint32) (Method, error) {
	if int(idx) >= len(f.methodIDs) {
		return Method{}, fmt.Errorf("method index %d out of range", idx)
	}
	id := f.methodIDs[idx]
	cls, err := f.typeName(uint32(id.ClassIdx))
	if err != nil {
		return Method{}, err
	}
	name, err := f.str(id.NameIdx)
	if err != nil {
		return Method{}, err
	}
	if int(id.ProtoIdx) >= len(f.protos) {
		return Method{}, fmt.Errorf("proto index %d out of range", id.ProtoIdx)
	}
	proto := f.protos[id.ProtoIdx]
	ret, err := f.typeName(proto.ReturnTypeIdx)
	if err != nil {
		return Method{}, err
	}
	params, err := f.typeList(proto.ParametersOff)
	if err != nil {
		return Method{}, err
	}
	return Method{Class: cls, Name: name, ReturnType: ret, Params: params, AccessFlags: access}, nil
}
