package dex_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dexscope/internal/dex"
	"github.com/roach88/dexscope/internal/dextest"
)

func sampleFile(t *testing.T) *dex.File {
	t.Helper()
	return dextest.Parse(t,
		dextest.ClassSpec{
			Name:        "com.example.Base",
			AccessFlags: dex.AccPublic,
			Super:       "java.lang.Object",
			Fields: []dextest.FieldSpec{
				{Name: "count", Type: "int", AccessFlags: dex.AccPrivate},
			},
			Methods: []dextest.MethodSpec{
				{Name: "<init>", Return: "void", AccessFlags: dex.AccPublic | dex.AccConstructor},
				{Name: "size", Return: "int", AccessFlags: dex.AccPublic},
			},
		},
		dextest.ClassSpec{
			Name:        "com.example.Widget",
			AccessFlags: dex.AccPublic | dex.AccFinal,
			Super:       "com.example.Base",
			Interfaces:  []string{"java.lang.Runnable"},
			Fields: []dextest.FieldSpec{
				{Name: "label", Type: "java.lang.String", AccessFlags: dex.AccPrivate},
				{Name: "shared", Type: "int", AccessFlags: dex.AccStatic | dex.AccFinal},
			},
			Methods: []dextest.MethodSpec{
				{Name: "<init>", Return: "void", Params: []string{"java.lang.String"}, AccessFlags: dex.AccPublic | dex.AccConstructor},
				{Name: "run", Return: "void", AccessFlags: dex.AccPublic},
				{Name: "resize", Return: "boolean", Params: []string{"int", "int"}, AccessFlags: dex.AccPublic},
			},
		},
	)
}

func TestParse_RejectsBadMagic(t *testing.T) {
	data := dextest.Build(dextest.ClassSpec{Name: "a.B", AccessFlags: dex.AccPublic})
	data[0] = 'x'
	_, err := dex.Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad magic")
}

func TestParse_RejectsTruncatedFile(t *testing.T) {
	_, err := dex.Parse([]byte("dex\n035"))
	require.Error(t, err)
}

func TestFile_ClassNames(t *testing.T) {
	f := sampleFile(t)
	assert.Equal(t, []string{"com.example.Base", "com.example.Widget"}, f.ClassNames())
	assert.True(t, f.HasClass("com.example.Widget"))
	assert.False(t, f.HasClass("com.example.Missing"))
}

func TestFile_Class_DecodesMembers(t *testing.T) {
	f := sampleFile(t)

	c, ok, err := f.Class("com.example.Widget")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "com.example.Widget", c.Name)
	assert.Equal(t, "com.example.Base", c.SuperName)
	assert.Equal(t, []string{"java.lang.Runnable"}, c.Interfaces)
	assert.Equal(t, uint32(dex.AccPublic|dex.AccFinal), c.AccessFlags)

	// Static fields precede instance fields, per class_data layout.
	require.Len(t, c.Fields, 2)
	assert.Equal(t, "shared", c.Fields[0].Name)
	assert.Equal(t, "int", c.Fields[0].Type)
	assert.Equal(t, "label", c.Fields[1].Name)
	assert.Equal(t, "java.lang.String", c.Fields[1].Type)

	require.Len(t, c.Methods, 3)
	ctor := c.Methods[0]
	assert.True(t, ctor.IsConstructor())
	assert.Equal(t, []string{"java.lang.String"}, ctor.Params)

	var resize dex.Method
	for _, m := range c.Methods {
		if m.Name == "resize" {
			resize = m
		}
	}
	assert.Equal(t, "boolean", resize.ReturnType)
	assert.Equal(t, []string{"int", "int"}, resize.Params)
}

func TestFile_Class_NotDefined(t *testing.T) {
	f := sampleFile(t)
	_, ok, err := f.Class("com.example.Missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFile_Class_Memoized(t *testing.T) {
	f := sampleFile(t)
	a, _, err := f.Class("com.example.Base")
	require.NoError(t, err)
	b, _, err := f.Class("com.example.Base")
	require.NoError(t, err)
	assert.Same(t, a, b, "repeated decode should return the memoized instance")
}

func TestFile_Hash_TracksContent(t *testing.T) {
	data := dextest.Build(dextest.ClassSpec{Name: "a.B", AccessFlags: dex.AccPublic})
	f1, err := dex.Parse(data)
	require.NoError(t, err)
	f2, err := dex.Parse(append([]byte(nil), data...))
	require.NoError(t, err)
	assert.Equal(t, f1.Hash(), f2.Hash(), "identical content hashes equally")

	other := dextest.Build(dextest.ClassSpec{Name: "a.C", AccessFlags: dex.AccPublic})
	f3, err := dex.Parse(other)
	require.NoError(t, err)
	assert.NotEqual(t, f1.Hash(), f3.Hash())
}

func TestClass_NameHelpers(t *testing.T) {
	f := dextest.Parse(t,
		dextest.ClassSpec{Name: "com.example.Outer$Inner", AccessFlags: dex.AccPublic, Super: "java.lang.Object"},
		dextest.ClassSpec{Name: "com.example.Outer$1", AccessFlags: 0, Super: "java.lang.Object"},
		dextest.ClassSpec{Name: "TopLevel", AccessFlags: dex.AccPublic, Super: "java.lang.Object"},
	)

	inner, _, err := f.Class("com.example.Outer$Inner")
	require.NoError(t, err)
	assert.Equal(t, "Inner", inner.SimpleName())
	assert.Equal(t, "Outer$Inner", inner.SingleName())
	assert.Equal(t, "com.example", inner.Package())
	assert.Equal(t, "com.example.Outer", inner.EnclosingName())
	assert.False(t, inner.IsAnonymous())

	anon, _, err := f.Class("com.example.Outer$1")
	require.NoError(t, err)
	assert.True(t, anon.IsAnonymous())

	top, _, err := f.Class("TopLevel")
	require.NoError(t, err)
	assert.Equal(t, "TopLevel", top.SimpleName())
	assert.Equal(t, "", top.Package())
	assert.Equal(t, "", top.EnclosingName())
}

func TestClass_Constructors(t *testing.T) {
	f := sampleFile(t)
	c, _, err := f.Class("com.example.Widget")
	require.NoError(t, err)

	ctors := c.Constructors()
	require.Len(t, ctors, 1)
	assert.Equal(t, "<init>", ctors[0].Name)
}
