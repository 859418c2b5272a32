package loader_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dexscope/internal/dex"
	"github.com/roach88/dexscope/internal/dextest"
	"github.com/roach88/dexscope/internal/loader"
)

func TestDexLoader_LoadClass(t *testing.T) {
	f := dextest.Parse(t,
		dextest.ClassSpec{Name: "com.app.Main", AccessFlags: dex.AccPublic, Super: "java.lang.Object"},
	)
	l := loader.NewDexLoader("app", nil, f)

	c, ok, err := l.LoadClass("com.app.Main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "com.app.Main", c.Name)

	_, ok, err = l.LoadClass("com.app.Missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDexLoader_ParentFirstDelegation(t *testing.T) {
	// The same class name defined in parent and child resolves to the
	// parent's definition.
	parentDex := dextest.Parse(t,
		dextest.ClassSpec{Name: "com.lib.Util", AccessFlags: dex.AccPublic, Super: "java.lang.Object",
			Fields: []dextest.FieldSpec{{Name: "fromParent", Type: "int", AccessFlags: dex.AccPublic}}},
	)
	childDex := dextest.Parse(t,
		dextest.ClassSpec{Name: "com.lib.Util", AccessFlags: dex.AccPublic, Super: "java.lang.Object",
			Fields: []dextest.FieldSpec{{Name: "fromChild", Type: "int", AccessFlags: dex.AccPublic}}},
	)

	parent := loader.NewDexLoader("boot", nil, parentDex)
	child := loader.NewDexLoader("app", parent, childDex)

	c, ok, err := child.LoadClass("com.lib.Util")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, c.Fields, 1)
	assert.Equal(t, "fromParent", c.Fields[0].Name)
}

func TestPathLoader_DelegatesToParent(t *testing.T) {
	f := dextest.Parse(t,
		dextest.ClassSpec{Name: "com.app.Main", AccessFlags: dex.AccPublic, Super: "java.lang.Object"},
	)
	backing := loader.NewDexLoader("app", nil, f)
	link := loader.NewPathLoader("link", backing)

	c, ok, err := link.LoadClass("com.app.Main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "com.app.Main", c.Name)
}

func TestDexBacked_WalksChain(t *testing.T) {
	f := dextest.Parse(t,
		dextest.ClassSpec{Name: "com.app.Main", AccessFlags: dex.AccPublic, Super: "java.lang.Object"},
	)
	backing := loader.NewDexLoader("app", nil, f)
	outer := loader.NewPathLoader("outer", loader.NewPathLoader("middle", backing))

	dl, err := loader.DexBacked(outer)
	require.NoError(t, err)
	assert.Same(t, backing, dl)
}

func TestDexBacked_NoBackingFails(t *testing.T) {
	chain := loader.NewPathLoader("a", loader.NewPathLoader("b", nil))
	_, err := loader.DexBacked(chain)
	assert.ErrorIs(t, err, loader.ErrNoDexBacking)
}

func TestClassNames_CombinesFiles(t *testing.T) {
	f1 := dextest.Parse(t,
		dextest.ClassSpec{Name: "com.app.A", AccessFlags: dex.AccPublic, Super: "java.lang.Object"},
	)
	f2 := dextest.Parse(t,
		dextest.ClassSpec{Name: "com.app.B", AccessFlags: dex.AccPublic, Super: "java.lang.Object"},
		dextest.ClassSpec{Name: "com.app.C", AccessFlags: dex.AccPublic, Super: "java.lang.Object"},
	)
	l := loader.NewPathLoader("link", loader.NewDexLoader("app", nil, f1, f2))

	names, err := loader.ClassNames(l)
	require.NoError(t, err)
	assert.Equal(t, []string{"com.app.A", "com.app.B", "com.app.C"}, names)
}

func TestDexLoader_IDTracksContent(t *testing.T) {
	data := dextest.Build(dextest.ClassSpec{Name: "a.B", AccessFlags: dex.AccPublic})
	f1, err := dex.Parse(data)
	require.NoError(t, err)
	f2, err := dex.Parse(append([]byte(nil), data...))
	require.NoError(t, err)

	l1 := loader.NewDexLoader("app", nil, f1)
	l2 := loader.NewDexLoader("app", nil, f2)
	assert.Equal(t, l1.ID(), l2.ID(), "loaders over identical content share an ID")
}
