package resolve_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dexscope/internal/cache"
	"github.com/roach88/dexscope/internal/dex"
	"github.com/roach88/dexscope/internal/dextest"
	"github.com/roach88/dexscope/internal/loader"
	"github.com/roach88/dexscope/internal/resolve"
	"github.com/roach88/dexscope/internal/rule"
)

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

// sampleLoader builds the fixture app: a small hierarchy with duplicate
// member names, overloads, and an anonymous inner class.
func sampleLoader(t *testing.T) loader.Loader {
	t.Helper()
	f := dextest.Parse(t,
		dextest.ClassSpec{
			Name:        "com.sample.Base",
			AccessFlags: dex.AccPublic,
			Super:       "java.lang.Object",
			Fields: []dextest.FieldSpec{
				{Name: "tag", Type: "java.lang.String", AccessFlags: dex.AccProtected | dex.AccStatic},
				{Name: "counter", Type: "int", AccessFlags: dex.AccPrivate},
			},
			Methods: []dextest.MethodSpec{
				{Name: "<init>", Return: "void", AccessFlags: dex.AccPublic | dex.AccConstructor},
				{Name: "describe", Return: "java.lang.String", AccessFlags: dex.AccPublic},
			},
		},
		dextest.ClassSpec{
			Name:        "com.sample.Widget",
			AccessFlags: dex.AccPublic,
			Super:       "com.sample.Base",
			Interfaces:  []string{"java.lang.Runnable"},
			Fields: []dextest.FieldSpec{
				{Name: "value", Type: "int", AccessFlags: dex.AccPrivate},
				{Name: "label", Type: "java.lang.String", AccessFlags: dex.AccPrivate | dex.AccFinal},
				{Name: "value", Type: "java.lang.String", AccessFlags: dex.AccPrivate},
				{Name: "width", Type: "int", AccessFlags: dex.AccPublic},
			},
			Methods: []dextest.MethodSpec{
				{Name: "<init>", Return: "void", Params: []string{"java.lang.String"}, AccessFlags: dex.AccPublic | dex.AccConstructor},
				{Name: "<init>", Return: "void", Params: []string{"java.lang.String", "int"}, AccessFlags: dex.AccPublic | dex.AccConstructor},
				{Name: "renderHint", Return: "java.lang.String", AccessFlags: dex.AccPrivate | dex.AccStatic},
				{Name: "run", Return: "void", AccessFlags: dex.AccPublic},
				{Name: "handle", Return: "void", Params: []string{"int"}, AccessFlags: dex.AccPublic},
				{Name: "handle", Return: "void", Params: []string{"java.lang.String", "int"}, AccessFlags: dex.AccPublic},
				{Name: "handle", Return: "void", Params: []string{"long", "int"}, AccessFlags: dex.AccPublic},
			},
		},
		dextest.ClassSpec{
			Name:        "com.sample.Widget$1",
			AccessFlags: dex.AccSynthetic,
			Super:       "java.lang.Object",
			Interfaces:  []string{"java.lang.Runnable"},
			Methods: []dextest.MethodSpec{
				{Name: "run", Return: "void", AccessFlags: dex.AccPublic},
			},
		},
		dextest.ClassSpec{
			Name:        "com.other.Helper",
			AccessFlags: dex.AccPublic,
			Super:       "java.lang.Object",
			Fields: []dextest.FieldSpec{
				{Name: "value", Type: "int", AccessFlags: dex.AccPublic},
			},
		},
	)
	return loader.NewDexLoader("app", nil, f)
}

func newResolver() *resolve.Resolver {
	return resolve.New(
		resolve.WithCache(cache.New()),
		resolve.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func widget(t *testing.T, r *resolve.Resolver, l loader.Loader) *dex.Class {
	t.Helper()
	c, err := r.LoadClass(l, "com.sample.Widget")
	require.NoError(t, err)
	return c
}

func TestFindFields_ValidationPrecedesSearch(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()
	c := widget(t, r, l)

	_, err := r.FindFields(l, c, &rule.FieldRule{})
	require.Error(t, err)
	assert.True(t, resolve.IsMalformedRule(err))
	assert.Equal(t, resolve.CodeMalformedRule, resolve.CodeOf(err))
	assert.False(t, resolve.IsMissing(err))
}

func TestFindMethods_AllWildcardParamsIsMalformed(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()
	c := widget(t, r, l)

	_, err := r.FindMethods(l, c, &rule.MethodRule{
		Name:       rule.StringPred{Eq: strp("handle")},
		ParamTypes: []string{rule.Wildcard, rule.Wildcard},
	})
	assert.True(t, resolve.IsMalformedRule(err))
}

func TestFindFields_DuplicateNameDeclarationOrder(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()
	c := widget(t, r, l)

	fields, err := r.FindFields(l, c, &rule.FieldRule{Name: rule.StringPred{Eq: strp("value")}})
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "int", fields[0].Type)
	assert.Equal(t, "java.lang.String", fields[1].Type)
}

func TestFindField_DuplicateNameIndexSelection(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()
	c := widget(t, r, l)

	first, err := r.FindField(l, c, &rule.FieldRule{
		Name: rule.StringPred{Eq: strp("value"), Index: rule.First()},
	})
	require.NoError(t, err)
	assert.Equal(t, "int", first.Type)

	last, err := r.FindField(l, c, &rule.FieldRule{
		Name: rule.StringPred{Eq: strp("value"), Index: rule.At(-1)},
	})
	require.NoError(t, err)
	assert.Equal(t, "java.lang.String", last.Type)
}

func TestFindFields_RuleOrderIndex(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()
	c := widget(t, r, l)

	// Two int fields are declared; the order index picks the last.
	f, err := r.FindField(l, c, &rule.FieldRule{
		Type:  rule.StringPred{Eq: strp("int")},
		Index: rule.At(-1),
	})
	require.NoError(t, err)
	assert.Equal(t, "width", f.Name)
}

func TestFindMethods_WildcardParamTypes(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()
	c := widget(t, r, l)

	methods, err := r.FindMethods(l, c, &rule.MethodRule{
		Name:       rule.StringPred{Eq: strp("handle")},
		ParamTypes: []string{rule.Wildcard, "int"},
	})
	require.NoError(t, err)
	require.Len(t, methods, 2)
	assert.Equal(t, []string{"java.lang.String", "int"}, methods[0].Params)
	assert.Equal(t, []string{"long", "int"}, methods[1].Params)
}

func TestFindMethods_ExcludesConstructors(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()
	c := widget(t, r, l)

	methods, err := r.FindMethods(l, c, &rule.MethodRule{
		Modifiers: rule.ModifierPred{Include: dex.AccPublic},
	})
	require.NoError(t, err)
	for _, m := range methods {
		assert.False(t, m.IsConstructor(), "constructor %s leaked into method results", m)
	}
	assert.Len(t, methods, 4) // run plus three handle overloads
}

func TestFindMethods_OptionalPredicateDoesNotVeto(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()
	c := widget(t, r, l)

	// The optional name predicate keeps non-matching candidates
	// eligible; only the modifier constraint filters.
	methods, err := r.FindMethods(l, c, &rule.MethodRule{
		Name:      rule.StringPred{Eq: strp("handle"), Optional: true},
		Modifiers: rule.ModifierPred{Include: dex.AccPublic},
	})
	require.NoError(t, err)
	assert.Len(t, methods, 4)

	// Without Optional the same rule narrows to the overloads.
	methods, err = r.FindMethods(l, c, &rule.MethodRule{
		Name:      rule.StringPred{Eq: strp("handle")},
		Modifiers: rule.ModifierPred{Include: dex.AccPublic},
	})
	require.NoError(t, err)
	assert.Len(t, methods, 3)
}

func TestFindConstructors(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()
	c := widget(t, r, l)

	ctors, err := r.FindConstructors(l, c, &rule.ConstructorRule{ParamCount: rule.Exactly(2)})
	require.NoError(t, err)
	require.Len(t, ctors, 1)
	assert.Equal(t, []string{"java.lang.String", "int"}, ctors[0].Params)

	base, err := r.LoadClass(l, "com.sample.Base")
	require.NoError(t, err)
	ctors, err = r.FindConstructors(l, base, &rule.ConstructorRule{ParamTypes: []string{}})
	require.NoError(t, err)
	require.Len(t, ctors, 1)
	assert.Empty(t, ctors[0].Params)
}

func TestFindFields_SuperclassFallback(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()
	c := widget(t, r, l)

	// counter is declared on Base, not Widget.
	ru := &rule.FieldRule{Name: rule.StringPred{Eq: strp("counter")}}
	_, err := r.FindField(l, c, ru)
	require.Error(t, err)
	assert.Equal(t, resolve.CodeMissingField, resolve.CodeOf(err))
	assert.True(t, resolve.IsMissing(err))

	ru.SearchSuper = true
	f, err := r.FindField(l, c, ru)
	require.NoError(t, err)
	assert.Equal(t, "com.sample.Base", f.Class)
	assert.Equal(t, "int", f.Type)
}

func TestFindMethods_SuperclassFallback(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()
	c := widget(t, r, l)

	m, err := r.FindMethod(l, c, &rule.MethodRule{
		Name:        rule.StringPred{Eq: strp("describe")},
		SearchSuper: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "com.sample.Base", m.Class)
}

func TestFindFields_MatchCount(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()
	c := widget(t, r, l)

	ru := &rule.FieldRule{Name: rule.StringPred{Eq: strp("value")}, MatchCount: rule.Exactly(2)}
	fields, err := r.FindFields(l, c, ru)
	require.NoError(t, err)
	assert.Len(t, fields, 2)

	ru.MatchCount = rule.Exactly(3)
	_, err = r.FindFields(l, c, ru)
	assert.Equal(t, resolve.CodeMissingField, resolve.CodeOf(err))

	// An explicit zero expectation makes an empty result a success.
	fields, err = r.FindFields(l, c, &rule.FieldRule{
		Name:       rule.StringPred{Eq: strp("ghost")},
		MatchCount: rule.Exactly(0),
	})
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestFindFields_CachedInstanceIdentity(t *testing.T) {
	l := sampleLoader(t)
	store := cache.New()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := resolve.New(resolve.WithCache(store), resolve.WithLogger(quiet))
	c := widget(t, r, l)

	ru := &rule.FieldRule{Name: rule.StringPred{Eq: strp("label")}}
	a, err := r.FindFields(l, c, ru)
	require.NoError(t, err)
	b, err := r.FindFields(l, c, ru)
	require.NoError(t, err)
	assert.Same(t, &a[0], &b[0], "repeated resolution returns the cached set")

	// A second resolver over the same store observes the same entry.
	r2 := resolve.New(resolve.WithCache(store), resolve.WithLogger(quiet))
	d, err := r2.FindFields(l, widget(t, r2, l), ru)
	require.NoError(t, err)
	assert.Same(t, &a[0], &d[0])
}

func TestFindFields_PredicateBypassesCache(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()
	c := widget(t, r, l)

	calls := 0
	ru := &rule.FieldRule{
		Name:      rule.StringPred{Eq: strp("label")},
		Predicate: func(dex.Field) bool { calls++; return true },
	}
	_, err := r.FindFields(l, c, ru)
	require.NoError(t, err)
	_, err = r.FindFields(l, c, ru)
	require.NoError(t, err)
	// Both matcher passes visit all four declared fields, on both
	// resolutions: nothing was served from cache.
	assert.Equal(t, 16, calls)
}

func TestFindClasses(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()

	names := func(classes []*dex.Class) []string {
		out := make([]string, len(classes))
		for i, c := range classes {
			out[i] = c.Name
		}
		return out
	}

	t.Run("by package", func(t *testing.T) {
		classes, err := r.FindClasses(l, &rule.ClassRule{Package: rule.StringPred{Eq: strp("com.sample")}})
		require.NoError(t, err)
		assert.Equal(t, []string{"com.sample.Base", "com.sample.Widget", "com.sample.Widget$1"}, names(classes))
	})

	t.Run("by interface", func(t *testing.T) {
		classes, err := r.FindClasses(l, &rule.ClassRule{Implements: []string{"java.lang.Runnable"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"com.sample.Widget", "com.sample.Widget$1"}, names(classes))
	})

	t.Run("by superclass", func(t *testing.T) {
		classes, err := r.FindClasses(l, &rule.ClassRule{Superclass: rule.StringPred{Eq: strp("com.sample.Base")}})
		require.NoError(t, err)
		assert.Equal(t, []string{"com.sample.Widget"}, names(classes))
	})

	t.Run("anonymous inner classes", func(t *testing.T) {
		classes, err := r.FindClasses(l, &rule.ClassRule{
			EnclosedBy: rule.StringPred{Eq: strp("com.sample.Widget")},
			Anonymous:  boolp(true),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"com.sample.Widget$1"}, names(classes))
	})

	t.Run("nested field rule", func(t *testing.T) {
		classes, err := r.FindClasses(l, &rule.ClassRule{
			Fields: []*rule.FieldRule{{
				Name:       rule.StringPred{Eq: strp("value")},
				MatchCount: rule.Exactly(2),
			}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"com.sample.Widget"}, names(classes))
	})

	t.Run("no match", func(t *testing.T) {
		_, err := r.FindClasses(l, &rule.ClassRule{SimpleName: rule.StringPred{Eq: strp("Nothing")}})
		require.Error(t, err)
		assert.Equal(t, resolve.CodeMissingClass, resolve.CodeOf(err))
	})

	t.Run("empty rule is malformed", func(t *testing.T) {
		_, err := r.FindClasses(l, &rule.ClassRule{})
		assert.True(t, resolve.IsMalformedRule(err))
	})
}

func TestFindClass_ReturnsFirstMatch(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()

	c, err := r.FindClass(l, &rule.ClassRule{Package: rule.StringPred{Eq: strp("com.sample")}})
	require.NoError(t, err)
	assert.Equal(t, "com.sample.Base", c.Name)
}

func TestLoadClass_NotFound(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()

	_, err := r.LoadClass(l, "com.sample.Gone")
	require.Error(t, err)
	assert.Equal(t, resolve.CodeMissingClass, resolve.CodeOf(err))
	assert.Contains(t, err.Error(), "com.sample.Gone")
}

func TestClassNames_NoDexBacking(t *testing.T) {
	r := newResolver()
	l := loader.NewPathLoader("isolated", loader.NewPathLoader("empty", nil))

	_, err := r.ClassNames(l)
	require.Error(t, err)
	assert.True(t, resolve.IsNoDexBacking(err))
	assert.ErrorIs(t, err, loader.ErrNoDexBacking)
}

func TestError_DiagnosticTrace(t *testing.T) {
	l := sampleLoader(t)
	r := newResolver()
	c := widget(t, r, l)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	_, err := r.FindMethods(l, c, &rule.MethodRule{
		Name:        rule.StringPred{Eq: strp("connect")},
		ReturnType:  rule.StringPred{Eq: strp("void")},
		ParamTypes:  []string{"java.lang.String", rule.Wildcard},
		Modifiers:   rule.ModifierPred{Include: dex.AccPublic},
		SearchSuper: true,
	})
	require.Error(t, err)
	g.Assert(t, "missing_method", []byte(err.Error()))

	_, err = r.FindFields(l, c, &rule.FieldRule{})
	require.Error(t, err)
	g.Assert(t, "malformed_rule", []byte(err.Error()))
}
