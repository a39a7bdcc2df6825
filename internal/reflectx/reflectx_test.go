package reflectx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	Name  string
	Age   int
	Tags  []string
	email string
}

func TestGet(t *testing.T) {
	u := &user{Name: "ada", Age: 36, email: "hidden"}
	tests := []struct {
		name string
		obj  any
		key  string
		want any
		ok   bool
	}{
		{"exported field", u, "Name", "ada", true},
		{"lower-case alias", u, "age", 36, true},
		{"struct value", *u, "Name", "ada", true},
		{"unexported field", u, "email", nil, false},
		{"missing field", u, "Nope", nil, false},
		{"map entry", map[string]any{"k": 1}, "k", 1, true},
		{"missing map entry", map[string]any{}, "k", nil, false},
		{"nil pointer", (*user)(nil), "Name", nil, false},
		{"scalar", 3, "x", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Get(tt.obj, tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSet(t *testing.T) {
	u := &user{}
	require.NoError(t, Set(u, "name", "grace"))
	require.NoError(t, Set(u, "Age", 85.0))
	require.NoError(t, Set(u, "Tags", nil))
	assert.Equal(t, &user{Name: "grace", Age: 85}, u)

	m := map[string]int{}
	require.NoError(t, Set(m, "n", 2))
	assert.Equal(t, 2, m["n"])

	assert.Error(t, Set(*u, "Name", "x"), "struct values are copies")
	assert.Error(t, Set(u, "Name", 1), "numbers do not become strings")
	assert.Error(t, Set(u, "email", "x"))
	assert.Error(t, Set(map[int]any{}, "k", 1))
}

func TestIdentityAndSame(t *testing.T) {
	u := &user{}
	id, ok := Identity(u)
	assert.True(t, ok)
	assert.NotZero(t, id)
	_, ok = Identity(*u)
	assert.False(t, ok)

	s := []int{1, 2}
	assert.True(t, Same(s, s))
	assert.False(t, Same(s, []int{1, 2}))
	assert.False(t, Same(s, s[:1]))

	m := map[string]any{}
	assert.True(t, Same(m, m))
	assert.False(t, Same(m, map[string]any{}))

	assert.True(t, Same(nil, nil))
	assert.False(t, Same(nil, 0))
	assert.False(t, Same(1, int64(1)))
	assert.True(t, Same("a", "a"))

	assert.True(t, Comparable(u))
	assert.False(t, Comparable(s))
}

type holder struct {
	V any
}

func TestInterfaceFieldsDecideComparability(t *testing.T) {
	assert.True(t, Comparable(holder{V: 1}))
	assert.False(t, Comparable(holder{V: []int{1}}))

	h := holder{V: []int{1}}
	assert.NotPanics(t, func() {
		assert.False(t, Same(h, h), "no identity to compare")
		assert.False(t, Same(h, holder{V: 1}))
	})
	assert.True(t, Same(holder{V: "a"}, holder{V: "a"}))
}
