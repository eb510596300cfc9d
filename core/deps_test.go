package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type scope struct {
	ChurchID string
	Page     int
}

func TestDepsEqual(t *testing.T) {
	filters := []string{"active"}
	lookup := map[string]int{"a": 1}
	fn := func() {}
	ptr := &scope{ChurchID: "church1"}

	tests := []struct {
		name     string
		a, b     []any
		expected bool
	}{
		{"both nil", nil, nil, true},
		{"nil and empty", nil, []any{}, true},
		{"different length", []any{"a"}, []any{"a", "b"}, false},
		{"same strings", []any{"church1", 2}, []any{"church1", 2}, true},
		{"different strings", []any{"church1"}, []any{"church2"}, false},
		{"different types same text", []any{1}, []any{int64(1)}, false},
		{"equal structs", []any{scope{"c", 1}}, []any{scope{"c", 1}}, true},
		{"same pointer", []any{ptr}, []any{ptr}, true},
		{"equal pointees", []any{ptr}, []any{&scope{ChurchID: "church1"}}, false},
		{"same slice", []any{filters}, []any{filters}, true},
		{"equal slice contents", []any{filters}, []any{[]string{"active"}}, false},
		{"resliced", []any{filters}, []any{filters[:0]}, false},
		{"same map", []any{lookup}, []any{lookup}, true},
		{"equal map contents", []any{lookup}, []any{map[string]int{"a": 1}}, false},
		{"same func", []any{fn}, []any{fn}, true},
		{"nil element", []any{nil}, []any{nil}, true},
		{"nil vs value", []any{nil}, []any{0}, false},
		{"interface holding slice", []any{[]any{filters}}, []any{[]any{filters}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, depsEqual(tt.a, tt.b))
			assert.Equal(t, tt.expected, depsEqual(tt.b, tt.a), "comparison should be symmetric")
		})
	}
}

func TestCloneDeps(t *testing.T) {
	assert.Nil(t, cloneDeps(nil))

	deps := []any{"church1", 1}
	cloned := cloneDeps(deps)
	deps[0] = "church2"
	assert.Equal(t, "church1", cloned[0])
	assert.False(t, depsEqual(deps, cloned))
}

func TestSafeEqualUncomparableField(t *testing.T) {
	type holder struct{ V any }
	a := holder{V: []int{1}}
	b := holder{V: []int{1}}
	assert.False(t, sameDep(a, b), "structs holding slices are never equal")
	assert.True(t, sameDep(holder{V: 1}, holder{V: 1}))
}

// FuzzDepsEqual checks that comparison is reflexive and symmetric for scalar deps.
func FuzzDepsEqual(f *testing.F) {
	f.Add("church1", 1, true, "church1", 1, true)
	f.Add("church1", 1, true, "church2", 1, true)
	f.Add("", 0, false, "", 0, true)
	f.Fuzz(func(t *testing.T, s1 string, n1 int, b1 bool, s2 string, n2 int, b2 bool) {
		a := []any{s1, n1, b1}
		b := []any{s2, n2, b2}
		if !depsEqual(a, a) {
			t.Fatalf("depsEqual not reflexive for %v", a)
		}
		if depsEqual(a, b) != depsEqual(b, a) {
			t.Fatalf("depsEqual not symmetric for %v and %v", a, b)
		}
		want := s1 == s2 && n1 == n2 && b1 == b2
		if got := depsEqual(a, b); got != want {
			t.Fatalf("depsEqual(%v, %v) = %v, want %v", a, b, got, want)
		}
	})
}
