package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/overseer/internal/types"
)

func TestLookup(t *testing.T) {
	data := types.Context{
		"user": map[string]any{"name": "alice", "roles": []any{"admin", "dev"}},
		"action": map[string]any{
			"params": map[string]any{"path": "/etc/passwd"},
		},
		"labels":   map[string]string{"team": "infra"},
		"ports":    []int{22, 443},
		"nothing":  nil,
		"0":        "zero-key",
		"scalar":   "text",
		"matrix":   []any{[]any{1, 2}, []any{3, 4}},
		"explicit": map[string]any{"null": nil},
	}

	tests := []struct {
		name      string
		field     string
		wantValue any
		wantFound bool
	}{
		{name: "top level", field: "scalar", wantValue: "text", wantFound: true},
		{name: "nested map", field: "user.name", wantValue: "alice", wantFound: true},
		{name: "three levels", field: "action.params.path", wantValue: "/etc/passwd", wantFound: true},
		{name: "list index", field: "user.roles.1", wantValue: "dev", wantFound: true},
		{name: "typed string map", field: "labels.team", wantValue: "infra", wantFound: true},
		{name: "typed slice index", field: "ports.1", wantValue: 443, wantFound: true},
		{name: "nested list index", field: "matrix.1.0", wantValue: 3, wantFound: true},
		{name: "numeric key on map", field: "0", wantValue: "zero-key", wantFound: true},
		{name: "explicit null is found", field: "explicit.null", wantValue: nil, wantFound: true},
		{name: "missing top level", field: "absent", wantFound: false},
		{name: "missing intermediate", field: "user.address.city", wantFound: false},
		{name: "index out of range", field: "user.roles.5", wantFound: false},
		{name: "non-numeric segment on list", field: "user.roles.first", wantFound: false},
		{name: "descend into scalar", field: "scalar.length", wantFound: false},
		{name: "descend through null", field: "nothing.deeper", wantFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Lookup(data, tt.field)
			if got.Found != tt.wantFound {
				t.Fatalf("Lookup(%q).Found = %v, want %v", tt.field, got.Found, tt.wantFound)
			}
			if tt.wantFound && !valuesEqual(got.Value, tt.wantValue) {
				t.Errorf("Lookup(%q).Value = %v, want %v", tt.field, got.Value, tt.wantValue)
			}
		})
	}
}

func TestParsePath_TooDeep(t *testing.T) {
	field := strings.Repeat("a.", types.MaxPathDepth) + "a"
	_, err := ParsePath(field)
	if !errors.Is(err, types.ErrPathTooDeep) {
		t.Fatalf("ParsePath() error = %v, want ErrPathTooDeep", err)
	}

	if got := Lookup(types.Context{"a": 1}, field); got.Found {
		t.Errorf("Lookup() on too-deep path Found = true, want false")
	}
}

func TestParsePath_Segments(t *testing.T) {
	segs, err := ParsePath("items.2.name")
	if err != nil {
		t.Fatalf("ParsePath() error = %v, want nil", err)
	}
	if len(segs) != 3 {
		t.Fatalf("len(segments) = %d, want 3", len(segs))
	}
	if segs[0].IsIndex || segs[0].Key != "items" {
		t.Errorf("segment 0 = %+v, want key items", segs[0])
	}
	if !segs[1].IsIndex || segs[1].Index != 2 {
		t.Errorf("segment 1 = %+v, want index 2", segs[1])
	}

	root, err := ParsePath("")
	if err != nil || root != nil {
		t.Errorf("ParsePath(\"\") = %v, %v, want nil, nil", root, err)
	}
}

// Property-based test: resolution never panics on arbitrary paths
func TestLookup_PropertyNeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	data := types.Context{
		"key": []any{map[string]any{"key": "value"}, 7, nil},
		"0":   map[string]any{"1": []string{"x"}},
	}
	segments := []string{"key", "0", "1", "2", "missing", "", "-1"}

	properties.Property("lookup is total", prop.ForAll(
		func(picks []int) bool {
			parts := make([]string, len(picks))
			for i, p := range picks {
				parts[i] = segments[p]
			}
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Lookup() panicked: %v", r)
				}
			}()
			_ = Lookup(data, strings.Join(parts, "."))
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(segments)-1)),
	))

	properties.TestingRun(t)
}
