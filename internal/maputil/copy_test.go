package maputil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepCopyMap_Independent(t *testing.T) {
	src := map[string]interface{}{
		"spec": map[string]interface{}{
			"tags": []interface{}{"a", map[string]interface{}{"k": "v"}},
		},
		"n": 1,
	}

	dst := DeepCopyMap(src)
	require.Equal(t, src, dst)

	dst["spec"].(map[string]interface{})["tags"].([]interface{})[1].(map[string]interface{})["k"] = "changed"
	dst["n"] = 2

	v, _ := GetPath(src, "spec")
	assert.Equal(t, "v", v.(map[string]interface{})["tags"].([]interface{})[1].(map[string]interface{})["k"])
	assert.Equal(t, 1, src["n"])
}

func TestDeepCopy_Nil(t *testing.T) {
	assert.Nil(t, DeepCopyMap(nil))
	assert.Nil(t, DeepCopySlice(nil))
}

func TestSetPath(t *testing.T) {
	m := map[string]interface{}{"a": "scalar"}

	SetPath(m, []string{"a", "b", "c"}, 1)
	SetPath(m, []string{"a", "d"}, 2)
	SetPath(m, nil, 3)

	assert.Equal(t, map[string]interface{}{
		"a": map[string]interface{}{
			"b": map[string]interface{}{"c": 1},
			"d": 2,
		},
	}, m)
}

func TestGetPath(t *testing.T) {
	m := map[string]interface{}{
		"spec": map[string]interface{}{"owner": "team", "steps": []interface{}{}},
	}

	tests := []struct {
		name   string
		path   []string
		want   interface{}
		wantOK bool
	}{
		{name: "leaf", path: []string{"spec", "owner"}, want: "team", wantOK: true},
		{name: "root", path: nil, want: m, wantOK: true},
		{name: "missing", path: []string{"spec", "type"}},
		{name: "through scalar", path: []string{"spec", "owner", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GetPath(m, tt.path...)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
	assert.Empty(t, SortedKeys(map[string]string{}))
}
