package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareValues_TypeOrder(t *testing.T) {
	ordered := []any{nil, false, true, -1.5, 0.0, 42.0, "", "a", "b", []any{}, []any{1.0}, map[string]any{}}
	for i := range ordered {
		for j := range ordered {
			got := compareValues(ordered[i], ordered[j])
			switch {
			case i < j:
				assert.Negative(t, got, "%v < %v", ordered[i], ordered[j])
			case i > j:
				assert.Positive(t, got, "%v > %v", ordered[i], ordered[j])
			default:
				assert.Zero(t, got)
			}
		}
	}
}

func TestCompareValues_Objects(t *testing.T) {
	a := map[string]any{"x": 1.0, "y": "a"}
	b := map[string]any{"x": 1.0, "y": "b"}
	assert.Negative(t, compareValues(a, b))
	assert.Zero(t, compareValues(a, map[string]any{"y": "a", "x": 1.0}))
}

func TestFieldValue(t *testing.T) {
	doc := map[string]any{"name": "Ned", "address": map[string]any{"city": "Winterfell"}}
	assert.Equal(t, "Ned", fieldValue(doc, "name"))
	assert.Equal(t, "Winterfell", fieldValue(doc, "address.city"))
	assert.Nil(t, fieldValue(doc, "address.zip"))
	assert.Nil(t, fieldValue(doc, "name.first"))
}

func TestNormalize(t *testing.T) {
	v, err := normalize([]string{"a", "b"})
	assert.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, v)

	v, err = normalize(7)
	assert.NoError(t, err)
	assert.Equal(t, 7.0, v)

	_, err = normalize(make(chan int))
	assert.Error(t, err)
}
