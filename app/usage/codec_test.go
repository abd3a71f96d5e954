package usage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAll(t *testing.T) {
	data := []byte(`[
		{"a":"foo.tsx","c":[{"b":"label","d":"string","e":"Hi"}]},
		{"a":"bar.tsx","c":[{"b":"variant","d":"string","e":"outlined"},{"b":"disabled","d":"boolean","e":"true"}]},
		{"a":"baz.tsx"}
	]`)

	got, err := DecodeAll(data)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, Instance{FilePath: "foo.tsx", Props: []Prop{{Name: "label", Type: "string", Value: "Hi"}}}, got[0])
	assert.Equal(t, []Prop{
		{Name: "variant", Type: "string", Value: "outlined"},
		{Name: "disabled", Type: "boolean", Value: "true"},
	}, got[1].Props, "prop order must be preserved")
	assert.Equal(t, "baz.tsx", got[2].FilePath)
	assert.Empty(t, got[2].Props)
}

func TestDecode_ExpandedJSON(t *testing.T) {
	inst := Decode(CompactInstance{FilePath: "foo.tsx", Props: []CompactProp{{Name: "label", Type: "string", Value: "Hi"}}})

	data, err := json.Marshal(inst)
	require.NoError(t, err)
	assert.JSONEq(t, `{"filePath":"foo.tsx","props":[{"name":"label","type":"string","value":"Hi"}]}`, string(data))
}

func TestEncodeAll_Reversible(t *testing.T) {
	src := `[{"a":"foo.tsx","c":[{"b":"label","d":"string","e":"Hi"},{"b":"size","d":"number","e":"3"}]}]`

	instances, err := DecodeAll([]byte(src))
	require.NoError(t, err)

	data, err := EncodeAll(instances)
	require.NoError(t, err)
	assert.JSONEq(t, src, string(data))
}

func TestDecodeAll_Invalid(t *testing.T) {
	_, err := DecodeAll([]byte(`{"a":"not an array"}`))
	assert.Error(t, err)

	_, err = DecodeAll([]byte(`not json`))
	assert.Error(t, err)
}
