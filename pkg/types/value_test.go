package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MarshalCanonical(t *testing.T) {
	t.Run("Should keep record field order", func(t *testing.T) {
		r := NewRecord().
			Add("z", NewScalar("1")).
			Add("a", NewScalar(true)).
			Add("m", Sequence{NewScalar("x"), NewRecord()})

		data, err := MarshalCanonical(r)
		require.NoError(t, err)
		assert.Equal(t, `{"z":"1","a":true,"m":["x",{}]}`, string(data))
	})

	t.Run("Should not escape html characters", func(t *testing.T) {
		data, err := MarshalCanonical(NewScalar("<a&b>"))
		require.NoError(t, err)
		assert.Equal(t, `"<a&b>"`, string(data))
	})

	t.Run("Should render nil values as null", func(t *testing.T) {
		data, err := MarshalCanonical(Sequence{nil, (*Scalar)(nil), (*Record)(nil)})
		require.NoError(t, err)
		assert.Equal(t, `[null,null,null]`, string(data))
	})

	t.Run("Should include artifact fields", func(t *testing.T) {
		r := NewRecord().AddArtifact("0", NewScalar("a")).Add("name", NewScalar("a")).AddArtifact(LengthMarkerKey, NewScalar(1))
		data, err := MarshalCanonical(r)
		require.NoError(t, err)
		assert.Equal(t, `{"0":"a","name":"a","__length__":1}`, string(data))
	})

	t.Run("Should be used by encoding/json", func(t *testing.T) {
		data, err := json.Marshal(map[string]Value{"v": NewRecord().Add("k", NewScalar("v"))})
		require.NoError(t, err)
		assert.Equal(t, `{"v":{"k":"v"}}`, string(data))
	})

	t.Run("Should reject values of unknown types", func(t *testing.T) {
		_, err := MarshalCanonical(Sequence{foreignValue{}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported value type types.foreignValue")
	})
}

type foreignValue struct{}

func (foreignValue) Kind() ValueKind { return KindScalar }

func Test_PositionalName(t *testing.T) {
	assert.Equal(t, "__positional_0", PositionalName(0))
	assert.True(t, IsPositionalName(PositionalName(12)))
	assert.False(t, IsPositionalName("makerAddress"))
	assert.False(t, IsPositionalName(""))
}

func Test_Record(t *testing.T) {
	inner := NewRecord().Add("data", NewScalar("0x1234"))
	r := NewRecord().
		AddArtifact("0", inner).
		Add("transaction", inner).
		Add("amount", NewScalar("7")).
		AddArtifact(LengthMarkerKey, NewScalar(2))

	t.Run("Should ignore artifacts in lookups", func(t *testing.T) {
		assert.Equal(t, []string{"transaction", "amount"}, r.Keys())
		assert.Equal(t, 2, r.Len())
		assert.False(t, r.Has("0"))
		assert.False(t, r.Has(LengthMarkerKey))
		assert.True(t, r.Has("amount"))
	})

	t.Run("Should resolve dotted paths", func(t *testing.T) {
		v, ok := r.Lookup("transaction.data")
		require.True(t, ok)
		assert.Equal(t, "0x1234", v.(*Scalar).String())

		_, ok = r.Lookup("amount.data")
		assert.False(t, ok)
		_, ok = r.Lookup("transaction.missing")
		assert.False(t, ok)
	})

	t.Run("Should return empty strings for non scalar fields", func(t *testing.T) {
		assert.Equal(t, "7", r.StringField("amount"))
		assert.Equal(t, "", r.StringField("transaction"))
		assert.Equal(t, "", r.StringField("missing"))
	})

	t.Run("Should tolerate a nil record", func(t *testing.T) {
		var nilRecord *Record
		assert.Nil(t, nilRecord.Keys())
		assert.False(t, nilRecord.Has("x"))
		assert.Equal(t, "", nilRecord.StringField("x"))
	})

	t.Run("Should stringify non string scalars", func(t *testing.T) {
		assert.Equal(t, "true", NewScalar(true).String())
		assert.Equal(t, "", NewScalar(nil).String())
	})
}
