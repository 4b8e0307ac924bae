package symbol

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	for _, s := range All() {
		got, err := Parse(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestParseIsCaseInsensitive(t *testing.T) {
	s, err := Parse("  nvda ")
	require.NoError(t, err)
	assert.Equal(t, NVDA, s)
}

func TestParseUnknown(t *testing.T) {
	_, err := Parse("IBM")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownSymbol))
}

func TestValid(t *testing.T) {
	assert.True(t, NFLX.Valid())
	assert.False(t, Count.Valid())
	assert.Equal(t, "UNKNOWN", Symbol(200).String())
	assert.Len(t, All(), int(Count))
}

func TestTextEncoding(t *testing.T) {
	b, err := json.Marshal(map[string]Symbol{"s": TSLA})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"TSLA"}`, string(b))

	var out struct {
		S Symbol `json:"s"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"s":"amzn"}`), &out))
	assert.Equal(t, AMZN, out.S)

	err = json.Unmarshal([]byte(`{"s":"XYZ"}`), &out)
	assert.Error(t, err)

	_, err = Count.MarshalText()
	assert.True(t, errors.Is(err, ErrUnknownSymbol))
}
