package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factorn/factord/pkg/block"
)

func raw(parts ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(parts))
	for _, p := range parts {
		out = append(out, json.RawMessage(p))
	}
	return out
}

func TestParamString(t *testing.T) {
	s, err := paramString(raw(`"hello"`), 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	_, err = paramString(raw(`"hello"`), 1)
	assert.Error(t, err)

	_, err = paramString(raw(`null`), 0)
	assert.Error(t, err)

	_, err = paramString(raw(`42`), 0)
	assert.Error(t, err)
}

func TestParamHash(t *testing.T) {
	h, err := paramHash(raw(`"cadb7d0d071506edc955a377b26875136bd74bbaa48eb85bf3f090dfeddb17b3"`), 0)
	require.NoError(t, err)
	assert.Equal(t, "cadb7d0d071506edc955a377b26875136bd74bbaa48eb85bf3f090dfeddb17b3", h.String())

	_, err = paramHash(raw(`"nothex"`), 0)
	assert.Error(t, err)
}

func TestParamAmount(t *testing.T) {
	v, err := paramAmount(raw(`1.5`), 0)
	require.NoError(t, err)
	assert.Equal(t, block.Amount(150000000), v)

	v, err = paramAmount(raw(`"0.01"`), 0)
	require.NoError(t, err)
	assert.Equal(t, block.Amount(1000000), v)

	_, err = paramAmount(raw(`"abc"`), 0)
	assert.Error(t, err)

	_, err = paramAmount(raw(`null`), 0)
	assert.Error(t, err)
}

func TestParamDefaults(t *testing.T) {
	assert.Equal(t, 1000, paramIntDefault(nil, 0, 1000))
	assert.Equal(t, 25, paramIntDefault(raw(`25`), 0, 1000))
	assert.Equal(t, 1000, paramIntDefault(raw(`null`), 0, 1000))

	assert.True(t, paramBoolDefault(nil, 0, true))
	assert.False(t, paramBoolDefault(raw(`false`), 0, true))
	assert.True(t, paramBoolDefault(raw(`1`), 0, false))
	assert.False(t, paramBoolDefault(raw(`0`), 0, true))
}
