package pipeline

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembler_Response(t *testing.T) {
	asm := NewAssembler("my-model", EncodingFloat, 2)
	asm.Add([]float32{1, 0}, 3)
	asm.Add([]float32{0, 1}, 4)

	resp := asm.Response()
	assert.Equal(t, "list", resp.Object)
	assert.Equal(t, "my-model", resp.Model)
	assert.Empty(t, resp.Error)
	require.Len(t, resp.Data, 2)
	for i, item := range resp.Data {
		assert.Equal(t, "embedding", item.Object)
		assert.Equal(t, i, item.Index)
	}
	assert.Equal(t, []float32{1, 0}, resp.Data[0].Embedding)
	assert.Equal(t, Usage{PromptTokens: 7, TotalTokens: 7}, resp.Usage)
}

func TestAssembler_EmptyBatchEncodesArray(t *testing.T) {
	resp := NewAssembler("m", EncodingFloat, 0).Response()
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"data":[]`)
	assert.NotContains(t, string(b), `"error"`)
}

func TestAssembler_Failure(t *testing.T) {
	asm := NewAssembler("m", EncodingFloat, 2)
	asm.Add([]float32{1}, 5)

	resp := asm.Failure(errors.New("model exploded"))
	assert.Equal(t, "list", resp.Object)
	assert.Equal(t, "m", resp.Model)
	assert.Empty(t, resp.Data)
	assert.NotNil(t, resp.Data)
	assert.Equal(t, Usage{}, resp.Usage)
	assert.Equal(t, "model exploded", resp.Error)

	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"object":"list","data":[],"model":"m","usage":{"prompt_tokens":0,"total_tokens":0},"error":"model exploded"}`, string(b))
}

func TestFailureResponse_NilError(t *testing.T) {
	resp := FailureResponse("m", nil)
	assert.NotEmpty(t, resp.Error)
}

func TestAssembler_Base64(t *testing.T) {
	vec := []float32{0.5, -1, 3.25}
	asm := NewAssembler("m", EncodingBase64, 1)
	asm.Add(vec, 1)

	resp := asm.Response()
	encoded, ok := resp.Data[0].Embedding.(string)
	require.True(t, ok)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	require.Len(t, raw, 4*len(vec))
	for i, want := range vec {
		got := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		assert.Equal(t, want, got)
	}
}

func TestParseEncodingFormat(t *testing.T) {
	assert.Equal(t, EncodingFloat, ParseEncodingFormat(""))
	assert.Equal(t, EncodingFloat, ParseEncodingFormat("float"))
	assert.Equal(t, EncodingBase64, ParseEncodingFormat("BASE64"))
	assert.Equal(t, EncodingFloat, ParseEncodingFormat("int8"))
}
