package remote

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMultipart(t *testing.T) {
	content := []byte(`{"id":"n1","title":"第一章"}`)
	body, contentType, err := EncodeMultipart(FileMetadata{Name: "novel-n1.json", MimeType: jsonMimeType}, content)
	require.NoError(t, err)

	assert.Equal(t, "multipart/related; boundary="+multipartBoundary, contentType)

	text := string(body)
	assert.True(t, strings.HasPrefix(text, "--"+multipartBoundary+"\r\n"))
	assert.True(t, strings.HasSuffix(text, "\r\n--"+multipartBoundary+"--\r\n"))
	assert.Equal(t, 2, strings.Count(text, "Content-Type: application/json\r\n\r\n"))
	assert.Contains(t, text, `{"name":"novel-n1.json","mimeType":"application/json"}`)

	meta, got, err := DecodeMultipart(body, contentType)
	require.NoError(t, err)
	assert.Equal(t, "novel-n1.json", meta.Name)
	assert.Equal(t, content, got)
}

func TestDecodeMultipartRejectsBrokenBody(t *testing.T) {
	_, _, err := DecodeMultipart([]byte("garbage"), "multipart/related; boundary="+multipartBoundary)
	assert.Error(t, err)

	_, _, err = DecodeMultipart(nil, "application/json")
	assert.Error(t, err)
}
