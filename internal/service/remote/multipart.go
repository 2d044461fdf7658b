package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
)

const (
	multipartBoundary = "novelsync_314159265358979323846"
	jsonMimeType      = "application/json"
)

// FileMetadata multipart 请求的元数据部分
type FileMetadata struct {
	Name     string   `json:"name,omitempty"`
	MimeType string   `json:"mimeType"`
	Parents  []string `json:"parents,omitempty"`
}

// EncodeMultipart 编码为两段式 multipart/related 请求体
//
//	--boundary\r\nContent-Type: application/json\r\n\r\n<metadata>\r\n
//	--boundary\r\nContent-Type: application/json\r\n\r\n<content>\r\n--boundary--
func EncodeMultipart(meta FileMetadata, content []byte) ([]byte, string, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(multipartBoundary); err != nil {
		return nil, "", err
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Type", jsonMimeType)
	for _, part := range [][]byte{metaJSON, content} {
		pw, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := pw.Write(part); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), "multipart/related; boundary=" + w.Boundary(), nil
}

// DecodeMultipart 解析 EncodeMultipart 生成的请求体
func DecodeMultipart(body []byte, contentType string) (FileMetadata, []byte, error) {
	var meta FileMetadata

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return meta, nil, fmt.Errorf("invalid content type: %w", err)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return meta, nil, fmt.Errorf("content type has no boundary")
	}

	r := multipart.NewReader(bytes.NewReader(body), boundary)
	parts := make([][]byte, 0, 2)
	for len(parts) < 2 {
		p, err := r.NextPart()
		if err != nil {
			return meta, nil, fmt.Errorf("failed to read part %d: %w", len(parts)+1, err)
		}
		data, err := io.ReadAll(p)
		if err != nil {
			return meta, nil, err
		}
		parts = append(parts, data)
	}

	if err := json.Unmarshal(parts[0], &meta); err != nil {
		return meta, nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return meta, parts[1], nil
}
