package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// FormData multipart 请求体，自带包含 boundary 的 Content-Type
type FormData struct {
	buf         *bytes.Buffer
	contentType string
}

// NewFileForm 读取文件并构造只含一个文件字段的表单
func NewFileForm(field, path string) (*FormData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer f.Close()

	return NewFileFormFromReader(field, filepath.Base(path), f)
}

// NewFileFormFromReader 从任意 reader 构造文件表单
func NewFileFormFromReader(field, filename string, r io.Reader) (*FormData, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, fmt.Errorf("创建表单失败: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("写入文件内容失败: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("关闭表单失败: %w", err)
	}

	return &FormData{buf: buf, contentType: w.FormDataContentType()}, nil
}

// ContentType 返回 multipart/form-data; boundary=...
func (f *FormData) ContentType() string {
	return f.contentType
}

// reader 每次请求都返回新的 reader
func (f *FormData) reader() io.Reader {
	return bytes.NewReader(f.buf.Bytes())
}
