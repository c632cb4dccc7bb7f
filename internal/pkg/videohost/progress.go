package videohost

import "io"

// ProgressFunc 传输进度回调
type ProgressFunc func(sent, total int64)

// ProgressReader 包装 io.Reader，每次读取后回调进度
type ProgressReader struct {
	reader   io.Reader
	size     int64
	current  int64
	callback ProgressFunc
}

// NewProgressReader callback 为 nil 时直接返回原 reader
func NewProgressReader(reader io.Reader, size int64, callback ProgressFunc) io.Reader {
	if callback == nil {
		return reader
	}
	return &ProgressReader{
		reader:   reader,
		size:     size,
		callback: callback,
	}
}

// Read implements io.Reader
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.current += int64(n)
		pr.callback(pr.current, pr.size)
	}
	return n, err
}
