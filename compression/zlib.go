package compression

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// The state-history stream carries deltas and traces as raw zlib
// streams. One block can hold many megabytes compressed, so readers are
// pooled and reset per payload.

var readerPool sync.Pool

func Inflate(src []byte) ([]byte, error) {
	var zr io.ReadCloser
	var err error

	pooled := readerPool.Get()
	if pooled == nil {
		zr, err = zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("zlib init: %w", err)
		}
	} else {
		zr = pooled.(io.ReadCloser)
		if err := zr.(zlib.Resetter).Reset(bytes.NewReader(src), nil); err != nil {
			return nil, fmt.Errorf("zlib reset: %w", err)
		}
	}
	defer readerPool.Put(zr)

	var out bytes.Buffer
	out.Grow(len(src) * 4)
	if _, err := io.Copy(&out, zr); err != nil {
		return nil, fmt.Errorf("zlib inflate: %w", err)
	}
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("zlib close: %w", err)
	}
	return out.Bytes(), nil
}

func Deflate(src []byte) []byte {
	var out bytes.Buffer
	zw := zlib.NewWriter(&out)
	zw.Write(src)
	zw.Close()
	return out.Bytes()
}
