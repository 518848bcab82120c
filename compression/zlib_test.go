package compression

import (
	"bytes"
	"testing"
)

func TestInflateDeflateRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte(""),
		[]byte("hello"),
		bytes.Repeat([]byte{0xab, 0xcd}, 100000),
	}
	for i, payload := range payloads {
		compressed := Deflate(payload)
		got, err := Inflate(compressed)
		if err != nil {
			t.Fatalf("payload %d: Inflate failed: %v", i, err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("payload %d: round trip mismatch (%d bytes vs %d)", i, len(got), len(payload))
		}
	}
}

func TestInflateGarbage(t *testing.T) {
	if _, err := Inflate([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Error("garbage input should fail to inflate")
	}
}

func TestInflateReusesPooledReader(t *testing.T) {
	for i := 0; i < 10; i++ {
		got, err := Inflate(Deflate([]byte("block payload")))
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if string(got) != "block payload" {
			t.Fatalf("iteration %d: got %q", i, got)
		}
	}
}
