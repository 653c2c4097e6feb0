package format

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeBase64URLRoundTrip(t *testing.T) {
	in := []byte{0x01, 0x02, 0x03, 0xff, 0xfe}
	enc := EncodeBase64URL(in)
	out, err := DecodeBase64URL(enc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Errorf("round trip mismatch: %v != %v", in, out)
	}
}

func TestDecodeBase64URLWithPadding(t *testing.T) {
	out, err := DecodeBase64URL("AQID")
	if err != nil {
		t.Fatalf("unpadded decode failed: %v", err)
	}
	if !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Errorf("expected 010203, got %x", out)
	}

	out, err = DecodeBase64URL("AQI=")
	if err != nil {
		t.Fatalf("padded decode failed: %v", err)
	}
	if !bytes.Equal(out, []byte{1, 2}) {
		t.Errorf("expected 0102, got %x", out)
	}
}

func TestDecodeHexOrBase64URL(t *testing.T) {
	out, err := DecodeHexOrBase64URL("a163666f6f")
	if err != nil {
		t.Fatalf("hex decode failed: %v", err)
	}
	if out[0] != 0xa1 {
		t.Errorf("expected CBOR map header, got %x", out[0])
	}

	out, err = DecodeHexOrBase64URL("aGVsbG8gd29ybGQh")
	if err != nil {
		t.Fatalf("base64url decode failed: %v", err)
	}
	if string(out) != "hello world!" {
		t.Errorf("expected hello world!, got %q", out)
	}
}
