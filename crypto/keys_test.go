package crypto

import (
	"strings"
	"testing"
)

func TestAddressBech32RoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(TGPrefix)) {
		t.Fatalf("expected %q prefix, got %q", TGPrefix, encoded)
	}

	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode address: %v", err)
	}
	if decoded.String() != encoded {
		t.Fatalf("round trip mismatch: %q != %q", decoded.String(), encoded)
	}
	if len(decoded.Bytes()) != 20 {
		t.Fatalf("expected 20-byte address, got %d", len(decoded.Bytes()))
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-a-bech32-address"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestPrivateKeyBytesRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore key: %v", err)
	}
	if restored.PubKey().Address().String() != key.PubKey().Address().String() {
		t.Fatalf("restored key derives a different address")
	}
}
