package crypto

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()

	encoded := addr.String()
	if !strings.HasPrefix(encoded, AccountPrefix) {
		t.Fatalf("expected %q prefix, got %s", AccountPrefix, encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round trip mismatch: %s != %s", decoded, addr)
	}
}

func TestNewAddressEnforcesLength(t *testing.T) {
	if _, err := NewAddress(make([]byte, 19)); err == nil {
		t.Fatal("expected error for short payload")
	}
	if _, err := NewAddress(make([]byte, 21)); err == nil {
		t.Fatal("expected error for long payload")
	}
	if _, err := NewAddress(make([]byte, 20)); err != nil {
		t.Fatalf("unexpected error for 20 bytes: %v", err)
	}
}

func TestNewAddressCopiesPayload(t *testing.T) {
	payload := make([]byte, 20)
	addr, err := NewAddress(payload)
	if err != nil {
		t.Fatalf("new address: %v", err)
	}
	payload[0] = 0xFF
	if addr.Bytes()[0] != 0 {
		t.Fatal("address aliased caller's slice")
	}
}

func TestDecodeAddressRejectsForeignPrefix(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	encoded := key.PubKey().Address().String()
	if _, err := DecodeAddress("nhb" + encoded[len(AccountPrefix):]); err == nil {
		t.Fatal("expected error for foreign prefix")
	}
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatal("expected error for malformed string")
	}
}

func TestPrivateKeySerialisation(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !bytes.Equal(restored.Bytes(), key.Bytes()) {
		t.Fatal("restored key differs")
	}
	if !restored.PubKey().Address().Equal(key.PubKey().Address()) {
		t.Fatal("restored key derives a different address")
	}
}

func TestLoadOrCreateKeyPersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custody_key.hex")

	created, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected key file permissions: %v", info.Mode().Perm())
	}

	loaded, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !bytes.Equal(loaded.Bytes(), created.Bytes()) {
		t.Fatal("reloaded key differs from created key")
	}
	if !loaded.PubKey().Address().Equal(created.PubKey().Address()) {
		t.Fatal("reloaded key derives a different address")
	}
}

func TestLoadOrCreateKeyRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custody_key.hex")
	if err := os.WriteFile(path, []byte("not hex"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadOrCreateKey(path); err == nil {
		t.Fatal("expected error for corrupt key file")
	}
}

func TestIsZero(t *testing.T) {
	if !(Address{}).IsZero() {
		t.Fatal("empty address should be zero")
	}
	if !MustNewAddress(make([]byte, 20)).IsZero() {
		t.Fatal("all-zero payload should be zero")
	}
	payload := make([]byte, 20)
	payload[19] = 1
	if MustNewAddress(payload).IsZero() {
		t.Fatal("non-zero payload should not be zero")
	}
}
