// internal/credentials/crypto_test.go
//
// Round-trip and tamper tests for the credential envelope.
//
// Run: go test ./internal/credentials -v

package credentials

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

var keyMaterial = []byte("AUTH_KEY|SECURE_AUTH_KEY|LOGGED_IN_KEY|NONCE_KEY")

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte(""),
		[]byte("x"),
		[]byte(`{"host":"db.example.com","user":"wp"}`),
		make([]byte, 4096),
	}
	_, err := rand.Read(payloads[3])
	require.NoError(t, err)

	for _, plain := range payloads {
		enc, err := Encrypt(plain, keyMaterial)
		require.NoError(t, err)
		got, err := Decrypt(enc, keyMaterial)
		require.NoError(t, err)
		require.Equal(t, plain, got, "round trip mismatch at %d bytes", len(plain))
	}
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	a, _ := Encrypt([]byte("same"), keyMaterial)
	b, _ := Encrypt([]byte("same"), keyMaterial)
	require.NotEqual(t, a, b, "two envelopes of the same plaintext must not match (nonce reuse?)")
}

func TestDecrypt_Tampered(t *testing.T) {
	enc, err := Encrypt([]byte("secret payload"), keyMaterial)
	require.NoError(t, err)

	raw, _ := base64.StdEncoding.DecodeString(enc)
	raw[len(raw)-1] ^= 0x01 // flip one ciphertext bit
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = Decrypt(tampered, keyMaterial)
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestDecrypt_WrongKey(t *testing.T) {
	enc, _ := Encrypt([]byte("secret payload"), keyMaterial)
	_, err := Decrypt(enc, []byte("different material"))
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestDecrypt_Malformed(t *testing.T) {
	cases := []string{
		"not base64 at all %%%",
		base64.StdEncoding.EncodeToString([]byte("v1:legacy:stuff")),
		base64.StdEncoding.EncodeToString([]byte("v2:aesgcm:short")),
	}
	for _, c := range cases {
		_, err := Decrypt(c, keyMaterial)
		require.ErrorIs(t, err, ErrMalformed, "Decrypt(%q)", c)
	}
}

func TestEncrypt_NoKeyMaterial(t *testing.T) {
	_, err := Encrypt([]byte("x"), nil)
	require.ErrorIs(t, err, ErrNoKeyMaterial)
}

// fakeKV satisfies KV for Save/Load tests.
type fakeKV struct {
	m map[string]string
}

func (f *fakeKV) GetOption(_ context.Context, name string) (string, bool, error) {
	v, ok := f.m[name]
	return v, ok, nil
}

func (f *fakeKV) SetOption(_ context.Context, name, value string) error {
	f.m[name] = value
	return nil
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	kv := &fakeKV{m: map[string]string{}}
	rec := Defaults()
	rec.Host = "db.example.com:3307"
	rec.Database = "legacy"
	rec.User = "wp"
	rec.Secret = "hunter2"
	rec.IsMultiTenant = true

	require.NoError(t, Save(context.Background(), kv, rec, keyMaterial))
	blob := kv.m[OptionKey]
	require.NotEmpty(t, blob)
	require.NotEqual(t, "hunter2", blob, "secret stored in cleartext")

	got, ok, err := Load(context.Background(), kv, keyMaterial)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec, got)
}

func TestLoad_MissingBlobFallsBackToDefaults(t *testing.T) {
	kv := &fakeKV{m: map[string]string{}}
	got, ok, err := Load(context.Background(), kv, keyMaterial)
	require.NoError(t, err)
	require.False(t, ok, "ok should be false for a missing blob")
	require.Equal(t, Defaults(), got)
}

func TestSave_RejectsIncompleteRecord(t *testing.T) {
	kv := &fakeKV{m: map[string]string{}}
	rec := Defaults() // no database, no user
	require.Error(t, Save(context.Background(), kv, rec, keyMaterial))
}

func TestRecord_Addr(t *testing.T) {
	cases := []struct {
		host    string
		network string
		addr    string
	}{
		{"db.example.com", "tcp", "db.example.com:3306"},
		{"db.example.com:3307", "tcp", "db.example.com:3307"},
		{"[2001:db8::1]:3307", "tcp", "[2001:db8::1]:3307"},
		{"[2001:db8::1]", "tcp", "[2001:db8::1]:3306"},
		{"/var/run/mysqld/mysqld.sock", "unix", "/var/run/mysqld/mysqld.sock"},
		{"", "tcp", "localhost:3306"},
	}
	for _, c := range cases {
		r := Record{Host: c.host}
		network, addr := r.Addr()
		require.Equal(t, c.network, network, "Addr(%q) network", c.host)
		require.Equal(t, c.addr, addr, "Addr(%q) addr", c.host)
	}
}
