package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"errors"
	"testing"

	"github.com/wudi/pdfedit/ir/raw"
)

// rc4Dict builds an R3 RC4 /Encrypt dictionary for the given passwords.
func rc4Dict(t *testing.T, user, owner string, id []byte) *raw.DictObj {
	t.Helper()
	const n = 16
	const p = int32(-44)
	// Algorithm 3: /O
	sum := md5.Sum(padPassword([]byte(owner)))
	okey := sum[:]
	for i := 0; i < 50; i++ {
		s := md5.Sum(okey)
		okey = s[:]
	}
	okey = okey[:n]
	o := rc4XOR(okey, padPassword([]byte(user)))
	for i := 1; i <= 19; i++ {
		o = rc4XOR(xorKey(okey, byte(i)), o)
	}
	// Algorithm 5: /U
	key := fileKey([]byte(user), o, p, id, n, 3, true)
	h := md5.Sum(append(append([]byte{}, passwordPadding...), id...))
	u := h[:]
	for i := 0; i < 20; i++ {
		u = rc4XOR(xorKey(key, byte(i)), u)
	}
	u = append(u, make([]byte, 16)...)

	d := raw.Dict()
	d.Set("Filter", raw.Name("Standard"))
	d.Set("V", raw.NumberInt(2))
	d.Set("R", raw.NumberInt(3))
	d.Set("Length", raw.NumberInt(128))
	d.Set("P", raw.NumberInt(int64(p)))
	d.Set("O", raw.Str(o))
	d.Set("U", raw.Str(u))
	return d
}

func TestStandardHandlerEmptyUserPassword(t *testing.T) {
	id := []byte("0123456789abcdef")
	enc := rc4Dict(t, "", "owner-secret", id)

	h, err := NewStandardHandler(enc, id, "")
	if err != nil {
		t.Fatalf("open with empty password: %v", err)
	}
	ref := raw.ObjectRef{Num: 7}
	plain := []byte("BT /F1 12 Tf (Hello) Tj ET")
	cipherText := rc4XOR(h.(*standardHandler).objectKey(ref, false), plain)
	out, err := h.Decrypt(ref, cipherText, DataClassStream)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(out, plain) {
		t.Fatalf("round trip mismatch: %q", out)
	}
}

func TestStandardHandlerOwnerPassword(t *testing.T) {
	id := []byte("fedcba9876543210")
	enc := rc4Dict(t, "user", "owner", id)

	if _, err := NewStandardHandler(enc, id, ""); !errors.Is(err, ErrBadPassword) {
		t.Fatalf("expected ErrBadPassword for empty password, got %v", err)
	}
	viaUser, err := NewStandardHandler(enc, id, "user")
	if err != nil {
		t.Fatalf("user password: %v", err)
	}
	viaOwner, err := NewStandardHandler(enc, id, "owner")
	if err != nil {
		t.Fatalf("owner password: %v", err)
	}
	if !bytes.Equal(viaUser.(*standardHandler).key, viaOwner.(*standardHandler).key) {
		t.Fatalf("owner and user passwords must yield the same file key")
	}
}

func TestUnsupportedFilter(t *testing.T) {
	d := raw.Dict()
	d.Set("Filter", raw.Name("Adobe.PubSec"))
	if _, err := NewStandardHandler(d, nil, ""); !errors.Is(err, ErrUnsupportedFilter) {
		t.Fatalf("expected ErrUnsupportedFilter, got %v", err)
	}
}

func TestAESDecryptStripsPadding(t *testing.T) {
	key := bytes.Repeat([]byte{1}, 16)
	iv := bytes.Repeat([]byte{2}, 16)
	plain := []byte("sixteen byte msg")
	padded := append(append([]byte{}, plain...), bytes.Repeat([]byte{16}, 16)...)
	ct := encryptCBC(t, key, iv, padded)
	out, err := aesDecrypt(key, append(iv, ct...))
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(out, plain) {
		t.Fatalf("unexpected plaintext %q", out)
	}
}

// encryptCBC AES-CBC encrypts block-aligned plaintext with the given key and iv.
func encryptCBC(t *testing.T, key, iv, plain []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes: %v", err)
	}
	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plain)
	return out
}
