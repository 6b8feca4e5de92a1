package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/wudi/pdfedit/ir/raw"
)

var (
	ErrBadPassword       = errors.New("password does not open the document")
	ErrUnsupportedFilter = errors.New("unsupported security handler")
)

// DataClass identifies the kind of payload being decrypted.
type DataClass int

const (
	DataClassStream DataClass = iota
	DataClassString
)

// Handler decrypts strings and streams of an encrypted document.
type Handler interface {
	Decrypt(ref raw.ObjectRef, data []byte, class DataClass) ([]byte, error)
	EncryptMetadata() bool
}

type cryptAlgo int

const (
	algoNone cryptAlgo = iota
	algoRC4
	algoAESV2
	algoAESV3
)

type standardHandler struct {
	key         []byte
	r           int
	streamAlgo  cryptAlgo
	stringAlgo  cryptAlgo
	encryptMeta bool
}

// NewStandardHandler authenticates password (user first, then owner) against
// a /Standard encryption dictionary. Most documents open with "".
func NewStandardHandler(enc *raw.DictObj, fileID []byte, password string) (Handler, error) {
	if f, _ := enc.NameValue("Filter"); f != "" && f != "Standard" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, f)
	}
	v := intVal(enc, "V", 0)
	r := intVal(enc, "R", 2)
	if v > 5 || r > 6 {
		return nil, fmt.Errorf("%w: V=%d R=%d", ErrUnsupportedFilter, v, r)
	}
	keyLen := 5
	if l := intVal(enc, "Length", 40); v >= 2 && l >= 40 {
		keyLen = l / 8
	}
	o := stringVal(enc, "O")
	u := stringVal(enc, "U")
	p := int32(intVal(enc, "P", 0))
	encryptMeta := true
	if b, ok := enc.KV["EncryptMetadata"].(raw.BoolObj); ok {
		encryptMeta = b.V
	}

	h := &standardHandler{r: r, encryptMeta: encryptMeta, streamAlgo: algoRC4, stringAlgo: algoRC4}
	if v >= 4 {
		filters := cryptFilters(enc)
		h.streamAlgo = pickFilter(enc, "StmF", filters)
		h.stringAlgo = pickFilter(enc, "StrF", filters)
		if v == 4 {
			keyLen = 16
		}
	}

	pwd := []byte(password)
	if r >= 5 {
		key, err := aes256Key(enc, pwd, r)
		if err != nil {
			return nil, err
		}
		h.key = key
		return h, nil
	}

	key := fileKey(pwd, o, p, fileID, keyLen, r, encryptMeta)
	if checkUser(key, u, fileID, r) {
		h.key = key
		return h, nil
	}
	// Treat the password as the owner password and recover the user password.
	userPwd := ownerToUser(pwd, o, keyLen, r)
	key = fileKey(userPwd, o, p, fileID, keyLen, r, encryptMeta)
	if checkUser(key, u, fileID, r) {
		h.key = key
		return h, nil
	}
	return nil, ErrBadPassword
}

func (h *standardHandler) EncryptMetadata() bool { return h.encryptMeta }

func (h *standardHandler) Decrypt(ref raw.ObjectRef, data []byte, class DataClass) ([]byte, error) {
	algo := h.streamAlgo
	if class == DataClassString {
		algo = h.stringAlgo
	}
	switch algo {
	case algoNone:
		return data, nil
	case algoRC4:
		return rc4XOR(h.objectKey(ref, false), data), nil
	case algoAESV2:
		return aesDecrypt(h.objectKey(ref, true), data)
	default:
		return aesDecrypt(h.key, data)
	}
}

func (h *standardHandler) objectKey(ref raw.ObjectRef, aesSalt bool) []byte {
	buf := append([]byte{}, h.key...)
	buf = append(buf, byte(ref.Num), byte(ref.Num>>8), byte(ref.Num>>16), byte(ref.Gen), byte(ref.Gen>>8))
	if aesSalt {
		buf = append(buf, 's', 'A', 'l', 'T')
	}
	sum := md5.Sum(buf)
	n := len(h.key) + 5
	if n > 16 {
		n = 16
	}
	return sum[:n]
}

var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

func padPassword(pwd []byte) []byte {
	padded := make([]byte, 32)
	n := copy(padded, pwd)
	copy(padded[n:], passwordPadding)
	return padded
}

// fileKey is Algorithm 2 of ISO 32000-1 7.6.3.3.
func fileKey(pwd, o []byte, p int32, id []byte, n, r int, encryptMeta bool) []byte {
	h := md5.New()
	h.Write(padPassword(pwd))
	h.Write(o)
	var pb [4]byte
	binary.LittleEndian.PutUint32(pb[:], uint32(p))
	h.Write(pb[:])
	h.Write(id)
	if r >= 4 && !encryptMeta {
		h.Write([]byte{0xff, 0xff, 0xff, 0xff})
	}
	key := h.Sum(nil)
	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum := md5.Sum(key[:n])
			key = sum[:]
		}
	}
	return key[:n]
}

// checkUser is Algorithms 4 and 5.
func checkUser(key, u, id []byte, r int) bool {
	if len(u) < 16 {
		return false
	}
	if r == 2 {
		return len(u) >= 32 && bytes.Equal(rc4XOR(key, passwordPadding), u[:32])
	}
	sum := md5.Sum(append(append([]byte{}, passwordPadding...), id...))
	val := sum[:]
	for i := 0; i < 20; i++ {
		val = rc4XOR(xorKey(key, byte(i)), val)
	}
	return bytes.Equal(val[:16], u[:16])
}

// ownerToUser is Algorithm 7: decrypts /O with a key derived from the owner password.
func ownerToUser(pwd, o []byte, n, r int) []byte {
	sum := md5.Sum(padPassword(pwd))
	key := sum[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			s := md5.Sum(key)
			key = s[:]
		}
	}
	key = key[:n]
	out := append([]byte{}, o...)
	if r == 2 {
		return rc4XOR(key, out)
	}
	for i := 19; i >= 0; i-- {
		out = rc4XOR(xorKey(key, byte(i)), out)
	}
	return out
}

func aes256Key(enc *raw.DictObj, pwd []byte, r int) ([]byte, error) {
	if len(pwd) > 127 {
		pwd = pwd[:127]
	}
	u := stringVal(enc, "U")
	o := stringVal(enc, "O")
	ue := stringVal(enc, "UE")
	oe := stringVal(enc, "OE")
	if len(u) < 48 || len(o) < 48 {
		return nil, errors.New("malformed AES-256 password entries")
	}
	if bytes.Equal(hash2B(pwd, u[32:40], nil, r), u[:32]) {
		return aesNoIV(hash2B(pwd, u[40:48], nil, r), ue)
	}
	if bytes.Equal(hash2B(pwd, o[32:40], u[:48], r), o[:32]) {
		return aesNoIV(hash2B(pwd, o[40:48], u[:48], r), oe)
	}
	return nil, ErrBadPassword
}

// hash2B is Algorithm 2.B of ISO 32000-2; revision 5 uses a single SHA-256.
func hash2B(pwd, salt, udata []byte, r int) []byte {
	first := sha256.Sum256(concat(pwd, salt, udata))
	k := first[:]
	if r < 6 {
		return k
	}
	for i := 0; ; i++ {
		unit := concat(pwd, k, udata)
		k1 := bytes.Repeat(unit, 64)
		block, _ := aes.NewCipher(k[:16])
		e := make([]byte, len(k1))
		cipher.NewCBCEncrypter(block, k[16:32]).CryptBlocks(e, k1)
		sum := 0
		for _, b := range e[:16] {
			sum += int(b)
		}
		switch sum % 3 {
		case 0:
			s := sha256.Sum256(e)
			k = s[:]
		case 1:
			s := sha512.Sum384(e)
			k = s[:]
		default:
			s := sha512.Sum512(e)
			k = s[:]
		}
		if i >= 63 && int(e[len(e)-1]) <= i+1-32 {
			break
		}
	}
	return k[:32]
}

func aesNoIV(key, data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, errors.New("malformed encrypted key")
	}
	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(out, data)
	return out[:32], nil
}

func aesDecrypt(key, data []byte) ([]byte, error) {
	if len(data) < aes.BlockSize {
		return nil, errors.New("aes ciphertext too short")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv, ct := data[:aes.BlockSize], data[aes.BlockSize:]
	ct = ct[:len(ct)-len(ct)%aes.BlockSize]
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	if n := len(out); n > 0 {
		if pad := int(out[n-1]); pad > 0 && pad <= aes.BlockSize && pad <= n {
			out = out[:n-pad]
		}
	}
	return out, nil
}

func rc4XOR(key, data []byte) []byte {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return append([]byte{}, data...)
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}

func xorKey(key []byte, v byte) []byte {
	out := make([]byte, len(key))
	for i, b := range key {
		out[i] = b ^ v
	}
	return out
}

func cryptFilters(enc *raw.DictObj) map[string]cryptAlgo {
	out := map[string]cryptAlgo{"Identity": algoNone}
	cf, ok := enc.KV["CF"].(*raw.DictObj)
	if !ok {
		return out
	}
	for name, obj := range cf.KV {
		entry, ok := obj.(*raw.DictObj)
		if !ok {
			continue
		}
		switch m, _ := entry.NameValue("CFM"); m {
		case "AESV2":
			out[name] = algoAESV2
		case "AESV3":
			out[name] = algoAESV3
		case "None":
			out[name] = algoNone
		default:
			out[name] = algoRC4
		}
	}
	return out
}

func pickFilter(enc *raw.DictObj, key string, filters map[string]cryptAlgo) cryptAlgo {
	name, ok := enc.NameValue(key)
	if !ok {
		return algoNone
	}
	if algo, ok := filters[name]; ok {
		return algo
	}
	return algoNone
}

func intVal(d *raw.DictObj, key string, def int) int {
	if v, ok := d.IntValue(key); ok {
		return int(v)
	}
	return def
}

func stringVal(d *raw.DictObj, key string) []byte {
	if s, ok := d.KV[key].(raw.StringObj); ok {
		return s.Bytes
	}
	return nil
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
