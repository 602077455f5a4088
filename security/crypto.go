package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/xdg-go/stringprep"
)

var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// preparePassword normalizes a password. AES-256 passwords go through
// SASLprep and are limited to 127 bytes. Older revisions use the bytes of
// the Latin-1 encoding.
func preparePassword(pwd string, aes256 bool) ([]byte, error) {
	if aes256 {
		if pwd == "" {
			return nil, nil
		}
		p, err := stringprep.SASLprep.Prepare(pwd)
		if err != nil {
			return nil, err
		}
		b := []byte(p)
		if len(b) > 127 {
			b = b[:127]
		}
		return b, nil
	}
	out := make([]byte, 0, len(pwd))
	for _, r := range pwd {
		if r > 0xFF {
			r = '?'
		}
		out = append(out, byte(r))
	}
	return out, nil
}

func padPassword(pwd []byte) []byte {
	out := make([]byte, 32)
	n := copy(out, pwd)
	copy(out[n:], passwordPadding)
	return out
}

func computeKey(pwd, o []byte, p int32, fileID []byte, keyLen, r int, encryptMeta bool) []byte {
	h := md5.New()
	h.Write(padPassword(pwd))
	h.Write(o[:32])
	var pb [4]byte
	binary.LittleEndian.PutUint32(pb[:], uint32(p))
	h.Write(pb[:])
	h.Write(fileID)
	if r >= 4 && !encryptMeta {
		h.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	}
	sum := h.Sum(nil)
	if r >= 3 {
		for i := 0; i < 50; i++ {
			s := md5.Sum(sum[:keyLen])
			sum = s[:]
		}
	}
	return sum[:keyLen]
}

func ownerKey(ownerPwd []byte, r, keyLen int) []byte {
	sum := md5.Sum(padPassword(ownerPwd))
	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(sum[:])
		}
	}
	if r == 2 {
		keyLen = 5
	}
	return sum[:keyLen]
}

func computeO(ownerPwd, userPwd []byte, r, keyLen int) []byte {
	key := ownerKey(ownerPwd, r, keyLen)
	out := rc4Crypt(key, padPassword(userPwd))
	if r >= 3 {
		for i := 1; i <= 19; i++ {
			out = rc4Crypt(xorKey(key, byte(i)), out)
		}
	}
	return out
}

// recoverUserPassword decrypts /O with the key derived from ownerPwd. The
// result is the padded user password.
func recoverUserPassword(ownerPwd, o []byte, r, keyLen int) []byte {
	if len(o) < 32 {
		return nil
	}
	key := ownerKey(ownerPwd, r, keyLen)
	out := append([]byte(nil), o[:32]...)
	if r == 2 {
		return rc4Crypt(key, out)
	}
	for i := 19; i >= 0; i-- {
		out = rc4Crypt(xorKey(key, byte(i)), out)
	}
	return out
}

func computeU(key, fileID []byte, r int) []byte {
	if r == 2 {
		return rc4Crypt(key, passwordPadding)
	}
	h := md5.New()
	h.Write(passwordPadding)
	h.Write(fileID)
	out := h.Sum(nil)
	for i := 0; i <= 19; i++ {
		out = rc4Crypt(xorKey(key, byte(i)), out)
	}
	return append(out, passwordPadding[:16]...)
}

func xorKey(key []byte, v byte) []byte {
	out := make([]byte, len(key))
	for i, b := range key {
		out[i] = b ^ v
	}
	return out
}

func rc4Crypt(key, data []byte) []byte {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}

// objectKey derives the per-object key. AES-256 uses the file key as is.
func objectKey(fileKey []byte, ref sdf.Ref, r int, aes bool) []byte {
	if r >= 5 {
		return fileKey
	}
	h := md5.New()
	h.Write(fileKey)
	h.Write([]byte{byte(ref.Num), byte(ref.Num >> 8), byte(ref.Num >> 16), byte(ref.Gen), byte(ref.Gen >> 8)})
	if aes {
		h.Write([]byte("sAlT"))
	}
	n := len(fileKey) + 5
	if n > 16 {
		n = 16
	}
	return h.Sum(nil)[:n]
}

func aesEncrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	pad := aes.BlockSize - len(data)%aes.BlockSize
	buf := make([]byte, aes.BlockSize+len(data)+pad)
	iv := buf[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	body := buf[aes.BlockSize:]
	copy(body, data)
	for i := len(data); i < len(body); i++ {
		body[i] = byte(pad)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(body, body)
	return buf, nil
}

var errCipherText = errors.New("malformed AES ciphertext")

func aesDecrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data) < 2*aes.BlockSize {
		if len(data) == aes.BlockSize {
			// IV only: empty payload.
			return []byte{}, nil
		}
		return nil, fmt.Errorf("%w: %w", sdf.ErrCorrupt, errCipherText)
	}
	iv := data[:aes.BlockSize]
	body := data[aes.BlockSize:]
	// Some writers omit the final padding block; decrypt what aligns.
	body = body[:len(body)-len(body)%aes.BlockSize]
	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)
	pad := int(out[len(out)-1])
	if pad < 1 || pad > aes.BlockSize || pad > len(out) {
		return out, nil
	}
	for _, b := range out[len(out)-pad:] {
		if int(b) != pad {
			return out, nil
		}
	}
	return out[:len(out)-pad], nil
}

// aesCBCRaw runs AES-256-CBC with a zero IV and no padding.
func aesCBCRaw(key, data []byte, encrypt bool) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, errCipherText
	}
	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(data))
	if encrypt {
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	} else {
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	}
	return out, nil
}

// hashR6 computes the AES-256 password hash. Revision 5 uses a single
// SHA-256, revision 6 the iterated SHA-2 construction.
func hashR6(pwd, salt, udata []byte, r int) []byte {
	h := sha256.New()
	h.Write(pwd)
	h.Write(salt)
	h.Write(udata)
	k := h.Sum(nil)
	if r < 6 {
		return k
	}
	var e []byte
	for i := 0; ; i++ {
		unit := make([]byte, 0, len(pwd)+len(k)+len(udata))
		unit = append(append(append(unit, pwd...), k...), udata...)
		k1 := make([]byte, 0, 64*len(unit))
		for j := 0; j < 64; j++ {
			k1 = append(k1, unit...)
		}
		block, _ := aes.NewCipher(k[:16])
		e = make([]byte, len(k1))
		cipher.NewCBCEncrypter(block, k[16:32]).CryptBlocks(e, k1)

		// The 128-bit big-endian value mod 3 equals its byte sum mod 3.
		sum := 0
		for _, b := range e[:16] {
			sum += int(b)
		}
		var next hash.Hash
		switch sum % 3 {
		case 0:
			next = sha256.New()
		case 1:
			next = sha512.New384()
		default:
			next = sha512.New()
		}
		next.Write(e)
		k = next.Sum(nil)
		if i >= 63 && int(e[len(e)-1]) <= i-31 {
			break
		}
	}
	return k[:32]
}

func encryptPerms(key []byte, p int32, encryptMeta bool) ([]byte, error) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf, uint32(p))
	copy(buf[4:8], []byte{0xFF, 0xFF, 0xFF, 0xFF})
	buf[8] = 'F'
	if encryptMeta {
		buf[8] = 'T'
	}
	copy(buf[9:12], "adb")
	if _, err := rand.Read(buf[12:]); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	block.Encrypt(buf, buf)
	return buf, nil
}

func decryptPerms(key, perms []byte) (int32, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, 16)
	block.Decrypt(buf, perms)
	if string(buf[9:12]) != "adb" {
		return 0, errors.New("/Perms marker mismatch")
	}
	return int32(binary.LittleEndian.Uint32(buf[:4])), nil
}
