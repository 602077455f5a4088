package security

import (
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"fmt"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

type cryptAlgo int

const (
	algoUnset cryptAlgo = iota
	algoNone
	algoRC4
	algoAES
)

// Standard is the password-based security handler.
type Standard struct {
	v, r        int
	keyLen      int // bytes
	o, u        []byte
	oe, ue      []byte
	perms       []byte
	p           int32
	fileID      []byte
	encryptMeta bool

	stmAlgo, strAlgo, effAlgo cryptAlgo
	filters                   map[string]cryptAlgo

	state State
	owner bool
	key   []byte
	dict  *sdf.Dict
}

// Open builds a handler from a document's /Encrypt dictionary and the first
// element of its /ID. The handler starts Locked.
func Open(encrypt *sdf.Dict, fileID []byte) (*Standard, error) {
	if f, _ := encrypt.NameValue("Filter"); f != "" && f != "Standard" {
		return nil, fmt.Errorf("%w: security handler %s", sdf.ErrUnsupported, f)
	}
	h := &Standard{
		fileID:      fileID,
		encryptMeta: true,
		filters:     make(map[string]cryptAlgo),
		state:       Locked,
		dict:        encrypt,
	}
	h.v = intVal(encrypt, "V", 0)
	h.r = intVal(encrypt, "R", 2)
	if h.v < 1 || h.v == 3 || h.v > 5 {
		return nil, fmt.Errorf("%w: encryption V=%d", sdf.ErrUnsupported, h.v)
	}
	if h.r < 2 || h.r > 6 {
		return nil, fmt.Errorf("%w: encryption R=%d", sdf.ErrUnsupported, h.r)
	}
	bits := intVal(encrypt, "Length", 40)
	switch {
	case h.v == 1:
		bits = 40
	case h.v >= 5:
		bits = 256
	}
	if bits%8 != 0 || bits < 40 || bits > 256 {
		return nil, fmt.Errorf("%w: key length %d", sdf.ErrCorrupt, bits)
	}
	h.keyLen = bits / 8
	h.o = stringVal(encrypt, "O")
	h.u = stringVal(encrypt, "U")
	h.oe = stringVal(encrypt, "OE")
	h.ue = stringVal(encrypt, "UE")
	h.perms = stringVal(encrypt, "Perms")
	h.p = int32(intVal(encrypt, "P", 0))
	if b, ok := encrypt.Get("EncryptMetadata").(sdf.Bool); ok {
		h.encryptMeta = bool(b)
	}
	if len(h.o) < 32 || len(h.u) < 32 {
		return nil, fmt.Errorf("%w: /O or /U too short", sdf.ErrCorrupt)
	}

	base := algoRC4
	h.stmAlgo, h.strAlgo, h.effAlgo = base, base, base
	if h.v >= 4 {
		if err := h.readCryptFilters(encrypt); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Standard) readCryptFilters(encrypt *sdf.Dict) error {
	if cf, ok := encrypt.Get("CF").(*sdf.Dict); ok {
		for _, name := range cf.Keys() {
			entry, ok := cf.Get(name).(*sdf.Dict)
			if !ok {
				return fmt.Errorf("%w: crypt filter %s is not a dictionary", sdf.ErrCorrupt, name)
			}
			method, _ := entry.NameValue("CFM")
			switch method {
			case "V2":
				h.filters[string(name)] = algoRC4
			case "AESV2", "AESV3":
				h.filters[string(name)] = algoAES
			case "None", "":
				h.filters[string(name)] = algoNone
			default:
				return fmt.Errorf("%w: crypt filter method %s", sdf.ErrUnsupported, method)
			}
		}
	}
	pick := func(key sdf.Name, fallback cryptAlgo) (cryptAlgo, error) {
		name, _ := encrypt.NameValue(key)
		switch name {
		case "":
			return fallback, nil
		case "Identity":
			return algoNone, nil
		}
		a, ok := h.filters[string(name)]
		if !ok {
			return algoUnset, fmt.Errorf("%w: crypt filter %s not defined", sdf.ErrCorrupt, name)
		}
		return a, nil
	}
	var err error
	if h.stmAlgo, err = pick("StmF", algoNone); err != nil {
		return err
	}
	if h.strAlgo, err = pick("StrF", algoNone); err != nil {
		return err
	}
	h.effAlgo, err = pick("EFF", h.stmAlgo)
	return err
}

// NewStandard creates a handler and /Encrypt dictionary for fresh
// encryption. The handler is Unlocked with owner rights.
func NewStandard(s Settings, fileID []byte) (*Standard, error) {
	h := &Standard{
		fileID:      fileID,
		encryptMeta: !s.PlainMetadata,
		filters:     make(map[string]cryptAlgo),
		state:       Unlocked,
		owner:       true,
		p:           s.Permissions.Value(),
	}
	userPwd, err := preparePassword(s.UserPassword, s.Algorithm == AES_256)
	if err != nil {
		return nil, err
	}
	ownerPwd, err := preparePassword(s.OwnerPassword, s.Algorithm == AES_256)
	if err != nil {
		return nil, err
	}
	if len(ownerPwd) == 0 {
		ownerPwd = userPwd
	}
	switch s.Algorithm {
	case RC4_40:
		h.v, h.r, h.keyLen = 1, 2, 5
		h.stmAlgo, h.strAlgo = algoRC4, algoRC4
	case RC4_128:
		h.v, h.r, h.keyLen = 2, 3, 16
		h.stmAlgo, h.strAlgo = algoRC4, algoRC4
	case AES_128:
		h.v, h.r, h.keyLen = 4, 4, 16
		h.stmAlgo, h.strAlgo = algoAES, algoAES
		h.filters["StdCF"] = algoAES
	case AES_256:
		h.v, h.r, h.keyLen = 5, 6, 32
		h.stmAlgo, h.strAlgo = algoAES, algoAES
		h.filters["StdCF"] = algoAES
	default:
		return nil, fmt.Errorf("%w: algorithm %v", sdf.ErrUnsupported, s.Algorithm)
	}
	h.effAlgo = h.stmAlgo
	if h.r >= 5 {
		if err := h.createAES256(userPwd, ownerPwd); err != nil {
			return nil, err
		}
	} else {
		h.o = computeO(ownerPwd, userPwd, h.r, h.keyLen)
		h.key = computeKey(userPwd, h.o, h.p, h.fileID, h.keyLen, h.r, h.encryptMeta)
		h.u = computeU(h.key, h.fileID, h.r)
	}
	h.dict = h.buildDict()
	return h, nil
}

func (h *Standard) createAES256(userPwd, ownerPwd []byte) error {
	h.key = make([]byte, 32)
	salts := make([]byte, 32)
	if _, err := rand.Read(h.key); err != nil {
		return err
	}
	if _, err := rand.Read(salts); err != nil {
		return err
	}
	uvs, uks, ovs, oks := salts[0:8], salts[8:16], salts[16:24], salts[24:32]
	h.u = append(append(hashR6(userPwd, uvs, nil, h.r), uvs...), uks...)
	ue, err := aesCBCRaw(hashR6(userPwd, uks, nil, h.r), h.key, true)
	if err != nil {
		return err
	}
	h.ue = ue
	h.o = append(append(hashR6(ownerPwd, ovs, h.u, h.r), ovs...), oks...)
	oe, err := aesCBCRaw(hashR6(ownerPwd, oks, h.u, h.r), h.key, true)
	if err != nil {
		return err
	}
	h.oe = oe
	h.perms, err = encryptPerms(h.key, h.p, h.encryptMeta)
	return err
}

func (h *Standard) buildDict() *sdf.Dict {
	d := sdf.NewDict()
	d.PutName("Filter", "Standard")
	d.PutInt("V", int64(h.v))
	d.PutInt("R", int64(h.r))
	d.PutInt("Length", int64(h.keyLen*8))
	d.Set("O", sdf.HexStr(h.o))
	d.Set("U", sdf.HexStr(h.u))
	d.PutInt("P", int64(h.p))
	if h.v >= 4 {
		method := "AESV2"
		if h.v >= 5 {
			method = "AESV3"
		}
		cf := d.PutDict("CF").PutDict("StdCF")
		cf.PutName("CFM", method)
		cf.PutName("AuthEvent", "DocOpen")
		cf.PutInt("Length", int64(h.keyLen))
		d.PutName("StmF", "StdCF")
		d.PutName("StrF", "StdCF")
		if !h.encryptMeta {
			d.PutBool("EncryptMetadata", false)
		}
	}
	if h.r >= 5 {
		d.Set("OE", sdf.HexStr(h.oe))
		d.Set("UE", sdf.HexStr(h.ue))
		d.Set("Perms", sdf.HexStr(h.perms))
	}
	return d
}

// State reports the security state. A nil handler is Unencrypted.
func (h *Standard) State() State {
	if h == nil {
		return Unencrypted
	}
	return h.state
}

// Authenticate tries password as the owner password, then as the user
// password. A wrong password returns sdf.ErrInvalidPassword and leaves the
// state unchanged.
func (h *Standard) Authenticate(password string) error {
	if h == nil {
		return nil
	}
	pwd, err := preparePassword(password, h.r >= 5)
	if err != nil {
		return fmt.Errorf("%w: %v", sdf.ErrInvalidPassword, err)
	}
	var key []byte
	var owner bool
	if h.r >= 5 {
		key, owner, err = h.authAES256(pwd)
	} else {
		key, owner = h.authRC4(pwd)
		if key == nil {
			err = sdf.ErrInvalidPassword
		}
	}
	if err != nil {
		return err
	}
	h.key, h.owner, h.state = key, owner, Unlocked
	return nil
}

func (h *Standard) authRC4(pwd []byte) ([]byte, bool) {
	// Owner: decrypting /O yields the user password.
	if userPwd := recoverUserPassword(pwd, h.o, h.r, h.keyLen); userPwd != nil {
		if key := h.checkUser(userPwd); key != nil {
			return key, true
		}
	}
	if key := h.checkUser(pwd); key != nil {
		return key, false
	}
	return nil, false
}

func (h *Standard) checkUser(pwd []byte) []byte {
	key := computeKey(pwd, h.o, h.p, h.fileID, h.keyLen, h.r, h.encryptMeta)
	u := computeU(key, h.fileID, h.r)
	n := 32
	if h.r >= 3 {
		n = 16
	}
	if len(h.u) < n || !bytes.Equal(u[:n], h.u[:n]) {
		return nil
	}
	return key
}

func (h *Standard) authAES256(pwd []byte) ([]byte, bool, error) {
	if len(h.u) < 48 || len(h.o) < 48 || len(h.ue) < 32 || len(h.oe) < 32 {
		return nil, false, fmt.Errorf("%w: AES-256 entries too short", sdf.ErrCorrupt)
	}
	if bytes.Equal(hashR6(pwd, h.o[32:40], h.u[:48], h.r), h.o[:32]) {
		key, err := aesCBCRaw(hashR6(pwd, h.o[40:48], h.u[:48], h.r), h.oe[:32], false)
		if err != nil {
			return nil, false, err
		}
		return key, true, h.checkPerms(key)
	}
	if bytes.Equal(hashR6(pwd, h.u[32:40], nil, h.r), h.u[:32]) {
		key, err := aesCBCRaw(hashR6(pwd, h.u[40:48], nil, h.r), h.ue[:32], false)
		if err != nil {
			return nil, false, err
		}
		return key, false, h.checkPerms(key)
	}
	return nil, false, sdf.ErrInvalidPassword
}

// checkPerms verifies /Perms against /P when present. A mismatch means
// the permissions were tampered with.
func (h *Standard) checkPerms(key []byte) error {
	if len(h.perms) != 16 || h.r < 6 {
		return nil
	}
	p, err := decryptPerms(key, h.perms)
	if err != nil {
		return fmt.Errorf("%w: %v", sdf.ErrCorrupt, err)
	}
	if p != h.p {
		return fmt.Errorf("%w: /Perms does not match /P", sdf.ErrCorrupt)
	}
	return nil
}

// IsOwner reports whether the owner password was supplied.
func (h *Standard) IsOwner() bool { return h != nil && h.owner }

// Permissions returns the granted rights. The owner holds every right.
func (h *Standard) Permissions() Permissions {
	if h == nil || h.owner {
		return AllPermissions()
	}
	return PermissionsFromValue(h.p)
}

func (h *Standard) EncryptMetadata() bool { return h.encryptMeta }

// EncryptDict returns the /Encrypt dictionary describing h.
func (h *Standard) EncryptDict() *sdf.Dict { return h.dict }

// Revision returns the /R value.
func (h *Standard) Revision() int { return h.r }

func (h *Standard) Algorithm() Algorithm {
	switch {
	case h.r >= 5:
		return AES_256
	case h.v >= 4 && h.stmAlgo == algoAES:
		return AES_128
	case h.keyLen > 5:
		return RC4_128
	}
	return RC4_40
}

var errLocked = fmt.Errorf("%w: authenticate first", sdf.ErrLocked)

func (h *Standard) algoFor(class DataClass, filter string) (cryptAlgo, error) {
	if class == DataClassMetadataStream && !h.encryptMeta {
		return algoNone, nil
	}
	switch filter {
	case "Identity":
		return algoNone, nil
	case "":
	default:
		a, ok := h.filters[filter]
		if !ok {
			return algoUnset, fmt.Errorf("%w: crypt filter %s not defined", sdf.ErrCorrupt, filter)
		}
		return a, nil
	}
	switch class {
	case DataClassString:
		return h.strAlgo, nil
	case DataClassEmbeddedFile:
		return h.effAlgo, nil
	}
	return h.stmAlgo, nil
}

func (h *Standard) Decrypt(ref sdf.Ref, data []byte, class DataClass, cryptFilter string) ([]byte, error) {
	if h.state != Unlocked {
		return nil, errLocked
	}
	algo, err := h.algoFor(class, cryptFilter)
	if err != nil || algo == algoNone || len(data) == 0 {
		return data, err
	}
	key := objectKey(h.key, ref, h.r, algo == algoAES)
	if algo == algoAES {
		return aesDecrypt(key, data)
	}
	return rc4Crypt(key, data), nil
}

func (h *Standard) Encrypt(ref sdf.Ref, data []byte, class DataClass, cryptFilter string) ([]byte, error) {
	if h.state != Unlocked {
		return nil, errLocked
	}
	algo, err := h.algoFor(class, cryptFilter)
	if err != nil || algo == algoNone {
		return data, err
	}
	key := objectKey(h.key, ref, h.r, algo == algoAES)
	if algo == algoAES {
		return aesEncrypt(key, data)
	}
	return rc4Crypt(key, data), nil
}

func intVal(d *sdf.Dict, key sdf.Name, def int) int {
	if v, ok := sdf.Integer(d.Get(key)); ok {
		return int(v)
	}
	return def
}

func stringVal(d *sdf.Dict, key sdf.Name) []byte {
	if s, ok := d.Get(key).(sdf.String); ok {
		return s.Value
	}
	return nil
}

// FileID returns the first element of a trailer's /ID.
func FileID(trailer *sdf.Dict) []byte {
	if a, ok := trailer.Get("ID").(*sdf.Array); ok {
		if s, ok := a.At(0).(sdf.String); ok {
			return s.Value
		}
	}
	return nil
}

// NewFileID derives a file identifier from seed data and randomness.
func NewFileID(seed []byte) []byte {
	salt := make([]byte, 16)
	_, _ = rand.Read(salt)
	sum := md5.Sum(append(append([]byte(nil), seed...), salt...))
	return sum[:]
}

var _ Handler = (*Standard)(nil)
