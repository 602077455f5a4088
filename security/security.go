// Package security implements the standard security handler: password
// authentication, per-object encryption keys and permission flags.
package security

import (
	"fmt"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// State is the security state of a document.
type State int

const (
	Unencrypted State = iota
	Locked
	Unlocked
)

func (s State) String() string {
	switch s {
	case Unencrypted:
		return "unencrypted"
	case Locked:
		return "locked"
	case Unlocked:
		return "unlocked"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// DataClass identifies the kind of payload being encrypted or decrypted.
type DataClass int

const (
	DataClassStream DataClass = iota
	DataClassString
	DataClassMetadataStream
	DataClassEmbeddedFile
)

// Handler encrypts and decrypts object payloads. cryptFilter names a crypt
// filter from the stream's /DecodeParms, or "" for the default.
type Handler interface {
	State() State
	Authenticate(password string) error
	Decrypt(ref sdf.Ref, data []byte, class DataClass, cryptFilter string) ([]byte, error)
	Encrypt(ref sdf.Ref, data []byte, class DataClass, cryptFilter string) ([]byte, error)
	Permissions() Permissions
	EncryptMetadata() bool
	EncryptDict() *sdf.Dict
}

// Permissions are the user access rights of the /P entry.
type Permissions struct {
	Print             bool
	Modify            bool
	Copy              bool
	ModifyAnnotations bool
	FillForms         bool
	ExtractAccessible bool
	Assemble          bool
	PrintHighQuality  bool
}

// AllPermissions grants every right.
func AllPermissions() Permissions {
	return Permissions{true, true, true, true, true, true, true, true}
}

const (
	permPrint      = 1 << 2
	permModify     = 1 << 3
	permCopy       = 1 << 4
	permAnnotate   = 1 << 5
	permFillForms  = 1 << 8
	permAccessible = 1 << 9
	permAssemble   = 1 << 10
	permHighPrint  = 1 << 11
)

// Value encodes p as a /P flag word. Reserved bits are set as required.
func (p Permissions) Value() int32 {
	val := int32(-4) // bits 1-2 must be 0
	unset := func(ok bool, bit int32) {
		if !ok {
			val &^= bit
		}
	}
	unset(p.Print, permPrint)
	unset(p.Modify, permModify)
	unset(p.Copy, permCopy)
	unset(p.ModifyAnnotations, permAnnotate)
	unset(p.FillForms, permFillForms)
	unset(p.ExtractAccessible, permAccessible)
	unset(p.Assemble, permAssemble)
	unset(p.PrintHighQuality, permHighPrint)
	return val
}

// PermissionsFromValue decodes a /P flag word.
func PermissionsFromValue(p int32) Permissions {
	return Permissions{
		Print:             p&permPrint != 0,
		Modify:            p&permModify != 0,
		Copy:              p&permCopy != 0,
		ModifyAnnotations: p&permAnnotate != 0,
		FillForms:         p&permFillForms != 0,
		ExtractAccessible: p&permAccessible != 0,
		Assemble:          p&permAssemble != 0,
		PrintHighQuality:  p&permHighPrint != 0,
	}
}

// Algorithm selects the cipher for new encryption dictionaries.
type Algorithm int

const (
	RC4_40 Algorithm = iota
	RC4_128
	AES_128
	AES_256
)

func (a Algorithm) String() string {
	switch a {
	case RC4_40:
		return "RC4-40"
	case RC4_128:
		return "RC4-128"
	case AES_128:
		return "AES-128"
	case AES_256:
		return "AES-256"
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// Settings describe a new standard security handler.
type Settings struct {
	UserPassword  string
	OwnerPassword string
	Permissions   Permissions
	Algorithm     Algorithm
	// PlainMetadata leaves the XMP metadata stream unencrypted (R4 and up).
	PlainMetadata bool
}

// DefaultSettings encrypts with AES-256 and grants every permission.
func DefaultSettings() Settings {
	return Settings{Permissions: AllPermissions(), Algorithm: AES_256}
}

// ClassifyStream returns the data class of a stream and the crypt filter
// named by a /Crypt entry in its filter chain. A /Crypt filter without a
// /Name is Identity.
func ClassifyStream(d *sdf.Dict) (DataClass, string) {
	class := DataClassStream
	switch t, _ := d.NameValue("Type"); t {
	case "Metadata":
		class = DataClassMetadataStream
	case "EmbeddedFile":
		class = DataClassEmbeddedFile
	}
	names, params := filters.ExtractFilters(nil, d)
	for i, n := range names {
		if n != "Crypt" {
			continue
		}
		if params[i] != nil {
			if name, ok := params[i].NameValue("Name"); ok {
				return class, string(name)
			}
		}
		return class, "Identity"
	}
	return class, ""
}
