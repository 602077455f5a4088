package pdf

import (
	"errors"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/security"
	"github.com/NityaNandPandey/AndroidPDF/writer"
)

// InitSecurityHandler tries to unlock an encrypted document with the empty
// user password. It reports whether the document is readable.
func (d *Doc) InitSecurityHandler() bool {
	if d.sec == nil || d.sec.State() != security.Locked {
		return true
	}
	return d.sec.Authenticate("") == nil
}

// InitStdSecurityHandler unlocks the document with password. A wrong
// password returns ErrInvalidPassword and leaves the document locked.
func (d *Doc) InitStdSecurityHandler(password string) error {
	if d.sec == nil || d.sec.State() == security.Unlocked {
		return nil
	}
	if err := d.sec.Authenticate(password); err != nil {
		return err
	}
	d.sdf.MarkClean()
	return nil
}

// SecurityState reports whether the document is encrypted and unlocked.
func (d *Doc) SecurityState() security.State { return d.sec.State() }

// SecurityHandler returns the handler used when saving, or nil.
func (d *Doc) SecurityHandler() *security.Standard { return d.sec }

// Permissions returns the rights granted by the password used to unlock
// the document. Unencrypted documents grant everything.
func (d *Doc) Permissions() security.Permissions { return d.sec.Permissions() }

// SetSecurityHandler replaces the security applied on the next save. The
// handler must have been built for this document's file identifier; see
// NewSecurityHandler.
func (d *Doc) SetSecurityHandler(h *security.Standard) error {
	if d.sec != nil && d.sec.State() == security.Locked {
		return &sdf.Error{Op: "set security handler", Err: sdf.ErrLocked}
	}
	if h == nil {
		return errors.New("pdf: nil security handler")
	}
	if h.State() != security.Unlocked {
		return &sdf.Error{Op: "set security handler", Err: sdf.ErrLocked}
	}
	d.sec = h
	return nil
}

// NewSecurityHandler builds a standard handler for this document from s
// and installs it.
func (d *Doc) NewSecurityHandler(s security.Settings) (*security.Standard, error) {
	h, err := security.NewStandard(s, writer.EnsureFileID(d.sdf))
	if err != nil {
		return nil, err
	}
	if err := d.SetSecurityHandler(h); err != nil {
		return nil, err
	}
	return h, nil
}

// RemoveSecurity makes the next save unencrypted. It does nothing for an
// unencrypted document.
func (d *Doc) RemoveSecurity() error {
	if d.sec == nil {
		return nil
	}
	if d.sec.State() == security.Locked {
		return &sdf.Error{Op: "remove security", Err: sdf.ErrLocked}
	}
	d.sec = nil
	d.sdf.Trailer().Delete("Encrypt")
	return nil
}
