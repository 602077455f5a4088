package cli

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/security"
)

func writeEncrypted(t *testing.T) string {
	t.Helper()
	d := pdf.New()
	if err := d.PagePushBack(d.PageCreate(coords.Rect{X2: 200, Y2: 200})); err != nil {
		t.Fatal(err)
	}
	s := security.DefaultSettings()
	s.UserPassword, s.OwnerPassword = "user", "owner"
	if _, err := d.NewSecurityHandler(s); err != nil {
		t.Fatalf("NewSecurityHandler: %v", err)
	}
	path := filepath.Join(t.TempDir(), "locked.pdf")
	if err := d.Save(path, pdf.NoFlags); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return path
}

// answers returns a prompter replying with pws in turn and counting calls.
func answers(calls *int, pws ...string) Prompter {
	return func(string) (string, error) {
		*calls++
		if *calls > len(pws) {
			return "", errors.New("no more answers")
		}
		return pws[*calls-1], nil
	}
}

func TestOpen(t *testing.T) {
	path := writeEncrypted(t)
	tests := []struct {
		name      string
		password  string
		answers   []string
		nilPrompt bool
		wantCalls int
		wantErr   bool
	}{
		{name: "password flag", password: "user", wantCalls: 0},
		{name: "owner password flag", password: "owner", wantCalls: 0},
		{name: "prompted", answers: []string{"user"}, wantCalls: 1},
		{name: "wrong flag then prompted", password: "nope", answers: []string{"owner"}, wantCalls: 1},
		{name: "retries", answers: []string{"a", "b", "user"}, wantCalls: 3},
		{name: "gives up", answers: []string{"a", "b", "c", "user"}, wantCalls: 3, wantErr: true},
		{name: "no prompt", nilPrompt: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			prompt := answers(&calls, tt.answers...)
			if tt.nilPrompt {
				prompt = nil
			}
			doc, err := Open(path, tt.password, prompt, nil)
			if tt.wantErr {
				if !errors.Is(err, ErrNoPassword) {
					t.Fatalf("Open err = %v, want ErrNoPassword", err)
				}
			} else {
				if err != nil {
					t.Fatalf("Open: %v", err)
				}
				defer doc.Close()
				if got := doc.SecurityState(); got != security.Unlocked {
					t.Errorf("state = %v, want Unlocked", got)
				}
				if doc.PageCount() != 1 {
					t.Errorf("PageCount = %d, want 1", doc.PageCount())
				}
			}
			if calls != tt.wantCalls {
				t.Errorf("prompt called %d times, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestOpenPromptError(t *testing.T) {
	path := writeEncrypted(t)
	prompt := func(string) (string, error) { return "", ErrNoPassword }
	if _, err := Open(path, "", prompt, nil); !errors.Is(err, ErrNoPassword) {
		t.Fatalf("Open err = %v, want ErrNoPassword", err)
	}
}

func TestOpenUnencrypted(t *testing.T) {
	d := pdf.New()
	path := filepath.Join(t.TempDir(), "plain.pdf")
	if err := d.Save(path, pdf.NoFlags); err != nil {
		t.Fatal(err)
	}
	doc, err := Open(path, "", func(string) (string, error) {
		t.Fatal("prompted for an unencrypted file")
		return "", nil
	}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer doc.Close()
	if doc.SecurityState() != security.Unencrypted {
		t.Errorf("state = %v, want Unencrypted", doc.SecurityState())
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "none.pdf"), "", nil, nil); err == nil {
		t.Fatal("opened a missing file")
	}
}
