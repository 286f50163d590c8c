package session

import (
	"path/filepath"
	"testing"
)

func TestNormalizeID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"abc", "abc"},
		{"  ABC  ", "abc"},
		{"Sales-01", "sales-01"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeID(c.in); got != c.want {
			t.Errorf("NormalizeID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValidateID(t *testing.T) {
	valid := []string{"abc", "session_1", "a", "sales-team-01"}
	for _, id := range valid {
		if err := ValidateID(id); err != nil {
			t.Errorf("ValidateID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{"", "UPPER", "has space", "slash/id", "../escape", "dot.dot"}
	for _, id := range invalid {
		if err := ValidateID(id); err == nil {
			t.Errorf("ValidateID(%q) = nil, want error", id)
		}
	}
}

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	if len(id) != 8 {
		t.Fatalf("GenerateID() length = %d, want 8", len(id))
	}
	if err := ValidateID(id); err != nil {
		t.Errorf("generated id %q failed validation: %v", id, err)
	}
	if GenerateID() == id {
		t.Error("two generated ids are equal")
	}
}

func TestPaths(t *testing.T) {
	root := "/var/lib/wagate"
	if got, want := Dir(root, "abc"), filepath.Join(root, "sessions", "abc"); got != want {
		t.Errorf("Dir = %q, want %q", got, want)
	}
	if got, want := CredentialDBPath(root, "abc"), filepath.Join(root, "sessions", "abc", "session.db"); got != want {
		t.Errorf("CredentialDBPath = %q, want %q", got, want)
	}
	if got, want := DatabasePath(root), filepath.Join(root, "wagate.db"); got != want {
		t.Errorf("DatabasePath = %q, want %q", got, want)
	}
}
