package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `
# portal credentials
LIVEKIT_API_KEY=devkey
export LIVEKIT_API_SECRET="quoted secret"
OWUI_PORTAL_PREFIX='owui-voice'
EMPTY=
BROKEN LINE
=novalue
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	for _, key := range []string{"LIVEKIT_API_KEY", "LIVEKIT_API_SECRET", "OWUI_PORTAL_PREFIX", "EMPTY"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if err := LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	tests := []struct {
		key, want string
	}{
		{"LIVEKIT_API_KEY", "devkey"},
		{"LIVEKIT_API_SECRET", "quoted secret"},
		{"OWUI_PORTAL_PREFIX", "owui-voice"},
		{"EMPTY", ""},
	}
	for _, tt := range tests {
		if got := os.Getenv(tt.key); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLoadFile_ExistingEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("LIVEKIT_URL=wss://from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("LIVEKIT_URL", "wss://from-env")
	if err := LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := os.Getenv("LIVEKIT_URL"); got != "wss://from-env" {
		t.Errorf("LIVEKIT_URL = %q, want wss://from-env", got)
	}
}

func TestLoadFile_MissingFileIsFine(t *testing.T) {
	t.Parallel()

	if err := LoadFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("LoadFile: %v", err)
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw      string
		key, val string
		ok       bool
	}{
		{"KEY=value", "KEY", "value", true},
		{"  KEY = value ", "KEY", "value", true},
		{`KEY="a b"`, "KEY", "a b", true},
		{"KEY='a b'", "KEY", "a b", true},
		{"export KEY=v", "KEY", "v", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"no equals", "", "", false},
		{"=orphan", "", "", false},
	}
	for _, tt := range tests {
		key, val, ok := parseLine(tt.raw)
		if key != tt.key || val != tt.val || ok != tt.ok {
			t.Errorf("parseLine(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.raw, key, val, ok, tt.key, tt.val, tt.ok)
		}
	}
}
