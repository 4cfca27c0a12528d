package auth

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.txt")
	content := "alpha\n\n  beta  \n\ngamma\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}

	tokens, err := ReadTokenFile(path)
	if err != nil {
		t.Fatalf("ReadTokenFile: %v", err)
	}
	want := []string{"alpha", "beta", "gamma"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %v", len(want), tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("token %d: got %q want %q", i, tokens[i], want[i])
		}
	}
}

func TestReadTokenFileMissing(t *testing.T) {
	if _, err := ReadTokenFile(filepath.Join(t.TempDir(), "nosuch.txt")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
