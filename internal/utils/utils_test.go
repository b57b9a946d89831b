package utils

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/stitcher/internal/types"
)

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer
	err := fmt.Errorf("%w: source directory data/in", types.ErrMissingResource)
	writeError(&buf, "Slicing aborted", err)

	out := buf.String()
	for _, want := range []string{"Slicing aborted", "missing resource: source directory data/in", "HINT:"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}

	buf.Reset()
	writeError(&buf, "Something else", fmt.Errorf("boom"))
	if strings.Contains(buf.String(), "HINT:") {
		t.Errorf("Unexpected hint for a generic error:\n%s", buf.String())
	}
}

func TestGenerateImageID(t *testing.T) {
	// Integration test using the OS filesystem
	tmp, err := os.CreateTemp("", "image_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write([]byte("fake image content")); err != nil {
		t.Fatal(err)
	}
	tmp.Close()

	id, err := GenerateImageID(tmp.Name())
	if err != nil || id == "" {
		t.Errorf("Failed to generate ID: %v", err)
	}

	// Verify Determinism
	id2, _ := GenerateImageID(tmp.Name())
	if id != id2 {
		t.Errorf("Hash is not deterministic. Got %s, then %s", id, id2)
	}

	// Verify Sensitivity (Change content -> Change ID)
	later := time.Now().Add(2 * time.Second)
	f, _ := os.OpenFile(tmp.Name(), os.O_APPEND|os.O_WRONLY, 0644)
	f.Write([]byte(" modification"))
	f.Close()
	os.Chtimes(tmp.Name(), later, later)

	id3, _ := GenerateImageID(tmp.Name())
	if id == id3 {
		t.Error("Hash did not change after file modification")
	}

	if _, err := GenerateImageID(tmp.Name() + ".missing"); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestShortID(t *testing.T) {
	if got := ShortID("0123456789abcdef"); got != "0123456789ab" {
		t.Errorf("ShortID() = %q", got)
	}
	if got := ShortID("abc"); got != "abc" {
		t.Errorf("ShortID() = %q", got)
	}
}
