package utils

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestSafeWriteFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out", "label_netral.csv")
	if err := SafeWriteFile(p, []byte("comment,sentiment\n")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	if err := SafeWriteFile(p, []byte("comment,sentiment\nmeh,NETRAL\n")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil || string(b) != "comment,sentiment\nmeh,NETRAL\n" {
		t.Fatalf("content = %q, %v", b, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(p))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestWriteFileFuncFailureWritesNothing(t *testing.T) {
	p := filepath.Join(t.TempDir(), "chart.png")
	err := WriteFileFunc(p, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return errors.New("render failed")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("file should not exist, stat err = %v", err)
	}
}

func TestPrettyJSON(t *testing.T) {
	b, err := PrettyJSON(map[string]int{"netral": 1})
	if err != nil || string(b) != "{\n  \"netral\": 1\n}" {
		t.Fatalf("PrettyJSON = %q, %v", b, err)
	}
}
