package gpio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOutputWritesSingleByte(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value")
	if err := os.WriteFile(path, []byte("0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := NewOutput(path)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	if err := out.Set(true); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(path)
	if b[0] != '1' {
		t.Fatalf("pin file = %q, want leading 1", b)
	}
	if err := out.Set(false); err != nil {
		t.Fatal(err)
	}
	b, _ = os.ReadFile(path)
	if b[0] != '0' {
		t.Fatalf("pin file = %q, want leading 0", b)
	}
}

func TestInputReadsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value")
	if err := os.WriteFile(path, []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	in, err := NewInput(path)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()

	high, err := in.Read()
	if err != nil {
		t.Fatal(err)
	}
	if !high {
		t.Fatal("expected high")
	}
	// Re-reads see updated state without reopening.
	if err := os.WriteFile(path, []byte("0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	high, err = in.Read()
	if err != nil {
		t.Fatal(err)
	}
	if high {
		t.Fatal("expected low after rewrite")
	}
}

func TestBoardRevisionDecoding(t *testing.T) {
	cases := []struct {
		id0, id1, id2 bool
		want          int
	}{
		{false, false, false, 0},
		{true, false, false, 1},
		{false, true, false, 2},
		{true, true, true, 7},
	}
	for _, c := range cases {
		if got := BoardRevision(c.id0, c.id1, c.id2); got != c.want {
			t.Errorf("BoardRevision(%v,%v,%v) = %d, want %d", c.id0, c.id1, c.id2, got, c.want)
		}
	}
}
