package checksum

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

const (
	sha512Hello = "9b71d224bd62f3785d96d46ad3ea3d73319bfbc2890caadae2dff72519673ca72323c3d99ba5c11d7c7acc6e14b8c5da0c4663475c2e5c3adef46f73bcdec043"
	sha512Empty = "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Algorithm
		wantErr bool
	}{
		{"empty defaults to sha512", "", AlgorithmSHA512, false},
		{"sha512", "sha512", AlgorithmSHA512, false},
		{"case insensitive", "SHA512", AlgorithmSHA512, false},
		{"blake3", " blake3 ", AlgorithmBLAKE3, false},
		{"md5 rejected", "md5", "", true},
		{"sha256 rejected", "sha256", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAlgorithm(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAlgorithm(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCalculateDigest(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"hello", "hello", sha512Hello},
		{"empty input", "", sha512Empty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateDigest(strings.NewReader(tt.input), AlgorithmSHA512)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CalculateDigest(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestCalculateDigestSpansChunks(t *testing.T) {
	// Larger than one buffer so the chunk loop runs more than once
	data := bytes.Repeat([]byte("0123456789abcdef"), bufferSize/8)

	for _, algo := range []Algorithm{AlgorithmSHA512, AlgorithmBLAKE3} {
		t.Run(string(algo), func(t *testing.T) {
			first, err := CalculateDigest(bytes.NewReader(data), algo)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			second, err := CalculateDigest(bytes.NewReader(data), algo)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if first != second {
				t.Errorf("digest is not stable: %s != %s", first, second)
			}
			if len(first) != 128 {
				t.Errorf("digest length = %d, want 128 hex chars", len(first))
			}
			if strings.ToLower(first) != first {
				t.Errorf("digest %s is not lower-case", first)
			}

			changed := bytes.Clone(data)
			changed[len(changed)-1] ^= 0x01
			third, err := CalculateDigest(bytes.NewReader(changed), algo)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if third == first {
				t.Errorf("single byte change did not change the digest")
			}
		})
	}
}

func TestFileDigestSameContentDifferentPaths(t *testing.T) {
	fsys := fstest.MapFS{
		"a/x.txt":       {Data: []byte("hello")},
		"b/deep/y.txt":  {Data: []byte("hello")},
		"c/capital.txt": {Data: []byte("Hello")},
	}

	x, err := FileDigest(fsys, "a/x.txt", AlgorithmSHA512)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	y, err := FileDigest(fsys, "b/deep/y.txt", AlgorithmSHA512)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := FileDigest(fsys, "c/capital.txt", AlgorithmSHA512)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if x != sha512Hello || y != sha512Hello {
		t.Errorf("identical files hashed differently: %s vs %s", x, y)
	}
	if c == x {
		t.Errorf("different content produced identical digests")
	}
}

func TestFileDigestMissingFile(t *testing.T) {
	_, err := FileDigest(fstest.MapFS{}, "missing.txt", AlgorithmSHA512)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "open file") {
		t.Errorf("error %q should mention open file", err)
	}
}

func TestCalculateFileDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := CalculateFileDigest(path, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != sha512Hello {
		t.Errorf("CalculateFileDigest() = %s, want %s", got, sha512Hello)
	}
}
