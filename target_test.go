// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract_test

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	safeextract "github.com/hashicorp/go-safeextract"
)

// TestTargetSymlinkWriter tests the link target checks of the symlink writer
func TestTargetSymlinkWriter(t *testing.T) {
	tests := []struct {
		name       string
		link       string
		linkTarget string
		wantErr    bool
	}{
		{name: "sibling", link: "link", linkTarget: "file.txt"},
		{name: "into subdirectory", link: "link", linkTarget: "sub/file.txt"},
		{name: "up and down", link: "sub/link", linkTarget: "../file.txt"},
		{name: "root itself", link: "sub/link", linkTarget: ".."},
		{name: "absolute", link: "link", linkTarget: "/etc/passwd", wantErr: true},
		{name: "escaping", link: "sub/link", linkTarget: "../../etc/passwd", wantErr: true},
		{name: "escaping backslashes", link: "link", linkTarget: `..\..\etc\passwd`, wantErr: filepath.Separator == '\\'},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := safeextract.NewMemory()
			if err := m.CreateDir(outPath("sub"), 0755); err != nil {
				t.Fatalf("CreateDir() failed: %s", err)
			}
			writeLink := safeextract.NewTargetSymlinkWriter(m, outPath(), safeextract.NewConfig())

			path := outPath(filepath.FromSlash(test.link))
			err := writeLink(path, test.linkTarget)
			if (err != nil) != test.wantErr {
				t.Fatalf("writeLink() error = %v, wantErr %v", err, test.wantErr)
			}
			if test.wantErr {
				var pte *safeextract.PathTraversalError
				if !errors.As(err, &pte) || pte.Kind != safeextract.KindSymlink {
					t.Fatalf("writeLink() error = %v, want symlink traversal", err)
				}
				if _, err := m.Lstat(path); !errors.Is(err, fs.ErrNotExist) {
					t.Fatalf("link must not be created")
				}
				return
			}

			target, err := m.Readlink(path)
			if err != nil {
				t.Fatalf("Readlink() failed: %s", err)
			}
			if target != test.linkTarget {
				t.Errorf("Readlink() = %s, want %s", target, test.linkTarget)
			}
		})
	}
}

// TestTargetSymlinkWriterOverwrite tests the overwrite policy for links
func TestTargetSymlinkWriterOverwrite(t *testing.T) {
	for _, overwrite := range []bool{true, false} {
		m := safeextract.NewMemory()
		if err := m.CreateDir(outPath(), 0755); err != nil {
			t.Fatalf("CreateDir() failed: %s", err)
		}
		writeLink := safeextract.NewTargetSymlinkWriter(m, outPath(), safeextract.NewConfig(safeextract.WithOverwrite(overwrite)))

		if err := writeLink(outPath("link"), "a"); err != nil {
			t.Fatalf("writeLink() failed: %s", err)
		}
		err := writeLink(outPath("link"), "b")
		if overwrite && err != nil {
			t.Fatalf("writeLink() failed: %s", err)
		}
		if !overwrite && !errors.Is(err, fs.ErrExist) {
			t.Fatalf("writeLink() error = %v, want %v", err, fs.ErrExist)
		}

		want := "a"
		if overwrite {
			want = "b"
		}
		if got, _ := m.Readlink(outPath("link")); got != want {
			t.Errorf("Readlink() = %s, want %s", got, want)
		}
	}
}

// TestTargetDisk tests the disk target
func TestTargetDisk(t *testing.T) {
	tmp := t.TempDir()
	d := safeextract.NewTargetDisk()

	dir := filepath.Join(tmp, "a", "b")
	if err := d.CreateDir(dir, 0755); err != nil {
		t.Fatalf("CreateDir() failed: %s", err)
	}
	if err := d.CreateDir(dir, 0755); err != nil {
		t.Fatalf("CreateDir() on existing directory failed: %s", err)
	}

	file := filepath.Join(dir, "file.txt")
	n, err := d.CreateFile(file, stringReader("hello world"), 0640, safeextract.CreateNewOnly, -1)
	if err != nil || n != 11 {
		t.Fatalf("CreateFile() = %d, %v", n, err)
	}
	if _, err := d.CreateFile(file, stringReader("again"), 0640, safeextract.CreateNewOnly, -1); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("CreateFile() error = %v, want %v", err, fs.ErrExist)
	}
	if _, err := d.CreateFile(file, stringReader("hi"), 0640, safeextract.CreateOrReplace, -1); err != nil {
		t.Fatalf("CreateFile() failed: %s", err)
	}
	if data, _ := os.ReadFile(file); string(data) != "hi" {
		t.Errorf("content = %q, want %q", data, "hi")
	}

	// size limit
	n, err = d.CreateFile(filepath.Join(dir, "big.txt"), stringReader("0123456789"), 0640, safeextract.CreateOrReplace, 4)
	if err == nil || n != 4 {
		t.Fatalf("CreateFile() = %d, %v, want 4 and error", n, err)
	}

	link := filepath.Join(tmp, "link")
	if err := d.CreateSymlink("a/b/file.txt", link, false); err != nil {
		t.Skipf("cannot create symlink: %s", err)
	}
	if err := d.CreateSymlink("a/b/file.txt", link, false); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("CreateSymlink() error = %v, want %v", err, fs.ErrExist)
	}
	if err := d.CreateSymlink("a", link, true); err != nil {
		t.Fatalf("CreateSymlink() overwrite failed: %s", err)
	}
	fi, err := d.Lstat(link)
	if err != nil || fi.Mode()&fs.ModeSymlink == 0 {
		t.Fatalf("Lstat() = %v, %v, want symlink", fi, err)
	}
	if fi, err := d.Stat(link); err != nil || !fi.IsDir() {
		t.Fatalf("Stat() = %v, %v, want directory", fi, err)
	}
}

func stringReader(s string) io.Reader {
	return strings.NewReader(s)
}
