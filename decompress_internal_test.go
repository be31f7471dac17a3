// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// TestDetermineOutputName tests the naming of decompressed content
func TestDetermineOutputName(t *testing.T) {
	m := NewMemory()
	root := filepath.Join(string(filepath.Separator), "out")
	if err := m.CreateDir(root, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateFile(filepath.Join(root, "existing"), strings.NewReader("x"), 0644, CreateOrReplace, -1); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		dst       string
		inputName string
		wantDir   string
		wantName  string
	}{
		{name: "strip extension", dst: root, inputName: "data.txt.gz", wantDir: root, wantName: "data.txt"},
		{name: "upper case extension", dst: root, inputName: "DATA.GZ", wantDir: root, wantName: "DATA"},
		{name: "no extension", dst: root, inputName: "data", wantDir: root, wantName: "data.decompressed"},
		{name: "unnamed stream", dst: root, inputName: "", wantDir: root, wantName: defaultDecompressionName},
		{name: "only extension", dst: root, inputName: ".gz", wantDir: root, wantName: defaultDecompressionName},
		{name: "parent directory", dst: root, inputName: "...gz", wantDir: root, wantName: defaultDecompressionName},
		{name: "line break", dst: root, inputName: "a\nb.gz", wantDir: root, wantName: defaultDecompressionName},
		{name: "too long", dst: root, inputName: strings.Repeat("a", 256) + ".gz", wantDir: root, wantName: defaultDecompressionName},
		{name: "new file as destination", dst: filepath.Join(root, "new.txt"), inputName: "data.gz", wantDir: root, wantName: "new.txt"},
		{name: "existing file as destination", dst: filepath.Join(root, "existing"), inputName: "data.gz", wantDir: root, wantName: "existing"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dir, name := determineOutputName(m, test.dst, test.inputName, ".gz")
			if dir != test.wantDir || name != test.wantName {
				t.Errorf("determineOutputName() = %s, %s; want %s, %s", dir, name, test.wantDir, test.wantName)
			}
		})
	}
}

// TestNamingRestrictions tests operating system specific file name restrictions
func TestNamingRestrictions(t *testing.T) {
	invalid := []string{"", ".", "..", "a\tb"}
	if runtime.GOOS == "windows" {
		invalid = append(invalid, "CON", "lpt1", "a:b")
	} else {
		invalid = append(invalid, "a\\b", "a\x00b")
	}

	for _, name := range invalid {
		matched := false
		for _, r := range namingRestrictions {
			if r.Regex.MatchString(name) {
				matched = true
				break
			}
		}
		if !matched {
			t.Errorf("name %q passes all restrictions", name)
		}
	}
}
