// Copyright © 2019 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package utils

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "storage-engine-utest")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	src := filepath.Join(dir, "src")
	dest := filepath.Join(dir, "dest")

	if err = ioutil.WriteFile(src, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	if err = CopyFile(src, dest); err != nil {
		t.Fatalf("CopyFile() failed: %v", err)
	}

	data, err := ioutil.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}

	if string(data) != "hello" {
		t.Fatalf("copied content = %q, want %q", string(data), "hello")
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	dir, err := ioutil.TempDir("", "storage-engine-utest")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	err = CopyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dest"))
	if err == nil {
		t.Fatal("CopyFile() should fail for a missing source file")
	}
}

func TestFileExists(t *testing.T) {
	dir, err := ioutil.TempDir("", "storage-engine-utest")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	present := filepath.Join(dir, "present")
	if err = ioutil.WriteFile(present, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	ok, err := FileExists(present)
	if err != nil || !ok {
		t.Fatalf("FileExists(present) = %v, %v", ok, err)
	}

	ok, err = FileExists(filepath.Join(dir, "absent"))
	if err != nil || ok {
		t.Fatalf("FileExists(absent) = %v, %v", ok, err)
	}
}

func TestMkdirAll(t *testing.T) {
	dir, err := ioutil.TempDir("", "storage-engine-utest")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	nested := filepath.Join(dir, "a", "b", "c")
	if err = MkdirAll(nested, 0755); err != nil {
		t.Fatalf("MkdirAll() failed: %v", err)
	}

	if err = MkdirAll(nested, 0755); err != nil {
		t.Fatalf("MkdirAll() should be a no-op on an existing directory: %v", err)
	}
}

func TestStringSliceContains(t *testing.T) {
	sl := []string{"ata-", "scsi-", "usb-"}

	if !StringSliceContains(sl, "scsi-") {
		t.Fatal("StringSliceContains() should find a present element")
	}

	if StringSliceContains(sl, "nvme-") {
		t.Fatal("StringSliceContains() should not find an absent element")
	}
}

func TestIntSliceContains(t *testing.T) {
	is := []int{1, 2, 3}

	if !IntSliceContains(is, 2) {
		t.Fatal("IntSliceContains() should find a present element")
	}

	if IntSliceContains(is, 42) {
		t.Fatal("IntSliceContains() should not find an absent element")
	}
}
