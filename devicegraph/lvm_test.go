// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package devicegraph

import (
	"testing"

	"github.com/clearlinux/storage-engine/device"
)

const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
	tib = 1024 * gib
)

func TestDefaultChunkSize(t *testing.T) {
	tests := []struct {
		poolBytes uint64
		want      uint64
	}{
		{1 * gib, 64 * kib},
		{1 * tib, 512 * kib},
		{16 * mib, 64 * kib},
		{1 << 52, 1 << 30},
	}
	for _, tt := range tests {
		if got := DefaultChunkSize(tt.poolBytes); got != tt.want {
			t.Errorf("DefaultChunkSize(%d) = %d, want %d", tt.poolBytes, got, tt.want)
		}
	}
}

func TestDefaultMetadataSize(t *testing.T) {
	if got := DefaultMetadataSize(1*gib, 0, 4*mib); got != 4*mib {
		t.Errorf("DefaultMetadataSize(1 GiB) = %d, want 4 MiB", got)
	}
	if got := DefaultMetadataSize(1*tib, 0, 4*mib); got != 128*mib {
		t.Errorf("DefaultMetadataSize(1 TiB) = %d, want 128 MiB", got)
	}
}

func TestMaxExtentNumber(t *testing.T) {
	want := uint64(65024<<40) / (4 * mib)
	if got := MaxExtentNumber(4 * mib); got != want {
		t.Errorf("MaxExtentNumber(4 MiB) = %d, want %d", got, want)
	}
	if MaxSizeForLvmLvThin(4*mib) != want*(4*mib) {
		t.Error("MaxSizeForLvmLvThin should be MaxExtentNumber * extent_size")
	}
}

// TestThinPoolExtentAccounting covers §8 scenario 3: a VG over two 2 TiB
// disks at 4 MiB extents holds 1,048,574 extents; thin pools consume data
// extents plus metadata extents plus one spare metadata sized like the
// largest pool metadata.
func TestThinPoolExtentAccounting(t *testing.T) {
	g := New()
	vg := g.NewLvmVg("test", 4*mib)
	vg.Region = device.RegionAttrs{Start: 0, Length: 1048574, BlockSize: uint32(4 * mib)}

	pool1, err := g.NewLvmLv(vg, "thin-pool1", 1*gib/(4*mib), device.LvThinPool)
	if err != nil {
		t.Fatalf("NewLvmLv(thin-pool1) failed: %v", err)
	}
	// 256 data + 1 metadata, spare = 1.
	if used := g.NumberOfUsedExtents(vg); used != 256+1+1 {
		t.Errorf("used extents after pool1 = %d, want 258", used)
	}

	pool2, err := g.NewLvmLv(vg, "thin-pool2", 1*tib/(4*mib), device.LvThinPool)
	if err != nil {
		t.Fatalf("NewLvmLv(thin-pool2) failed: %v", err)
	}
	_ = pool2
	// + 262144 data + 32 metadata, spare grows from 1 to 32.
	wantUsed := uint64(256 + 1 + 262144 + 32 + 32)
	if used := g.NumberOfUsedExtents(vg); used != wantUsed {
		t.Errorf("used extents after pool2 = %d, want %d", used, wantUsed)
	}

	pool3, err := g.NewLvmLv(vg, "thin-pool3", 1*gib/(4*mib), device.LvThinPool)
	if err != nil {
		t.Fatalf("NewLvmLv(thin-pool3) failed: %v", err)
	}
	pool3.LvChunk = 4 * mib
	// + 256 data + 1 metadata (explicit 4 MiB chunk), spare stays 32.
	wantUsed += 256 + 1
	if used := g.NumberOfUsedExtents(vg); used != wantUsed {
		t.Errorf("used extents after pool3 = %d, want %d", used, wantUsed)
	}
	if free := g.NumberOfFreeExtents(vg); free != 1048574-wantUsed {
		t.Errorf("free extents = %d, want %d", free, 1048574-wantUsed)
	}

	// A thin LV hangs off its pool, not the VG, and consumes no VG extents.
	thin, err := g.NewThinLv(pool1, "thin1", 4*gib/(4*mib))
	if err != nil {
		t.Fatalf("NewThinLv() failed: %v", err)
	}
	if used := g.NumberOfUsedExtents(vg); used != wantUsed {
		t.Errorf("used extents after thin lv = %d, want unchanged %d", used, wantUsed)
	}
	parents := g.Parents(thin.SID, Filter{})
	if len(parents) != 1 || parents[0].SID != pool1.SID {
		t.Errorf("thin lv parents = %v, want exactly its pool", parents)
	}
}
