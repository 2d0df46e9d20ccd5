// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package region

import "testing"

func TestEndAndBytes(t *testing.T) {
	r := New(100, 50, 512)

	if r.End() != 149 {
		t.Fatalf("End() = %d, want 149", r.End())
	}

	if r.SizeBytes() != 50*512 {
		t.Fatalf("SizeBytes() = %d, want %d", r.SizeBytes(), 50*512)
	}
}

func TestContains(t *testing.T) {
	outer := New(0, 1000, 512)
	inner := New(10, 20, 512)
	outside := New(990, 20, 512)

	if !outer.Contains(inner) {
		t.Fatal("Contains() should report true for a fully enclosed region")
	}

	if outer.Contains(outside) {
		t.Fatal("Contains() should report false when the region extends past the end")
	}

	if outer.Contains(New(10, 20, 4096)) {
		t.Fatal("Contains() should report false across differing block sizes")
	}
}

func TestIntersection(t *testing.T) {
	a := New(0, 100, 512)
	b := New(50, 100, 512)

	got, ok := a.Intersection(b)
	if !ok {
		t.Fatal("Intersection() should find an overlap")
	}

	want := New(50, 50, 512)
	if !got.Equal(want) {
		t.Fatalf("Intersection() = %+v, want %+v", got, want)
	}

	c := New(200, 10, 512)
	if _, ok := a.Intersection(c); ok {
		t.Fatal("Intersection() should report false for disjoint regions")
	}
}

func TestSortByStart(t *testing.T) {
	regions := []Region{New(300, 10, 512), New(0, 10, 512), New(100, 10, 512)}
	SortByStart(regions)

	for i := 1; i < len(regions); i++ {
		if regions[i-1].Start > regions[i].Start {
			t.Fatalf("SortByStart() did not sort ascending: %+v", regions)
		}
	}
}

func TestTopologyGrain(t *testing.T) {
	tests := []struct {
		name string
		topo Topology
		want uint64
	}{
		{"zero optimal io", Topology{}, oneMiB},
		{"below 1MiB", Topology{OptimalIOSize: 4096}, oneMiB},
		{"already a multiple", Topology{OptimalIOSize: 2 * oneMiB}, 2 * oneMiB},
		{"already above 1MiB, not power of two", Topology{OptimalIOSize: 3 * 512 * 1024}, 3 * 512 * 1024},
		{"needs one doubling", Topology{OptimalIOSize: 700000}, 1400000},
	}

	for _, tt := range tests {
		if got := tt.topo.Grain(); got != tt.want {
			t.Errorf("%s: Grain() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestAlignScenarios(t *testing.T) {
	topo := Topology{}

	got, err := topo.Align(New(0, 10000, 512), AlignEnd)
	if err != nil {
		t.Fatalf("Align() failed: %v", err)
	}
	if want := New(0, 8192, 512); !got.Equal(want) {
		t.Fatalf("Align(ALIGN_END) = %+v, want %+v", got, want)
	}

	got, err = topo.Align(New(1, 10000, 512), AlignEnd)
	if err != nil {
		t.Fatalf("Align() failed: %v", err)
	}
	if want := New(2048, 6144, 512); !got.Equal(want) {
		t.Fatalf("Align(ALIGN_END) = %+v, want %+v", got, want)
	}

	got, err = topo.Align(New(1, 10000, 512), KeepSize)
	if err != nil {
		t.Fatalf("Align() failed: %v", err)
	}
	if want := New(2048, 10000, 512); !got.Equal(want) {
		t.Fatalf("Align(KEEP_SIZE) = %+v, want %+v", got, want)
	}

	if topo.CanBeAligned(New(1, 4094, 512), AlignEnd) {
		t.Fatal("CanBeAligned() should report false for a too-small region")
	}

	got, err = topo.Align(New(1, 4095, 512), AlignEnd)
	if err != nil {
		t.Fatalf("Align() failed: %v", err)
	}
	if want := New(2048, 2048, 512); !got.Equal(want) {
		t.Fatalf("Align(ALIGN_END) = %+v, want %+v", got, want)
	}

	offsetTopo := Topology{AlignmentOffset: 3584}
	got, err = offsetTopo.Align(New(0, 10000, 512), KeepSize)
	if err != nil {
		t.Fatalf("Align() failed: %v", err)
	}
	if want := New(7, 10000, 512); !got.Equal(want) {
		t.Fatalf("Align(KEEP_SIZE, offset) = %+v, want %+v", got, want)
	}
}

func TestAlignIdempotent(t *testing.T) {
	topo := Topology{OptimalIOSize: 256 * 1024}

	regions := []Region{
		New(0, 20000, 512),
		New(17, 500000, 4096),
		New(123456, 99, 512),
	}

	for _, policy := range []AlignPolicy{AlignEnd, KeepSize, KeepEnd} {
		for _, r := range regions {
			first, err := topo.Align(r, policy)
			if err != nil {
				continue
			}

			second, err := topo.Align(first, policy)
			if err != nil {
				t.Fatalf("second Align() under %s failed: %v", policy, err)
			}

			if !first.Equal(second) {
				t.Fatalf("Align() not idempotent under %s: %+v != %+v", policy, first, second)
			}
		}
	}
}

func TestAlignError(t *testing.T) {
	topo := Topology{}

	_, err := topo.Align(New(1, 4094, 512), AlignEnd)
	if err == nil {
		t.Fatal("Align() should fail when the aligned end precedes the aligned start")
	}
}
