// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

// Package region models aligned integer intervals expressed in block units,
// and the Topology/AlignPolicy machinery used to align them against a
// device's optimal I/O geometry. It is grounded on the original
// storage/Utils/RegionImpl.h and storage/Utils/TopologyImpl.cc geometry
// rules, adapted to the Go idioms the teacher repo uses elsewhere (plain
// structs, error returns instead of exceptions, a Clone() copying method).
package region

import (
	"sort"

	"github.com/clearlinux/storage-engine/errors"
)

// Region is a half-open byte range expressed in block units: [Start, Start+Length).
// BlockSize must be greater than zero for any Region produced by New.
type Region struct {
	Start     uint64
	Length    uint64
	BlockSize uint32
}

// New builds a Region, matching the teacher's constructor-style factory functions.
func New(start, length uint64, blockSize uint32) Region {
	return Region{Start: start, Length: length, BlockSize: blockSize}
}

// End returns the last block included in the region. An empty region (Length
// == 0) has End() == Start-1, mirroring the C++ unsigned-wraparound
// convention only when Start is also 0; callers should not rely on End() for
// a zero-length region.
func (r Region) End() uint64 {
	return r.Start + r.Length - 1
}

// Equal reports whether two regions cover the same blocks at the same block size.
func (r Region) Equal(other Region) bool {
	return r.Start == other.Start && r.Length == other.Length && r.BlockSize == other.BlockSize
}

// Contains reports whether other lies entirely within r. Both regions must
// share a block size.
func (r Region) Contains(other Region) bool {
	if r.BlockSize != other.BlockSize || other.Length == 0 {
		return false
	}
	return other.Start >= r.Start && other.End() <= r.End()
}

// ContainsBlock reports whether the given block number falls within r.
func (r Region) ContainsBlock(block uint64) bool {
	if r.Length == 0 {
		return false
	}
	return block >= r.Start && block <= r.End()
}

// Intersection returns the overlapping region between r and other, if any.
// Both regions must share a block size.
func (r Region) Intersection(other Region) (Region, bool) {
	if r.BlockSize != other.BlockSize || r.Length == 0 || other.Length == 0 {
		return Region{}, false
	}

	start := r.Start
	if other.Start > start {
		start = other.Start
	}

	end := r.End()
	if other.End() < end {
		end = other.End()
	}

	if end < start {
		return Region{}, false
	}

	return Region{Start: start, Length: end - start + 1, BlockSize: r.BlockSize}, true
}

// ToBytes converts a block count n into a byte count using this region's block size.
func (r Region) ToBytes(n uint64) uint64 {
	return n * uint64(r.BlockSize)
}

// SizeBytes returns the region's length expressed in bytes.
func (r Region) SizeBytes() uint64 {
	return r.ToBytes(r.Length)
}

// ByStart sorts a slice of Regions by their start block, ascending, matching
// the teacher's ByBDName sort.Interface idiom applied to regions instead of
// block device names.
type ByStart []Region

func (s ByStart) Len() int           { return len(s) }
func (s ByStart) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s ByStart) Less(i, j int) bool { return s[i].Start < s[j].Start }

// SortByStart sorts regions in place by start block.
func SortByStart(regions []Region) {
	sort.Sort(ByStart(regions))
}

// AlignError reports that a region could not be aligned under a given
// policy (e.g. alignment would produce an empty or negative-length region).
type AlignError struct {
	Region Region
	Policy AlignPolicy
}

func (e AlignError) Error() string {
	return errors.New(errors.KindAlignError,
		"cannot align region start=%d length=%d block_size=%d under policy %s",
		e.Region.Start, e.Region.Length, e.Region.BlockSize, e.Policy).Error()
}
