// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package devicegraph

import (
	"github.com/google/uuid"

	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/errors"
	"github.com/clearlinux/storage-engine/holder"
)

// LVM sizing rules (§4.C "LvmVg and LvmLv"), the arithmetic lvm2 itself
// applies when the caller does not pick explicit values.

// maxLvmSize is the largest size lvm2 can address, 65,024 TiB.
const maxLvmSize = 65024 << 40

// thinMetadataEntry is the per-chunk bookkeeping cost in a thin pool's
// metadata LV.
const thinMetadataEntry = 64

// MaxExtentNumber returns the largest extent count an LV in a VG with the
// given extent size can have.
func MaxExtentNumber(extentSize uint64) uint64 {
	if extentSize == 0 {
		return 0
	}
	return maxLvmSize / extentSize
}

// MaxSizeForLvmLvThin returns the byte size ceiling of a thin LV in a VG
// with the given extent size.
func MaxSizeForLvmLvThin(extentSize uint64) uint64 {
	return MaxExtentNumber(extentSize) * extentSize
}

func nextPowerOfTwo(n uint64) uint64 {
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

func clamp(n, lo, hi uint64) uint64 {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func roundUp(n, multiple uint64) uint64 {
	if multiple == 0 {
		return n
	}
	return (n + multiple - 1) / multiple * multiple
}

// DefaultChunkSize returns the chunk size a thin pool of poolBytes gets
// when none is requested: the next power of two of poolBytes >> 21,
// clamped to [64 KiB, 1 GiB].
func DefaultChunkSize(poolBytes uint64) uint64 {
	return clamp(nextPowerOfTwo(poolBytes>>21), 64*1024, 1<<30)
}

// DefaultMetadataSize returns the metadata LV size for a thin pool of
// poolBytes with the given chunk size, rounded up to a whole extent and
// clamped to [2 MiB, 16 GiB].
func DefaultMetadataSize(poolBytes, chunkSize, extentSize uint64) uint64 {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize(poolBytes)
	}
	metadata := poolBytes / chunkSize * thinMetadataEntry
	metadata = clamp(metadata, 2<<20, 16<<30)
	return roundUp(metadata, extentSize)
}

// thinPoolMetadataExtents returns the extent count of pool's metadata LV,
// derived from its size and (explicit or default) chunk size.
func thinPoolMetadataExtents(pool *device.Device, extentSize uint64) uint64 {
	if extentSize == 0 {
		return 0
	}
	return DefaultMetadataSize(pool.Region.ToBytes(), pool.LvChunk, extentSize) / extentSize
}

// NumberOfUsedExtents returns the extents consumed in vg: each LV's data
// extents, each thin pool's metadata extents, plus one spare metadata
// allocation per VG sized like the largest pool metadata. Thin LVs
// allocate from their pool, not from the VG.
func (g *Graph) NumberOfUsedExtents(vg *device.Device) uint64 {
	if !vg.IsLvmVg() || vg.ExtentSize == 0 {
		return 0
	}
	var used, spare uint64
	for _, lv := range g.Children(vg.SID, Filter{Kind: device.KindLvmLv}) {
		used += (lv.Region.ToBytes() + vg.ExtentSize - 1) / vg.ExtentSize
		if lv.LvType == device.LvThinPool {
			metadata := thinPoolMetadataExtents(lv, vg.ExtentSize)
			used += metadata
			if metadata > spare {
				spare = metadata
			}
		}
	}
	return used + spare
}

// NumberOfFreeExtents returns vg's extent budget minus NumberOfUsedExtents.
// The budget is vg's Region.Length (the VG region is expressed in extents).
func (g *Graph) NumberOfFreeExtents(vg *device.Device) uint64 {
	used := g.NumberOfUsedExtents(vg)
	if vg.Region.Length < used {
		return 0
	}
	return vg.Region.Length - used
}

// NewThinLv adds a thin LV under its owning thin pool (§3 "A thin LV is
// owned by its thin pool"). sizeExtents is the thin LV's logical size in
// VG extents; it may exceed the pool's own size (overcommit) but not
// MaxSizeForLvmLvThin.
func (g *Graph) NewThinLv(pool *device.Device, lvName string, sizeExtents uint64) (*device.Device, error) {
	if !pool.IsLvmLv() || pool.LvType != device.LvThinPool {
		return nil, errors.New(errors.KindDeviceHasWrongType, "%q is not a thin pool", pool.Name)
	}
	vgs := g.Parents(pool.SID, Filter{Kind: device.KindLvmVg})
	if len(vgs) != 1 {
		return nil, errors.New(errors.KindWrongNumberOfChildren, "thin pool %q has %d owning VGs, want 1", pool.LvName, len(vgs))
	}
	vg := vgs[0]
	if sizeExtents*vg.ExtentSize > MaxSizeForLvmLvThin(vg.ExtentSize) {
		return nil, errors.New(errors.KindMaxSizeForLvmLvThin, "thin lv %q size exceeds the %d byte lvm limit", lvName, maxLvmSize)
	}

	lv := device.New(device.KindLvmLv)
	lv.LvName = lvName
	lv.Name = vg.Name + "/" + lvName
	lv.LvType = device.LvThin
	lv.UUID = uuid.NewString()
	lv.Region = device.RegionAttrs{Start: 0, Length: sizeExtents, BlockSize: uint32(vg.ExtentSize)}
	g.AddDevice(lv)
	if err := g.AddHolder(holder.New(pool.SID, lv.SID)); err != nil {
		return nil, err
	}
	return lv, nil
}
