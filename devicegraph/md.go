// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package devicegraph

import (
	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/holder"
)

const (
	mdDefaultChunkBytes = 512 * 1024
	mdRaid1ChunkBytes   = 64 * 1024
	fourKiB             = 4 * 1024
	eightKiB            = 8 * 1024
)

// memberUsableBytes computes one member's contribution to an Md array's
// capacity: its size rounded down to 4 KiB, minus an 8 KiB superblock/
// bitmap reservation, then rounded down to a whole number of chunks
// (§4.C "Md").
func memberUsableBytes(member *device.Device, chunkBytes uint64) uint64 {
	size := member.Region.ToBytes()
	size -= size % fourKiB
	if size < eightKiB {
		return 0
	}
	size -= eightKiB
	if chunkBytes == 0 {
		return size
	}
	return size - size%chunkBytes
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// RecalculateMdGeometry derives md's region and topology from its current
// non-spare members, per the per-level formulas in §4.C. Below the minimum
// member count for md's level it sets a zero-size region and a zero
// optimal I/O size.
func (g *Graph) RecalculateMdGeometry(md *device.Device) {
	chunkBytes := md.ChunkSizeBytes
	if chunkBytes == 0 {
		chunkBytes = mdDefaultChunkBytes
	}
	if md.MdLevel == device.MdRaid1 {
		chunkBytes = mdRaid1ChunkBytes
	}

	var members []*device.Device
	for _, h := range g.holders {
		if h.Kind != holder.MdUser || h.Child != md.SID || h.Spare || h.Faulty {
			continue
		}
		if m, err := g.FindBySID(h.Parent); err == nil {
			members = append(members, m)
		}
	}
	n := uint64(len(members))

	usable := make([]uint64, len(members))
	for i, m := range members {
		usable[i] = memberUsableBytes(m, chunkBytes)
	}

	sum := func() uint64 {
		var s uint64
		for _, u := range usable {
			s += u
		}
		return s
	}
	min := func() uint64 {
		if len(usable) == 0 {
			return 0
		}
		m := usable[0]
		for _, u := range usable[1:] {
			m = minUint64(m, u)
		}
		return m
	}

	var sizeBytes, optIO uint64

	switch md.MdLevel {
	case device.MdRaid0:
		if n >= 2 {
			sizeBytes = sum()
			optIO = chunkBytes * n
		}
	case device.MdRaid1:
		if n >= 2 {
			sizeBytes = min()
			optIO = 32 * 1024
		}
	case device.MdRaid5:
		if n >= 3 {
			sizeBytes = min() * (n - 1)
			optIO = chunkBytes * (n - 1)
		}
	case device.MdRaid6:
		if n >= 4 {
			sizeBytes = min() * (n - 2)
			optIO = chunkBytes * (n - 2)
		}
	case device.MdRaid10:
		if n >= 2 {
			sizeBytes = min() * n / 2
			optIO = chunkBytes * n / 2
			if n%2 != 0 {
				optIO *= 2
			}
		}
	}

	blockSize := uint32(512)
	if len(members) > 0 && members[0].Region.BlockSize != 0 {
		blockSize = members[0].Region.BlockSize
	}

	md.Region = device.RegionAttrs{Start: 0, Length: sizeBytes / uint64(blockSize), BlockSize: blockSize}
	md.Topology = device.TopologyAttrs{OptimalIOSize: optIO}
}
