// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package devicegraph

import (
	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/region"
)

// ToRegion converts a Device's stored region attributes into a region.Region
// so that callers outside this package can use the full region/topology
// algebra without device needing to import region itself.
func ToRegion(r device.RegionAttrs) region.Region {
	return region.New(r.Start, r.Length, r.BlockSize)
}

// FromRegion converts a region.Region back into the attributes stored on a
// Device.
func FromRegion(r region.Region) device.RegionAttrs {
	return device.RegionAttrs{Start: r.Start, Length: r.Length, BlockSize: r.BlockSize}
}

// ToTopology converts a Device's stored topology attributes into a
// region.Topology.
func ToTopology(t device.TopologyAttrs) region.Topology {
	return region.Topology{AlignmentOffset: t.AlignmentOffset, OptimalIOSize: t.OptimalIOSize}
}

// FromTopology converts a region.Topology back into the attributes stored
// on a Device.
func FromTopology(t region.Topology) device.TopologyAttrs {
	return device.TopologyAttrs{AlignmentOffset: t.AlignmentOffset, OptimalIOSize: t.OptimalIOSize}
}
