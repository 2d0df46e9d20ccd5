// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package devicegraph

import (
	"fmt"
	"strings"

	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/errors"
)

// partitionTableFor returns the PartitionTable owning part.
func (g *Graph) partitionTableFor(part *device.Device) (*device.Device, error) {
	parents := g.Parents(part.SID, Filter{})
	for _, p := range parents {
		if p.IsPartitionTable() {
			return p, nil
		}
		if p.IsPartition() && p.PartitionType == device.PartitionTypeExtended {
			return g.partitionTableFor(p)
		}
	}
	return nil, errors.New(errors.KindDeviceNotFoundBySid, "partition %q has no owning partition table", part.Name)
}

// SetPartitionID validates id against the owning table's capabilities and
// sets it (§4.C "On set_id/set_boot/set_legacy_boot, the table type is
// consulted").
func (g *Graph) SetPartitionID(partSID device.SID, id int) error {
	part, err := g.FindBySID(partSID)
	if err != nil {
		return err
	}
	table, err := g.partitionTableFor(part)
	if err != nil {
		return err
	}
	if !table.IsPartitionIDSupported(id) {
		return device.ErrUnsupportedFeature("partition id", table.Kind)
	}
	part.PartitionID = id
	return nil
}

// SetPartitionBoot sets part's boot flag; when turning it on, every other
// partition in the same table has its boot flag cleared (§4.C, §8
// scenario 5).
func (g *Graph) SetPartitionBoot(partSID device.SID, on bool) error {
	part, err := g.FindBySID(partSID)
	if err != nil {
		return err
	}
	table, err := g.partitionTableFor(part)
	if err != nil {
		return err
	}
	if !table.IsPartitionBootFlagSupported() {
		return device.ErrUnsupportedFeature("boot flag", table.Kind)
	}

	if on {
		for _, sibling := range g.Children(table.SID, Filter{Kind: device.KindPartition}) {
			if sibling.SID != partSID {
				sibling.Boot = false
			}
		}
		for _, logical := range g.partitionsUnderExtended(table) {
			if logical.SID != partSID {
				logical.Boot = false
			}
		}
	}
	part.Boot = on
	return nil
}

// SetPartitionLegacyBoot sets part's GPT-only legacy BIOS bootable flag.
func (g *Graph) SetPartitionLegacyBoot(partSID device.SID, on bool) error {
	part, err := g.FindBySID(partSID)
	if err != nil {
		return err
	}
	table, err := g.partitionTableFor(part)
	if err != nil {
		return err
	}
	if !table.IsPartitionLegacyBootFlagSupported() {
		return device.ErrUnsupportedFeature("legacy boot flag", table.Kind)
	}
	part.LegacyBoot = on
	return nil
}

// partitionSuffix joins a base device name and a partition number the way
// the kernel does: "sda" -> "sda3", but "nvme0n1" -> "nvme0n1p3".
func partitionSuffix(base string, number int) string {
	if base != "" && base[len(base)-1] >= '0' && base[len(base)-1] <= '9' {
		return fmt.Sprintf("%sp%d", base, number)
	}
	return fmt.Sprintf("%s%d", base, number)
}

// regenerateDerivedNames rebuilds part's name, sysfs name/path and udev
// ids/paths from its owning Partitionable's corresponding properties plus
// the partition number (§4.C "Partition": suffix the parent's property
// with the partition number, format sdaN or /...-partN).
func regenerateDerivedNames(parent, part *device.Device) {
	part.Name = partitionSuffix(parent.Name, part.Number)
	part.SysfsName = partitionSuffix(parent.SysfsName, part.Number)
	if parent.SysfsPath != "" {
		part.SysfsPath = parent.SysfsPath + "/" + part.SysfsName
	}
	part.UdevPaths = part.UdevPaths[:0]
	for _, p := range parent.UdevPaths {
		part.UdevPaths = append(part.UdevPaths, fmt.Sprintf("%s-part%d", p, part.Number))
	}
	part.UdevIDs = part.UdevIDs[:0]
	for _, id := range parent.UdevIDs {
		part.UdevIDs = append(part.UdevIDs, fmt.Sprintf("%s-part%d", id, part.Number))
	}
}

// RenamePartitionable renames a Partitionable and propagates the new
// base name into every partition under its table, primaries and logicals
// alike.
func (g *Graph) RenamePartitionable(diskSID device.SID, newName string) error {
	disk, err := g.FindBySID(diskSID)
	if err != nil {
		return err
	}
	if !disk.IsPartitionable() {
		return errors.New(errors.KindDeviceHasWrongType, "%q is not partitionable", disk.Name)
	}
	disk.Name = newName
	disk.SysfsName = strings.TrimPrefix(newName, "/dev/")

	for _, table := range g.Children(diskSID, Filter{}) {
		if !table.IsPartitionTable() {
			continue
		}
		parts := g.Children(table.SID, Filter{Kind: device.KindPartition})
		parts = append(parts, g.partitionsUnderExtended(table)...)
		for _, p := range parts {
			regenerateDerivedNames(disk, p)
		}
	}
	return nil
}

// SetPartitionNumber renumbers part and regenerates its derived names
// from the owning Partitionable. The number must not already be taken by
// another partition on the same table, logicals included.
func (g *Graph) SetPartitionNumber(partSID device.SID, number int) error {
	part, err := g.FindBySID(partSID)
	if err != nil {
		return err
	}
	table, err := g.partitionTableFor(part)
	if err != nil {
		return err
	}
	siblings := g.Children(table.SID, Filter{Kind: device.KindPartition})
	siblings = append(siblings, g.partitionsUnderExtended(table)...)
	for _, sibling := range siblings {
		if sibling.SID != partSID && sibling.Number == number {
			return errors.New(errors.KindInvalidName, "partition number %d already taken by %q on table %q", number, sibling.Name, table.Name)
		}
	}
	disks := g.Parents(table.SID, Filter{})
	if len(disks) != 1 {
		return errors.New(errors.KindWrongNumberOfChildren, "partition table has %d parents, want 1", len(disks))
	}
	part.Number = number
	regenerateDerivedNames(disks[0], part)
	return nil
}

func (g *Graph) partitionsUnderExtended(table *device.Device) []*device.Device {
	var out []*device.Device
	for _, ext := range g.Children(table.SID, Filter{Kind: device.KindPartition}) {
		if ext.PartitionType == device.PartitionTypeExtended {
			out = append(out, g.Children(ext.SID, Filter{Kind: device.KindPartition})...)
		}
	}
	return out
}
