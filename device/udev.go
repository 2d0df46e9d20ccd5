// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package device

import "strings"

func filterByPrefix(values, prefixes []string) []string {
	var out []string
	for _, v := range values {
		for _, p := range prefixes {
			if strings.HasPrefix(v, p) {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

// ProcessUdevIDs filters d's udev ids to those carrying an allowed
// prefix and stably moves "ata-" ids ahead of the rest, preserving the
// relative order within each group. The prefix table comes from the
// engine configuration; engconf.Default() carries the built-in set
// (ata-, scsi-, usb-, wwn-, nvme-).
func (d *Device) ProcessUdevIDs(prefixes []string) {
	kept := filterByPrefix(d.UdevIDs, prefixes)
	var ata, rest []string
	for _, id := range kept {
		if strings.HasPrefix(id, "ata-") {
			ata = append(ata, id)
		} else {
			rest = append(rest, id)
		}
	}
	d.UdevIDs = append(ata, rest...)
}

// ProcessUdevPaths retains only the udev paths carrying an allowed
// prefix (built-in set: scsi-, pci-, ccw-), preserving order.
func (d *Device) ProcessUdevPaths(prefixes []string) {
	d.UdevPaths = filterByPrefix(d.UdevPaths, prefixes)
}
