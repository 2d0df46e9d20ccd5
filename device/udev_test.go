// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package device

import (
	"reflect"
	"testing"
)

func TestProcessUdevIDsFiltersAndOrdersAtaFirst(t *testing.T) {
	d := New(KindDisk)
	d.UdevIDs = []string{
		"wwn-0x5000c500a1b2c3d4",
		"ata-WDC_WD10EZEX-00BN5A0_WD-WCC3F0123456",
		"edd-int13_dev80",
		"scsi-35000c500a1b2c3d4",
		"ata-WDC_WD10EZEX-00BN5A0",
	}
	d.ProcessUdevIDs([]string{"ata-", "scsi-", "usb-", "wwn-", "nvme-"})

	want := []string{
		"ata-WDC_WD10EZEX-00BN5A0_WD-WCC3F0123456",
		"ata-WDC_WD10EZEX-00BN5A0",
		"wwn-0x5000c500a1b2c3d4",
		"scsi-35000c500a1b2c3d4",
	}
	if !reflect.DeepEqual(d.UdevIDs, want) {
		t.Fatalf("udev ids = %v, want %v", d.UdevIDs, want)
	}
}

func TestProcessUdevPathsRetainsAllowedPrefixes(t *testing.T) {
	d := New(KindDisk)
	d.UdevPaths = []string{
		"pci-0000:00:17.0-ata-1",
		"acpi-PNP0A08:00",
		"ccw-0.0.0150",
	}
	d.ProcessUdevPaths([]string{"scsi-", "pci-", "ccw-"})

	want := []string{"pci-0000:00:17.0-ata-1", "ccw-0.0.0150"}
	if !reflect.DeepEqual(d.UdevPaths, want) {
		t.Fatalf("udev paths = %v, want %v", d.UdevPaths, want)
	}
}
