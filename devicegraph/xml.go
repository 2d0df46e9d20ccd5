// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

package devicegraph

import (
	"encoding/xml"
	"io"

	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/errors"
	"github.com/clearlinux/storage-engine/holder"
)

// No example in the retrieval pack imports a third-party XML library (or
// encoding/xml itself) — this module's entire XML surface is the §6 "XML
// devicegraph format" contract, so there is no precedent to follow for an
// alternative. The Go ecosystem also has no library as dominant for XML as
// gopkg.in/yaml.v2 is for YAML, so this one concern is implemented on the
// standard library's encoding/xml and recorded as such in DESIGN.md.

// xmlDoc is the root element; each Device becomes one <device> element
// carrying its classname as an attribute, and each Holder one <holder>
// element. Attribute defaults are omitted via omitempty so the format
// stays self-describing without redundant zero values (§6).
type xmlDoc struct {
	XMLName xml.Name    `xml:"devicegraph"`
	Devices []xmlDevice `xml:"device"`
	Holders []xmlHolder `xml:"holder"`
}

type xmlDevice struct {
	Classname string     `xml:"classname,attr"`
	SID       device.SID `xml:"sid,attr"`

	Name        string   `xml:"name,omitempty"`
	SysfsName   string   `xml:"sysfs_name,omitempty"`
	SysfsPath   string   `xml:"sysfs_path,omitempty"`
	Active      bool     `xml:"active,omitempty"`
	Start       uint64   `xml:"region_start,omitempty"`
	Length      uint64   `xml:"region_length,omitempty"`
	BlockSize   uint32   `xml:"region_block_size,omitempty"`
	UdevPaths   []string `xml:"udev_path,omitempty"`
	UdevIDs     []string `xml:"udev_id,omitempty"`
	DMTableName string   `xml:"dm_table_name,omitempty"`

	AlignmentOffset int64  `xml:"alignment_offset,omitempty"`
	OptimalIOSize   uint64 `xml:"optimal_io_size,omitempty"`
	Range           uint32 `xml:"range,omitempty"`

	Rotational bool `xml:"rotational,omitempty"`
	Transport  int  `xml:"transport,omitempty"`

	ReadOnly   bool `xml:"read_only,omitempty"`
	GptEnlarge bool `xml:"gpt_enlarge,omitempty"`

	PartitionType int  `xml:"partition_type,omitempty"`
	PartitionID   int  `xml:"partition_id,omitempty"`
	Number        int  `xml:"number,omitempty"`
	Boot          bool `xml:"boot,omitempty"`
	LegacyBoot    bool `xml:"legacy_boot,omitempty"`

	MdLevel        int    `xml:"md_level,omitempty"`
	Parity         int    `xml:"parity,omitempty"`
	ChunkSizeBytes uint64 `xml:"chunk_size_bytes,omitempty"`

	VgName     string `xml:"vg_name,omitempty"`
	ExtentSize uint64 `xml:"extent_size,omitempty"`
	UUID       string `xml:"uuid,omitempty"`

	LvName     string `xml:"lv_name,omitempty"`
	LvType     int    `xml:"lv_type,omitempty"`
	Stripes    int    `xml:"stripes,omitempty"`
	StripeSize uint64 `xml:"stripe_size,omitempty"`
	LvChunk    uint64 `xml:"lv_chunk_size,omitempty"`

	CsetUUID     string `xml:"cset_uuid,omitempty"`
	KernelNumber int    `xml:"kernel_number,omitempty"`

	EncType       int      `xml:"enc_type,omitempty"`
	Password      string   `xml:"password,omitempty"`
	KeyFile       string   `xml:"key_file,omitempty"`
	MountBy       int      `xml:"mount_by,omitempty"`
	CryptOptions  []string `xml:"crypt_option,omitempty"`
	InEtcCrypttab bool     `xml:"in_etc_crypttab,omitempty"`

	Label string `xml:"label,omitempty"`

	MountPath    string   `xml:"mount_path,omitempty"`
	MountOptions []string `xml:"mount_option,omitempty"`
	FsckPass     int      `xml:"fsck_pass,omitempty"`
	DumpPass     int      `xml:"dump_pass,omitempty"`
}

type xmlHolder struct {
	Kind    string     `xml:"kind,attr"`
	Parent  device.SID `xml:"parent,attr"`
	Child   device.SID `xml:"child,attr"`
	Spare   bool       `xml:"spare,omitempty"`
	Faulty  bool       `xml:"faulty,omitempty"`
	Journal bool       `xml:"journal,omitempty"`
}

func toXMLDevice(d *device.Device) xmlDevice {
	return xmlDevice{
		Classname:       d.Classname(),
		SID:             d.SID,
		Name:            d.Name,
		SysfsName:       d.SysfsName,
		SysfsPath:       d.SysfsPath,
		Active:          d.Active,
		Start:           d.Region.Start,
		Length:          d.Region.Length,
		BlockSize:       d.Region.BlockSize,
		UdevPaths:       d.UdevPaths,
		UdevIDs:         d.UdevIDs,
		DMTableName:     d.DMTableName,
		AlignmentOffset: d.Topology.AlignmentOffset,
		OptimalIOSize:   d.Topology.OptimalIOSize,
		Range:           d.Range,
		Rotational:      d.Rotational,
		Transport:       int(d.Transport),
		ReadOnly:        d.ReadOnly,
		GptEnlarge:      d.GptEnlarge,
		PartitionType:   int(d.PartitionType),
		PartitionID:     d.PartitionID,
		Number:          d.Number,
		Boot:            d.Boot,
		LegacyBoot:      d.LegacyBoot,
		MdLevel:         int(d.MdLevel),
		Parity:          d.Parity,
		ChunkSizeBytes:  d.ChunkSizeBytes,
		VgName:          d.VgName,
		ExtentSize:      d.ExtentSize,
		UUID:            d.UUID,
		LvName:          d.LvName,
		LvType:          int(d.LvType),
		Stripes:         d.Stripes,
		StripeSize:      d.StripeSize,
		LvChunk:         d.LvChunk,
		CsetUUID:        d.CsetUUID,
		KernelNumber:    d.KernelNumber,
		EncType:         int(d.EncType),
		Password:        d.Password,
		KeyFile:         d.KeyFile,
		MountBy:         int(d.MountBy),
		CryptOptions:    d.CryptOptions,
		InEtcCrypttab:   d.InEtcCrypttab,
		Label:           d.Label,
		MountPath:       d.MountPath,
		MountOptions:    d.MountOptions,
		FsckPass:        d.FsckPass,
		DumpPass:        d.DumpPass,
	}
}

var classnameToKind = func() map[string]device.Kind {
	m := make(map[string]device.Kind)
	for _, k := range []device.Kind{
		device.KindDisk, device.KindGpt, device.KindMsdos, device.KindDasdPt, device.KindImplicitPt,
		device.KindPartition, device.KindMd, device.KindLvmVg, device.KindLvmLv, device.KindBcacheCset,
		device.KindBcache, device.KindEncryption, device.KindBtrfs, device.KindExt2, device.KindExt3,
		device.KindExt4, device.KindXfs, device.KindSwap, device.KindNfs, device.KindMountPoint,
	} {
		m[k.Classname()] = k
	}
	return m
}()

func fromXMLDevice(x xmlDevice) (*device.Device, error) {
	kind, ok := classnameToKind[x.Classname]
	if !ok {
		return nil, errors.New(errors.KindDeviceHasWrongType, "unknown device classname %q", x.Classname)
	}

	return &device.Device{
		SID:            x.SID,
		Kind:           kind,
		Name:           x.Name,
		SysfsName:      x.SysfsName,
		SysfsPath:      x.SysfsPath,
		Active:         x.Active,
		Region:         device.RegionAttrs{Start: x.Start, Length: x.Length, BlockSize: x.BlockSize},
		UdevPaths:      x.UdevPaths,
		UdevIDs:        x.UdevIDs,
		DMTableName:    x.DMTableName,
		Topology:       device.TopologyAttrs{AlignmentOffset: x.AlignmentOffset, OptimalIOSize: x.OptimalIOSize},
		Range:          x.Range,
		Rotational:     x.Rotational,
		Transport:      device.Transport(x.Transport),
		ReadOnly:       x.ReadOnly,
		GptEnlarge:     x.GptEnlarge,
		PartitionType:  device.PartitionType(x.PartitionType),
		PartitionID:    x.PartitionID,
		Number:         x.Number,
		Boot:           x.Boot,
		LegacyBoot:     x.LegacyBoot,
		MdLevel:        device.MdLevel(x.MdLevel),
		Parity:         x.Parity,
		ChunkSizeBytes: x.ChunkSizeBytes,
		VgName:         x.VgName,
		ExtentSize:     x.ExtentSize,
		UUID:           x.UUID,
		LvName:         x.LvName,
		LvType:         device.LvType(x.LvType),
		Stripes:        x.Stripes,
		StripeSize:     x.StripeSize,
		LvChunk:        x.LvChunk,
		CsetUUID:       x.CsetUUID,
		KernelNumber:   x.KernelNumber,
		EncType:        device.EncryptionType(x.EncType),
		Password:       x.Password,
		KeyFile:        x.KeyFile,
		MountBy:        device.MountByType(x.MountBy),
		CryptOptions:   x.CryptOptions,
		InEtcCrypttab:  x.InEtcCrypttab,
		Label:          x.Label,
		MountPath:      x.MountPath,
		MountOptions:   x.MountOptions,
		FsckPass:       x.FsckPass,
		DumpPass:       x.DumpPass,
	}, nil
}

// Save writes g to w in the §6 XML devicegraph format.
func (g *Graph) Save(w io.Writer) error {
	doc := xmlDoc{}
	for _, sid := range g.order {
		doc.Devices = append(doc.Devices, toXMLDevice(g.devices[sid]))
	}
	for _, h := range g.holders {
		doc.Holders = append(doc.Holders, xmlHolder{
			Kind: h.Kind.String(), Parent: h.Parent, Child: h.Child,
			Spare: h.Spare, Faulty: h.Faulty, Journal: h.Journal,
		})
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err)
	}
	return nil
}

var classnameFromHolderKind = map[string]holder.Kind{
	"Subdevice":      holder.Subdevice,
	"User":           holder.User,
	"MdUser":         holder.MdUser,
	"FilesystemUser": holder.FilesystemUser,
}

// Load parses a devicegraph previously produced by Save. SIDs are
// preserved so that the loaded graph can be diffed against a live one by
// identity.
func Load(r io.Reader) (*Graph, error) {
	var doc xmlDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err)
	}

	g := New()
	g.devices = make(map[device.SID]*device.Device, len(doc.Devices))
	for _, xd := range doc.Devices {
		d, err := fromXMLDevice(xd)
		if err != nil {
			return nil, err
		}
		if err := g.AddDeviceWithSID(d); err != nil {
			return nil, err
		}
		bumpSIDCounter(d.SID)
	}
	for _, xh := range doc.Holders {
		kind, ok := classnameFromHolderKind[xh.Kind]
		if !ok {
			return nil, errors.New(errors.KindDeviceHasWrongType, "unknown holder kind %q", xh.Kind)
		}
		if err := g.AddHolder(holder.Holder{Kind: kind, Parent: xh.Parent, Child: xh.Child, Spare: xh.Spare, Faulty: xh.Faulty, Journal: xh.Journal}); err != nil {
			return nil, err
		}
	}
	return g, nil
}
