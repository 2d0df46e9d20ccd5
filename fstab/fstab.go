// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

// Package fstab reads and writes /etc/fstab (§6), preserving comments and
// blank lines, and normalises mount order so that a mount point is never
// listed before the mount point it nests under (§8 scenario 4). Grounded on
// original_source's storage/EtcFstab.cc, expressed in the teacher's
// plain-struct-plus-method style rather than the original's FstabEntry
// class hierarchy.
package fstab

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/clearlinux/storage-engine/device"
	"github.com/clearlinux/storage-engine/errors"
)

// Entry is one fstab record: the six whitespace-separated columns
// `device mount_point fs_type options dump_pass fsck_pass`.
type Entry struct {
	Device     string
	MountPoint string
	FsType     string
	Options    []string
	DumpPass   int
	FsckPass   int
}

// line is either a parsed Entry or a verbatim comment/blank line, kept in
// file order so Save can round-trip untouched lines exactly.
type line struct {
	entry *Entry
	raw   string
}

// Table is an in-memory /etc/fstab, preserving non-entry lines for
// round-trip writing.
type Table struct {
	lines []line
}

// Entries returns every parsed Entry in file order.
func (t *Table) Entries() []*Entry {
	var out []*Entry
	for _, l := range t.lines {
		if l.entry != nil {
			out = append(out, l.entry)
		}
	}
	return out
}

// Add appends a new Entry at the end of the table.
func (t *Table) Add(e *Entry) {
	t.lines = append(t.lines, line{entry: e})
}

// encodeField escapes a space as the octal sequence \040, the fstab
// convention for embedding a space in a device path or mount point (§6).
func encodeField(s string) string {
	return strings.ReplaceAll(s, " ", `\040`)
}

// decodeField reverses encodeField.
func decodeField(s string) string {
	return strings.ReplaceAll(s, `\040`, " ")
}

// parseOptions splits the comma-separated option column; the literal token
// "defaults" denotes the empty option set (§6).
func parseOptions(s string) []string {
	if s == "" || s == "defaults" {
		return nil
	}
	return strings.Split(s, ",")
}

// formatOptions is parseOptions's inverse.
func formatOptions(opts []string) string {
	if len(opts) == 0 {
		return "defaults"
	}
	return strings.Join(opts, ",")
}

// Parse reads an fstab-formatted stream, preserving comments and blank
// lines for Save to reproduce verbatim.
func Parse(r io.Reader) (*Table, error) {
	t := &Table{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			t.lines = append(t.lines, line{raw: raw})
			continue
		}

		fields := strings.Fields(trimmed)
		if len(fields) < 4 {
			return nil, errors.Errorf("fstab: malformed line %q", raw)
		}

		e := &Entry{
			Device:     decodeField(fields[0]),
			MountPoint: decodeField(fields[1]),
			FsType:     fields[2],
			Options:    parseOptions(fields[3]),
		}
		if len(fields) > 4 {
			if _, err := fmt.Sscanf(fields[4], "%d", &e.DumpPass); err != nil {
				return nil, errors.Errorf("fstab: invalid dump pass in %q", raw)
			}
		}
		if len(fields) > 5 {
			if _, err := fmt.Sscanf(fields[5], "%d", &e.FsckPass); err != nil {
				return nil, errors.Errorf("fstab: invalid fsck pass in %q", raw)
			}
		}

		t.lines = append(t.lines, line{entry: e})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err)
	}
	return t, nil
}

// Save writes t back out, reproducing every comment/blank line untouched
// and formatting each Entry into the canonical six-column layout with
// tab-separated fields, matching the original writer's alignment-free
// format.
func (t *Table) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, l := range t.lines {
		if l.entry == nil {
			if _, err := fmt.Fprintln(bw, l.raw); err != nil {
				return errors.Wrap(err)
			}
			continue
		}
		e := l.entry
		_, err := fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%d\t%d\n",
			encodeField(e.Device), encodeField(e.MountPoint), e.FsType,
			formatOptions(e.Options), e.DumpPass, e.FsckPass)
		if err != nil {
			return errors.Wrap(err)
		}
	}
	return bw.Flush()
}

// mountByPrefixes lists, in priority order, the device-name prefixes §6
// recognises for deriving a MountByType. The first matching prefix wins.
var mountByPrefixes = []struct {
	prefix string
	by     device.MountByType
}{
	{"UUID=", device.MountByUUID},
	{"/dev/disk/by-uuid/", device.MountByUUID},
	{"LABEL=", device.MountByLabel},
	{"/dev/disk/by-label/", device.MountByLabel},
	{"/dev/disk/by-id/", device.MountByID},
	{"/dev/disk/by-path/", device.MountByPath},
}

// MountByTypeOf classifies an fstab device-column string per §6's prefix
// table, defaulting to MountByDevice when no recognised prefix matches.
func MountByTypeOf(deviceField string) device.MountByType {
	for _, m := range mountByPrefixes {
		if strings.HasPrefix(deviceField, m.prefix) {
			return m.by
		}
	}
	return device.MountByDevice
}

// isUnder reports whether mount point b properly nests under mount point
// a (b == a+"/"+suffix). The root mount point "/" nests everything except
// itself, since "/" + "/x" collapses the doubled slash.
func isUnder(a, b string) bool {
	if a == b {
		return false
	}
	if a == "/" {
		return strings.HasPrefix(b, "/") && b != "/"
	}
	return strings.HasPrefix(b, a+"/")
}

// CheckMountOrder reports whether every entry's mount point appears after
// every mount point it nests under (§6 "Mount-order rule", §8 property): a
// violation is any pair where the ancestor mount point sits at a later
// position than one of its descendants.
func (t *Table) CheckMountOrder() bool {
	entries := t.Entries()
	for i := range entries {
		for j := 0; j < i; j++ {
			if isUnder(entries[i].MountPoint, entries[j].MountPoint) {
				return false
			}
		}
	}
	return true
}

// FixMountOrder repeatedly takes the first out-of-order entry — scanning
// positions ascending, the first entry that is the ancestor of some entry
// earlier than it — and reinserts it immediately before the earliest such
// descendant, terminating in O(n^2) even when several entries share one
// mount point (§6, §8 scenario 4). Re-ordering only ever touches Entry
// lines; interleaved comments keep their absolute position relative to the
// entries around them by being left untouched while entries move as a
// dense subsequence.
func (t *Table) FixMountOrder() {
	entries := t.Entries()

	for {
		fixed := false
		for i := 0; i < len(entries) && !fixed; i++ {
			for j := 0; j < i; j++ {
				if !isUnder(entries[i].MountPoint, entries[j].MountPoint) {
					continue
				}
				e := entries[i]
				entries = append(entries[:i], entries[i+1:]...)
				entries = append(entries[:j], append([]*Entry{e}, entries[j:]...)...)
				fixed = true
				break
			}
		}
		if !fixed {
			break
		}
	}

	t.setEntryOrder(entries)
}

// setEntryOrder rewrites t.lines' Entry lines to match order, leaving
// every comment/blank line in its original relative slot.
func (t *Table) setEntryOrder(order []*Entry) {
	i := 0
	for idx, l := range t.lines {
		if l.entry != nil {
			t.lines[idx].entry = order[i]
			i++
		}
	}
}
