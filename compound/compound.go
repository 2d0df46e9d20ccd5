// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

// Package compound groups the Actions in an action.Graph into
// per-target-device CompoundActions and renders a localised human-readable
// sentence for each, the way original_source's CompoundAction/Formatter
// classes describe a chain of primitive Actions as a single user-facing
// line rather than one line per Action (§4.E/G). Sentences name a device
// by its name only ("Create /dev/sda1"); they do not mention its kind or
// size.
package compound

import (
	"fmt"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"

	"github.com/clearlinux/storage-engine/action"
	"github.com/clearlinux/storage-engine/device"
)

// CompoundAction is every primitive action.Action that targets the same
// device, in commit order, plus the sentence a UI would show for it.
type CompoundAction struct {
	Target  device.SID
	Actions []*action.Action
}

// IsDelete reports whether this compound action's first (and therefore
// commit-ordering-earliest) primitive action is a Delete — original_source
// uses the same "first action decides the compound's overall verb" rule to
// classify a chain as a deletion for progress-bar and confirmation-dialog
// purposes.
func (c *CompoundAction) IsDelete() bool {
	if len(c.Actions) == 0 {
		return false
	}
	return c.Actions[0].Kind == action.Delete
}

// Group partitions every Action in ag into one CompoundAction per target
// device, preserving each device's actions in the order TopoOrder commits
// them.
func Group(ag *action.Graph) ([]*CompoundAction, error) {
	order, err := ag.TopoOrder()
	if err != nil {
		return nil, err
	}

	index := map[device.SID]*CompoundAction{}
	var out []*CompoundAction
	for _, id := range order {
		a := ag.Actions()[id]
		ca, ok := index[a.Target]
		if !ok {
			ca = &CompoundAction{Target: a.Target}
			index[a.Target] = ca
			out = append(out, ca)
		}
		ca.Actions = append(ca.Actions, a)
	}
	return out, nil
}

// ForTarget locates the CompoundAction whose Target is sid, if ag has been
// grouped and sid names one of its targets.
func ForTarget(ag *action.Graph, sid device.SID) (*CompoundAction, bool) {
	groups, err := Group(ag)
	if err != nil {
		return nil, false
	}
	for _, ca := range groups {
		if ca.Target == sid {
			return ca, true
		}
	}
	return nil, false
}

// locale is the gotext.Locale compound sentences are rendered through;
// SetLocale lets an embedding binary switch the translation domain/language,
// mirroring the teacher's utils.SetLocale entrypoint. The zero value (nil)
// falls back to English format strings via fmt.Sprintf.
var locale *gotext.Locale

// SetLocale configures the gettext domain and language compound sentences
// render through, loading translations from localeDir/lang/LC_MESSAGES. lang
// is first canonicalised through golang.org/x/text/language the way the
// teacher's own language package resolves a user-supplied locale tag before
// handing it to a translation lookup; an unparseable tag falls back to "en".
func SetLocale(localeDir, lang, domain string) {
	if tag, err := language.Parse(lang); err == nil {
		lang = tag.String()
	} else {
		lang = "en"
	}
	locale = gotext.NewLocale(localeDir, lang)
	locale.AddDomain(domain)
}

func tr(format string, a ...interface{}) string {
	if locale == nil {
		return fmt.Sprintf(format, a...)
	}
	return locale.Get(format, a...)
}

// Sentence renders a single human-readable line describing a, e.g. "Create
// /dev/sda1" or "Delete /dev/system/swap".
func Sentence(a *action.Action) string {
	switch a.Kind {
	case action.Create:
		return tr("Create %s", a.TargetName)
	case action.Delete:
		return tr("Delete %s", a.TargetName)
	case action.Modify:
		return tr("Modify %s", a.TargetName)
	case action.Resize:
		return tr("Resize %s", a.TargetName)
	case action.Reallot:
		if a.ReallotExtend {
			return tr("Add member to %s", a.TargetName)
		}
		return tr("Remove member from %s", a.TargetName)
	case action.Activate:
		return tr("Activate %s", a.TargetName)
	case action.Deactivate:
		return tr("Deactivate %s", a.TargetName)
	case action.SetPartitionID:
		return tr("Set id of partition %s to 0x%02x", a.TargetName, a.PartitionID)
	case action.SetBoot:
		return tr("Set boot flag of partition %s", a.TargetName)
	case action.SetLegacyBoot:
		return tr("Set legacy boot flag of partition %s", a.TargetName)
	case action.AddEtcMdadm:
		return tr("Add %s to /etc/mdadm.conf", a.TargetName)
	case action.Rename:
		return tr("Rename %s to %s", a.TargetName, a.NewName)
	case action.TmpMount:
		return tr("Temporarily mount %s", a.TargetName)
	case action.TmpUnmount:
		return tr("Temporarily unmount %s", a.TargetName)
	case action.Mount:
		return tr("Mount %s at %s", a.TargetName, a.MountPath)
	case action.Unmount:
		return tr("Unmount %s", a.TargetName)
	default:
		return tr("%s %s", a.Kind, a.TargetName)
	}
}

// Sentence renders the combined, single-line description of every primitive
// action in c, joined in commit order — e.g. "Create /dev/sda1;
// Set id of partition /dev/sda1 to 0x8e".
func (c *CompoundAction) Sentence() string {
	var out string
	for i, a := range c.Actions {
		if i > 0 {
			out += "; "
		}
		out += Sentence(a)
	}
	return out
}
