// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

// Package encryption carries the interactive passphrase-entry and
// validation helpers backing the device.Encryption variant (§3 "Encryption
// (Luks)"), kept separate from package device so the core graph package
// stays free of terminal I/O. Grounded on the teacher's
// storage/encrypt.go askPassPhrase/IsValidPassphrase/GetPassPhrase.
package encryption

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"unicode"

	"golang.org/x/crypto/ssh/terminal"

	"github.com/clearlinux/storage-engine/errors"
)

const (
	// MinPassphraseLength is the shortest passphrase accepted.
	MinPassphraseLength = 8
	// MaxPassphraseLength is the longest passphrase accepted.
	MaxPassphraseLength = 94

	// Hash is the LUKS hash algorithm this engine formats new volumes with.
	Hash = "sha256"
	// Cipher is the LUKS cipher this engine formats new volumes with.
	Cipher = "aes-xts-plain64"
	// KeySize is the LUKS key size, in bits, new volumes are formatted with.
	KeySize = 512
)

func isPrintable(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// IsValidPassphrase reports whether phrase satisfies the engine's LUKS
// passphrase policy, and a human-readable reason when it does not.
func IsValidPassphrase(phrase string) (bool, string) {
	switch {
	case phrase == "":
		return false, "passphrase is required"
	case !isPrintable(phrase):
		return false, "passphrase may only contain 7-bit, printable characters"
	case len(phrase) < MinPassphraseLength:
		return false, fmt.Sprintf("passphrase must be at least %d characters long", MinPassphraseLength)
	case len(phrase) > MaxPassphraseLength:
		return false, fmt.Sprintf("passphrase may be at most %d characters long", MaxPassphraseLength)
	}
	return true, ""
}

// askPassPhrase prompts prompt+": " on stdout and reads a line from stdin
// with echo disabled, restoring the terminal state if interrupted
// mid-read, the same SIGINT-safe idiom the teacher's askPassPhrase uses.
func askPassPhrase(prompt string, in, out *os.File) (string, error) {
	fd := int(in.Fd())
	state, err := terminal.GetState(fd)
	if err != nil {
		return "", errors.Wrap(err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT)
	defer signal.Stop(sig)
	go func() {
		if _, ok := <-sig; ok {
			_ = terminal.Restore(fd, state)
		}
	}()

	fmt.Fprintf(out, "%s: ", prompt)
	b, err := terminal.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", errors.Wrap(err)
	}
	return string(b), nil
}

// ReadPassphrase prompts the user twice (entry + confirmation) over r/w —
// normally os.Stdin/os.Stdout — and returns once both entries match and
// pass IsValidPassphrase, retrying on mismatch or an invalid phrase the
// same way the teacher's GetPassPhrase loop does.
func ReadPassphrase(r, w *os.File) (string, error) {
	for {
		first, err := askPassPhrase("Disk encryption passphrase", r, w)
		if err != nil {
			return "", err
		}
		second, err := askPassPhrase("Confirm passphrase", r, w)
		if err != nil {
			return "", err
		}

		if first != second {
			fmt.Fprintln(w, "Passphrases do not match, try again")
			continue
		}
		if ok, reason := IsValidPassphrase(first); !ok {
			fmt.Fprintln(w, reason)
			continue
		}
		return first, nil
	}
}

// ReadPassphraseFrom is a non-interactive variant for callers (tests,
// scripted installs) that already have the passphrase in a reader rather
// than a terminal: it reads a single line and validates it, without
// confirmation or echo suppression.
func ReadPassphraseFrom(r io.Reader) (string, error) {
	var line string
	if _, err := fmt.Fscanln(r, &line); err != nil {
		return "", errors.Wrap(err)
	}
	if ok, reason := IsValidPassphrase(line); !ok {
		return "", errors.ValidationErrorf("%s", reason)
	}
	return line, nil
}

// MappedName derives the cryptsetup luksOpen mapped device name, mirroring
// the teacher's MapEncrypted: "root" when mountPath is "/", otherwise the
// mount path with its leading slash dropped, remaining slashes turned
// into underscores, and letters lowercased.
func MappedName(mountPath string) string {
	if mountPath == "/" {
		return "root"
	}
	mapped := mountPath
	for len(mapped) > 0 && mapped[0] == '/' {
		mapped = mapped[1:]
	}
	out := make([]rune, 0, len(mapped))
	for _, r := range mapped {
		if r == '/' {
			out = append(out, '_')
			continue
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}
