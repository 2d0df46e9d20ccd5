// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

// Package engconf holds the engine-wide tunables that the original
// implementation carried as compiled-in constants: the device-directory
// prefix a BlkDevice name must begin with (§3), the udev-id/udev-path
// prefix allow-lists Disk.process_udev_ids/process_udev_paths consult
// (§4.C), a default AlignPolicy, and a default TargetMode (§4.C "Disk").
// No other package reads an EngineConfig: parttable takes the AlignPolicy
// as an argument, actiongraph.Build always uses TargetModeSystem, and
// Device.ProcessUdevIDs/ProcessUdevPaths take their prefix lists as
// arguments. Grounded on the
// teacher's conf/conf.go lookup-path idiom and storage.go's YAML marshal
// structs, repurposed from an install descriptor to engine tunables.
package engconf

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/clearlinux/storage-engine/errors"
	"github.com/clearlinux/storage-engine/utils"
)

var validAlignPolicies = []string{"ALIGN_END", "KEEP_SIZE", "KEEP_END"}
var validTargetModes = []string{string(TargetModeSystem), string(TargetModeImage)}

// TargetMode selects how permissive the planner is about Disk create/
// delete actions (§4.C "Disk"): ordinarily both are rejected, but
// TargetModeImage allows both (e.g. building a devicegraph for a fresh
// disk image rather than an existing one).
type TargetMode string

const (
	TargetModeSystem TargetMode = "SYSTEM"
	TargetModeImage  TargetMode = "IMAGE"
)

// EnvFile is the environment variable an embedder can set to point at a
// config file explicitly, bypassing the source-tree/installed-path search
// order LookupDefaultFile uses.
const EnvFile = "STORAGE_ENGINE_CONFIG"

// ConfigFile is the default config file name, mirroring the teacher's
// ConfigFile constant.
const ConfigFile = "storage-engine.yaml"

// DefaultConfigDir is the system-wide default configuration directory,
// consulted when the binary is not running from its source tree.
const DefaultConfigDir = "/usr/share/defaults/storage-engine"

// EngineConfig holds every engine-wide default. Zero value is invalid;
// use Default() or Load().
type EngineConfig struct {
	DeviceDirPrefix  string     `yaml:"device_dir_prefix"`
	UdevIDPrefixes   []string   `yaml:"udev_id_prefixes"`
	UdevPathPrefixes []string   `yaml:"udev_path_prefixes"`
	DefaultAlign     string     `yaml:"default_align_policy"`
	DefaultMode      TargetMode `yaml:"default_target_mode"`
}

// Default returns the built-in defaults, matching §4.C's process_udev_ids
// (ata- first, then scsi-/usb-/wwn-/nvme-) and process_udev_paths
// (scsi-, pci-, ccw-) prefix tables.
func Default() *EngineConfig {
	return &EngineConfig{
		DeviceDirPrefix:  "/dev/",
		UdevIDPrefixes:   []string{"ata-", "scsi-", "usb-", "wwn-", "nvme-"},
		UdevPathPrefixes: []string{"scsi-", "pci-", "ccw-"},
		DefaultAlign:     "ALIGN_END",
		DefaultMode:      TargetModeSystem,
	}
}

// Load reads an EngineConfig from a YAML file at path, filling in any
// field the file omits from Default().
func Load(path string) (*EngineConfig, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err)
	}

	if !utils.StringSliceContains(validAlignPolicies, cfg.DefaultAlign) {
		return nil, errors.Errorf("%s: unknown default_align_policy %q", path, cfg.DefaultAlign)
	}
	if !utils.StringSliceContains(validTargetModes, string(cfg.DefaultMode)) {
		return nil, errors.Errorf("%s: unknown default_target_mode %q", path, cfg.DefaultMode)
	}
	return cfg, nil
}

// isRunningFromSourceTree mirrors the teacher's conf.isRunningFromSourceTree:
// an installed binary lives under /usr/bin, a development build does not.
func isRunningFromSourceTree() (bool, string, error) {
	src, err := os.Executable()
	if err != nil {
		return false, "", errors.Wrap(err)
	}
	src, err = filepath.Abs(filepath.Dir(src))
	if err != nil {
		return false, "", errors.Wrap(err)
	}
	return !strings.HasPrefix(src, "/usr/bin"), src, nil
}

// LookupDefaultFile resolves the config file path the same way the
// teacher's conf.LookupDefaultConfig does: an explicit STORAGE_ENGINE_CONFIG
// override first, then a source-tree-relative etc/ directory when running
// from a development build, else DefaultConfigDir.
func LookupDefaultFile() (string, error) {
	if explicit := os.Getenv(EnvFile); explicit != "" {
		return explicit, nil
	}

	isSourceTree, sourcePath, err := isRunningFromSourceTree()
	if err != nil {
		return "", err
	}
	if isSourceTree {
		return filepath.Join(sourcePath, "etc", ConfigFile), nil
	}
	return filepath.Join(DefaultConfigDir, ConfigFile), nil
}
