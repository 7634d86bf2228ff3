package device

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"
)

// Inventory discovers block devices and takes Device snapshots from
// sysfs plus partition tables. It implements Prober.
type Inventory struct {
	logger    zerolog.Logger
	sysBlock  string
	systemSet map[string]bool
}

// NewInventory builds an Inventory rooted at /sys/block.
func NewInventory(logger zerolog.Logger) *Inventory {
	inv := &Inventory{
		logger:   logger.With().Str("component", "device-inventory").Logger(),
		sysBlock: "/sys/block",
	}
	inv.systemSet = inv.detectSystemDisks()
	return inv
}

// List enumerates wipe candidates, skipping loop and ram devices.
func (inv *Inventory) List() ([]Device, error) {
	entries, err := os.ReadDir(inv.sysBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", inv.sysBlock, err)
	}

	var devices []Device
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") || strings.HasPrefix(name, "zram") {
			continue
		}
		d, err := inv.Snapshot(filepath.Join("/dev", name))
		if err != nil {
			inv.logger.Warn().Err(err).Str("device", name).Msg("skipping unreadable device")
			continue
		}
		devices = append(devices, d)
	}

	return devices, nil
}

// Snapshot reads a point-in-time Device description from sysfs.
func (inv *Inventory) Snapshot(path string) (Device, error) {
	name := filepath.Base(path)
	base := filepath.Join(inv.sysBlock, name)

	if _, err := os.Stat(base); err != nil {
		return Device{}, fmt.Errorf("device %s not present: %w", path, err)
	}

	sectors, err := inv.readUint(filepath.Join(base, "size"))
	if err != nil {
		return Device{}, fmt.Errorf("failed to read size of %s: %w", path, err)
	}

	sectorSize := uint32(DefaultSectorSize)
	if v, err := inv.readUint(filepath.Join(base, "queue", "logical_block_size")); err == nil && v > 0 {
		sectorSize = uint32(v)
	}

	d := Device{
		Path:         path,
		Sectors:      sectors,
		SectorSize:   sectorSize,
		Class:        inv.classify(name, base),
		Model:        inv.readString(filepath.Join(base, "device", "model")),
		Serial:       inv.readString(filepath.Join(base, "device", "serial")),
		IsSystemDisk: inv.systemSet[name],
		SnapshotAt:   time.Now().UTC(),
	}

	return d, nil
}

// Writable reports whether the process can open the raw device for writing.
func (inv *Inventory) Writable(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}

func (inv *Inventory) classify(name, base string) MediaClass {
	if strings.HasPrefix(name, "nvme") {
		return ClassNVMe
	}
	if v, err := inv.readUint(filepath.Join(base, "removable")); err == nil && v == 1 {
		return ClassRemovable
	}
	if v, err := inv.readUint(filepath.Join(base, "queue", "rotational")); err == nil {
		if v == 1 {
			return ClassHDD
		}
		return ClassSSD
	}
	return ClassUnknown
}

// detectSystemDisks maps system mountpoints back to their parent disks.
func (inv *Inventory) detectSystemDisks() map[string]bool {
	system := map[string]bool{}
	parts, err := disk.Partitions(false)
	if err != nil {
		inv.logger.Warn().Err(err).Msg("cannot enumerate partitions, system disk detection degraded")
		return system
	}

	systemMounts := map[string]bool{
		"/": true, "/boot": true, "/boot/efi": true, "/var": true, "/usr": true, "/home": true,
	}

	for _, p := range parts {
		if !systemMounts[p.Mountpoint] {
			continue
		}
		name := filepath.Base(p.Device)
		// Strip the partition suffix: sda3 -> sda, nvme0n1p2 -> nvme0n1.
		if i := strings.Index(name, "p"); strings.HasPrefix(name, "nvme") && i > 0 {
			if j := strings.LastIndex(name, "p"); j > 4 {
				name = name[:j]
			}
		} else {
			name = strings.TrimRight(name, "0123456789")
		}
		if name != "" {
			system[name] = true
		}
	}

	return system
}

func (inv *Inventory) readUint(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}

func (inv *Inventory) readString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
