package kernel

import (
	"unsafe"

	"github.com/freeman1216/badrtos/arch"
)

// maxTaskRegions caps the caller-supplied region table: the stack region
// takes one of the remaining MPU slots on every switch, leaving three for
// arbitrary regions (a peripheral, a shared buffer, ...).
const maxTaskRegions = 3

// isolation wraps the arch.RegionInstaller collaborator and the kernel-wide
// static regions installed once at boot. Per-task region tables are
// precomputed at creation time and stored on the TCB, not re-derived on
// every switch; only the table install itself happens per dispatch.
type isolation struct {
	installer arch.RegionInstaller
	static    []arch.Region
}

func newIsolation(installer arch.RegionInstaller, static []arch.Region) *isolation {
	return &isolation{installer: installer, static: static}
}

// boot installs the kernel-wide regions (code, kernel heap, MMIO) that never
// change across context switches.
func (iso *isolation) boot() error {
	if iso.installer == nil {
		return nil
	}
	return iso.installer.InstallStatic(iso.static)
}

// stackRegion synthesizes the always-present first entry of a task's
// installed table: its stack, read/write and no-execute, sized to the
// stack rounded up to a power of two. Every task gets one regardless of
// whether it supplied regions of its own.
func stackRegion(t *TCB) arch.Region {
	r := arch.Region{Attrs: arch.AttrRead | arch.AttrWrite}
	if t.stackSize > 0 {
		r.Size = uintptr(roundUpPow2(uint32(t.stackSize)))
	}
	if len(t.stack) > 0 {
		r.Addr = uintptr(unsafe.Pointer(&t.stack[0]))
	}
	return r
}

// switchTo installs t's region table: the synthesized stack region followed
// by t's precomputed caller-supplied regions, replacing whatever the
// previously-running task had installed.
func (iso *isolation) switchTo(t *TCB) error {
	if iso.installer == nil {
		return nil
	}
	table := make([]arch.Region, 0, len(t.regions)+1)
	table = append(table, stackRegion(t))
	table = append(table, t.regions...)
	return iso.installer.Install(table)
}
