// Package posix is a reference backend for the arch RegionInstaller and
// Clock interfaces. It is never imported by package kernel; it exists so the
// isolation policy and the tick-driven scheduler can be exercised by the
// runnable demo instead of only by mocks. Region installation is backed by real
// mmap'd/mprotect'd pages via golang.org/x/sys/unix, standing in for a
// hardware MPU driver.
package posix

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/freeman1216/badrtos/arch"
)

// RegionInstaller mmaps one guard-paged region per install call and applies
// the requested protection bits via mprotect, so an isolation bug (a task
// touching a region it wasn't granted) is caught by the OS instead of only
// by bookkeeping.
type RegionInstaller struct {
	mu      sync.Mutex
	static  []mapping
	current []mapping
}

type mapping struct {
	mem []byte
}

// NewRegionInstaller returns a RegionInstaller with no regions installed.
func NewRegionInstaller() *RegionInstaller {
	return &RegionInstaller{}
}

// protFor translates the arch attribute bits into a mprotect mask.
func protFor(attrs uint32) int {
	prot := unix.PROT_NONE
	if attrs&arch.AttrRead != 0 {
		prot |= unix.PROT_READ
	}
	if attrs&arch.AttrWrite != 0 {
		prot |= unix.PROT_WRITE
	}
	if attrs&arch.AttrExec != 0 {
		prot |= unix.PROT_EXEC
	}
	return prot
}

func (r *RegionInstaller) mapOne(reg arch.Region) (mapping, error) {
	if reg.Size == 0 {
		return mapping{}, nil
	}
	mem, err := unix.Mmap(-1, 0, int(reg.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return mapping{}, fmt.Errorf("posix: mmap region (size=%d): %w", reg.Size, err)
	}
	if err := unix.Mprotect(mem, protFor(reg.Attrs)); err != nil {
		_ = unix.Munmap(mem)
		return mapping{}, fmt.Errorf("posix: mprotect region: %w", err)
	}
	return mapping{mem: mem}, nil
}

// InstallStatic installs the kernel-wide regions once at startup.
func (r *RegionInstaller) InstallStatic(regions []arch.Region) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	maps := make([]mapping, 0, len(regions))
	for _, reg := range regions {
		m, err := r.mapOne(reg)
		if err != nil {
			return err
		}
		maps = append(maps, m)
	}
	r.static = maps
	return nil
}

// Install replaces the previously-running task's regions with the given
// table (unmapping the old one first), mirroring a real MPU's single active
// region set per task.
func (r *RegionInstaller) Install(regions []arch.Region) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.current {
		if m.mem != nil {
			_ = unix.Munmap(m.mem)
		}
	}
	r.current = r.current[:0]
	for _, reg := range regions {
		m, err := r.mapOne(reg)
		if err != nil {
			return err
		}
		r.current = append(r.current, m)
	}
	return nil
}

// Clock delivers one tick per period via time.Ticker, the obvious posix
// stand-in for a hardware SysTick/periodic timer interrupt.
type Clock struct {
	ticker *time.Ticker
	ch     chan struct{}
	done   chan struct{}
}

// NewClock starts delivering ticks every period.
func NewClock(period time.Duration) *Clock {
	c := &Clock{
		ticker: time.NewTicker(period),
		ch:     make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Clock) run() {
	for {
		select {
		case <-c.ticker.C:
			select {
			case c.ch <- struct{}{}:
			default:
				// tick coalesced: the consumer hasn't drained the previous
				// one yet. real hardware would instead queue an irq; since
				// we model one logical tick counter this is harmless.
			}
		case <-c.done:
			return
		}
	}
}

func (c *Clock) Ticks() <-chan struct{} { return c.ch }

func (c *Clock) Stop() {
	close(c.done)
	c.ticker.Stop()
}
