package boot

import (
	"github.com/microsoft/trident/internal/types"
)

// entryNumber assigns a stable Boot#### number per A/B side. Trident owns
// both entries outright (created at install, never touched by anything
// else), so a fixed pair is sufficient; nothing else needs to scan the
// firmware's entry list to find them.
const (
	entryNumberA uint16 = 0x0a10
	entryNumberB uint16 = 0x0a11
)

func entryNumber(active types.AbActiveVolume) uint16 {
	if active == types.VolumeA {
		return entryNumberA
	}
	return entryNumberB
}

// Manager drives the boot-entry and ESP-layout side of install/update/
// commit/rollback (spec.md §4.6).
type Manager struct {
	Vars   UEFIVars
	Layout ESPLayout
}

// InstallFinalize writes the target side's boot entry and sets BootOrder so
// it is first on every subsequent boot — the one-time, non-one-shot flip a
// clean install performs.
func (m *Manager) InstallFinalize(active types.AbActiveVolume, loaderPath string) error {
	n := entryNumber(active)
	if err := m.Vars.CreateOrReplaceEntry(n, "Trident "+string(active), loaderPath); err != nil {
		return err
	}
	return m.Vars.SetBootOrder([]uint16{n})
}

// ABUpdateFinalize points BootNext at the target side without touching
// BootOrder, so a failed boot falls back to the old order naturally.
func (m *Manager) ABUpdateFinalize(targetActive types.AbActiveVolume, loaderPath string) error {
	n := entryNumber(targetActive)
	if err := m.Vars.CreateOrReplaceEntry(n, "Trident "+string(targetActive), loaderPath); err != nil {
		return err
	}
	return m.Vars.SetBootNext(n)
}

// ABUpdateCommit moves the (now-confirmed-good) target's entry to the head
// of BootOrder and clears any stale BootNext.
func (m *Manager) ABUpdateCommit(targetActive types.AbActiveVolume) error {
	if err := m.Vars.ClearBootNext(); err != nil {
		return err
	}
	order, err := m.Vars.BootOrder()
	if err != nil {
		return err
	}
	n := entryNumber(targetActive)
	order = moveToFront(order, n)
	return m.Vars.SetBootOrder(order)
}

// RollbackToServicing restores BootOrder to put the prior (still-good) side
// first, used when the target side's health checks fail after boot.
func (m *Manager) RollbackToServicing(servicingActive types.AbActiveVolume) error {
	if err := m.Vars.ClearBootNext(); err != nil {
		return err
	}
	order, err := m.Vars.BootOrder()
	if err != nil {
		return err
	}
	n := entryNumber(servicingActive)
	order = moveToFront(order, n)
	return m.Vars.SetBootOrder(order)
}

func moveToFront(order []uint16, n uint16) []uint16 {
	out := make([]uint16, 0, len(order)+1)
	out = append(out, n)
	for _, e := range order {
		if e != n {
			out = append(out, e)
		}
	}
	return out
}

// BootedSide inspects BootCurrent to determine which A/B side actually
// booted, the commit controller's first step.
func (m *Manager) BootedSide() (types.AbActiveVolume, error) {
	cur, err := m.Vars.BootCurrent()
	if err != nil {
		return "", err
	}
	if cur == entryNumberA {
		return types.VolumeA, nil
	}
	if cur == entryNumberB {
		return types.VolumeB, nil
	}
	return "", types.Errorf(types.KindBoot, "boot", "BootCurrent (%#04x) does not match either Trident boot entry", cur)
}

// ApplyFallback updates the EFI/BOOT fallback copy according to mode, at
// either the finalize or commit point in the A/B lifecycle (spec.md §4.6).
func (m *Manager) ApplyFallback(mode types.UefiFallbackMode, stage FallbackStage, targetActive, servicingActive types.AbActiveVolume, copyFn func(fromSideDir, toFallbackDir string) error) error {
	switch mode {
	case types.FallbackNone:
		return nil
	case types.FallbackRollback:
		if stage == FallbackStageFinalize {
			return copyFn(m.Layout.SideDir(servicingActive), m.Layout.FallbackDir())
		}
		return copyFn(m.Layout.SideDir(targetActive), m.Layout.FallbackDir())
	case types.FallbackRollforward:
		if stage == FallbackStageFinalize {
			return copyFn(m.Layout.SideDir(targetActive), m.Layout.FallbackDir())
		}
		return nil
	default:
		return types.Errorf(types.KindConfig, "boot", "unknown UEFI fallback mode %q", mode)
	}
}

// FallbackStage is a tagged variant naming which A/B lifecycle point
// ApplyFallback is being called at.
type FallbackStage string

const (
	FallbackStageFinalize FallbackStage = "finalize"
	FallbackStageCommit   FallbackStage = "commit"
)
