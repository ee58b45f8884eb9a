// Package boot manages UEFI boot entries and the ESP's A/B directory
// layout (spec.md §4.6).
package boot

import (
	efi "github.com/canonical/go-efilib"
	"github.com/canonical/go-efilib/linux"

	"github.com/microsoft/trident/internal/types"
)

// UEFIVars is the seam over efivarfs, narrowed to exactly the variables
// spec.md §6 names: Boot####, BootOrder, BootNext, BootCurrent.
type UEFIVars interface {
	BootOrder() ([]uint16, error)
	SetBootOrder(order []uint16) error
	BootNext() (uint16, bool, error)
	SetBootNext(n uint16) error
	ClearBootNext() error
	BootCurrent() (uint16, error)
	CreateOrReplaceEntry(n uint16, description, espLoaderPath string) error
	DeleteEntry(n uint16) error
}

// RealUEFIVars talks to efivarfs directly via go-efilib, avoiding a
// process-spawn-and-scrape-stdout round trip through efibootmgr for every
// mutation.
type RealUEFIVars struct{}

var _ UEFIVars = RealUEFIVars{}

func (RealUEFIVars) BootOrder() ([]uint16, error) {
	order, err := efi.ReadBootOrderVariable()
	if err != nil {
		return nil, types.NewError(types.KindBoot, "boot", err)
	}
	return order, nil
}

func (RealUEFIVars) SetBootOrder(order []uint16) error {
	if err := efi.WriteBootOrderVariable(order); err != nil {
		return types.NewError(types.KindBoot, "boot", err)
	}
	return nil
}

func (RealUEFIVars) BootNext() (uint16, bool, error) {
	n, err := efi.ReadBootNextVariable()
	if err == efi.ErrVarNotExist {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, types.NewError(types.KindBoot, "boot", err)
	}
	return n, true, nil
}

func (RealUEFIVars) SetBootNext(n uint16) error {
	if err := efi.WriteBootNextVariable(n); err != nil {
		return types.NewError(types.KindBoot, "boot", err)
	}
	return nil
}

func (RealUEFIVars) ClearBootNext() error {
	if err := efi.DeleteBootNextVariable(); err != nil && err != efi.ErrVarNotExist {
		return types.NewError(types.KindBoot, "boot", err)
	}
	return nil
}

func (RealUEFIVars) BootCurrent() (uint16, error) {
	n, err := efi.ReadBootCurrentVariable()
	if err != nil {
		return 0, types.NewError(types.KindBoot, "boot", err)
	}
	return n, nil
}

// CreateOrReplaceEntry writes Boot<n> with a device path derived from
// espLoaderPath (a path inside the mounted ESP), using go-efilib's Linux
// helper to turn a plain filesystem path into the hard-drive + file-path
// device path UEFI load options require.
func (RealUEFIVars) CreateOrReplaceEntry(n uint16, description, espLoaderPath string) error {
	devPath, err := linux.NewFileDevicePath(espLoaderPath, linux.InterfaceTypePCI)
	if err != nil {
		return types.NewError(types.KindBoot, "boot", err)
	}
	opt := &efi.LoadOption{
		Attributes:  efi.LoadOptionActive,
		Description: description,
		FilePath:    devPath,
	}
	if err := efi.WriteLoadOptionVariable(n, opt); err != nil {
		return types.NewError(types.KindBoot, "boot", err)
	}
	return nil
}

func (RealUEFIVars) DeleteEntry(n uint16) error {
	if err := efi.DeleteLoadOptionVariable(n); err != nil && err != efi.ErrVarNotExist {
		return types.NewError(types.KindBoot, "boot", err)
	}
	return nil
}
