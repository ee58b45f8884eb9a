package boot

// FakeUEFIVars is an in-memory UEFIVars, letting the boot manager's unit
// tests exercise BootOrder/BootNext logic without efivarfs or root.
type FakeUEFIVars struct {
	Order   []uint16
	Next    uint16
	NextSet bool
	Current uint16
	Entries map[uint16]string // n -> description
}

var _ UEFIVars = (*FakeUEFIVars)(nil)

func NewFakeUEFIVars() *FakeUEFIVars {
	return &FakeUEFIVars{Entries: map[uint16]string{}}
}

func (f *FakeUEFIVars) BootOrder() ([]uint16, error) { return f.Order, nil }

func (f *FakeUEFIVars) SetBootOrder(order []uint16) error {
	f.Order = append([]uint16(nil), order...)
	return nil
}

func (f *FakeUEFIVars) BootNext() (uint16, bool, error) { return f.Next, f.NextSet, nil }

func (f *FakeUEFIVars) SetBootNext(n uint16) error {
	f.Next = n
	f.NextSet = true
	return nil
}

func (f *FakeUEFIVars) ClearBootNext() error {
	f.Next = 0
	f.NextSet = false
	return nil
}

func (f *FakeUEFIVars) BootCurrent() (uint16, error) { return f.Current, nil }

func (f *FakeUEFIVars) CreateOrReplaceEntry(n uint16, description, espLoaderPath string) error {
	f.Entries[n] = description
	return nil
}

func (f *FakeUEFIVars) DeleteEntry(n uint16) error {
	delete(f.Entries, n)
	return nil
}
