package engine

import (
	"reflect"

	"github.com/microsoft/trident/internal/types"
)

// Classify diffs requested against installed and derives the ServicingType
// the rest of the engine dispatches on (spec.md §4.1). installed is nil
// before any install has ever completed.
func Classify(installed, requested *types.HostConfiguration) types.ServicingType {
	if installed == nil {
		return types.ServicingCleanInstall
	}
	if reflect.DeepEqual(installed, requested) {
		return types.ServicingNone
	}
	if reflect.DeepEqual(stripRuntimeUpdateableSections(*installed), stripRuntimeUpdateableSections(*requested)) {
		return types.ServicingRuntimeUpdate
	}
	return types.ServicingABUpdate
}

// stripRuntimeUpdateableSections zeroes the sections named in
// constants.RuntimeUpdateableSections, so comparing two stripped copies
// tells us whether everything else is unchanged.
func stripRuntimeUpdateableSections(hc types.HostConfiguration) types.HostConfiguration {
	hc.OS.Sysexts = nil
	hc.OS.Confexts = nil
	hc.OS.Netplan = ""
	return hc
}
