// Package constants collects the paths, names, and timeouts shared across
// the servicing engine.
package constants

import "time"

const (
	// Datastore
	StatePartitionLabel = "trident"
	DatastoreFileName   = "trident-datastore.yaml"
	DatastoreLockName   = "trident-datastore.lock"
	RollbackChainMax    = 8
	InitialServicingIdx = 100

	// Host Status / servicing log
	HealthCheckFailureLogDir    = "/var/lib/trident"
	HealthCheckFailureLogPrefix = "trident-health-check-failure-"
	HealthCheckFailureLogExt    = ".log"

	// ESP / bootloader layout
	ESPMountPoint   = "/boot/efi"
	ESPAzlADir      = "EFI/AZLA"
	ESPAzlBDir      = "EFI/AZLB"
	ESPBootDir      = "EFI/BOOT"
	ESPLinuxDir     = "EFI/Linux"
	ShimFileName    = "BOOTX64.EFI"
	GrubFileName    = "grubx64.efi"
	SystemdBootName = "systemd-bootx64.efi"

	// Firmware-visible UKI filename shape: vmlinuz-<NNN>-azl<a|b>[<idx>].efi
	UKIFilenameFormat = "vmlinuz-%03d-azl%s%d.efi"

	// Servicing defaults
	DefaultConcurrentPartitionStreams = 4
	DefaultStreamBufferSize           = 4 * 1024 * 1024 // 4 MiB
	DefaultFetchRetryBudget           = 5 * time.Minute
	DefaultOperationTimeout           = 30 * time.Minute
	DefaultDaemonIdleTimeout          = 5 * time.Minute
	DefaultHealthCheckTimeout         = 2 * time.Minute
	DefaultHealthCheckPollInterval    = 2 * time.Second

	// LUKS2 / encryption
	LuksCipher       = "aes-xts-plain64"
	LuksKeySizeBits  = 512
	LuksKDF          = "pbkdf2"
	LuksKDFHash      = "sha512"
	LuksTokenKeyslot = 1 // keyslot 0 is reserved, never used
	TPM2TokenType    = "systemd-tpm2"

	// dm-verity
	VerityHashAlgorithm = "sha256"

	// Filesystem sources, as used in Host Configuration
	FilesystemSourceImage    = "image"
	FilesystemSourceNew      = "new"
	FilesystemSourceAdopted  = "adopted"
	VolumeActive             = "volume-a"
	VolumeActiveAlt          = "volume-b"
	DefaultRAIDArrayBasePath = "/dev/md"

	// COSI wire format
	CosiMarker     = "cosi\x00"
	CosiHashAlgo   = "sha384"
	CosiMetaSuffix = ".metadata.json"

	// Network
	ProxyEnvHTTP  = "HTTP_PROXY"
	ProxyEnvHTTPS = "HTTPS_PROXY"
	ProxyEnvNo    = "NO_PROXY"

	// Socket permissions for the daemon's control socket
	DaemonSocketPerm = 0o600
)

// RuntimeUpdateableSections lists the Host Configuration top-level sections
// that, if they are the *only* sections differing from the installed spec,
// classify the requested operation as a runtime-update rather than an
// A/B update (spec.md §4.1).
func RuntimeUpdateableSections() []string {
	return []string{"sysexts", "confexts", "netplan"}
}
