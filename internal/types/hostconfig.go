package types

// HostConfiguration is the declarative desired state (spec.md §3). It is
// read-only to the engine once parsed: parsed once, fully validated, and
// retained for the lifetime of the current operation.
type HostConfiguration struct {
	Storage  StorageConfiguration `yaml:"storage" mapstructure:"storage"`
	OS       OSConfiguration      `yaml:"os" mapstructure:"os"`
	Image    ImageReference       `yaml:"image" mapstructure:"image"`
	Scripts  ScriptsConfiguration `yaml:"scripts,omitempty" mapstructure:"scripts"`
	Health   []HealthCheck        `yaml:"healthChecks,omitempty" mapstructure:"healthChecks"`
	Internal InternalParams       `yaml:"internalParams,omitempty" mapstructure:"internalParams"`
}

// StorageConfiguration names every disk/partition/array/volume/filesystem
// entity. Cross-references between them are stable string IDs resolved at
// realization time (spec.md §9 — DAG, not back-pointers).
type StorageConfiguration struct {
	Disks            []DiskConfig       `yaml:"disks" mapstructure:"disks"`
	RaidArrays       []RaidArrayConfig  `yaml:"raid,omitempty" mapstructure:"raid"`
	Encryption       []EncryptionConfig `yaml:"encryption,omitempty" mapstructure:"encryption"`
	Verity           []VerityConfig     `yaml:"verity,omitempty" mapstructure:"verity"`
	Filesystems      []FilesystemConfig `yaml:"filesystems" mapstructure:"filesystems"`
	ABVolumePairs    []ABVolumePair     `yaml:"abVolumePairs,omitempty" mapstructure:"abVolumePairs"`
	Swap             []SwapConfig       `yaml:"swap,omitempty" mapstructure:"swap"`
	AdoptedPartition []AdoptedPartition `yaml:"adoptedPartitions,omitempty" mapstructure:"adoptedPartitions"`
}

type DiskConfig struct {
	ID         string            `yaml:"id" mapstructure:"id"`
	Device     string            `yaml:"device" mapstructure:"device"`
	Partitions []PartitionConfig `yaml:"partitions" mapstructure:"partitions"`
}

type PartitionConfig struct {
	ID       string `yaml:"id" mapstructure:"id"`
	Type     string `yaml:"type" mapstructure:"type"` // esp | linux-generic | ...
	SizeMiB  uint64 `yaml:"sizeMiB" mapstructure:"sizeMiB"`
	Adoption *AdoptedPartition `yaml:"adoptedMatcher,omitempty" mapstructure:"adoptedMatcher"`
}

// AdoptedPartition matches exactly one existing partition by label or UUID —
// never both (spec.md §4.4 op 2).
type AdoptedPartition struct {
	PartitionID string `yaml:"partitionId" mapstructure:"partitionId"`
	MatchLabel  string `yaml:"matchLabel,omitempty" mapstructure:"matchLabel"`
	MatchUUID   string `yaml:"matchUuid,omitempty" mapstructure:"matchUuid"`
}

type RaidArrayConfig struct {
	ID            string   `yaml:"id" mapstructure:"id"`
	Name          string   `yaml:"name" mapstructure:"name"`
	Level         string   `yaml:"level" mapstructure:"level"` // raid0 | raid1 | raid5 | raid6 | raid10
	MemberPartIDs []string `yaml:"members" mapstructure:"members"`
}

// PCRPolicy models the TPM2 unseal policy for an encryption volume — empty
// PCR list for UKI-based images (pcrlock-based), or {7} for non-UKI images
// per spec.md §4.4 op 5.
type PCRPolicy struct {
	PCRs []int `yaml:"pcrs,omitempty" mapstructure:"pcrs"`
}

type EncryptionConfig struct {
	ID       string    `yaml:"id" mapstructure:"id"`
	DeviceID string    `yaml:"deviceId" mapstructure:"deviceId"`
	PCR      PCRPolicy `yaml:"pcrPolicy" mapstructure:"pcrPolicy"`
}

type VerityConfig struct {
	ID             string `yaml:"id" mapstructure:"id"`
	Name           string `yaml:"name" mapstructure:"name"`
	DataDeviceID   string `yaml:"dataDeviceId" mapstructure:"dataDeviceId"`
	HashDeviceID   string `yaml:"hashDeviceId" mapstructure:"hashDeviceId"`
	RootHashSource string `yaml:"rootHash,omitempty" mapstructure:"rootHash"`
}

// FilesystemSource is a tagged variant: image | new | adopted.
type FilesystemSource string

const (
	SourceImage    FilesystemSource = "image"
	SourceNew      FilesystemSource = "new"
	SourceAdopted  FilesystemSource = "adopted"
)

type FilesystemConfig struct {
	ID         string           `yaml:"id" mapstructure:"id"`
	DeviceID   string           `yaml:"deviceId" mapstructure:"deviceId"`
	FSType     string           `yaml:"fsType" mapstructure:"fsType"`
	MountPoint string           `yaml:"mountPoint" mapstructure:"mountPoint"`
	Options    []string         `yaml:"options,omitempty" mapstructure:"options"`
	Source     FilesystemSource `yaml:"source" mapstructure:"source"`
}

func (f FilesystemConfig) ReadOnly() bool {
	for _, o := range f.Options {
		if o == "ro" {
			return true
		}
	}
	return false
}

// ABVolumePair is an install-time-only membership; only which member is
// "active" changes thereafter (spec.md §3).
type ABVolumePair struct {
	ID         string `yaml:"id" mapstructure:"id"`
	VolumeAID  string `yaml:"volumeAId" mapstructure:"volumeAId"`
	VolumeBID  string `yaml:"volumeBId" mapstructure:"volumeBId"`
}

type SwapConfig struct {
	DeviceID string `yaml:"deviceId" mapstructure:"deviceId"`
}

// SELinuxMode is a tagged variant.
type SELinuxMode string

const (
	SELinuxDisabled   SELinuxMode = "disabled"
	SELinuxPermissive SELinuxMode = "permissive"
	SELinuxEnforcing  SELinuxMode = "enforcing"
)

// UefiFallbackMode is a tagged variant accepting two documented synonym
// triples at parse time (spec.md §9 Open Question), canonicalized to the
// first on marshal.
type UefiFallbackMode string

const (
	FallbackNone        UefiFallbackMode = "none"
	FallbackRollback    UefiFallbackMode = "rollback"
	FallbackRollforward UefiFallbackMode = "rollforward"
)

// UnmarshalYAML accepts both {none,rollback,rollforward} and
// {disabled,conservative,optimistic} as synonymous input.
func (m *UefiFallbackMode) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch s {
	case "none", "disabled":
		*m = FallbackNone
	case "rollback", "conservative":
		*m = FallbackRollback
	case "rollforward", "optimistic":
		*m = FallbackRollforward
	default:
		*m = UefiFallbackMode(s) // kept as-is; boot.Manager.ApplyFallback rejects it
	}
	return nil
}

type OSConfiguration struct {
	Users          []UserConfig      `yaml:"users,omitempty" mapstructure:"users"`
	SELinux        SELinuxMode       `yaml:"selinuxMode,omitempty" mapstructure:"selinuxMode"`
	Netplan        string            `yaml:"netplan,omitempty" mapstructure:"netplan"` // raw netplan document
	Sysexts        []ExtensionImage  `yaml:"sysexts,omitempty" mapstructure:"sysexts"`
	Confexts       []ExtensionImage  `yaml:"confexts,omitempty" mapstructure:"confexts"`
	UefiFallback   UefiFallbackMode  `yaml:"uefiFallback,omitempty" mapstructure:"uefiFallback"`
	KernelCmdline  []string          `yaml:"extraKernelCmdline,omitempty" mapstructure:"extraKernelCmdline"`
}

type UserConfig struct {
	Name           string   `yaml:"name" mapstructure:"name"`
	SSHPublicKeys  []string `yaml:"sshPublicKeys,omitempty" mapstructure:"sshPublicKeys"`
	PasswordHash   string   `yaml:"passwordHash,omitempty" mapstructure:"passwordHash"`
	SecondaryGroups []string `yaml:"secondaryGroups,omitempty" mapstructure:"secondaryGroups"`
}

type ExtensionImage struct {
	Name string `yaml:"name" mapstructure:"name"`
	URL  string `yaml:"url" mapstructure:"url"`
	Path string `yaml:"path" mapstructure:"path"` // non-A/B target path
}

// ImageReference names the OS image source for this operation: the COSI
// archive URL plus its out-of-band metadata hash.
type ImageReference struct {
	URL          string `yaml:"url" mapstructure:"url"`
	MetadataHash string `yaml:"metadataHash" mapstructure:"metadataHash"`
}

type ScriptsConfiguration struct {
	PreServicing   []string `yaml:"preServicing,omitempty" mapstructure:"preServicing"`
	PostProvision  []string `yaml:"postProvision,omitempty" mapstructure:"postProvision"`
	PostConfigure  []string `yaml:"postConfigure,omitempty" mapstructure:"postConfigure"`
}

type HealthCheck struct {
	Name           string        `yaml:"name" mapstructure:"name"`
	Script         string        `yaml:"script,omitempty" mapstructure:"script"`
	SystemdUnit    string        `yaml:"systemdUnit,omitempty" mapstructure:"systemdUnit"`
	TimeoutSeconds uint          `yaml:"timeoutSeconds,omitempty" mapstructure:"timeoutSeconds"`
}

// InternalParams holds non-user-facing overrides: a safety-gate bypass
// marker and the multiboot OS index, neither meant for a typical author to
// set by hand.
type InternalParams struct {
	MultibootOSIndex    int  `yaml:"multibootOsIndex,omitempty" mapstructure:"multibootOsIndex"`
	AllowPartitionOnDisk bool `yaml:"allowPartitionOnDisk,omitempty" mapstructure:"allowPartitionOnDisk"`
}
