package storage

import (
	"context"
	"crypto/rand"
	"crypto/sha512"
	"strconv"

	"github.com/google/go-tpm-tools/client"
	"github.com/google/go-tpm/legacy/tpm2"
	"golang.org/x/crypto/pbkdf2"

	"github.com/microsoft/trident/internal/constants"
	"github.com/microsoft/trident/internal/types"
)

const (
	pbkdf2Iterations = 210_000
	pbkdf2KeyLen     = 64
)

// Encryptor formats and opens LUKS2 volumes, sealing/unsealing their
// passphrase against the TPM2 under a PCR policy (spec.md §4.4 op 5).
type Encryptor struct {
	Runner types.Runner
	TPM    TPMSealer
}

// TPMSealer abstracts the subset of go-tpm-tools' sealing helpers this
// package needs, so unit tests can run without a real or simulated TPM.
type TPMSealer interface {
	Seal(secret []byte, pcrs []int) (sealed []byte, err error)
	Unseal(sealed []byte, pcrs []int) (secret []byte, err error)
}

// RealTPMSealer seals against the platform TPM2 via go-tpm-tools' client
// helpers — named, not grounded, since no repo in the retrieval pack
// touches a TPM.
type RealTPMSealer struct {
	Device string // e.g. /dev/tpmrm0
}

var _ TPMSealer = (*RealTPMSealer)(nil)

func (s *RealTPMSealer) Seal(secret []byte, pcrs []int) ([]byte, error) {
	rwc, err := tpm2.OpenTPM(s.Device)
	if err != nil {
		return nil, types.NewError(types.KindBlockDevice, "storage", err)
	}
	defer rwc.Close()

	sel := tpm2.PCRSelection{Hash: tpm2.AlgSHA256, PCRs: pcrs}
	sealed, err := client.SealOpaque(rwc, secret, sel)
	if err != nil {
		return nil, types.NewError(types.KindBlockDevice, "storage", err)
	}
	return sealed, nil
}

func (s *RealTPMSealer) Unseal(sealed []byte, pcrs []int) ([]byte, error) {
	rwc, err := tpm2.OpenTPM(s.Device)
	if err != nil {
		return nil, types.NewError(types.KindBlockDevice, "storage", err)
	}
	defer rwc.Close()

	sel := tpm2.PCRSelection{Hash: tpm2.AlgSHA256, PCRs: pcrs}
	secret, err := client.UnsealOpaque(rwc, sealed, sel)
	if err != nil {
		return nil, types.NewError(types.KindIntegrity, "storage", err)
	}
	return secret, nil
}

// enrollmentCheckValue derives a PBKDF2-SHA512 value from passphrase, stored
// alongside the sealed blob at enrollment time so a corrupted unseal can be
// detected before it's ever handed to a slow, externally-visible
// `cryptsetup luksOpen` call.
func enrollmentCheckValue(passphrase, salt []byte) []byte {
	return pbkdf2.Key(passphrase, salt, pbkdf2Iterations, pbkdf2KeyLen, sha512.New)
}

// Enroll generates a random passphrase, formats device as LUKS2 with it,
// imports a systemd-tpm2 token, and seals the passphrase against the TPM.
// It returns the sealed blob and check value to persist in Host Status.
func (e *Encryptor) Enroll(device string, cfg types.EncryptionConfig) (sealed, checkValue, salt []byte, err error) {
	passphrase := make([]byte, 64)
	if _, rerr := rand.Read(passphrase); rerr != nil {
		return nil, nil, nil, types.NewError(types.KindInternal, "storage", rerr)
	}
	salt = make([]byte, 32)
	if _, rerr := rand.Read(salt); rerr != nil {
		return nil, nil, nil, types.NewError(types.KindInternal, "storage", rerr)
	}

	if _, rerr := e.Runner.RunWithStdin(context.Background(), passphrase, "cryptsetup", "luksFormat",
		"--type", "luks2",
		"--cipher", constants.LuksCipher,
		"--key-size", "512",
		"--pbkdf", constants.LuksKDF,
		"--hash", constants.LuksKDFHash,
		"--key-slot", strconv.Itoa(constants.LuksTokenKeyslot),
		"--key-file", "-",
		device,
	); rerr != nil {
		return nil, nil, nil, types.NewError(types.KindBlockDevice, "storage", rerr)
	}
	if _, rerr := e.Runner.Run("cryptsetup", "token", "import", "--token-id",
		strconv.Itoa(constants.LuksTokenKeyslot), device); rerr != nil {
		return nil, nil, nil, types.NewError(types.KindBlockDevice, "storage", rerr)
	}

	sealed, err = e.TPM.Seal(passphrase, cfg.PCR.PCRs)
	if err != nil {
		return nil, nil, nil, err
	}
	checkValue = enrollmentCheckValue(passphrase, salt)
	return sealed, checkValue, salt, nil
}

// Open unseals the passphrase, verifies it against checkValue before
// touching the device, and opens the LUKS2 mapping.
func (e *Encryptor) Open(device, mapperName string, sealed, checkValue, salt []byte, pcrs []int) error {
	passphrase, err := e.TPM.Unseal(sealed, pcrs)
	if err != nil {
		return err
	}
	if !equalBytes(enrollmentCheckValue(passphrase, salt), checkValue) {
		return types.Errorf(types.KindIntegrity, "storage", "unsealed passphrase for %s failed its enrollment check value", device)
	}
	if _, err := e.Runner.RunWithStdin(context.Background(), passphrase, "cryptsetup", "luksOpen", "--key-file", "-", device, mapperName); err != nil {
		return types.NewError(types.KindBlockDevice, "storage", err)
	}
	return nil
}

func (e *Encryptor) Close(mapperName string) error {
	if _, err := e.Runner.Run("cryptsetup", "luksClose", mapperName); err != nil {
		return types.NewError(types.KindBlockDevice, "storage", err)
	}
	return nil
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
