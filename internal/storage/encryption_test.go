package storage_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/microsoft/trident/internal/fsutil"
	"github.com/microsoft/trident/internal/storage"
	"github.com/microsoft/trident/internal/types"
)

// passthroughSealer "seals" by returning the secret unchanged, so a test
// can assert on the exact bytes cryptsetup was handed without a real TPM.
type passthroughSealer struct{}

func (passthroughSealer) Seal(secret []byte, _ []int) ([]byte, error) {
	return append([]byte(nil), secret...), nil
}

func (passthroughSealer) Unseal(sealed []byte, _ []int) ([]byte, error) {
	return append([]byte(nil), sealed...), nil
}

var _ = Describe("Encryptor", func() {
	var (
		runner *fsutil.FakeRunner
		enc    *storage.Encryptor
	)

	BeforeEach(func() {
		runner = fsutil.NewFakeRunner()
		enc = &storage.Encryptor{Runner: runner, TPM: passthroughSealer{}}
	})

	It("pipes the generated passphrase to luksFormat on stdin", func() {
		sealed, checkValue, salt, err := enc.Enroll("/dev/sdb1", types.EncryptionConfig{ID: "root-enc"})
		Expect(err).NotTo(HaveOccurred())
		Expect(sealed).NotTo(BeEmpty())
		Expect(checkValue).NotTo(BeEmpty())
		Expect(salt).NotTo(BeEmpty())

		Expect(runner.WasCalledWith("cryptsetup", "luksFormat")).To(BeTrue())
		var formatCall fsutil.FakeCall
		for _, c := range runner.Calls {
			if c.Command == "cryptsetup" && len(c.Args) > 0 && c.Args[0] == "luksFormat" {
				formatCall = c
			}
		}
		Expect(formatCall.Stdin).To(HaveLen(64))
		Expect(formatCall.Stdin).NotTo(Equal(make([]byte, 64)))
	})

	It("pipes the unsealed passphrase to luksOpen on stdin and verifies the check value first", func() {
		sealed, checkValue, salt, err := enc.Enroll("/dev/sdb1", types.EncryptionConfig{})
		Expect(err).NotTo(HaveOccurred())

		Expect(enc.Open("/dev/sdb1", "trident-root", sealed, checkValue, salt, nil)).To(Succeed())

		var openCall fsutil.FakeCall
		for _, c := range runner.Calls {
			if c.Command == "cryptsetup" && len(c.Args) > 0 && c.Args[0] == "luksOpen" {
				openCall = c
			}
		}
		Expect(openCall.Stdin).To(Equal([]byte(sealed)))
	})

	It("refuses to open when the unsealed passphrase fails its check value", func() {
		_, _, salt, err := enc.Enroll("/dev/sdb1", types.EncryptionConfig{})
		Expect(err).NotTo(HaveOccurred())

		corrupted := bytes.Repeat([]byte{0xFF}, 64)
		Expect(enc.Open("/dev/sdb1", "trident-root", corrupted, []byte("wrong-check-value"), salt, nil)).To(HaveOccurred())
	})
})
