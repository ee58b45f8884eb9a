package engine_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/microsoft/trident/internal/boot"
	"github.com/microsoft/trident/internal/datastore"
	"github.com/microsoft/trident/internal/engine"
	"github.com/microsoft/trident/internal/fsutil"
	"github.com/microsoft/trident/internal/logging"
	"github.com/microsoft/trident/internal/types"
)

func TestEngine(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "engine suite")
}

func newTestEngine(store datastore.Store, vars *boot.FakeUEFIVars, runner *fsutil.FakeRunner) *engine.Engine {
	return engine.New(engine.Deps{
		Log:         logging.New("error"),
		Store:       store,
		Runner:      runner,
		FS:          fsutil.NewFakeFS(),
		BootManager: &boot.Manager{Vars: vars, Layout: boot.ESPLayout{MountPoint: "/boot/efi"}},
	})
}

var _ = Describe("manual rollback", func() {
	var (
		store  datastore.Store
		vars   *boot.FakeUEFIVars
		runner *fsutil.FakeRunner
		eng    *engine.Engine
	)

	BeforeEach(func() {
		store = datastore.NewInMemoryStore()
		vars = boot.NewFakeUEFIVars()
		runner = fsutil.NewFakeRunner()
		eng = newTestEngine(store, vars, runner)
	})

	Describe("CheckRollback", func() {
		It("reports none when nothing has been serviced", func() {
			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(eng.CheckRollback(status)).To(Equal(types.RollbackNone))
		})

		It("reports ab when an A/B update left a rollback-chain entry", func() {
			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			status.ServicingType = types.ServicingABUpdate
			status.RollbackChain = []types.HostStatusSnapshot{{ServicingIndex: 1}}
			Expect(eng.CheckRollback(status)).To(Equal(types.RollbackAB))
		})

		It("reports runtime when a runtime-update recorded a previous spec", func() {
			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			status.ServicingType = types.ServicingRuntimeUpdate
			status.PreviousRuntimeSpec = &types.HostConfiguration{}
			Expect(eng.CheckRollback(status)).To(Equal(types.RollbackRuntime))
		})
	})

	Describe("RollbackAB", func() {
		It("fails when there is no rollback-chain entry", func() {
			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(eng.RollbackAB(status)).To(HaveOccurred())
		})

		It("restores the chain's head entry and flips boot order back", func() {
			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			status.AbActiveVolume = types.VolumeB
			prevSpec := &types.HostConfiguration{}
			status.RollbackChain = []types.HostStatusSnapshot{
				{ServicingIndex: 1, AbActiveVolume: types.VolumeA, Spec: prevSpec},
			}
			Expect(store.Save(status)).To(Succeed())

			Expect(eng.RollbackAB(status)).To(Succeed())

			saved, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.AbActiveVolume).To(Equal(types.VolumeA))
			Expect(saved.InstalledSpec).To(Equal(prevSpec))
			Expect(saved.RollbackChain).To(BeEmpty())
			Expect(vars.Order[0]).To(Equal(uint16(0x0a10)))
		})
	})

	Describe("RollbackRuntime", func() {
		It("fails when no prior runtime configuration is on record", func() {
			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(eng.RollbackRuntime(status)).To(HaveOccurred())
		})

		It("restores the previous spec and clears it", func() {
			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			prevSpec := &types.HostConfiguration{OS: types.OSConfiguration{Netplan: "network: {}"}}
			status.PreviousRuntimeSpec = prevSpec
			status.InstalledSpec = &types.HostConfiguration{OS: types.OSConfiguration{Netplan: "network: eth0"}}
			Expect(store.Save(status)).To(Succeed())

			Expect(eng.RollbackRuntime(status)).To(Succeed())

			saved, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.InstalledSpec).To(Equal(prevSpec))
			Expect(saved.PreviousRuntimeSpec).To(BeNil())
		})
	})

	Describe("RollbackAuto", func() {
		It("errors when there is nothing to roll back", func() {
			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(eng.RollbackAuto(status)).To(HaveOccurred())
		})

		It("dispatches to RollbackRuntime when that is what CheckRollback reports", func() {
			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			status.ServicingType = types.ServicingRuntimeUpdate
			status.PreviousRuntimeSpec = &types.HostConfiguration{}
			Expect(store.Save(status)).To(Succeed())

			Expect(eng.RollbackAuto(status)).To(Succeed())

			saved, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.PreviousRuntimeSpec).To(BeNil())
		})
	})
})
