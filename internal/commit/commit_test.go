package commit_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/microsoft/trident/internal/boot"
	"github.com/microsoft/trident/internal/commit"
	"github.com/microsoft/trident/internal/datastore"
	"github.com/microsoft/trident/internal/engine"
	"github.com/microsoft/trident/internal/fsutil"
	"github.com/microsoft/trident/internal/hooks"
	"github.com/microsoft/trident/internal/logging"
	"github.com/microsoft/trident/internal/types"
)

func TestCommit(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "commit suite")
}

func newController(store datastore.Store, vars *boot.FakeUEFIVars, runner *fsutil.FakeRunner) *commit.Controller {
	bm := &boot.Manager{Vars: vars, Layout: boot.ESPLayout{MountPoint: "/boot/efi"}}
	healthChecks := &hooks.HealthCheckRunner{Runner: runner}
	eng := engine.New(engine.Deps{
		Log:          logging.New("error"),
		Store:        store,
		HealthChecks: healthChecks,
	})
	return commit.New(commit.Deps{
		Log:          logging.New("error"),
		Store:        store,
		Engine:       eng,
		BootManager:  bm,
		HealthChecks: healthChecks,
		FS:           fsutil.NewFakeFS(),
		Clock:        &fsutil.FakeClock{Instant: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
}

var _ = Describe("commit controller", func() {
	var (
		store  datastore.Store
		vars   *boot.FakeUEFIVars
		runner *fsutil.FakeRunner
		ctrl   *commit.Controller
	)

	BeforeEach(func() {
		store = datastore.NewInMemoryStore()
		vars = boot.NewFakeUEFIVars()
		runner = fsutil.NewFakeRunner()
		ctrl = newController(store, vars, runner)
	})

	It("does nothing when no commit is pending", func() {
		Expect(ctrl.Run(context.Background())).To(Succeed())
		status, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.ServicingState).To(Equal(types.StateNotProvisioned))
	})

	Context("after a clean install finalize", func() {
		BeforeEach(func() {
			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			status.ServicingState = types.StateCleanInstallFinalized
			status.PendingSpec = &types.HostConfiguration{
				Health: []types.HealthCheck{{Name: "ok", Script: "/bin/true"}},
			}
			Expect(store.Save(status)).To(Succeed())
		})

		It("reaches provisioned and promotes the pending spec when health checks pass", func() {
			Expect(ctrl.Run(context.Background())).To(Succeed())

			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(status.ServicingState).To(Equal(types.StateProvisioned))
			Expect(status.InstalledSpec).NotTo(BeNil())
			Expect(status.PendingSpec).To(BeNil())
		})

		It("returns to not-provisioned when a health check fails", func() {
			runner.Default = fsutil.FakeResult{Err: context.DeadlineExceeded}

			Expect(ctrl.Run(context.Background())).To(Succeed())

			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(status.ServicingState).To(Equal(types.StateNotProvisioned))
			Expect(status.PendingSpec).To(BeNil())
			Expect(status.LastError).NotTo(BeNil())
		})
	})

	Context("after an A/B update finalize", func() {
		BeforeEach(func() {
			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			status.ServicingState = types.StateABUpdateFinalized
			status.AbActiveVolume = types.VolumeA
			status.PendingSpec = &types.HostConfiguration{
				Health: []types.HealthCheck{{Name: "ok", Script: "/bin/true"}},
			}
			Expect(store.Save(status)).To(Succeed())
			vars.Current = 0x0a11 // entryNumberB, the target side
		})

		It("commits when the target booted and health checks pass", func() {
			Expect(ctrl.Run(context.Background())).To(Succeed())

			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(status.ServicingState).To(Equal(types.StateProvisioned))
			Expect(status.AbActiveVolume).To(Equal(types.VolumeB))
			Expect(status.PendingSpec).To(BeNil())
			Expect(status.RollbackChain).To(HaveLen(1))
			Expect(vars.Order[0]).To(Equal(uint16(0x0a11)))
		})

		It("falls back to health-check-failed when a check fails", func() {
			runner.Default = fsutil.FakeResult{Err: context.DeadlineExceeded}

			Expect(ctrl.Run(context.Background())).To(Succeed())

			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(status.ServicingState).To(Equal(types.StateABUpdateHealthCheckFail))
			Expect(status.AbActiveVolume).To(Equal(types.VolumeA), "active volume must not flip on a failed commit")
			Expect(vars.Order[0]).To(Equal(uint16(0x0a10)), "boot order must fall back to the servicing side")
		})

		It("fails before running health checks if firmware did not boot the target", func() {
			vars.Current = 0x0a10 // still the servicing side

			Expect(ctrl.Run(context.Background())).To(Succeed())

			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(status.ServicingState).To(Equal(types.StateABUpdateHealthCheckFail))
			Expect(runner.Calls).To(BeEmpty(), "health checks must not run once the boot-side check already failed")
		})
	})

	Context("verifying a rollback", func() {
		BeforeEach(func() {
			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			status.ServicingState = types.StateABUpdateHealthCheckFail
			status.AbActiveVolume = types.VolumeA
			status.PendingSpec = &types.HostConfiguration{}
			Expect(store.Save(status)).To(Succeed())
		})

		It("reaches provisioned when firmware actually returned to the servicing side", func() {
			vars.Current = 0x0a10

			Expect(ctrl.Run(context.Background())).To(Succeed())

			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(status.ServicingState).To(Equal(types.StateProvisioned))
			Expect(status.PendingSpec).To(BeNil())
		})

		It("reaches the terminal rollback-failed state when it did not", func() {
			vars.Current = 0x0a11

			Expect(ctrl.Run(context.Background())).To(Succeed())

			status, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(status.ServicingState).To(Equal(types.StateABUpdateRollbackFailed))
		})
	})
})
