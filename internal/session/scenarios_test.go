package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stigoleg/nudge/internal/clock"
	"github.com/stigoleg/nudge/internal/keepalive"
	"github.com/stigoleg/nudge/internal/permission"
	"github.com/stigoleg/nudge/internal/platform"
)

type switchAuthorizer struct {
	mu      sync.Mutex
	trusted bool
	err     error
}

func (a *switchAuthorizer) Trusted(context.Context, bool) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.trusted, a.err
}

func (a *switchAuthorizer) OpenSettings(context.Context) error { return nil }

func (a *switchAuthorizer) set(trusted bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trusted = trusted
	a.err = nil
}

type dismissPrompter struct{}

func (dismissPrompter) Confirm(context.Context, string, string, string, string) (bool, error) {
	return false, nil
}

var _ = Describe("Session", func() {
	var (
		ctx context.Context
		f   *fixture
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	AfterEach(func() {
		if f != nil {
			f.close()
			f = nil
		}
	})

	Describe("unbounded duration", func() {
		BeforeEach(func() {
			f = newFixture(newMemStore(false, 0), newFakePermissions(false, true))
		})

		It("runs with no end time and no duration timer", func() {
			ok, err := f.ctrl.Start(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			st := f.ctrl.State()
			Expect(st.IsActive).To(BeTrue())
			Expect(st.EndAt.IsZero()).To(BeTrue())
			Expect(st.RemainingSeconds).To(Equal(0))
			Expect(f.clock.Pending()).To(Equal(1), "only the move timer is armed")

			f.clock.Advance(7 * 24 * time.Hour)
			Expect(f.ctrl.State().IsActive).To(BeTrue())
		})
	})

	Describe("thirty minute duration", func() {
		BeforeEach(func() {
			f = newFixture(newMemStore(false, 30), newFakePermissions(false, true))
			_, err := f.ctrl.Start(ctx)
			Expect(err).NotTo(HaveOccurred())
		})

		It("auto-stops after the budget elapses", func() {
			f.clock.Advance(31 * time.Minute)

			st := f.ctrl.State()
			Expect(st.IsActive).To(BeFalse())
			Expect(st.EndAt.IsZero()).To(BeTrue())
			Expect(f.scheduler.IsRunning()).To(BeFalse())
		})

		It("publishes the stop as the last state", func() {
			f.clock.Advance(31 * time.Minute)

			states := f.published()
			Expect(states).NotTo(BeEmpty())
			Expect(states[len(states)-1].IsActive).To(BeFalse())
		})

		Context("when the machine sleeps", func() {
			It("stops on resume when the end time has passed", func() {
				f.clock.Jump(40 * time.Minute)
				Expect(f.ctrl.HandleResume(ctx)).To(Succeed())
				Expect(f.ctrl.State().IsActive).To(BeFalse())
			})

			It("resumes when the end time is still ahead", func() {
				f.clock.Jump(5 * time.Minute)
				Expect(f.ctrl.HandleResume(ctx)).To(Succeed())
				Expect(f.ctrl.State().IsActive).To(BeTrue())
				Expect(f.scheduler.IsRunning()).To(BeTrue())
			})
		})
	})

	Describe("permission check failing at launch", func() {
		var (
			auth    *switchAuthorizer
			monitor *permission.Monitor
			sched   *keepalive.Scheduler
			ctrl    *Controller
			clk     *clock.Fake
		)

		BeforeEach(func() {
			clk = clock.NewFake(epoch)
			auth = &switchAuthorizer{err: errors.New("osascript: timeout")}
			monitor = permission.New(permission.Options{
				Info:       platform.InfoFor("darwin"),
				Authorizer: auth,
				Prompter:   dismissPrompter{},
				Clock:      clk,
			})
			cfg := keepalive.DefaultConfig()
			cfg.Clock = clk
			cfg.Rand = rand.New(rand.NewSource(5))
			sched = keepalive.New(&countingBackend{}, cfg)
			ctrl = New(Options{
				Store:       newMemStore(true, 0),
				Runner:      sched,
				Permissions: monitor,
				Clock:       clk,
			})

			Expect(ctrl.Restore(ctx)).To(Succeed())
			Expect(ctrl.State().HasPermission).To(BeFalse())
		})

		AfterEach(func() {
			monitor.StopWatching()
			_ = ctrl.Close()
			_ = sched.Close()
		})

		It("resumes the enabled session once a poll sees the grant", func() {
			auth.set(true)
			clk.Advance(permission.PollInterval)

			st := ctrl.State()
			Expect(st.HasPermission).To(BeTrue())
			Expect(st.IsActive).To(BeTrue())
			Expect(sched.IsRunning()).To(BeTrue())
		})

		It("accepts an explicit start after the grant", func() {
			auth.set(true)
			clk.Advance(permission.PollInterval)
			Expect(ctrl.Stop(ctx)).To(Succeed())

			ok, err := ctrl.Start(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})
	})

	Describe("permission revoked while active", func() {
		var (
			auth    *switchAuthorizer
			monitor *permission.Monitor
			sched   *keepalive.Scheduler
			ctrl    *Controller
			clk     *clock.Fake
			backend *countingBackend
		)

		BeforeEach(func() {
			clk = clock.NewFake(epoch)
			auth = &switchAuthorizer{trusted: true}
			monitor = permission.New(permission.Options{
				Info:       platform.InfoFor("darwin"),
				Authorizer: auth,
				Prompter:   dismissPrompter{},
				Clock:      clk,
			})
			backend = &countingBackend{}
			cfg := keepalive.DefaultConfig()
			cfg.Clock = clk
			cfg.Rand = rand.New(rand.NewSource(3))
			sched = keepalive.New(backend, cfg)
			ctrl = New(Options{
				Store:       newMemStore(true, 0),
				Runner:      sched,
				Permissions: monitor,
				Clock:       clk,
			})

			Expect(ctrl.Restore(ctx)).To(Succeed())
			Expect(ctrl.State().IsActive).To(BeTrue())
		})

		AfterEach(func() {
			monitor.StopWatching()
			_ = ctrl.Close()
			_ = sched.Close()
		})

		It("goes inactive within one poll and stops moving", func() {
			auth.set(false)
			clk.Advance(permission.PollInterval)

			st := ctrl.State()
			Expect(st.IsActive).To(BeFalse())
			Expect(st.HasPermission).To(BeFalse())

			moves := backend.Moves()
			clk.Advance(time.Hour)
			Expect(backend.Moves()).To(Equal(moves))
		})

		It("resumes when the grant comes back", func() {
			auth.set(false)
			clk.Advance(permission.PollInterval)
			auth.set(true)
			clk.Advance(permission.PollInterval)

			Expect(ctrl.State().IsActive).To(BeTrue())
		})
	})
})
