//go:build integration

package integration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/infra"
	"github.com/eliteGoblin/focusd/focuslock/internal/strategy"
	"github.com/eliteGoblin/focusd/focuslock/internal/usecase"
	"github.com/eliteGoblin/focusd/focuslock/test/fixtures"
)

var _ = Describe("Restriction sessions across processes", func() {
	var (
		ctx context.Context
		dev *device
	)

	BeforeEach(func() {
		ctx = context.Background()
		dev = newDevice()
	})

	AfterEach(func() {
		dev.close()
	})

	blockingProfile := func(name, strategyID string) domain.Profile {
		p := fixtures.NewProfile(name, strategyID)
		p.ID = ""
		p.DomainFilterEnabled = true
		return p
	}

	Describe("manual toggle", func() {
		It("returns to idle with one closed session", func() {
			p := dev.saveProfile(ctx, blockingProfile("focus", strategy.ManualID))

			out, err := dev.coord.Toggle(ctx, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Kind).To(Equal(strategy.Started))
			Expect(dev.hosts()).To(ContainSubstring("0.0.0.0 store.steampowered.com"))
			Expect(dev.procs.Running()).To(Equal([]string{"Finder"}))

			dev.clock.Advance(40 * time.Minute)
			out, err = dev.coord.Toggle(ctx, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Kind).To(Equal(strategy.Ended))

			sess, _ := dev.coord.Current()
			Expect(sess).To(BeNil())
			ss := dev.sessions(ctx, p.ID)
			Expect(ss).To(HaveLen(1))
			Expect(ss[0].EndTime).NotTo(BeNil())
			Expect(ss[0].EndTime.After(ss[0].StartTime)).To(BeTrue())
			Expect(dev.hosts()).NotTo(ContainSubstring("store.steampowered.com"))
		})
	})

	Describe("timer session", func() {
		It("is ended by the background wake without the foreground", func() {
			p := blockingProfile("pomodoro", strategy.TimerID)
			p.StrategyData = strategy.TimerData(25)
			p = dev.saveProfile(ctx, p)

			out, err := dev.coord.Start(ctx, p.ID, usecase.StartOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Kind).To(Equal(strategy.Started))

			names, err := dev.bgScheduler.ListActive(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(ContainElement(domain.NewActivityName(domain.RoleStrategyTimer, p.ID)))

			dev.clock.Advance(24 * time.Minute)
			dev.wake(ctx)
			slot, err := dev.bgSnapshots.ActiveSession()
			Expect(err).NotTo(HaveOccurred())
			Expect(slot).NotTo(BeNil())

			dev.clock.Advance(time.Minute)
			due := dev.wake(ctx)
			Expect(due).To(ContainElement(infra.Wake{
				Name: domain.NewActivityName(domain.RoleStrategyTimer, p.ID),
				Edge: infra.EdgeEnd,
			}))

			slot, err = dev.bgSnapshots.ActiveSession()
			Expect(err).NotTo(HaveOccurred())
			Expect(slot).To(BeNil())
			Expect(dev.hosts()).NotTo(ContainSubstring("store.steampowered.com"))

			By("the next foreground launch absorbing the ended session")
			c := dev.relaunch()
			active, err := c.LoadActiveSession(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeNil())

			ss := dev.sessions(ctx, p.ID)
			Expect(ss).To(HaveLen(1))
			Expect(ss[0].EndTime).NotTo(BeNil())
			Expect(ss[0].EndTime.Sub(ss[0].StartTime)).To(Equal(25 * time.Minute))
		})
	})

	Describe("automation start", func() {
		It("rejects a duration under fifteen minutes", func() {
			p := dev.saveProfile(ctx, blockingProfile("focus", strategy.ManualID))
			minutes := 10

			_, err := dev.coord.StartFromAutomation(ctx, p.ID, &minutes)

			Expect(err).To(MatchError(domain.ErrValidation))
			Expect(dev.sessions(ctx, "")).To(BeEmpty())
			Expect(dev.hosts()).NotTo(ContainSubstring("store.steampowered.com"))
		})
	})

	Describe("reconciliation", func() {
		It("absorbs a session completed while the foreground was away", func() {
			p := dev.saveProfile(ctx, blockingProfile("focus", strategy.ManualID))
			start := dev.clock.Now().Add(-2 * time.Hour)
			end := start.Add(time.Hour)
			Expect(dev.bgSnapshots.AppendCompletedSession(domain.SessionSnapshot{
				ID:        "5f0c6b1e-4f4e-4a57-9d3c-8d0f7f6a1c21",
				ProfileID: p.ID,
				StartTime: start,
				EndTime:   &end,
			})).To(Succeed())

			c := dev.relaunch()
			_, err := c.LoadActiveSession(ctx)
			Expect(err).NotTo(HaveOccurred())

			ss := dev.sessions(ctx, p.ID)
			Expect(ss).To(HaveLen(1))
			Expect(ss[0].EndTime.Equal(end)).To(BeTrue())

			pending, err := dev.fgSnapshots.CompletedSessions()
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())

			By("loading again without duplicating history")
			_, err = dev.relaunch().LoadActiveSession(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(dev.sessions(ctx, p.ID)).To(HaveLen(1))
		})

		It("adopts a scheduled session started in the background and closes it at the window end", func() {
			p := blockingProfile("mornings", strategy.ScheduleID)
			start := domain.TimeOfDay{Hour: 9, Minute: 30}
			end := domain.TimeOfDay{Hour: 11}
			p.Schedule = &domain.Schedule{Days: []time.Weekday{time.Monday}, Start: &start, End: &end}
			p = dev.saveProfile(ctx, p)

			due := dev.wake(ctx)
			Expect(due).To(ConsistOf(infra.Wake{
				Name: domain.NewActivityName(domain.RoleSchedule, p.ID),
				Edge: infra.EdgeStart,
			}))
			Expect(dev.hosts()).To(ContainSubstring("store.steampowered.com"))

			c := dev.relaunch()
			active, err := c.LoadActiveSession(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).NotTo(BeNil())
			Expect(active.ProfileID).To(Equal(p.ID))

			dev.clock.Advance(90 * time.Minute)
			dev.wake(ctx)

			active, err = dev.relaunch().LoadActiveSession(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeNil())
			ss := dev.sessions(ctx, p.ID)
			Expect(ss).To(HaveLen(1))
			Expect(ss[0].EndTime).NotTo(BeNil())

			By("keeping the daily registration for tomorrow")
			names, err := dev.fgScheduler.ListActive(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(ConsistOf(domain.NewActivityName(domain.RoleSchedule, p.ID)))
		})

		It("hands off to a window that opens as another closes", func() {
			first := blockingProfile("stand-up", strategy.ScheduleID)
			s1, e1 := domain.TimeOfDay{Hour: 10}, domain.TimeOfDay{Hour: 11}
			first.Schedule = &domain.Schedule{Days: []time.Weekday{time.Monday}, Start: &s1, End: &e1}
			first = dev.saveProfile(ctx, first)

			second := blockingProfile("deep work", strategy.ScheduleID)
			s2, e2 := domain.TimeOfDay{Hour: 11}, domain.TimeOfDay{Hour: 12}
			second.Schedule = &domain.Schedule{Days: []time.Weekday{time.Monday}, Start: &s2, End: &e2}
			second = dev.saveProfile(ctx, second)

			dev.wake(ctx)
			dev.clock.Advance(time.Hour)
			due := dev.wake(ctx)
			Expect(due).To(Equal([]infra.Wake{
				{Name: domain.NewActivityName(domain.RoleSchedule, first.ID), Edge: infra.EdgeEnd},
				{Name: domain.NewActivityName(domain.RoleSchedule, second.ID), Edge: infra.EdgeStart},
			}))

			active, err := dev.relaunch().LoadActiveSession(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).NotTo(BeNil())
			Expect(active.ProfileID).To(Equal(second.ID))
			Expect(active.EndTime).To(BeNil())

			closed := dev.sessions(ctx, first.ID)
			Expect(closed).To(HaveLen(1))
			Expect(closed[0].EndTime).NotTo(BeNil())
			Expect(dev.hosts()).To(ContainSubstring("store.steampowered.com"))
		})
	})

	Describe("background stops disabled", func() {
		It("refuses an automation stop and keeps the session", func() {
			p := blockingProfile("strict", strategy.ManualID)
			p.DisableBackgroundStops = true
			p = dev.saveProfile(ctx, p)

			_, err := dev.coord.Toggle(ctx, p.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = dev.relaunch().StopFromAutomation(ctx, p.ID)

			Expect(err).To(MatchError(domain.ErrPolicyRefusal))
			sess, _ := dev.coord.Current()
			Expect(sess).NotTo(BeNil())
			Expect(dev.hosts()).To(ContainSubstring("store.steampowered.com"))
		})
	})

	Describe("ghost schedules", func() {
		It("cancels the registration of a deleted profile", func() {
			p := blockingProfile("evenings", strategy.ScheduleID)
			start := domain.TimeOfDay{Hour: 19}
			end := domain.TimeOfDay{Hour: 22}
			p.Schedule = &domain.Schedule{Days: []time.Weekday{time.Monday}, Start: &start, End: &end}
			p = dev.saveProfile(ctx, p)

			_, err := dev.history.GetProfile(ctx, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(dev.history.DeleteProfile(ctx, p.ID)).To(Succeed())

			rep, err := dev.coord.CleanupGhostSchedules(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rep.Cancelled).To(ConsistOf(domain.NewActivityName(domain.RoleSchedule, p.ID)))

			names, err := dev.bgScheduler.ListActive(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(BeEmpty())
		})
	})
})
