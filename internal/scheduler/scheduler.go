// Package scheduler implements spec §4.9's Proactive Scheduler: cron and
// interval jobs, running in the same process as the rest of the engine,
// that call the Graph Service's proactive reads and push the results to
// connected clients.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/khazna/khazna/internal/backup"
	"github.com/khazna/khazna/internal/graphsvc"
	"github.com/khazna/khazna/internal/push"
)

// Config is the schedule and threshold configuration for the Scheduler's
// jobs, sourced from [github.com/khazna/khazna/internal/config.SchedulerConfig]
// plus the root timezone offset.
type Config struct {
	// TimezoneOffsetHours is the fixed UTC offset jobs schedule against
	// (spec: "default 3 = Asia/Riyadh"). All "local hour" fields below are
	// hours in this timezone.
	TimezoneOffsetHours int

	MorningHour int // cron, e.g. 7 for 07:00 local.
	NoonHour    int
	EveningHour int
	BackupHour  int

	ReminderCheckIntervalMinutes int
	SmartAlertIntervalHours      int

	RetentionDays      int
	StalledProjectDays int
	OldDebtDays        int
}

// Deps are the collaborators Scheduler jobs call into.
type Deps struct {
	Graph  *graphsvc.Service
	Backup *backup.Service
	Push   *push.Hub
	Logger *slog.Logger
}

// Scheduler drives the Proactive Scheduler's six jobs (spec §4.9) via
// cron. The zero value is not usable; construct with [New].
type Scheduler struct {
	cron *cron.Cron
	deps Deps
	cfg  Config
	now  func() time.Time
}

// New builds a Scheduler and registers all six jobs, but does not start
// running them — call [Scheduler.Start] for that.
func New(deps Deps, cfg Config) (*Scheduler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		deps: deps,
		cfg:  cfg,
		now:  time.Now,
	}
	if err := s.registerJobs(); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for any in-flight job to finish, then stops the scheduler.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// localHourToUTCSpec converts a local-hour-of-day cron job into a UTC cron
// spec, per spec §4.9's literal formula: `(local_hour - tz_offset_hours)
// mod 24`.
func localHourToUTCSpec(localHour, tzOffsetHours int) string {
	utcHour := ((localHour-tzOffsetHours)%24 + 24) % 24
	return fmt.Sprintf("0 %d * * *", utcHour)
}

func (s *Scheduler) registerJobs() error {
	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"morning-summary", localHourToUTCSpec(s.cfg.MorningHour, s.cfg.TimezoneOffsetHours), s.wrap("morning-summary", s.runMorningSummary)},
		{"noon-checkin", localHourToUTCSpec(s.cfg.NoonHour, s.cfg.TimezoneOffsetHours), s.wrap("noon-checkin", s.runNoonCheckin)},
		{"evening-summary", localHourToUTCSpec(s.cfg.EveningHour, s.cfg.TimezoneOffsetHours), s.wrap("evening-summary", s.runEveningSummary)},
		{"reminder-check", fmt.Sprintf("@every %dm", s.cfg.ReminderCheckIntervalMinutes), s.wrap("reminder-check", s.runReminderCheck)},
		{"smart-alerts", fmt.Sprintf("@every %dh", s.cfg.SmartAlertIntervalHours), s.wrap("smart-alerts", s.runSmartAlerts)},
		{"daily-backup", localHourToUTCSpec(s.cfg.BackupHour, s.cfg.TimezoneOffsetHours), s.wrap("daily-backup", s.runDailyBackup)},
	}
	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("scheduler: register job %q (%q): %w", j.name, j.spec, err)
		}
	}
	return nil
}

// wrap adapts a context-taking job body into the no-arg func cron.AddFunc
// expects, logging and swallowing any error — a failed proactive job must
// never crash the process, only the next tick gets another chance.
func (s *Scheduler) wrap(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.deps.Logger.Error("scheduler: job failed", "job", name, "error", err)
		}
	}
}

// localNow returns the current instant with its display Location set to
// the configured fixed offset, so calendar-day math (Format, Truncate)
// reflects local wall-clock boundaries. This changes how the instant is
// displayed, not the instant itself — Before/After comparisons against
// stored due_date values remain correct.
func (s *Scheduler) localNow() time.Time {
	loc := time.FixedZone("khazna-local", s.cfg.TimezoneOffsetHours*3600)
	return s.now().In(loc)
}
