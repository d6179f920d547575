package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"atomicgo.dev/schedule"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/metrics"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/ui"
	"github.com/ohmynofan/nodeseek-checkin-bot/pkg/utils"
)

const SummaryJobName = "admin_summary"

// Timer is an armed one-shot callback.
type Timer interface {
	Stop()
}

// TimerFunc arms fn to run once at the given instant.
type TimerFunc func(at time.Time, fn func()) Timer

func DefaultTimer(at time.Time, fn func()) Timer {
	return schedule.At(at, fn)
}

type UserJob func(ctx context.Context, uid string)

type SummaryJob func(ctx context.Context)

type job struct {
	name   string
	uid    string
	hour   int
	minute int
	next   time.Time
	timer  Timer
}

type Job struct {
	Name    string
	UserID  string
	Hour    int
	Minute  int
	NextRun time.Time
}

type Options struct {
	Location   *time.Location
	JitterMax  time.Duration
	Timer      TimerFunc
	UserJob    UserJob
	SummaryJob SummaryJob
}

// Scheduler keeps one daily timer per user plus the admin summary. Each
// firing re-arms the timer for the next day before the job starts.
type Scheduler struct {
	ctx        context.Context
	loc        *time.Location
	jitterMax  time.Duration
	timer      TimerFunc
	userJob    UserJob
	summaryJob SummaryJob
	now        func() time.Time
	jitter     func(max time.Duration) time.Duration

	mu      sync.Mutex
	users   map[string]*job
	summary *job
	stopped bool
	running sync.WaitGroup
	log     *logger.ClassLogger
}

func New(ctx context.Context, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Timer == nil {
		opts.Timer = DefaultTimer
	}
	s := &Scheduler{
		ctx:        ctx,
		loc:        opts.Location,
		jitterMax:  opts.JitterMax,
		timer:      opts.Timer,
		userJob:    opts.UserJob,
		summaryJob: opts.SummaryJob,
		now:        time.Now,
		jitter:     utils.RandomDuration,
		users:      map[string]*job{},
	}
	s.log = logger.NewLogger(s, nil)
	return s
}

func UserJobName(uid string) string {
	return fmt.Sprintf("user_%s_daily_check", uid)
}

// Register (re)arms the user's daily check-in. An existing timer for the
// user is cancelled first.
func (s *Scheduler) Register(uid string, hour, minute int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if old, ok := s.users[uid]; ok {
		old.timer.Stop()
	}
	j := &job{name: UserJobName(uid), uid: uid, hour: hour, minute: minute}
	s.users[uid] = j
	s.arm(j)
	metrics.ScheduledUsers.Set(float64(len(s.users)))
	s.log.JustLog(fmt.Sprintf("Registered %s at %02d:%02d, next run %s", j.name, hour, minute, j.next.Format(time.RFC3339)))
}

func (s *Scheduler) Remove(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.users[uid]; ok {
		j.timer.Stop()
		delete(s.users, uid)
		s.log.JustLog("Removed " + j.name)
	}
	metrics.ScheduledUsers.Set(float64(len(s.users)))
}

// RegisterAll arms a timer for every user with accounts. A load error leaves
// no user timers armed.
func (s *Scheduler) RegisterAll(load func() (*model.Data, error)) error {
	data, err := load()
	if err != nil {
		s.log.Error(fmt.Sprintf("Could not load users for scheduling: %v", err))
		return err
	}
	for _, uid := range data.UserIDs() {
		u := data.Users[uid]
		if !u.HasAccounts() {
			continue
		}
		s.Register(uid, u.SignHour, u.SignMinute)
	}
	s.PrintSchedule()
	return nil
}

func (s *Scheduler) RegisterSummary(hour, minute int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.summary != nil {
		s.summary.timer.Stop()
	}
	s.summary = &job{name: SummaryJobName, hour: hour, minute: minute}
	s.arm(s.summary)
}

// arm must be called with mu held.
func (s *Scheduler) arm(j *job) {
	j.next = nextOccurrence(s.now(), j.hour, j.minute, s.loc)
	j.timer = s.timer(j.next, func() { s.fire(j) })
}

func (s *Scheduler) fire(j *job) {
	s.mu.Lock()
	current := s.summary == j
	if j.uid != "" {
		current = s.users[j.uid] == j
	}
	if s.stopped || !current {
		s.mu.Unlock()
		return
	}
	s.arm(j)
	s.running.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.running.Done()
		if j.uid == "" {
			if s.summaryJob != nil {
				s.summaryJob(s.ctx)
			}
			return
		}
		delay := s.jitter(s.jitterMax)
		s.log.JustLog(fmt.Sprintf("%s fired, starting in %s", j.name, ui.FormatDelay(delay)))
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(delay):
		}
		if s.userJob != nil {
			s.userJob(s.ctx, j.uid)
		}
	}()
}

// Jobs lists armed timers, the summary first then users by id.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Job
	if s.summary != nil {
		out = append(out, s.summary.info())
	}
	ids := make([]string, 0, len(s.users))
	for uid := range s.users {
		ids = append(ids, uid)
	}
	sort.Strings(ids)
	for _, uid := range ids {
		out = append(out, s.users[uid].info())
	}
	return out
}

func (j *job) info() Job {
	return Job{Name: j.name, UserID: j.uid, Hour: j.hour, Minute: j.minute, NextRun: j.next}
}

func (s *Scheduler) PrintSchedule() {
	jobs := s.Jobs()
	rows := make([]ui.ScheduleRow, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, ui.ScheduleRow{Name: j.Name, NextRun: j.NextRun})
	}
	ui.PrintSchedule(rows, s.now())
}

// Stop cancels every timer and waits for jobs already started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for _, j := range s.users {
		j.timer.Stop()
	}
	if s.summary != nil {
		s.summary.timer.Stop()
	}
	s.mu.Unlock()
	s.running.Wait()
}

func nextOccurrence(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
