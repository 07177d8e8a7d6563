// Package job runs the periodic digest, archive sweep and daily follow-up report.
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/internal/config"
	"github.com/mbeoliero/supportdesk/internal/metrics"
	"github.com/mbeoliero/supportdesk/internal/service"
	"github.com/mbeoliero/supportdesk/internal/transport"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// Job names, used in metrics and lock keys
const (
	JobDigest       = "digest"
	JobArchiveSweep = "archive_sweep"
	JobDailyReport  = "daily_report"
)

const reportLockTTL = 25 * time.Hour

// Runner schedules the periodic jobs
type Runner struct {
	cfg           *config.SupportConfig
	transport     transport.Transport
	conversations *service.ConversationService
	followUps     *service.FollowUpService
	binder        *service.TopicBinder
	rdb           *redis.Client
	now           service.Clock
	instanceId    string
	cron          *cron.Cron
}

// Deps groups the collaborators of Runner
type Deps struct {
	Config        *config.SupportConfig
	Transport     transport.Transport
	Conversations *service.ConversationService
	FollowUps     *service.FollowUpService
	Binder        *service.TopicBinder
	// Redis guards the daily report across instances; nil runs it unguarded
	Redis      *redis.Client
	Now        service.Clock
	InstanceId string
}

// NewRunner creates a new Runner
func NewRunner(deps Deps) *Runner {
	return &Runner{
		cfg:           deps.Config,
		transport:     deps.Transport,
		conversations: deps.Conversations,
		followUps:     deps.FollowUps,
		binder:        deps.Binder,
		rdb:           deps.Redis,
		now:           deps.Now,
		instanceId:    deps.InstanceId,
	}
}

// Start registers the schedules and starts the cron loop
func (r *Runner) Start(ctx context.Context) error {
	logger := cronLogger{}
	r.cron = cron.New(
		cron.WithLocation(time.Local),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	schedules := []struct {
		spec string
		name string
		run  func(ctx context.Context) error
	}{
		{fmt.Sprintf("@every %dm", r.cfg.DigestIntervalMinutes), JobDigest, r.RunDigest},
		{fmt.Sprintf("@every %dm", r.cfg.ArchiveSweepMinutes), JobArchiveSweep, r.RunArchiveSweep},
		{fmt.Sprintf("0 %d * * *", r.cfg.FollowUpReportHour), JobDailyReport, r.RunDailyReport},
	}
	for _, s := range schedules {
		name, run := s.name, s.run
		if _, err := r.cron.AddFunc(s.spec, func() { r.execute(ctx, name, run) }); err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
		log.CtxInfo(ctx, "job scheduled: name=%s, spec=%s", name, s.spec)
	}

	r.cron.Start()
	return nil
}

// Stop stops scheduling and waits for running jobs
func (r *Runner) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}

func (r *Runner) execute(ctx context.Context, name string, run func(ctx context.Context) error) {
	start := time.Now()
	err := run(ctx)
	metrics.ObserveJob(name, err == nil)
	if err != nil {
		log.CtxError(ctx, "job failed: name=%s, error=%v", name, err)
		return
	}
	log.CtxDebug(ctx, "job finished: name=%s, took=%s", name, time.Since(start))
}

// RunDigest reminds the workspace of unread conversations waiting too long
func (r *Runner) RunDigest(ctx context.Context) error {
	age := time.Duration(r.cfg.DigestUnreadAfterMinutes) * time.Minute
	stale, err := r.conversations.ListStaleUnread(ctx, age)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}
	return r.post(ctx, service.RenderDigest(stale, r.now()))
}

// RunArchiveSweep archives conversations without messages for the retention window and
// closes their topics
func (r *Runner) RunArchiveSweep(ctx context.Context) error {
	age := time.Duration(r.cfg.ArchiveAfterDays) * 24 * time.Hour
	inactive, err := r.conversations.ListInactive(ctx, age)
	if err != nil {
		return err
	}

	archived := 0
	for _, conv := range inactive {
		r.binder.CloseTopic(ctx, conv.Topic())
		if _, err := r.conversations.Archive(ctx, conv.UserId); err != nil {
			log.CtxWarn(ctx, "archive sweep skipped conversation: user_id=%d, error=%v", conv.UserId, err)
			continue
		}
		archived++
	}
	if archived > 0 {
		log.CtxInfo(ctx, "archive sweep: archived=%d", archived)
	}
	return nil
}

// RunDailyReport posts the follow-up report once per day and advances the reminder stage of
// every conversation it lists
func (r *Runner) RunDailyReport(ctx context.Context) error {
	acquired, err := r.acquireDailyLock(ctx, JobDailyReport)
	if err != nil {
		// a duplicate report beats a missing one
		log.CtxWarn(ctx, "daily report lock failed, running unguarded: %v", err)
	} else if !acquired {
		log.CtxInfo(ctx, "daily report already posted by another instance")
		return nil
	}

	due, err := r.followUps.ListDue(ctx)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	if err := r.post(ctx, service.RenderMorningReport(due, r.now())); err != nil {
		return err
	}

	for _, conv := range due {
		if _, err := r.followUps.AdvanceStage(ctx, conv.UserId); err != nil {
			log.CtxWarn(ctx, "advance follow-up stage failed: user_id=%d, error=%v", conv.UserId, err)
		}
	}
	return nil
}

func (r *Runner) acquireDailyLock(ctx context.Context, name string) (bool, error) {
	if r.rdb == nil {
		return true, nil
	}
	key := fmt.Sprintf(constant.RedisKeyJobLock(), name, r.now().Format("2006-01-02"))
	return r.rdb.SetNX(ctx, key, r.instanceId, reportLockTTL).Result()
}

func (r *Runner) post(ctx context.Context, text string) error {
	_, err := r.transport.SendText(ctx, transport.Target{ChatId: r.transport.WorkspaceChatId()}, text, true)
	return err
}

// cronLogger routes cron's own logging through the service logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.CtxError(context.Background(), "cron: %s: %v %v", msg, err, keysAndValues)
}
