package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pinbot/cmd/internal/guildconfig"
	"pinbot/cmd/internal/notify"
	"pinbot/cmd/internal/pin"
)

// Job names, also used as metric labels.
const (
	JobSweep   = "sweep"
	JobArchive = "archive"
	JobNotify  = "notify"
)

// PerformedBySystem is the audit actor of scheduled maintenance.
const PerformedBySystem = "system"

type ConfigLister interface {
	List(ctx context.Context) ([]guildconfig.ServerConfig, error)
}

type Sweeper interface {
	Sweep(ctx context.Context, guildID string, repair bool) error
}

type Archiver interface {
	ArchiveExpired(ctx context.Context, performedBy string) ([]pin.Pin, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, limit int) (notify.Stats, error)
}

// SweepJob reconciles and reports every configured guild. One failing guild
// does not stop the others.
func SweepJob(every time.Duration, configs ConfigLister, s Sweeper, repair bool, log *slog.Logger) Job {
	return Job{
		Name:  JobSweep,
		Every: every,
		Run: func(ctx context.Context) error {
			cfgs, err := configs.List(ctx)
			if err != nil {
				return fmt.Errorf("list configs: %w", err)
			}
			var errs []error
			for _, c := range cfgs {
				if err := s.Sweep(ctx, c.GuildID, repair); err != nil {
					errs = append(errs, fmt.Errorf("guild %s: %w", c.GuildID, err))
				}
				if ctx.Err() != nil {
					break
				}
			}
			log.Info("schedule.sweep", "guilds", len(cfgs), "repair", repair, "failed", len(errs))
			return errors.Join(errs...)
		},
	}
}

// ArchiveJob moves expired pins to the archive.
func ArchiveJob(every time.Duration, a Archiver, log *slog.Logger) Job {
	return Job{
		Name:  JobArchive,
		Every: every,
		Run: func(ctx context.Context) error {
			moved, err := a.ArchiveExpired(ctx, PerformedBySystem)
			log.Info("schedule.archive", "archived", len(moved))
			return err
		},
	}
}

// NotifyJob delivers due notifications.
func NotifyJob(every time.Duration, d Dispatcher, log *slog.Logger) Job {
	return Job{
		Name:      JobNotify,
		Every:     every,
		Immediate: true,
		Run: func(ctx context.Context) error {
			st, err := d.Dispatch(ctx, notify.DefaultBatch)
			if st.Sent+st.Retried+st.Failed > 0 {
				log.Info("schedule.notify", "sent", st.Sent, "retried", st.Retried, "failed", st.Failed)
			}
			return err
		},
	}
}
