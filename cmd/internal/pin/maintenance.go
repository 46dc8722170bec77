package pin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pinbot/cmd/internal/audit"
	"pinbot/cmd/internal/ids"
)

// DefaultExpiringWindow is the look-ahead used when ExpiringWithin gets no window.
const DefaultExpiringWindow = 30 * 24 * time.Hour

// Defaults written by Backfill into legacy records.
const (
	BackfillRoleID   = "unknown"
	BackfillRoleName = "unknown"
)

// ExpiringWithin lists pins expiring between now and now+window.
func (s *Service) ExpiringWithin(ctx context.Context, window time.Duration) ([]Pin, error) {
	if err := s.ready(ctx, "pin.ExpiringWithin"); err != nil {
		return nil, err
	}
	if window <= 0 {
		window = DefaultExpiringWindow
	}
	now := s.now()
	return s.find(ctx, Filter{ExpiresFrom: now, ExpiresTo: now.Add(window)})
}

// ArchiveMessage is the notification text queued for an archived pin.
func ArchiveMessage(code string) string {
	return fmt.Sprintf("Your pin %s has been archived.", code)
}

// ArchiveExpired moves every expired pin into the archive, audits each move
// and queues a notification for its owner. Per-pin failures are joined into
// the returned error; the pins that moved are still returned.
func (s *Service) ArchiveExpired(ctx context.Context, performedBy string) ([]Pin, error) {
	const op = "pin.ArchiveExpired"
	if err := s.ready(ctx, op); err != nil {
		return nil, err
	}

	now := s.now()
	expired, err := s.store.Find(ctx, Filter{ExpiredBefore: now})
	if err != nil {
		return nil, err
	}

	var (
		archived []Pin
		errs     []error
	)
	for _, p := range expired {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.store.Archive(ctx, p, now); err != nil {
			s.log.Warn("pin.archive.fail", "pin_id", p.ID, "err", err)
			errs = append(errs, fmt.Errorf("archive %s: %w", p.ID, err))
			continue
		}
		p.Status = StatusArchived
		archived = append(archived, p)

		s.audit(ctx, audit.ActionArchive, &p.Code, performedBy, map[string]any{
			"userId":         p.UserID,
			"roleName":       p.RoleName,
			"expirationDate": p.ExpiresAt,
			"archivedAt":     now,
		})

		if s.notifier != nil {
			if err := s.notifier.Queue(ctx, p.UserID, ArchiveMessage(p.Code), now); err != nil {
				s.log.Warn("pin.archive.notify.fail", "pin_id", p.ID, "err", err)
			}
		}
	}

	s.log.Info("pin.archive", "expired", len(expired), "archived", len(archived))
	return archived, errors.Join(errs...)
}

// LetterReport summarises pins whose code contains letters.
type LetterReport struct {
	Scanned     int            `json:"scanned" yaml:"scanned"`
	WithLetters int            `json:"withLetters" yaml:"withLetters"`
	NewlyMarked int            `json:"newlyMarked" yaml:"newlyMarked"`
	ByRole      map[string]int `json:"byRole" yaml:"byRole"`
	Pins        []Pin          `json:"pins" yaml:"pins"`
}

// FlagLettered marks metadata.containsLetters on every pin whose code has a letter.
func (s *Service) FlagLettered(ctx context.Context) (LetterReport, error) {
	const op = "pin.FlagLettered"
	if err := s.ready(ctx, op); err != nil {
		return LetterReport{}, err
	}

	total, err := s.store.Count(ctx, Filter{})
	if err != nil {
		return LetterReport{}, err
	}
	lettered, err := s.store.Find(ctx, Filter{Lettered: true})
	if err != nil {
		return LetterReport{}, err
	}

	rep := LetterReport{Scanned: total, WithLetters: len(lettered), ByRole: map[string]int{}, Pins: lettered}
	for i, p := range lettered {
		rep.ByRole[p.RoleName]++
		if p.Metadata.ContainsLetters {
			continue
		}
		p.Metadata.ContainsLetters = true
		saved, err := s.store.Update(ctx, p)
		if err != nil {
			return rep, err
		}
		rep.Pins[i] = saved
		rep.NewlyMarked++
	}

	s.log.Info("pin.flag_lettered", "scanned", rep.Scanned, "with_letters", rep.WithLetters, "newly_marked", rep.NewlyMarked)
	return rep, nil
}

// Backfill fills defaults into records written before the current schema and
// re-derives their status. It returns the number of records changed.
func (s *Service) Backfill(ctx context.Context) (int, error) {
	const op = "pin.Backfill"
	if err := s.ready(ctx, op); err != nil {
		return 0, err
	}

	all, err := s.store.Find(ctx, Filter{})
	if err != nil {
		return 0, err
	}

	now := s.now()
	changed := 0
	for _, p := range all {
		next, dirty := backfill(p, now)
		if !dirty {
			continue
		}
		if _, err := s.store.Update(ctx, next); err != nil {
			return changed, err
		}
		changed++
	}

	s.log.Info("pin.backfill", "scanned", len(all), "changed", changed)
	return changed, nil
}

func backfill(p Pin, now time.Time) (Pin, bool) {
	dirty := false
	if p.RoleID == "" {
		p.RoleID = BackfillRoleID
		dirty = true
	}
	if p.RoleName == "" {
		p.RoleName = BackfillRoleName
		dirty = true
	}
	if p.CreatedAt.IsZero() {
		if t, ok := ids.ULIDTime(p.ID); ok {
			p.CreatedAt = t
		} else {
			p.CreatedAt = now
		}
		dirty = true
	}
	if p.ContainsLettersUnmarked() {
		p.Metadata.ContainsLetters = true
		dirty = true
	}
	if st := DeriveStatus(p, now); st != p.Status {
		p.Status = st
		dirty = true
	}
	if dirty || p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
		dirty = true
	}
	return p, dirty
}

// ContainsLettersUnmarked reports a lettered code whose metadata flag is not set.
func (p Pin) ContainsLettersUnmarked() bool {
	return !p.Metadata.ContainsLetters && ContainsLetters(p.Code)
}
