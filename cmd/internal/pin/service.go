package pin

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"pinbot/cmd/internal/audit"
	"pinbot/cmd/internal/ids"
	"pinbot/cmd/internal/metrics"
	"pinbot/cmd/internal/tier"
)

// PageSize is the fixed search page size.
const PageSize = 10

// Auditor records mutating actions. *audit.Log satisfies it.
type Auditor interface {
	Record(ctx context.Context, action audit.Action, pin *string, performedBy string, details any) error
}

// ArchiveNotifier queues a message for the owner of an archived pin.
type ArchiveNotifier interface {
	Queue(ctx context.Context, userID, message string, sendAt time.Time) error
}

// Service orchestrates pin lifecycle operations over a Store.
type Service struct {
	store    Store
	auditor  Auditor
	notifier ArchiveNotifier
	log      *slog.Logger
	now      func() time.Time
}

// Option configures the Service.
type Option func(*Service) error

// WithAuditor sets the audit sink.
func WithAuditor(a Auditor) Option {
	return func(s *Service) error {
		s.auditor = a
		return nil
	}
}

// WithArchiveNotifier sets the notification queue used by ArchiveExpired.
func WithArchiveNotifier(n ArchiveNotifier) Option {
	return func(s *Service) error {
		s.notifier = n
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) error {
		if log == nil {
			return OpError{Op: "pin.WithLogger", Kind: ErrValidation, Msg: "nil logger"}
		}
		s.log = log
		return nil
	}
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return OpError{Op: "pin.WithClock", Kind: ErrValidation, Msg: "nil clock"}
		}
		s.now = now
		return nil
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, OpError{Op: "pin.NewService", Kind: ErrValidation, Msg: "store required"}
	}
	s := &Service{
		store: store,
		log:   slog.Default(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddInput describes a new pin.
type AddInput struct {
	Code        string
	UserID      string
	UserTag     string
	RoleName    string
	RoleID      string
	PerformedBy string
	Source      string
}

// AddPin issues a pin for a user who has none.
// The stored role name is the tier's display name whatever spelling the caller used.
// Removing the pending-activation role is left to the caller.
func (s *Service) AddPin(ctx context.Context, in AddInput) (Pin, error) {
	const op = "pin.AddPin"
	if err := s.ready(ctx, op); err != nil {
		return Pin{}, err
	}

	code := strings.TrimSpace(in.Code)
	userID := strings.TrimSpace(in.UserID)
	if code == "" || userID == "" {
		return Pin{}, OpError{Op: op, Kind: ErrValidation, Msg: "pin and user id are required"}
	}
	tr, err := tier.Parse(in.RoleName)
	if err != nil {
		return Pin{}, OpError{Op: op, Kind: ErrInvalidRole, Msg: in.RoleName}
	}

	if _, err := s.store.FindOne(ctx, Filter{UserID: userID}); err == nil {
		return Pin{}, OpError{Op: op, Kind: ErrDuplicateUser, Msg: userID}
	} else if !IsNotFound(err) {
		return Pin{}, err
	}

	now := s.now()
	id, err := ids.NewULID(now)
	if err != nil {
		return Pin{}, storeErr(op, err)
	}

	p := Pin{
		ID:        id,
		Code:      code,
		UserID:    userID,
		UserTag:   strings.TrimSpace(in.UserTag),
		RoleName:  tr.DisplayName(),
		RoleID:    strings.TrimSpace(in.RoleID),
		ExpiresAt: tr.ExpiresAt(now),
		CreatedAt: now,
		UpdatedAt: now,
		Metadata: Metadata{
			ContainsLetters: ContainsLetters(code),
			Source:          in.Source,
		},
	}
	p.Status = DeriveStatus(p, now)

	created, err := s.store.Insert(ctx, p)
	if err != nil {
		return Pin{}, err
	}

	s.audit(ctx, audit.ActionAdd, &created.Code, in.PerformedBy, map[string]any{
		"userId":         created.UserID,
		"userTag":        created.UserTag,
		"roleName":       created.RoleName,
		"roleId":         created.RoleID,
		"expirationDate": created.ExpiresAt,
		"status":         created.Status,
	})
	s.log.Info("pin.add", "pin_id", created.ID, "user_id", created.UserID, "role", created.RoleName, "status", created.Status)
	return created, nil
}

// UpdateInfoInput selects a pin by every non-empty field of Code, UserID and
// UserTag and moves it to RoleName.
type UpdateInfoInput struct {
	Code        string
	UserID      string
	UserTag     string
	RoleName    string
	RoleID      string
	PerformedBy string
}

// Change is the before/after view of a mutation.
type Change struct {
	Old Snapshot `json:"oldData"`
	New Snapshot `json:"newData"`
	Pin Pin      `json:"-"`
}

// UpdatePinInfo moves a pin to a tier and recomputes its expiration from now.
func (s *Service) UpdatePinInfo(ctx context.Context, in UpdateInfoInput) (Change, error) {
	const op = "pin.UpdatePinInfo"
	if err := s.ready(ctx, op); err != nil {
		return Change{}, err
	}

	f := Filter{
		Code:    strings.TrimSpace(in.Code),
		UserID:  strings.TrimSpace(in.UserID),
		UserTag: strings.TrimSpace(in.UserTag),
	}
	if f.IsZero() {
		return Change{}, OpError{Op: op, Kind: ErrMissingSelector, Msg: "pin, user id or user tag required"}
	}

	cur, err := s.store.FindOne(ctx, f)
	if err != nil {
		if IsNotFound(err) {
			return Change{}, notFound(op, "no pin for the provided user tag or id")
		}
		return Change{}, err
	}

	tr, err := tier.Parse(in.RoleName)
	if err != nil {
		return Change{}, OpError{Op: op, Kind: ErrInvalidRole, Msg: in.RoleName}
	}

	now := s.now()
	next := cur
	next.RoleName = tr.DisplayName()
	if rid := strings.TrimSpace(in.RoleID); rid != "" && rid != cur.RoleID {
		next.RoleID = rid
	}
	next.ExpiresAt = tr.ExpiresAt(now)
	next.UpdatedAt = now
	next.Status = DeriveStatus(next, now)

	saved, err := s.store.Update(ctx, next)
	if err != nil {
		return Change{}, err
	}

	ch := Change{Old: cur.Snapshot(), New: saved.Snapshot(), Pin: saved}
	by := in.PerformedBy
	if by == "" {
		by = cur.UserID
	}
	s.audit(ctx, audit.ActionUpdate, &saved.Code, by, ch)
	s.log.Info("pin.update", "pin_id", saved.ID, "old_role", ch.Old.RoleName, "new_role", ch.New.RoleName)
	return ch, nil
}

// ExpiryInput selects a pin by Code, then by UserTag, and sets its expiration to Date.
type ExpiryInput struct {
	Code        string
	UserTag     string
	Date        string
	PerformedBy string
}

// UpdateExpiry overrides a pin's expiration with an explicit calendar date.
// The tier policy is not consulted.
func (s *Service) UpdateExpiry(ctx context.Context, in ExpiryInput) (Change, error) {
	const op = "pin.UpdateExpiry"
	if err := s.ready(ctx, op); err != nil {
		return Change{}, err
	}

	code := strings.TrimSpace(in.Code)
	tag := strings.TrimSpace(in.UserTag)
	if code == "" && tag == "" {
		return Change{}, OpError{Op: op, Kind: ErrMissingSelector, Msg: "pin or user tag required"}
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return Change{}, OpError{Op: op, Kind: ErrInvalidDate, Msg: in.Date}
	}

	cur, err := s.findByCodeOrTag(ctx, code, tag)
	if err != nil {
		if IsNotFound(err) {
			return Change{}, notFound(op, "no pin for the provided criteria")
		}
		return Change{}, err
	}

	now := s.now()
	next := cur
	next.ExpiresAt = date
	next.UpdatedAt = now
	next.Status = DeriveStatus(next, now)

	saved, err := s.store.Update(ctx, next)
	if err != nil {
		return Change{}, err
	}

	ch := Change{Old: cur.Snapshot(), New: saved.Snapshot(), Pin: saved}
	s.audit(ctx, audit.ActionUpdateExpiry, &saved.Code, in.PerformedBy, ch)
	s.log.Info("pin.update_expiry", "pin_id", saved.ID, "expires_at", saved.ExpiresAt)
	return ch, nil
}

func (s *Service) findByCodeOrTag(ctx context.Context, code, tag string) (Pin, error) {
	if code != "" {
		p, err := s.store.FindOne(ctx, Filter{Code: code})
		if err == nil || !IsNotFound(err) || tag == "" {
			return p, err
		}
	}
	return s.store.FindOne(ctx, Filter{UserTag: tag})
}

// DeletePin removes the pin with code.
func (s *Service) DeletePin(ctx context.Context, code, performedBy string) (Pin, error) {
	const op = "pin.DeletePin"
	if err := s.ready(ctx, op); err != nil {
		return Pin{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return Pin{}, OpError{Op: op, Kind: ErrMissingSelector, Msg: "pin required"}
	}

	deleted, err := s.store.DeleteOne(ctx, Filter{Code: code})
	if err != nil {
		if IsNotFound(err) {
			return Pin{}, notFound(op, "no pin found to delete")
		}
		return Pin{}, err
	}

	s.audit(ctx, audit.ActionDelete, &deleted.Code, performedBy, deleted)
	s.log.Info("pin.delete", "pin_id", deleted.ID, "user_id", deleted.UserID)
	return deleted, nil
}

// DeletePinsByUserTag removes every pin owned by tag and returns how many were removed.
// Zero is not an error.
func (s *Service) DeletePinsByUserTag(ctx context.Context, tag, performedBy string) (int, error) {
	const op = "pin.DeletePinsByUserTag"
	if err := s.ready(ctx, op); err != nil {
		return 0, err
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return 0, OpError{Op: op, Kind: ErrMissingSelector, Msg: "user tag required"}
	}

	deleted, err := s.store.DeleteMany(ctx, Filter{UserTag: tag})
	if err != nil {
		return 0, err
	}
	if len(deleted) == 0 {
		return 0, nil
	}

	s.audit(ctx, audit.ActionDelete, nil, performedBy, map[string]any{
		"userTag":      tag,
		"deletedCount": len(deleted),
		"pins":         deleted,
	})
	s.log.Info("pin.delete_by_tag", "user_tag", tag, "count", len(deleted))
	return len(deleted), nil
}

// FindByUsername lists pins whose user tag equals tag.
func (s *Service) FindByUsername(ctx context.Context, tag string) ([]Pin, error) {
	const op = "pin.FindByUsername"
	if err := s.ready(ctx, op); err != nil {
		return nil, err
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, OpError{Op: op, Kind: ErrMissingSelector, Msg: "user tag required"}
	}
	return s.find(ctx, Filter{UserTag: tag})
}

// FindByUserID lists pins owned by userID.
func (s *Service) FindByUserID(ctx context.Context, userID string) ([]Pin, error) {
	const op = "pin.FindByUserID"
	if err := s.ready(ctx, op); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, OpError{Op: op, Kind: ErrMissingSelector, Msg: "user id required"}
	}
	return s.find(ctx, Filter{UserID: userID})
}

func (s *Service) find(ctx context.Context, f Filter) ([]Pin, error) {
	pins, err := s.store.Find(ctx, f)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range pins {
		pins[i].Status = DeriveStatus(pins[i], now)
	}
	return pins, nil
}

// SearchInput is a paged substring search on one field.
type SearchInput struct {
	Field SearchField
	Term  string
	Page  int
}

// Page is one page of search results.
type Page struct {
	Items      []Pin
	Page       int
	TotalPages int
	Total      int
	PageSize   int
}

// Search matches Term case-insensitively as a substring of Field.
// No matches yields an empty page. A page outside [1, TotalPages] is ErrInvalidPage.
func (s *Service) Search(ctx context.Context, in SearchInput) (Page, error) {
	const op = "pin.Search"
	if err := s.ready(ctx, op); err != nil {
		return Page{}, err
	}
	term := strings.TrimSpace(in.Term)
	if !in.Field.Valid() || term == "" {
		return Page{}, OpError{Op: op, Kind: ErrMissingSelector, Msg: "exactly one of pin, userTag, roleName required"}
	}
	if in.Page < 1 {
		return Page{}, OpError{Op: op, Kind: ErrInvalidPage, Msg: "page must be at least 1"}
	}

	items, total, err := s.store.Search(ctx, SearchQuery{
		Field:  in.Field,
		Term:   term,
		Offset: (in.Page - 1) * PageSize,
		Limit:  PageSize,
	})
	if err != nil {
		return Page{}, err
	}

	out := Page{Items: []Pin{}, Page: in.Page, Total: total, PageSize: PageSize}
	if total == 0 {
		return out, nil
	}
	out.TotalPages = (total + PageSize - 1) / PageSize
	if in.Page > out.TotalPages {
		return Page{}, OpError{Op: op, Kind: ErrInvalidPage, Msg: "page out of range"}
	}

	now := s.now()
	for i := range items {
		items[i].Status = DeriveStatus(items[i], now)
	}
	out.Items = items
	return out, nil
}

func (s *Service) ready(ctx context.Context, op string) error {
	if s == nil || s.store == nil {
		return OpError{Op: op, Kind: ErrValidation, Msg: "service not configured"}
	}
	return ctx.Err()
}

// audit writes an entry after the primary mutation committed. Failures are
// logged and counted but do not fail the operation.
func (s *Service) audit(ctx context.Context, action audit.Action, code *string, performedBy string, details any) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, action, code, performedBy, details); err != nil {
		metrics.AuditWriteFailures.WithLabelValues(string(action)).Inc()
		s.log.Error("pin.audit.write.fail", "action", action, "err", err)
	}
}
