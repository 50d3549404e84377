package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/padelhub/match-system/models"
	"github.com/padelhub/match-system/repositories"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// In-memory repository doubles. They mimic the guarantees the postgres
// implementations document: version-guarded match writes, lazily created
// medal progress rows, the applied-results idempotency guard.

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	nextID  int
	matches map[int]*models.Match

	// conflictsLeft makes the next N guarded writes fail with a version
	// conflict, simulating a concurrent writer.
	conflictsLeft int
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{nextID: 1, matches: make(map[int]*models.Match)}
}

func copyMatch(m *models.Match) *models.Match {
	cp := *m
	cp.Team1 = append([]int(nil), m.Team1...)
	cp.Team2 = append([]int(nil), m.Team2...)
	if m.Score != nil {
		score := *m.Score
		cp.Score = &score
	}
	return &cp
}

func (r *fakeMatchRepo) Create(ctx context.Context, match *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match.ID = r.nextID
	r.nextID++
	match.Version = 1
	match.CreatedAt = time.Now()
	r.matches[match.ID] = copyMatch(match)
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return copyMatch(match), nil
}

func (r *fakeMatchRepo) ListUpcoming(ctx context.Context, filter repositories.MatchFilter) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]*models.Match, 0, len(r.matches))
	for _, match := range r.matches {
		list = append(list, copyMatch(match))
	}
	return list, nil
}

func (r *fakeMatchRepo) ListDueForCancellation(ctx context.Context, cutoff time.Time) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	due := make([]*models.Match, 0)
	for _, match := range r.matches {
		if match.Status.Terminal() || match.IsFull() {
			continue
		}
		if !match.StartTime.After(cutoff) {
			due = append(due, copyMatch(match))
		}
	}
	return due, nil
}

func (r *fakeMatchRepo) UpdateRoster(ctx context.Context, match *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		// Чужая запись успела раньше: версия в БД уходит вперёд.
		if stored, ok := r.matches[match.ID]; ok {
			stored.Version++
		}
		return repositories.ErrMatchVersionConflict
	}
	stored, ok := r.matches[match.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if stored.Version != match.Version {
		return repositories.ErrMatchVersionConflict
	}
	match.Version++
	r.matches[match.ID] = copyMatch(match)
	return nil
}

func (r *fakeMatchRepo) UpdateStatus(ctx context.Context, id int, from []models.MatchStatus, to models.MatchStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.matches[id]
	if !ok {
		return false, repositories.ErrMatchNotFound
	}
	for _, status := range from {
		if stored.Status == status {
			stored.Status = to
			stored.Version++
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeMatchRepo) SetResult(ctx context.Context, match *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.matches[match.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if stored.Version != match.Version || stored.Score != nil {
		return repositories.ErrMatchVersionConflict
	}
	match.Version++
	r.matches[match.ID] = copyMatch(match)
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[int]*models.User
}

func newFakeUserRepo(ids ...int) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[int]*models.User)}
	for _, id := range ids {
		repo.users[id] = &models.User{
			ID:       id,
			Nickname: fmt.Sprintf("player%d", id),
			Email:    fmt.Sprintf("player%d@example.com", id),
			Role:     models.RolePlayer,
		}
	}
	return repo
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = len(r.users) + 1
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) ListByIDs(ctx context.Context, ids []int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			cp := *user
			list = append(list, &cp)
		}
	}
	return list, nil
}

func (r *fakeUserRepo) UpdateAvatarKey(ctx context.Context, id int, key *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	user.AvatarKey = key
	return nil
}

type fakeMedalRepo struct {
	mu       sync.Mutex
	defs     []*models.MedalDefinition
	progress map[string]*models.UserMedalProgress
}

func newFakeMedalRepo(defs ...models.MedalDefinition) *fakeMedalRepo {
	repo := &fakeMedalRepo{progress: make(map[string]*models.UserMedalProgress)}
	for i := range defs {
		repo.defs = append(repo.defs, &defs[i])
	}
	return repo
}

func progressKey(userID int, code string) string {
	return fmt.Sprintf("%d|%s", userID, code)
}

func (r *fakeMedalRepo) UpsertDefinition(ctx context.Context, def *models.MedalDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.defs {
		if existing.Code == def.Code {
			r.defs[i] = def
			return nil
		}
	}
	r.defs = append(r.defs, def)
	return nil
}

func (r *fakeMedalRepo) ListDefinitions(ctx context.Context) ([]*models.MedalDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.MedalDefinition(nil), r.defs...), nil
}

func (r *fakeMedalRepo) GetProgress(ctx context.Context, userID int, medalCode string) (*models.UserMedalProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	progress, ok := r.progress[progressKey(userID, medalCode)]
	if !ok {
		return nil, nil
	}
	cp := *progress
	cp.OpponentIDs = append([]int(nil), progress.OpponentIDs...)
	return &cp, nil
}

func (r *fakeMedalRepo) UpsertProgress(ctx context.Context, progress *models.UserMedalProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *progress
	cp.OpponentIDs = append([]int(nil), progress.OpponentIDs...)
	r.progress[progressKey(progress.UserID, progress.MedalCode)] = &cp
	return nil
}

func (r *fakeMedalRepo) ListProgressByUser(ctx context.Context, userID int) ([]*models.UserMedalProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]*models.UserMedalProgress, 0)
	for _, progress := range r.progress {
		if progress.UserID == userID {
			cp := *progress
			list = append(list, &cp)
		}
	}
	return list, nil
}

type fakeStatsRepo struct {
	mu      sync.Mutex
	stats   map[int]*models.PlayerStats
	applied map[string]bool
}

func newFakeStatsRepo() *fakeStatsRepo {
	return &fakeStatsRepo{
		stats:   make(map[int]*models.PlayerStats),
		applied: make(map[string]bool),
	}
}

func (r *fakeStatsRepo) MarkResultApplied(ctx context.Context, matchID, userID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := fmt.Sprintf("%d|%d", matchID, userID)
	if r.applied[key] {
		return false, nil
	}
	r.applied[key] = true
	return true, nil
}

func (r *fakeStatsRepo) ApplyResult(ctx context.Context, userID int, won bool) (*models.PlayerStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats, ok := r.stats[userID]
	if !ok {
		stats = &models.PlayerStats{UserID: userID}
		r.stats[userID] = stats
	}
	stats.ApplyOutcome(won)
	cp := *stats
	return &cp, nil
}

func (r *fakeStatsRepo) GetByUser(ctx context.Context, userID int) (*models.PlayerStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats, ok := r.stats[userID]
	if !ok {
		return nil, repositories.ErrStatsNotFound
	}
	cp := *stats
	return &cp, nil
}

func (r *fakeStatsRepo) TopByPoints(ctx context.Context, limit int) ([]*models.PlayerStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]*models.PlayerStats, 0, len(r.stats))
	for _, stats := range r.stats {
		cp := *stats
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Points > list[j].Points })
	if limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

// recordedNotification is one captured Notify call.
type recordedNotification struct {
	Kind        models.NotificationKind
	MatchID     int
	RecipientID int
	Payload     map[string]string
}

// recorderNotifier captures dispatched notifications instead of delivering
// them. Safe for concurrent use: the result fan-out notifies from multiple
// goroutines.
type recorderNotifier struct {
	mu         sync.Mutex
	sent       []recordedNotification
	broadcasts []int
}

func (n *recorderNotifier) Notify(ctx context.Context, kind models.NotificationKind, match *models.Match, recipientID int, payload map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, recordedNotification{
		Kind:        kind,
		MatchID:     match.ID,
		RecipientID: recipientID,
		Payload:     payload,
	})
}

func (n *recorderNotifier) BroadcastMatch(match *models.Match) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts = append(n.broadcasts, match.ID)
}

func (n *recorderNotifier) byKind(kind models.NotificationKind) []recordedNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	matched := make([]recordedNotification, 0)
	for _, sent := range n.sent {
		if sent.Kind == kind {
			matched = append(matched, sent)
		}
	}
	return matched
}
