package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/server/internal/auth"
	"github.com/gatherly/server/internal/blob"
	"github.com/gatherly/server/internal/config"
	"github.com/gatherly/server/internal/domain/events"
	"github.com/gatherly/server/internal/domain/notifications"
	"github.com/gatherly/server/internal/domain/organizations"
	"github.com/gatherly/server/internal/domain/registrations"
	"github.com/gatherly/server/internal/domain/users"
	"github.com/gatherly/server/internal/email"
	"github.com/gatherly/server/internal/verify"
)

// The fakes below back a fully wired router so requests exercise the
// real handlers, middleware, and services end to end.

type memUserRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]*users.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*users.User)}
}

func (r *memUserRepo) Create(_ context.Context, params users.CreateParams) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == params.Email {
			return nil, users.ErrEmailTaken
		}
		if u.Username == params.Username {
			return nil, users.ErrUsernameTaken
		}
	}
	r.seq++
	user := &users.User{
		ID:                 fmt.Sprintf("u%d", r.seq),
		Email:              params.Email,
		Username:           params.Username,
		Role:               params.Role,
		PasswordHash:       params.PasswordHash,
		EmailVerified:      params.EmailVerified,
		SelectedCategories: []string{},
		CreatedAt:          time.Now(),
	}
	r.users[user.ID] = user
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, users.ErrNotFound
}

func (r *memUserRepo) GetByEmail(_ context.Context, emailAddr string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == emailAddr {
			clone := *u
			return &clone, nil
		}
	}
	return nil, users.ErrNotFound
}

func (r *memUserRepo) UpdateUsername(_ context.Context, id, username string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for otherID, u := range r.users {
		if otherID != id && u.Username == username {
			return nil, users.ErrUsernameTaken
		}
	}
	user, ok := r.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	user.Username = username
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) UpdatePhotoURL(_ context.Context, id, photoURL string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	user.ProfilePhotoURL = photoURL
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) UpdateCategories(_ context.Context, id string, categories []string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	user.SelectedCategories = categories
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return users.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type memFavoriteRepo struct {
	mu    sync.Mutex
	pairs map[string]map[string]bool
}

func newMemFavoriteRepo() *memFavoriteRepo {
	return &memFavoriteRepo{pairs: make(map[string]map[string]bool)}
}

func (r *memFavoriteRepo) Add(_ context.Context, userID, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pairs[userID] == nil {
		r.pairs[userID] = make(map[string]bool)
	}
	if r.pairs[userID][eventID] {
		return false, nil
	}
	r.pairs[userID][eventID] = true
	return true, nil
}

func (r *memFavoriteRepo) Remove(_ context.Context, userID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pairs[userID], eventID)
	return nil
}

func (r *memFavoriteRepo) Exists(_ context.Context, userID, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pairs[userID][eventID], nil
}

func (r *memFavoriteRepo) ListEventIDs(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.pairs[userID]))
	for id := range r.pairs[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

type memOrganizerRequestRepo struct {
	mu       sync.Mutex
	seq      int
	requests map[string]*users.OrganizerRequest
}

func newMemOrganizerRequestRepo() *memOrganizerRequestRepo {
	return &memOrganizerRequestRepo{requests: make(map[string]*users.OrganizerRequest)}
}

func (r *memOrganizerRequestRepo) Create(_ context.Context, userID, organizationName, socialMediaLink string) (*users.OrganizerRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[userID]; ok {
		return nil, users.ErrRequestExists
	}
	r.seq++
	req := &users.OrganizerRequest{
		ID:               fmt.Sprintf("or%d", r.seq),
		UserID:           userID,
		OrganizationName: organizationName,
		SocialMediaLink:  socialMediaLink,
		Status:           "pending",
		CreatedAt:        time.Now(),
	}
	r.requests[userID] = req
	clone := *req
	return &clone, nil
}

func (r *memOrganizerRequestRepo) GetByUser(_ context.Context, userID string) (*users.OrganizerRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[userID]
	if !ok {
		return nil, users.ErrNotFound
	}
	clone := *req
	return &clone, nil
}

type memParticipantRepo struct {
	mu      sync.Mutex
	rosters map[string]map[string]bool
}

func newMemParticipantRepo() *memParticipantRepo {
	return &memParticipantRepo{rosters: make(map[string]map[string]bool)}
}

func (r *memParticipantRepo) Add(_ context.Context, eventID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rosters[eventID] == nil {
		r.rosters[eventID] = make(map[string]bool)
	}
	if r.rosters[eventID][userID] {
		return false, nil
	}
	r.rosters[eventID][userID] = true
	return true, nil
}

func (r *memParticipantRepo) Remove(_ context.Context, eventID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.rosters[eventID][userID] {
		return false, nil
	}
	delete(r.rosters[eventID], userID)
	return true, nil
}

func (r *memParticipantRepo) Exists(_ context.Context, eventID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosters[eventID][userID], nil
}

type memEventRepo struct {
	mu           sync.Mutex
	seq          int
	events       map[string]*events.Event
	participants *memParticipantRepo
}

func newMemEventRepo(participants *memParticipantRepo) *memEventRepo {
	return &memEventRepo{events: make(map[string]*events.Event), participants: participants}
}

func (r *memEventRepo) Create(_ context.Context, params events.CreateParams) (*events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	now := time.Now()
	event := &events.Event{
		ID:                fmt.Sprintf("e%d", r.seq),
		Title:             params.Title,
		Description:       params.Description,
		Location:          params.Location,
		LocationAddress:   params.LocationAddress,
		Category:          params.Category,
		ImageURL:          params.ImageURL,
		StartsAt:          params.StartsAt,
		RequiresApproval:  params.RequiresApproval,
		OrganizerName:     params.OrganizerName,
		OrganizerImageURL: params.OrganizerImageURL,
		CreatedBy:         params.CreatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	r.events[event.ID] = event
	clone := *event
	return &clone, nil
}

func (r *memEventRepo) Get(_ context.Context, id string) (*events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	clone := *event
	return &clone, nil
}

func (r *memEventRepo) Update(_ context.Context, id string, params events.UpdateParams) (*events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	if params.Title != nil {
		event.Title = *params.Title
	}
	if params.Description != nil {
		event.Description = *params.Description
	}
	if params.Location != nil {
		event.Location = *params.Location
	}
	if params.LocationAddress != nil {
		event.LocationAddress = *params.LocationAddress
	}
	if params.Category != nil {
		event.Category = *params.Category
	}
	if params.ImageURL != nil {
		event.ImageURL = *params.ImageURL
	}
	if params.StartsAt != nil {
		event.StartsAt = *params.StartsAt
	}
	if params.RequiresApproval != nil {
		event.RequiresApproval = *params.RequiresApproval
	}
	if params.OrganizerName != nil {
		event.OrganizerName = *params.OrganizerName
	}
	if params.OrganizerImageURL != nil {
		event.OrganizerImageURL = *params.OrganizerImageURL
	}
	event.UpdatedAt = time.Now()
	clone := *event
	return &clone, nil
}

func (r *memEventRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return events.ErrNotFound
	}
	delete(r.events, id)
	return nil
}

func (r *memEventRepo) all() []events.Event {
	out := make([]events.Event, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memEventRepo) List(_ context.Context) ([]events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.all(), nil
}

func (r *memEventRepo) ListByIDs(_ context.Context, ids []string) ([]events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.events[id]; ok {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *memEventRepo) ListPopular(_ context.Context, limit int) ([]events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.all()
	sort.Slice(out, func(i, j int) bool { return out[i].AttendeesCount > out[j].AttendeesCount })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memEventRepo) ListUpcoming(_ context.Context, now time.Time, categories []string, limit int) ([]events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[string]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}
	var out []events.Event
	for _, e := range r.all() {
		if e.StartsAt.Before(now) {
			continue
		}
		if len(wanted) > 0 && !wanted[e.Category] {
			continue
		}
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memEventRepo) ListUpcomingPopular(ctx context.Context, now time.Time, limit int) ([]events.Event, error) {
	out, err := r.ListUpcoming(ctx, now, nil, limit)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AttendeesCount > out[j].AttendeesCount })
	return out, nil
}

func (r *memEventRepo) inWindow(e events.Event, window events.Window, now time.Time) bool {
	switch window {
	case events.WindowUpcoming:
		return !e.StartsAt.Before(now)
	case events.WindowPast:
		return e.StartsAt.Before(now)
	default:
		return true
	}
}

func (r *memEventRepo) ListCreated(_ context.Context, userID string, window events.Window, now time.Time) ([]events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.all() {
		if e.CreatedBy == userID && r.inWindow(e, window, now) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEventRepo) ListJoined(ctx context.Context, userID string, window events.Window, now time.Time) ([]events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.all() {
		joined, _ := r.participants.Exists(ctx, e.ID, userID)
		if joined && r.inWindow(e, window, now) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEventRepo) ListCreatedOrJoined(ctx context.Context, userID string, window events.Window, now time.Time) ([]events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.all() {
		joined, _ := r.participants.Exists(ctx, e.ID, userID)
		if (e.CreatedBy == userID || joined) && r.inWindow(e, window, now) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEventRepo) AdjustAttendees(_ context.Context, id string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return events.ErrNotFound
	}
	event.AttendeesCount += delta
	if event.AttendeesCount < 0 {
		event.AttendeesCount = 0
	}
	return nil
}

type memRegistrationRepo struct {
	mu   sync.Mutex
	seq  int
	rows map[string]*registrations.Registration
}

func newMemRegistrationRepo() *memRegistrationRepo {
	return &memRegistrationRepo{rows: make(map[string]*registrations.Registration)}
}

func (r *memRegistrationRepo) Create(_ context.Context, params registrations.CreateParams) (*registrations.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.EventID == params.EventID && row.UserID == params.UserID {
			return nil, registrations.ErrDuplicate
		}
	}
	r.seq++
	now := time.Now()
	reg := &registrations.Registration{
		ID:        fmt.Sprintf("r%d", r.seq),
		EventID:   params.EventID,
		UserID:    params.UserID,
		Name:      params.Name,
		Reason:    params.Reason,
		Status:    registrations.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.rows[reg.ID] = reg
	clone := *reg
	return &clone, nil
}

func (r *memRegistrationRepo) Get(_ context.Context, eventID, userID string) (*registrations.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.EventID == eventID && row.UserID == userID {
			clone := *row
			return &clone, nil
		}
	}
	return nil, registrations.ErrNotFound
}

func (r *memRegistrationRepo) GetByID(_ context.Context, id string) (*registrations.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, registrations.ErrNotFound
	}
	clone := *row
	return &clone, nil
}

func (r *memRegistrationRepo) UpdateStatus(_ context.Context, id string, status registrations.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return registrations.ErrNotFound
	}
	row.Status = status
	row.UpdatedAt = time.Now()
	return nil
}

func (r *memRegistrationRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return registrations.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memRegistrationRepo) ListByEvent(_ context.Context, eventID string) ([]registrations.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []registrations.Registration
	for _, row := range r.rows {
		if row.EventID == eventID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRegistrationRepo) CountApproved(_ context.Context, eventID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, row := range r.rows {
		if row.EventID == eventID && row.Status == registrations.StatusApproved {
			count++
		}
	}
	return count, nil
}

type memRegistrationStore struct {
	regs   *memRegistrationRepo
	roster *memParticipantRepo
	events *memEventRepo
}

func (s *memRegistrationStore) Registrations() registrations.Repository          { return s.regs }
func (s *memRegistrationStore) Participants() registrations.ParticipantRepository { return s.roster }
func (s *memRegistrationStore) Events() registrations.EventStore                  { return s.events }

func (s *memRegistrationStore) WithTx(ctx context.Context, fn func(ctx context.Context, store registrations.Store) error) error {
	return fn(ctx, s)
}

type memOrganizationRepo struct {
	mu       sync.Mutex
	profiles map[string]*organizations.Profile
	follows  map[string]map[string]bool
}

func newMemOrganizationRepo() *memOrganizationRepo {
	return &memOrganizationRepo{
		profiles: make(map[string]*organizations.Profile),
		follows:  make(map[string]map[string]bool),
	}
}

func (r *memOrganizationRepo) GetProfile(_ context.Context, userID string) (*organizations.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, organizations.ErrProfileNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *memOrganizationRepo) UpsertProfile(_ context.Context, p organizations.Profile) (*organizations.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.UpdatedAt = time.Now()
	stored := p
	r.profiles[p.UserID] = &stored
	clone := stored
	return &clone, nil
}

func (r *memOrganizationRepo) Follow(_ context.Context, followerID, orgID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.follows[orgID] == nil {
		r.follows[orgID] = make(map[string]bool)
	}
	if r.follows[orgID][followerID] {
		return false, nil
	}
	r.follows[orgID][followerID] = true
	return true, nil
}

func (r *memOrganizationRepo) Unfollow(_ context.Context, followerID, orgID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.follows[orgID][followerID] {
		return false, nil
	}
	delete(r.follows[orgID], followerID)
	return true, nil
}

func (r *memOrganizationRepo) IsFollowing(_ context.Context, followerID, orgID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.follows[orgID][followerID], nil
}

func (r *memOrganizationRepo) CountFollowers(_ context.Context, orgID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.follows[orgID]), nil
}

func (r *memOrganizationRepo) ListFollowerIDs(_ context.Context, orgID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.follows[orgID]))
	for id := range r.follows[orgID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memOrganizationRepo) ListFollowedOrgIDs(_ context.Context, followerID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for orgID, followers := range r.follows {
		if followers[followerID] {
			ids = append(ids, orgID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type memNotificationRepo struct {
	mu   sync.Mutex
	seq  int
	rows map[string]*notifications.Notification
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{rows: make(map[string]*notifications.Notification)}
}

func (r *memNotificationRepo) Create(_ context.Context, params notifications.CreateParams) (*notifications.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	n := &notifications.Notification{
		ID:        fmt.Sprintf("n%04d", r.seq),
		UserID:    params.UserID,
		Type:      params.Type,
		Title:     params.Title,
		Message:   params.Message,
		RelatedID: params.RelatedID,
		CreatedAt: time.Now(),
	}
	r.rows[n.ID] = n
	clone := *n
	return &clone, nil
}

func (r *memNotificationRepo) Get(_ context.Context, id string) (*notifications.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return nil, notifications.ErrNotFound
	}
	clone := *n
	return &clone, nil
}

func (r *memNotificationRepo) ListByUser(_ context.Context, userID string) ([]notifications.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notifications.Notification
	for _, n := range r.rows {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memNotificationRepo) CountUnread(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.rows {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *memNotificationRepo) MarkRead(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return notifications.ErrNotFound
	}
	n.Read = true
	return nil
}

func (r *memNotificationRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return notifications.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memNotificationRepo) DeleteAllForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, n := range r.rows {
		if n.UserID == userID {
			delete(r.rows, id)
		}
	}
	return nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := zerolog.Nop()
	mailer, err := email.New(config.EmailConfig{Provider: "disabled"}, logger)
	require.NoError(t, err)

	userRepo := newMemUserRepo()
	participantRepo := newMemParticipantRepo()
	eventRepo := newMemEventRepo(participantRepo)
	regRepo := newMemRegistrationRepo()
	orgRepo := newMemOrganizationRepo()
	notifRepo := newMemNotificationRepo()

	codes := verify.NewStore(10 * time.Minute)
	userService := users.NewService(userRepo, newMemFavoriteRepo(), newMemOrganizerRequestRepo(), eventRepo, codes, mailer, logger)
	orgService := organizations.NewService(orgRepo, userRepo, eventRepo, logger)
	notifService := notifications.NewService(notifRepo, orgService, userRepo, mailer, logger)
	eventService := events.NewService(eventRepo, orgService, notifService, userService, logger)
	workflow := registrations.NewWorkflow(&memRegistrationStore{
		regs:   regRepo,
		roster: participantRepo,
		events: eventRepo,
	}, notifService, logger)

	return NewRouter(Deps{
		Users:         userService,
		Events:        eventService,
		Registrations: workflow,
		Organizations: orgService,
		Notifications: notifService,
		Blobs:         blob.NewMemStore(),
		Tokens:        auth.NewJWTManager("router-test-secret", time.Hour, "gatherly-test"),
		Pool:          okPinger{},
		Config: config.Config{
			RateLimit: config.RateLimitConfig{PublicPerMinute: 1000, UserPerMinute: 1000, LoginPerMinute: 1000},
			CORS:      config.CORSConfig{AllowAllOrigins: true},
		},
		Logger: logger,
	})
}

func doRequest(t *testing.T, router http.Handler, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec.Code, decoded
}

func signup(t *testing.T, router http.Handler, emailAddr, username, role string) (userID, token string) {
	t.Helper()
	status, body := doRequest(t, router, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":    emailAddr,
		"username": username,
		"password": "secret123",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, status, "signup response: %v", body)
	user := body["user"].(map[string]any)
	return user["id"].(string), body["token"].(string)
}

func createEvent(t *testing.T, router http.Handler, token string, requiresApproval bool) string {
	t.Helper()
	status, body := doRequest(t, router, http.MethodPost, "/api/events", token, map[string]any{
		"title":             "Community Meetup",
		"description":       "Monthly gathering",
		"location":          "Town Hall",
		"category":          "social",
		"date":              time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"requires_approval": requiresApproval,
	})
	require.Equal(t, http.StatusCreated, status, "create event response: %v", body)
	event := body["event"].(map[string]any)
	return event["id"].(string)
}

func TestSignupLoginMe(t *testing.T) {
	router := newTestRouter(t)

	_, token := signup(t, router, "alice@example.com", "alice", "")

	status, body := doRequest(t, router, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "participant", user["role"])

	// Login by username.
	status, body = doRequest(t, router, http.MethodPost, "/api/auth/login", "", map[string]any{
		"identifier": "alice",
		"password":   "secret123",
	})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["token"])

	// Login by email via the dedicated field.
	status, _ = doRequest(t, router, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusOK, status)

	status, body = doRequest(t, router, http.MethodPost, "/api/auth/login", "", map[string]any{
		"identifier": "alice",
		"password":   "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "error")
}

func TestSignupDuplicateEmail(t *testing.T) {
	router := newTestRouter(t)

	signup(t, router, "alice@example.com", "alice", "")

	status, body := doRequest(t, router, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":    "alice@example.com",
		"username": "other",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "error")
}

func TestMeRequiresAuth(t *testing.T) {
	router := newTestRouter(t)

	status, _ := doRequest(t, router, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestEventLifecycle(t *testing.T) {
	router := newTestRouter(t)

	_, owner := signup(t, router, "org@example.com", "organizer1", "organizer")
	_, stranger := signup(t, router, "bob@example.com", "bob", "")

	eventID := createEvent(t, router, owner, false)

	status, body := doRequest(t, router, http.MethodGet, "/api/events/"+eventID, "", nil)
	require.Equal(t, http.StatusOK, status)
	event := body["event"].(map[string]any)
	assert.Equal(t, "Community Meetup", event["title"])
	assert.Equal(t, "organizer1", event["organizer"])

	status, _ = doRequest(t, router, http.MethodPut, "/api/events/"+eventID, stranger, map[string]any{
		"title": "Hijacked",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = doRequest(t, router, http.MethodPut, "/api/events/"+eventID, owner, map[string]any{
		"title": "Renamed Meetup",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Renamed Meetup", body["event"].(map[string]any)["title"])

	status, _ = doRequest(t, router, http.MethodDelete, "/api/events/"+eventID, stranger, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = doRequest(t, router, http.MethodDelete, "/api/events/"+eventID, owner, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = doRequest(t, router, http.MethodGet, "/api/events/"+eventID, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOpenEventJoinFlow(t *testing.T) {
	router := newTestRouter(t)

	_, owner := signup(t, router, "org@example.com", "organizer1", "organizer")
	_, member := signup(t, router, "bob@example.com", "bob", "")

	eventID := createEvent(t, router, owner, false)

	status, body := doRequest(t, router, http.MethodPost, "/api/events/"+eventID+"/join", member, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["joined"])
	assert.Equal(t, true, body["newly_joined"])

	// Joining again is idempotent.
	status, body = doRequest(t, router, http.MethodPost, "/api/events/"+eventID+"/join", member, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["newly_joined"])

	status, body = doRequest(t, router, http.MethodGet, "/api/events/"+eventID, member, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["is_joined"])
	assert.Equal(t, float64(1), body["event"].(map[string]any)["attendees_count"])

	status, _ = doRequest(t, router, http.MethodPost, "/api/events/"+eventID+"/leave", member, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = doRequest(t, router, http.MethodGet, "/api/events/"+eventID+"/joined", member, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["is_joined"])
}

func TestGatedRegistrationFlow(t *testing.T) {
	router := newTestRouter(t)

	_, owner := signup(t, router, "org@example.com", "organizer1", "organizer")
	_, applicant := signup(t, router, "bob@example.com", "bob", "")

	eventID := createEvent(t, router, owner, true)

	// A direct join is rejected on gated events.
	status, _ := doRequest(t, router, http.MethodPost, "/api/events/"+eventID+"/join", applicant, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := doRequest(t, router, http.MethodPost, "/api/events/"+eventID+"/register", applicant, map[string]any{
		"name":   "Bob",
		"reason": "Interested in the topic",
	})
	require.Equal(t, http.StatusCreated, status, "register response: %v", body)
	reg := body["registration"].(map[string]any)
	regID := reg["id"].(string)
	assert.Equal(t, "pending", reg["status"])

	// Registering twice reports the existing state.
	status, _ = doRequest(t, router, http.MethodPost, "/api/events/"+eventID+"/register", applicant, map[string]any{
		"name":   "Bob",
		"reason": "Still interested",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	// Only the owner can see the queue.
	status, _ = doRequest(t, router, http.MethodGet, "/api/events/"+eventID+"/registrations", applicant, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = doRequest(t, router, http.MethodGet, "/api/events/"+eventID+"/registrations", owner, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["registrations"], 1)
	assert.Equal(t, float64(0), body["approved_count"])

	status, body = doRequest(t, router, http.MethodPost, "/api/events/"+eventID+"/registrations/"+regID+"/approve", owner, nil)
	require.Equal(t, http.StatusOK, status, "approve response: %v", body)
	assert.Equal(t, "approved", body["registration"].(map[string]any)["status"])

	// A second decision is refused and changes nothing.
	status, _ = doRequest(t, router, http.MethodPost, "/api/events/"+eventID+"/registrations/"+regID+"/reject", owner, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = doRequest(t, router, http.MethodGet, "/api/events/"+eventID+"/registration-status", applicant, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "approved", body["status"])

	status, body = doRequest(t, router, http.MethodGet, "/api/events/"+eventID, applicant, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["is_joined"])
	assert.Equal(t, float64(1), body["event"].(map[string]any)["attendees_count"])

	// The applicant got an in-app notification for the decision.
	status, body = doRequest(t, router, http.MethodGet, "/api/notifications", applicant, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["notifications"])
}

func TestApprovedCountAndRecommendedArePublic(t *testing.T) {
	router := newTestRouter(t)

	_, owner := signup(t, router, "org@example.com", "organizer1", "organizer")
	_, applicant := signup(t, router, "bob@example.com", "bob", "")
	eventID := createEvent(t, router, owner, true)

	status, body := doRequest(t, router, http.MethodPost, "/api/events/"+eventID+"/register", applicant, map[string]any{
		"name":   "Bob",
		"reason": "Interested in the topic",
	})
	require.Equal(t, http.StatusCreated, status, "register response: %v", body)
	regID := body["registration"].(map[string]any)["id"].(string)

	status, body = doRequest(t, router, http.MethodPost, "/api/events/"+eventID+"/registrations/"+regID+"/approve", owner, nil)
	require.Equal(t, http.StatusOK, status, "approve response: %v", body)

	// Both reads work without a token.
	status, body = doRequest(t, router, http.MethodGet, "/api/events/"+eventID+"/approved-count", "", nil)
	require.Equal(t, http.StatusOK, status, "approved-count response: %v", body)
	assert.Equal(t, float64(1), body["count"])

	status, body = doRequest(t, router, http.MethodGet, "/api/events/recommended", "", nil)
	require.Equal(t, http.StatusOK, status, "recommended response: %v", body)
	assert.NotEmpty(t, body["events"])
}

func TestFollowAndFanOut(t *testing.T) {
	router := newTestRouter(t)

	orgID, orgToken := signup(t, router, "org@example.com", "goodorg", "organization")
	fanID, fan := signup(t, router, "bob@example.com", "bob", "")

	status, body := doRequest(t, router, http.MethodPut, "/api/organizations/me", orgToken, map[string]any{
		"name": "Good Org",
		"bio":  "We host events",
	})
	require.Equal(t, http.StatusOK, status, "upsert profile response: %v", body)

	status, body = doRequest(t, router, http.MethodPost, "/api/organizations/"+orgID+"/follow", fan, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["is_following"])

	// Following yourself is refused.
	status, _ = doRequest(t, router, http.MethodPost, "/api/organizations/"+orgID+"/follow", orgToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// So is following an ordinary participant.
	status, _ = doRequest(t, router, http.MethodPost, "/api/organizations/"+fanID+"/follow", orgToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	createEvent(t, router, orgToken, false)

	status, body = doRequest(t, router, http.MethodGet, "/api/notifications", fan, nil)
	require.Equal(t, http.StatusOK, status)
	notifs := body["notifications"].([]any)
	require.NotEmpty(t, notifs)
	first := notifs[0].(map[string]any)
	assert.Equal(t, "new_event", first["type"])

	status, body = doRequest(t, router, http.MethodGet, "/api/organizations/"+orgID, fan, nil)
	require.Equal(t, http.StatusOK, status)
	org := body["organization"].(map[string]any)
	assert.Equal(t, "Good Org", org["name"])
	assert.Equal(t, float64(1), org["follower_count"])
	assert.Equal(t, true, org["is_following"])
}

func TestCheckUsernameAndLogout(t *testing.T) {
	router := newTestRouter(t)

	status, body := doRequest(t, router, http.MethodGet, "/api/auth/check-username?username=alice", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["available"])

	_, token := signup(t, router, "alice@example.com", "alice", "")

	status, body = doRequest(t, router, http.MethodGet, "/api/auth/check-username?username=alice", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["available"])

	status, _ = doRequest(t, router, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = doRequest(t, router, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMethodNotAllowed(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/auth/signup", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t)

	status, _ := doRequest(t, router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = doRequest(t, router, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, status)
}
