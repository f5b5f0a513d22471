package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"orbit/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type mockEventRepository struct {
	events map[string]*domain.Event

	getErr       error
	incrementErr error
	setCountErr  error

	incrementCalls []int
	setCountCalls  []int
}

func (m *mockEventRepository) Create(ctx context.Context, event *domain.Event) error {
	event.ID = "ev-new"
	if m.events == nil {
		m.events = map[string]*domain.Event{}
	}
	m.events[event.ID] = event
	return nil
}

func (m *mockEventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	ev, ok := m.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ev, nil
}

func (m *mockEventRepository) List(ctx context.Context, params domain.PaginationParams) ([]*domain.Event, int, error) {
	out := make([]*domain.Event, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev)
	}
	return out, len(out), nil
}

func (m *mockEventRepository) ListByHostID(ctx context.Context, hostID string) ([]*domain.Event, error) {
	var out []*domain.Event
	for _, ev := range m.events {
		if ev.HostID == hostID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *mockEventRepository) Update(ctx context.Context, eventID string, update domain.EventUpdate) (*domain.Event, error) {
	ev, ok := m.events[eventID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if update.Title != nil {
		ev.Title = *update.Title
	}
	if update.Date != nil {
		ev.Date = *update.Date
	}
	if update.Location != nil {
		ev.Location = *update.Location
	}
	if update.Description != nil {
		ev.Description = *update.Description
	}
	return ev, nil
}

func (m *mockEventRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.events[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *mockEventRepository) IncrementCheckedInCount(ctx context.Context, eventID string, delta int) error {
	if m.incrementErr != nil {
		return m.incrementErr
	}
	m.incrementCalls = append(m.incrementCalls, delta)
	if ev, ok := m.events[eventID]; ok {
		ev.CheckedInCount += delta
	}
	return nil
}

func (m *mockEventRepository) SetCheckedInCount(ctx context.Context, eventID string, count int) error {
	if m.setCountErr != nil {
		return m.setCountErr
	}
	ev, ok := m.events[eventID]
	if !ok {
		return domain.ErrNotFound
	}
	m.setCountCalls = append(m.setCountCalls, count)
	ev.CheckedInCount = count
	return nil
}

type mockCheckInRepository struct {
	recs  map[string]*domain.CheckInRecord
	order []string

	createErr error
	deleteErr error
	getErr    error
	listErr   error
	countErr  error
}

func checkInKey(eventID, userID string) string {
	return eventID + ":" + userID
}

func (m *mockCheckInRepository) Create(ctx context.Context, rec *domain.CheckInRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.recs == nil {
		m.recs = map[string]*domain.CheckInRecord{}
	}
	key := checkInKey(rec.EventID, rec.UserID)
	if _, exists := m.recs[key]; !exists {
		m.order = append(m.order, key)
	}
	m.recs[key] = rec
	return nil
}

func (m *mockCheckInRepository) GetByEventAndUser(ctx context.Context, eventID, userID string) (*domain.CheckInRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.recs[checkInKey(eventID, userID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (m *mockCheckInRepository) Delete(ctx context.Context, eventID, userID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	key := checkInKey(eventID, userID)
	if _, ok := m.recs[key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.recs, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockCheckInRepository) ListByEventID(ctx context.Context, eventID string) ([]*domain.CheckInRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*domain.CheckInRecord
	for _, key := range m.order {
		rec := m.recs[key]
		if rec.EventID == eventID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockCheckInRepository) CountByEventID(ctx context.Context, eventID string) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	n := 0
	for _, rec := range m.recs {
		if rec.EventID == eventID {
			n++
		}
	}
	return n, nil
}

type mockUserRepository struct {
	users    map[string]*domain.UserProfile
	attended map[string][]string

	createErr error
	appendErr error
	listErr   error
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.UserProfile) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = "user-new"
	if m.users == nil {
		m.users = map[string]*domain.UserProfile{}
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.UserProfile, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.UserProfile, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserRepository) Update(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.UserProfile, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Company != nil {
		u.Company = update.Company
	}
	if update.RecruitingFor != nil {
		u.RecruitingFor = update.RecruitingFor
	}
	if update.LookingFor != nil {
		u.LookingFor = update.LookingFor
	}
	return u, nil
}

func (m *mockUserRepository) AppendAttendedEvent(ctx context.Context, userID, eventID string) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	if m.attended == nil {
		m.attended = map[string][]string{}
	}
	for _, id := range m.attended[userID] {
		if id == eventID {
			return nil
		}
	}
	m.attended[userID] = append(m.attended[userID], eventID)
	return nil
}

func (m *mockUserRepository) ListAttendedEventIDs(ctx context.Context, userID string) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.attended[userID], nil
}

type mockHasher struct {
	saltErr error
	hashErr error
	cmpErr  error
}

func (m *mockHasher) GenerateSalt() (string, error) {
	if m.saltErr != nil {
		return "", m.saltErr
	}
	return "salt", nil
}

func (m *mockHasher) Hash(salt, password string) (string, error) {
	if m.hashErr != nil {
		return "", m.hashErr
	}
	return "hash:" + salt + ":" + password, nil
}

func (m *mockHasher) Compare(hash, salt, password string) error {
	if m.cmpErr != nil {
		return m.cmpErr
	}
	if hash != "hash:"+salt+":"+password {
		return domain.ErrInvalidCredentials
	}
	return nil
}

type mockTokenIssuer struct {
	err error
}

func (m *mockTokenIssuer) Issue(userID, email string, role domain.Role, expiry time.Duration) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "token-" + userID, nil
}

type mockEmailService struct {
	sent []*domain.WelcomeEmailData
	err  error
}

func (m *mockEmailService) SendWelcomeMessage(ctx context.Context, data *domain.WelcomeEmailData) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, data)
	return nil
}
