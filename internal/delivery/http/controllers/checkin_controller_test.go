package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbit/internal/delivery/http/middleware"
	"orbit/internal/domain"
)

// testLogger is a no-op logger for controller tests so we don't assert on log output.
var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

const testEventID = "7b2a9c04-52c1-4a8e-9f13-64d2b19a7e55"

// fakeCheckInService implements domain.CheckInService for handler tests.
type fakeCheckInService struct {
	checkInResult  domain.CheckInResult
	checkInErr     error
	checkOutResult domain.CheckOutResult
	checkOutErr    error
	isCheckedIn    bool
	isCheckedInErr error
	roster         []*domain.CheckInRecord
	listRosterErr  error
	syncErr        error

	lastEventID string
	lastUserID  string
}

func (f *fakeCheckInService) CheckIn(ctx context.Context, eventID, userID string) (domain.CheckInResult, error) {
	f.lastEventID, f.lastUserID = eventID, userID
	return f.checkInResult, f.checkInErr
}

func (f *fakeCheckInService) CheckOut(ctx context.Context, eventID, userID string) (domain.CheckOutResult, error) {
	f.lastEventID, f.lastUserID = eventID, userID
	return f.checkOutResult, f.checkOutErr
}

func (f *fakeCheckInService) IsCheckedIn(ctx context.Context, eventID, userID string) (bool, error) {
	return f.isCheckedIn, f.isCheckedInErr
}

func (f *fakeCheckInService) ListRoster(ctx context.Context, eventID string) ([]*domain.CheckInRecord, error) {
	if f.listRosterErr != nil {
		return nil, f.listRosterErr
	}
	if f.roster == nil {
		return []*domain.CheckInRecord{}, nil
	}
	return f.roster, nil
}

func (f *fakeCheckInService) SyncCheckedInCount(ctx context.Context, eventID string) error {
	return f.syncErr
}

// fakeRosterFeed delivers its snapshots synchronously on subscribe: the burst
// when set, the single snapshot otherwise.
type fakeRosterFeed struct {
	snapshot     []*domain.CheckInRecord
	burst        [][]*domain.CheckInRecord
	err          error
	unsubscribed bool
}

func (f *fakeRosterFeed) Subscribe(eventID string, onChange func([]*domain.CheckInRecord)) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.burst) > 0 {
		for _, snap := range f.burst {
			onChange(snap)
		}
	} else {
		onChange(f.snapshot)
	}
	return func() { f.unsubscribed = true }, nil
}

func authedRequest(method, target string, eventID string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.SetPathValue("eventID", eventID)
	return req.WithContext(middleware.SetUserID(req.Context(), "u-1"))
}

func TestCheckInController_CheckIn(t *testing.T) {
	t.Run("new check-in returns 201", func(t *testing.T) {
		svc := &fakeCheckInService{
			checkInResult: domain.CheckInResult{
				Record:         &domain.CheckInRecord{EventID: testEventID, UserID: "u-1", Name: "Ana", Role: domain.RoleAttendee, CheckedInAt: time.Now()},
				Created:        true,
				CountUpdated:   true,
				HistoryUpdated: true,
			},
		}
		c := NewCheckInController(testLogger, svc, &fakeRosterFeed{})

		rr := httptest.NewRecorder()
		c.CheckIn(rr, authedRequest(http.MethodPost, "/events/"+testEventID+"/checkins", testEventID))

		require.Equal(t, http.StatusCreated, rr.Code)
		var resp struct {
			Data domain.CheckInResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Data.Created)
		assert.Equal(t, "u-1", resp.Data.Record.UserID)
		assert.Equal(t, testEventID, svc.lastEventID)
	})

	t.Run("repeat check-in returns 200 with created=false", func(t *testing.T) {
		svc := &fakeCheckInService{
			checkInResult: domain.CheckInResult{
				Record:  &domain.CheckInRecord{EventID: testEventID, UserID: "u-1"},
				Created: false,
			},
		}
		c := NewCheckInController(testLogger, svc, &fakeRosterFeed{})

		rr := httptest.NewRecorder()
		c.CheckIn(rr, authedRequest(http.MethodPost, "/events/"+testEventID+"/checkins", testEventID))

		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Data domain.CheckInResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.False(t, resp.Data.Created)
	})

	t.Run("unknown event returns 404", func(t *testing.T) {
		svc := &fakeCheckInService{checkInErr: domain.ErrNotFound}
		c := NewCheckInController(testLogger, svc, &fakeRosterFeed{})

		rr := httptest.NewRecorder()
		c.CheckIn(rr, authedRequest(http.MethodPost, "/events/"+testEventID+"/checkins", testEventID))

		require.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("invalid event id returns 400", func(t *testing.T) {
		c := NewCheckInController(testLogger, &fakeCheckInService{}, &fakeRosterFeed{})

		rr := httptest.NewRecorder()
		c.CheckIn(rr, authedRequest(http.MethodPost, "/events/not-a-uuid/checkins", "not-a-uuid"))

		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing auth returns 401", func(t *testing.T) {
		c := NewCheckInController(testLogger, &fakeCheckInService{}, &fakeRosterFeed{})

		req := httptest.NewRequest(http.MethodPost, "/events/"+testEventID+"/checkins", nil)
		req.SetPathValue("eventID", testEventID)
		rr := httptest.NewRecorder()
		c.CheckIn(rr, req)

		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestCheckInController_CheckOut(t *testing.T) {
	t.Run("removed", func(t *testing.T) {
		svc := &fakeCheckInService{checkOutResult: domain.CheckOutResult{Removed: true, CountUpdated: true}}
		c := NewCheckInController(testLogger, svc, &fakeRosterFeed{})

		rr := httptest.NewRecorder()
		c.CheckOut(rr, authedRequest(http.MethodDelete, "/events/"+testEventID+"/checkins", testEventID))

		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Data domain.CheckOutResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Data.Removed)
	})

	t.Run("not checked in is still 200, removed=false", func(t *testing.T) {
		svc := &fakeCheckInService{checkOutResult: domain.CheckOutResult{Removed: false}}
		c := NewCheckInController(testLogger, svc, &fakeRosterFeed{})

		rr := httptest.NewRecorder()
		c.CheckOut(rr, authedRequest(http.MethodDelete, "/events/"+testEventID+"/checkins", testEventID))

		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Data domain.CheckOutResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.False(t, resp.Data.Removed)
	})
}

func TestCheckInController_MyCheckIn(t *testing.T) {
	svc := &fakeCheckInService{isCheckedIn: true}
	c := NewCheckInController(testLogger, svc, &fakeRosterFeed{})

	rr := httptest.NewRecorder()
	c.MyCheckIn(rr, authedRequest(http.MethodGet, "/events/"+testEventID+"/checkins/me", testEventID))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data MyCheckInPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Data.CheckedIn)
}

func TestCheckInController_ListRoster(t *testing.T) {
	svc := &fakeCheckInService{roster: []*domain.CheckInRecord{
		{EventID: testEventID, UserID: "u-1", Name: "Ana"},
		{EventID: testEventID, UserID: "u-2", Name: "Bo"},
	}}
	c := NewCheckInController(testLogger, svc, &fakeRosterFeed{})

	rr := httptest.NewRecorder()
	c.ListRoster(rr, authedRequest(http.MethodGet, "/events/"+testEventID+"/checkins", testEventID))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data []*domain.CheckInRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "u-1", resp.Data[0].UserID)
}

func TestCheckInController_StreamRoster(t *testing.T) {
	t.Run("writes the initial snapshot as an SSE event", func(t *testing.T) {
		feed := &fakeRosterFeed{snapshot: []*domain.CheckInRecord{{EventID: testEventID, UserID: "u-1", Name: "Ana"}}}
		c := NewCheckInController(testLogger, &fakeCheckInService{}, feed)

		ctx, cancel := context.WithCancel(context.Background())
		req := authedRequest(http.MethodGet, "/events/"+testEventID+"/roster/stream", testEventID).WithContext(
			middleware.SetUserID(ctx, "u-1"))
		rr := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			defer close(done)
			c.StreamRoster(rr, req)
		}()
		// The subscribe callback runs synchronously, so the first snapshot is
		// already buffered; cancel ends the handler after it drains.
		time.Sleep(50 * time.Millisecond)
		cancel()
		<-done

		require.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
		body := rr.Body.String()
		assert.True(t, strings.HasPrefix(body, "event: roster\ndata: "), "body: %q", body)
		assert.Contains(t, body, `"u-1"`)
		assert.True(t, feed.unsubscribed, "handler must unsubscribe on disconnect")
	})

	t.Run("slow consumer still converges on the newest snapshot", func(t *testing.T) {
		// Twelve snapshots land before the handler drains any, overflowing the
		// per-client queue. Oldest queued snapshots must be the ones discarded,
		// so the stream ends on the latest roster state.
		burst := make([][]*domain.CheckInRecord, 12)
		for i := range burst {
			burst[i] = []*domain.CheckInRecord{{EventID: testEventID, UserID: "u-1", Name: fmt.Sprintf("guest%d", i+1)}}
		}
		feed := &fakeRosterFeed{burst: burst}
		c := NewCheckInController(testLogger, &fakeCheckInService{}, feed)

		ctx, cancel := context.WithCancel(context.Background())
		req := authedRequest(http.MethodGet, "/events/"+testEventID+"/roster/stream", testEventID).WithContext(
			middleware.SetUserID(ctx, "u-1"))
		rr := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			defer close(done)
			c.StreamRoster(rr, req)
		}()
		time.Sleep(50 * time.Millisecond)
		cancel()
		<-done

		body := rr.Body.String()
		require.Contains(t, body, `"guest12"`, "final snapshot must be delivered, body: %q", body)
		messages := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
		assert.Contains(t, messages[len(messages)-1], `"guest12"`)
	})

	t.Run("unknown event returns 404 before streaming", func(t *testing.T) {
		svc := &fakeCheckInService{listRosterErr: domain.ErrNotFound}
		c := NewCheckInController(testLogger, svc, &fakeRosterFeed{})

		rr := httptest.NewRecorder()
		c.StreamRoster(rr, authedRequest(http.MethodGet, "/events/"+testEventID+"/roster/stream", testEventID))

		require.Equal(t, http.StatusNotFound, rr.Code)
	})
}
