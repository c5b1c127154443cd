package checkin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldcheck/internal/asset"
	"github.com/roach88/fieldcheck/internal/failure"
	"github.com/roach88/fieldcheck/internal/queue"
	"github.com/roach88/fieldcheck/internal/remote"
	"github.com/roach88/fieldcheck/internal/testutil"
)

type staticConn bool

func (c staticConn) IsConnected() bool { return bool(c) }

type fixture struct {
	kv     *testutil.MemoryKV
	queue  *queue.Queue
	remote *testutil.FakeRemote
}

func newFixture() *fixture {
	kv := testutil.NewMemoryKV()
	return &fixture{
		kv: kv,
		queue: queue.New(kv,
			queue.WithIDGenerator(testutil.NewSequentialIDs("")),
			queue.WithClock(testutil.NewManualClock(time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)).Now),
		),
		remote: testutil.NewFakeRemote(),
	}
}

func (f *fixture) submitter(connected bool) *Submitter {
	return New(f.remote, f.queue, staticConn(connected))
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.queue.Count(context.Background())
	require.NoError(t, err)
	return n
}

func ast1Check() asset.CheckRequest {
	return asset.CheckRequest{
		AssetID:     "AST-1",
		CheckStatus: asset.CheckAvailable,
		Remark:      "",
		CheckDate:   asset.MustParseCheckDate("2024-01-15"),
	}
}

func TestSubmit_OfflineQueuesWithoutRemoteCall(t *testing.T) {
	f := newFixture()
	assert.Equal(t, 0, f.count(t))

	r, err := f.submitter(false).Submit(context.Background(), ast1Check())
	require.NoError(t, err)

	assert.Equal(t, DispositionQueued, r.Disposition)
	require.NotNil(t, r.Entry)
	assert.Equal(t, ast1Check(), r.Entry.Request)
	assert.Empty(t, r.Cause)
	assert.Equal(t, 1, f.count(t))
	assert.Empty(t, f.remote.Calls())
}

func TestSubmit_OnlineSent(t *testing.T) {
	f := newFixture()

	r, err := f.submitter(true).Submit(context.Background(), ast1Check())
	require.NoError(t, err)

	assert.Equal(t, DispositionSent, r.Disposition)
	assert.Nil(t, r.Entry)
	assert.Equal(t, []asset.CheckRequest{ast1Check()}, f.remote.Accepted())
	assert.Equal(t, 0, f.count(t))
}

func TestSubmit_RejectedIsNeverQueued(t *testing.T) {
	f := newFixture()
	f.remote.FailSubmits(failure.ValidationRejected("remote.submit_check", 400, "invalid status"))

	_, err := f.submitter(true).Submit(context.Background(), ast1Check())
	require.Error(t, err)

	assert.True(t, failure.IsValidationRejected(err))
	assert.Equal(t, "invalid status", failure.Message(err))
	assert.Equal(t, 0, f.count(t))
}

func TestSubmit_TransientFallsBackToQueue(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		cause string
	}{
		{"server error", failure.Transient("remote.submit_check", 503, nil), "remote service returned 503"},
		{"no response", failure.Transient("remote.submit_check", 0, errors.New("dial tcp")), "remote service unavailable"},
		{"untyped", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.remote.FailSubmits(tt.err)

			r, err := f.submitter(true).Submit(context.Background(), ast1Check())
			require.NoError(t, err)

			assert.Equal(t, DispositionQueued, r.Disposition)
			assert.Equal(t, tt.cause, r.Cause)
			assert.Equal(t, 1, f.count(t))
			assert.Equal(t, 1, f.remote.CallCount("submit"))
		})
	}
}

func TestSubmit_HTTPStatusDecidesQueueing(t *testing.T) {
	tests := []struct {
		status int
		queued bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnprocessableEntity, false},
		{http.StatusRequestTimeout, true},
		{http.StatusTooEarly, true},
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"success":false,"message":"invalid status"}`))
			}))
			defer srv.Close()

			client, err := remote.NewClient(srv.URL)
			require.NoError(t, err)

			f := newFixture()
			r, err := New(client, f.queue, staticConn(true)).Submit(context.Background(), ast1Check())

			if tt.queued {
				require.NoError(t, err)
				assert.Equal(t, DispositionQueued, r.Disposition)
				assert.Equal(t, fmt.Sprintf("remote service returned %d", tt.status), r.Cause)
				assert.Equal(t, 1, f.count(t))
				return
			}
			assert.True(t, failure.IsValidationRejected(err))
			assert.Equal(t, "invalid status", failure.Message(err))
			assert.Equal(t, 0, f.count(t))
		})
	}
}

func TestSubmit_InvalidRequest(t *testing.T) {
	f := newFixture()
	req := ast1Check()
	req.CheckStatus = "exploded"

	for _, connected := range []bool{true, false} {
		_, err := f.submitter(connected).Submit(context.Background(), req)
		assert.ErrorIs(t, err, asset.ErrInvalidCheck)
	}
	assert.Equal(t, 0, f.count(t))
	assert.Empty(t, f.remote.Calls())
}

func TestSubmit_PersistenceFailurePropagates(t *testing.T) {
	f := newFixture()
	f.kv.Fail("add", nil)

	_, err := f.submitter(false).Submit(context.Background(), ast1Check())
	assert.True(t, failure.IsPersistence(err))

	f.remote.FailSubmits(failure.Transient("remote.submit_check", 500, nil))
	_, err = f.submitter(true).Submit(context.Background(), ast1Check())
	assert.True(t, failure.IsPersistence(err))
}
