package audit

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirk1998/univ-erp/internal/models"
	"github.com/amirk1998/univ-erp/internal/testutil"
)

func newTestLogger(t *testing.T, async bool) (*Logger, string) {
	t.Helper()
	db := testutil.OpenDB(t)
	path := filepath.Join(t.TempDir(), "logs", "audit.log")

	al, err := NewLogger(testutil.Ctx(t), db, path, async)
	require.NoError(t, err)
	t.Cleanup(func() { _ = al.Close() })
	return al, path
}

func TestLogger(t *testing.T) {
	t.Run("Should write events to the table and the file", func(t *testing.T) {
		al, path := newTestLogger(t, false)
		ctx := testutil.Ctx(t)

		require.NoError(t, al.Log(&Event{Level: LevelInfo, Action: ActionEnroll, Resource: "section:1", Success: true}))
		require.NoError(t, al.Log(&Event{Level: LevelWarning, Action: ActionDrop, Resource: "section:1", ErrorMsg: "not enrolled"}))

		events, err := al.QueryLogs(ctx, QueryFilters{})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, ActionDrop, events[0].Action)
		assert.Equal(t, "not enrolled", events[0].ErrorMsg)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 2, strings.Count(string(data), "\n"))
	})

	t.Run("Should filter by action and outcome", func(t *testing.T) {
		al, _ := newTestLogger(t, false)
		ctx := testutil.Ctx(t)
		require.NoError(t, al.Log(&Event{Level: LevelInfo, Action: ActionLogin, Resource: "auth", Success: true}))
		require.NoError(t, al.Log(&Event{Level: LevelWarning, Action: ActionLogin, Resource: "auth", Success: false}))
		require.NoError(t, al.Log(&Event{Level: LevelInfo, Action: ActionLogout, Resource: "auth", Success: true}))

		failed := false
		events, err := al.QueryLogs(ctx, QueryFilters{Action: ActionLogin, Success: &failed})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.False(t, events[0].Success)

		events, err = al.QueryLogs(ctx, QueryFilters{Level: LevelInfo, Limit: 1})
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("Should flush queued events on close", func(t *testing.T) {
		al, _ := newTestLogger(t, true)
		for range 20 {
			require.NoError(t, al.Log(&Event{Level: LevelInfo, Action: ActionEnroll, Resource: "section:1", Success: true}))
		}
		require.NoError(t, al.Close())

		events, err := al.QueryLogs(testutil.Ctx(t), QueryFilters{})
		require.NoError(t, err)
		assert.Len(t, events, 20)
		assert.Error(t, al.Log(&Event{Action: ActionEnroll}))
	})

	t.Run("Should persist every accepted event when closed mid-flight", func(t *testing.T) {
		al, _ := newTestLogger(t, true)

		var (
			accepted atomic.Int64
			wg       sync.WaitGroup
			start    = make(chan struct{})
		)
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for range 40 {
					if al.Log(&Event{Level: LevelInfo, Action: ActionEnroll, Resource: "section:1", Success: true}) == nil {
						accepted.Add(1)
					}
				}
			}()
		}

		close(start)
		require.NoError(t, al.Close())
		wg.Wait()

		events, err := al.QueryLogs(testutil.Ctx(t), QueryFilters{Limit: 1000})
		require.NoError(t, err)
		assert.Len(t, events, int(accepted.Load()))
	})

	t.Run("Should ignore events on a nil logger", func(t *testing.T) {
		var al *Logger
		assert.NoError(t, al.Log(&Event{Action: ActionEnroll}))
		assert.NoError(t, al.Close())
	})
}

func TestMonitor(t *testing.T) {
	t.Run("Should flag accounts over the threshold once", func(t *testing.T) {
		db := testutil.OpenDB(t)
		ctx := testutil.Ctx(t)
		noisy := testutil.CreateAccount(t, db, "noisy", models.RoleStudent)
		quiet := testutil.CreateAccount(t, db, "quiet", models.RoleStudent)

		al, err := NewLogger(ctx, db, filepath.Join(t.TempDir(), "audit.log"), false)
		require.NoError(t, err)
		t.Cleanup(func() { _ = al.Close() })

		for range 6 {
			require.NoError(t, al.Log(&Event{Level: LevelWarning, UserID: &noisy.ID, Action: ActionLogin, Resource: "auth"}))
		}
		for range 2 {
			require.NoError(t, al.Log(&Event{Level: LevelWarning, UserID: &quiet.ID, Action: ActionLogin, Resource: "auth"}))
		}

		m := NewMonitor(al)
		m.now = func() time.Time { return time.Now().Add(time.Second) }

		flagged, err := m.DetectFailedLogins(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int{noisy.ID}, flagged)

		alerts, err := al.QueryLogs(ctx, QueryFilters{Action: ActionFailedLoginThreshold})
		require.NoError(t, err)
		assert.Len(t, alerts, 1)
	})
}
