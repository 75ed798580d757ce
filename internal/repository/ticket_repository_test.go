package repository

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/psds-microservice/support-bot/internal/model"
)

// sqlRecorder собирает SQL, который gorm построил бы (DryRun, без базы).
type sqlRecorder struct {
	mu   sync.Mutex
	stmt []string
}

func (r *sqlRecorder) LogMode(logger.LogLevel) logger.Interface      { return r }
func (r *sqlRecorder) Info(context.Context, string, ...interface{})  {}
func (r *sqlRecorder) Warn(context.Context, string, ...interface{})  {}
func (r *sqlRecorder) Error(context.Context, string, ...interface{}) {}

func (r *sqlRecorder) Trace(_ context.Context, _ time.Time, fc func() (string, int64), _ error) {
	sql, _ := fc()
	r.mu.Lock()
	r.stmt = append(r.stmt, sql)
	r.mu.Unlock()
}

func (r *sqlRecorder) update(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stmt {
		if strings.HasPrefix(s, "UPDATE") {
			return s
		}
	}
	t.Fatalf("no UPDATE among %q", r.stmt)
	return ""
}

func dryRunDB(t *testing.T) (*gorm.DB, *sqlRecorder) {
	t.Helper()
	rec := &sqlRecorder{}
	db, err := gorm.Open(postgres.Open("host=localhost user=postgres dbname=support_bot sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               rec,
	})
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}
	return db, rec
}

func TestActivateIsConditionalOnPending(t *testing.T) {
	db, rec := dryRunDB(t)
	_ = NewTicketRepository(db).Activate(context.Background(), 7, "root-1", "issue-1")

	sql := rec.update(t)
	for _, want := range []string{
		`UPDATE "tickets"`,
		`"remote_thread_id"='root-1'`,
		`"remote_issue_id"='issue-1'`,
		`"status"='active'`,
		`id = 7 AND status = 'pending'`,
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("activate SQL %q lacks %q", sql, want)
		}
	}
}

func TestTransitionIsConditionalOnFromStatuses(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		from     []model.TicketStatus
		to       model.TicketStatus
		want     []string
		wantNone string
	}{
		{
			name: "cancel",
			from: []model.TicketStatus{model.TicketStatusPending},
			to:   model.TicketStatusCanceled,
			want: []string{`"status"='canceled'`, `id = 3 AND status IN ('pending')`},
			// closed_at ставится только при закрытии.
			wantNone: `"closed_at"`,
		},
		{
			name: "close",
			from: []model.TicketStatus{model.TicketStatusPending, model.TicketStatusNew, model.TicketStatusActive},
			to:   model.TicketStatusClosed,
			want: []string{`"status"='closed'`, `"closed_at"=`, `id = 3 AND status IN ('pending','new','active')`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, rec := dryRunDB(t)
			_ = NewTicketRepository(db).Transition(context.Background(), 3, tt.from, tt.to, at)

			sql := rec.update(t)
			for _, want := range tt.want {
				if !strings.Contains(sql, want) {
					t.Errorf("transition SQL %q lacks %q", sql, want)
				}
			}
			if tt.wantNone != "" && strings.Contains(sql, tt.wantNone) {
				t.Errorf("transition SQL %q must not set %s", sql, tt.wantNone)
			}
		})
	}
}
