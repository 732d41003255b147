package app_test

import (
	"context"
	"errors"
	"testing"

	"channel_sync/internal/app"
	"channel_sync/internal/domain"
)

func adminEnv() (*memQueue, *app.AdminService) {
	q := newMemQueue()
	return q, app.NewAdminService(q, app.NewProducer(q, 100, 100))
}

func TestRequeueRejectsNonTerminal(t *testing.T) {
	q, admin := adminEnv()
	ctx := context.Background()

	ev := availEvent("H1")
	ev.Priority = 3
	if err := q.Enqueue(ctx, ev); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	_, err := admin.Requeue(ctx, ev.ID)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want conflict for pending event", err)
	}
}

func TestRequeueCreatesFreshEvent(t *testing.T) {
	q, admin := adminEnv()
	ctx := context.Background()

	ev := availEvent("H1")
	ev.Priority = 2
	if err := q.Enqueue(ctx, ev); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Cancel(ctx, ev.ID, "test"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	res, err := admin.Requeue(ctx, ev.ID)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if res.EventID == ev.ID {
		t.Fatalf("requeue reused the old event id")
	}

	fresh, err := q.Get(ctx, res.EventID)
	if err != nil {
		t.Fatalf("get fresh: %v", err)
	}
	if fresh.Status != domain.StatusPending {
		t.Fatalf("fresh status = %s, want pending", fresh.Status)
	}
	if fresh.Priority != 2 || fresh.Type != ev.Type {
		t.Fatalf("fresh = %+v, want priority and type carried over", fresh)
	}
	if fresh.Source != domain.SourceManual {
		t.Fatalf("fresh source = %s, want manual", fresh.Source)
	}
	if fresh.Attempts != 0 || len(fresh.Results) != 0 {
		t.Fatalf("fresh event carries old attempt history")
	}

	old, _ := q.Get(ctx, ev.ID)
	if old.Status != domain.StatusCancelled {
		t.Fatalf("old status = %s, terminal events stay terminal", old.Status)
	}
}

func TestCancelDefaultsReason(t *testing.T) {
	q, admin := adminEnv()
	ctx := context.Background()

	ev := availEvent("H1")
	ev.Priority = 3
	if err := q.Enqueue(ctx, ev); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := admin.Cancel(ctx, ev.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, _ := q.Get(ctx, ev.ID)
	if got.Status != domain.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}

	if err := admin.Cancel(ctx, ev.ID, ""); !errors.Is(err, domain.ErrTerminal) {
		t.Fatalf("second cancel err = %v, want terminal rejection", err)
	}
}
