package rewards

import (
	"context"
	"testing"
)

func TestServiceLogsGrantOperation(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedProfile(store, "user-1", 0, 0, 0)
	logger := &recordingLogger{}
	service := mustNewService(test, store, WithOperationLogger(logger))

	user := mustUserID(test, "user-1")
	if err := service.GrantPoints(context.Background(), user, 100, "promo"); err != nil {
		test.Fatalf("grant failed: %v", err)
	}
	logged := logger.entries()
	if len(logged) != 1 {
		test.Fatalf("expected one log entry, got %d", len(logged))
	}
	entry := logged[0]
	if entry.Operation != operationGrant || entry.UserID != "user-1" || entry.Points != 100 {
		test.Fatalf("unexpected log entry: %+v", entry)
	}
	if entry.Error != nil || entry.Status != operationStatusOK {
		test.Fatalf("expected successful log entry, got %+v", entry)
	}
}

func TestServiceLogsErrorStatus(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	logger := &recordingLogger{}
	service := mustNewService(test, store, WithOperationLogger(logger))

	// No seeded profile, so the grant fails.
	if err := service.GrantPoints(context.Background(), mustUserID(test, "user-1"), 100, "promo"); err == nil {
		test.Fatalf("expected error")
	}
	logged := logger.entries()
	if len(logged) != 1 {
		test.Fatalf("expected one log entry, got %d", len(logged))
	}
	if logged[0].Status != operationStatusError || logged[0].Error == nil {
		test.Fatalf("expected error log entry, got %+v", logged[0])
	}
}
