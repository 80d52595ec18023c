package batch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/iliyamo/ferry-reservation/internal/clock"
	"github.com/iliyamo/ferry-reservation/internal/repository"
	"github.com/iliyamo/ferry-reservation/internal/service"
	"github.com/iliyamo/ferry-reservation/internal/testutil"
)

type fakeSFN struct {
	success []*sfn.SendTaskSuccessInput
	failure []*sfn.SendTaskFailureInput
	err     error
}

func (f *fakeSFN) SendTaskSuccess(_ context.Context, in *sfn.SendTaskSuccessInput, _ ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error) {
	f.success = append(f.success, in)
	return &sfn.SendTaskSuccessOutput{}, f.err
}

func (f *fakeSFN) SendTaskFailure(_ context.Context, in *sfn.SendTaskFailureInput, _ ...func(*sfn.Options)) (*sfn.SendTaskFailureOutput, error) {
	f.failure = append(f.failure, in)
	return &sfn.SendTaskFailureOutput{}, f.err
}

type failingReleaser struct{}

func (failingReleaser) ReleaseExpiredHolds(context.Context, time.Time) (int64, error) {
	return 0, errors.New("database is locked")
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSweepBatchReleasesAndReports(t *testing.T) {
	db := testutil.OpenDB(t)
	clk := clock.NewManual(testutil.Epoch)
	sailing := testutil.SeedSailing(t, db, 10)
	ledger := service.NewCapacityLedger(db, repository.NewHoldRepo(db), repository.NewSailingRepo(db), clk, quiet)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := ledger.CreateHold(ctx, sailing.ID, 1, time.Minute); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := ledger.CreateHold(ctx, sailing.ID, 1, time.Hour); err != nil {
		t.Fatal(err)
	}
	clk.Advance(2 * time.Minute)

	api := &fakeSFN{}
	notifier, err := NewSFNNotifier(api, "token-123")
	if err != nil {
		t.Fatal(err)
	}
	rep, err := NewSweepBatch(ledger, notifier, clk, quiet).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Released != 3 {
		t.Fatalf("released %d holds, want 3", rep.Released)
	}
	if len(api.success) != 1 || aws.ToString(api.success[0].TaskToken) != "token-123" {
		t.Fatalf("unexpected success calls %+v", api.success)
	}
	var sent Report
	if err := json.Unmarshal([]byte(aws.ToString(api.success[0].Output)), &sent); err != nil || sent.Released != 3 {
		t.Fatalf("bad task output %q: %v", aws.ToString(api.success[0].Output), err)
	}
	if n := testutil.CountRows(t, db, "holds"); n != 1 {
		t.Fatalf("expected the live hold to remain, got %d rows", n)
	}
}

func TestSweepBatchReportsFailure(t *testing.T) {
	api := &fakeSFN{}
	notifier, _ := NewSFNNotifier(api, "token-123")
	_, err := NewSweepBatch(failingReleaser{}, notifier, nil, quiet).Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(api.failure) != 1 || aws.ToString(api.failure[0].Error) != "HoldSweepFailed" {
		t.Fatalf("unexpected failure calls %+v", api.failure)
	}
	if len(api.success) != 0 {
		t.Fatal("success must not be sent after a failed sweep")
	}
}

func TestNewSFNNotifierRequiresToken(t *testing.T) {
	if _, err := NewSFNNotifier(&fakeSFN{}, ""); err == nil {
		t.Fatal("expected error for empty token")
	}
	if _, err := NewSFNNotifier(nil, "t"); err == nil {
		t.Fatal("expected error for nil client")
	}
}
