package capture_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bhasha/internal/capture"
	"bhasha/internal/services"
	"bhasha/internal/testsupport"
)

func newRecorder(t *testing.T, device capture.Device, maxSeconds int) *capture.Recorder {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithMaxDurationSeconds(maxSeconds))
	cfg.Capture.FragmentPeriodMS = 5
	return capture.NewRecorder(device, cfg, nil)
}

func TestStartSecondSessionConflicts(t *testing.T) {
	device := capture.NewStubDevice("mic0")
	recorder := newRecorder(t, device, 300)
	ctx := context.Background()

	session, err := recorder.Start(ctx, "client-a")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	if _, err := recorder.Start(ctx, "client-a"); !errors.Is(err, services.ErrSessionConflict) {
		t.Fatalf("expected ErrSessionConflict, got %v", err)
	}
}

func TestStartBusyDeviceUnavailable(t *testing.T) {
	device := capture.NewStubDevice("mic0")
	recorder := newRecorder(t, device, 300)
	ctx := context.Background()

	session, err := recorder.Start(ctx, "client-a")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	// A different client hits the device claim, not the session conflict.
	if _, err := recorder.Start(ctx, "client-b"); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestStartOfflineDeviceUnavailable(t *testing.T) {
	device := capture.NewStubDevice("mic0")
	device.SetUnavailable(true)
	recorder := newRecorder(t, device, 300)

	if _, err := recorder.Start(context.Background(), "client-a"); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestStopReleasesDeviceImmediately(t *testing.T) {
	device := capture.NewStubDevice("mic0")
	recorder := newRecorder(t, device, 300)

	session, err := recorder.Start(context.Background(), "client-a")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := session.AppendFragment([]byte("chunk")); err != nil {
		t.Fatalf("AppendFragment: %v", err)
	}

	session.Stop()
	if device.Held() {
		t.Fatal("expected device released on stop")
	}
	if session.State() != capture.StateStopped {
		t.Fatalf("expected stopped, got %v", session.State())
	}

	// The device is free before the artifact is even finalized.
	next, err := recorder.Start(context.Background(), "client-b")
	if err != nil {
		t.Fatalf("Start after stop: %v", err)
	}
	next.Stop()

	artifact, err := session.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if string(artifact.Data) != "chunk" {
		t.Fatalf("unexpected artifact data %q", artifact.Data)
	}
}

func TestAutoStopAtMaxDuration(t *testing.T) {
	device := capture.NewStubDevice("mic0")
	recorder := newRecorder(t, device, 3)

	session, err := recorder.Start(context.Background(), "client-a")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-session.Stopped():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not auto-stop")
	}

	if session.StopReasonValue() != capture.StopMaxTime {
		t.Fatalf("expected max-duration stop, got %v", session.StopReasonValue())
	}
	if got := session.Elapsed(); got != 3 {
		t.Fatalf("expected elapsed exactly at the ceiling, got %d", got)
	}
	if device.Held() {
		t.Fatal("expected device released on auto-stop")
	}
	if device.Releases() != 1 {
		t.Fatalf("expected a single release, got %d", device.Releases())
	}

	// A manual stop after the auto-stop is a no-op.
	session.Stop()
	if device.Releases() != 1 {
		t.Fatalf("expected stop to remain idempotent, got %d releases", device.Releases())
	}
}

func TestArtifactDurationUsesElapsedCounter(t *testing.T) {
	device := capture.NewStubDevice("mic0")
	recorder := newRecorder(t, device, 2)

	session, err := recorder.Start(context.Background(), "client-a")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Deliver more fragments than ticks; duration must not follow count.
	for i := 0; i < 10; i++ {
		_ = session.AppendFragment([]byte("x"))
	}

	<-session.Stopped()
	artifact, err := session.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if artifact.DurationSeconds != 2 {
		t.Fatalf("expected duration 2, got %d", artifact.DurationSeconds)
	}
}

func TestDeviceFragmentsFlowIntoBuffer(t *testing.T) {
	device := capture.NewStubDevice("mic0")
	recorder := newRecorder(t, device, 300)

	session, err := recorder.Start(context.Background(), "client-a")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	device.EmitFragment([]byte("first-"))
	device.EmitFragment([]byte("second"))
	session.Stop()

	// The sink is detached on stop; late hardware fragments are dropped.
	device.EmitFragment([]byte("-late"))

	artifact, err := session.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if string(artifact.Data) != "first-second" {
		t.Fatalf("unexpected artifact data %q", artifact.Data)
	}
	if artifact.Fragments != 2 {
		t.Fatalf("expected 2 fragments, got %d", artifact.Fragments)
	}
}

func TestAppendFragmentAfterStopFails(t *testing.T) {
	device := capture.NewStubDevice("mic0")
	recorder := newRecorder(t, device, 300)

	session, err := recorder.Start(context.Background(), "client-a")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	session.Stop()

	if err := session.AppendFragment([]byte("late")); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDiscardFreesClientKey(t *testing.T) {
	device := capture.NewStubDevice("mic0")
	recorder := newRecorder(t, device, 300)
	ctx := context.Background()

	session, err := recorder.Start(ctx, "client-a")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = session.AppendFragment([]byte("chunk"))

	if err := session.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if session.State() != capture.StateDiscarded {
		t.Fatalf("expected discarded, got %v", session.State())
	}
	if device.Held() {
		t.Fatal("expected device released on discard")
	}

	// The key is free again.
	next, err := recorder.Start(ctx, "client-a")
	if err != nil {
		t.Fatalf("Start after discard: %v", err)
	}
	next.Stop()
}

func TestCompleteFreesClientKey(t *testing.T) {
	device := capture.NewStubDevice("mic0")
	recorder := newRecorder(t, device, 300)
	ctx := context.Background()

	session, err := recorder.Start(ctx, "client-a")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	session.Stop()
	if _, err := session.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if session.State() != capture.StateUploading {
		t.Fatalf("expected uploading, got %v", session.State())
	}

	// Discarding mid-upload is not allowed.
	if err := session.Discard(); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	session.Complete()
	if session.State() != capture.StateIdle {
		t.Fatalf("expected idle, got %v", session.State())
	}

	next, err := recorder.Start(ctx, "client-a")
	if err != nil {
		t.Fatalf("Start after complete: %v", err)
	}
	next.Stop()
}

func TestLockedDeviceExclusion(t *testing.T) {
	dir := t.TempDir()
	first, err := capture.NewLockedDevice("/dev/snd/pcmC0D0c", dir)
	if err != nil {
		t.Fatalf("NewLockedDevice: %v", err)
	}
	second, err := capture.NewLockedDevice("/dev/snd/pcmC0D0c", dir)
	if err != nil {
		t.Fatalf("NewLockedDevice: %v", err)
	}

	ctx := context.Background()
	if err := first.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := second.Acquire(ctx); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := second.Acquire(ctx); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = second.Release()
}
