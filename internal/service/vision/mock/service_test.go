package mock

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ai-scene-narrator-service/internal/models"
	"ai-scene-narrator-service/internal/service/vision"
)

func TestService_StreamDefaults(t *testing.T) {
	s := New()

	var sb strings.Builder
	if err := s.DescribeScene(context.Background(), "img", func(c string) { sb.WriteString(c) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sb.String() == "" {
		t.Error("expected default description")
	}
}

func TestService_SingleSequenceRepeatsLast(t *testing.T) {
	s := New()
	s.SetTexts(vision.OpContinuous, "A dog walks in.", vision.Silent)

	want := []string{"A dog walks in.", vision.Silent, vision.Silent}
	for i, w := range want {
		got, err := s.ContinuousDescription(context.Background(), "img", nil)
		if err != nil || got != w {
			t.Errorf("call %d: got %q %v, want %q", i, got, err, w)
		}
	}
}

func TestService_RecordsCalls(t *testing.T) {
	s := New()
	people := []models.RememberedPerson{{Name: "Alice"}}

	s.RecognizeAndDescribePerson(context.Background(), "img", people, func(string) {})
	s.AskAboutImage(context.Background(), "img", "Is it raining?", func(string) {})
	s.ContinuousDescription(context.Background(), "img", []string{"a", "b"})

	calls := s.Calls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(calls))
	}
	if calls[0].People[0] != "Alice" || calls[1].Question != "Is it raining?" || len(calls[2].History) != 2 {
		t.Errorf("unexpected calls: %+v", calls)
	}
	if s.CallCount(vision.OpAsk) != 1 {
		t.Errorf("expected one ask call, got %d", s.CallCount(vision.OpAsk))
	}
}

func TestService_Error(t *testing.T) {
	s := New()
	boom := errors.New("offline")
	s.SetError(vision.OpNavigation, boom)

	if _, err := s.NavigationGuidance(context.Background(), "img"); !errors.Is(err, boom) {
		t.Errorf("expected %v, got %v", boom, err)
	}

	s.SetError(vision.OpNavigation, nil)
	if _, err := s.NavigationGuidance(context.Background(), "img"); err != nil {
		t.Errorf("expected error cleared, got %v", err)
	}
}

func TestService_HoldAndRelease(t *testing.T) {
	s := New()
	release := s.Hold()

	done := make(chan error, 1)
	go func() {
		_, err := s.NavigationGuidance(context.Background(), "img")
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("query returned while held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("query did not resume after release")
	}
}

func TestService_HoldHonoursContext(t *testing.T) {
	s := New()
	release := s.Hold()
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.DescribeScene(ctx, "img", func(string) { t.Error("unexpected chunk") })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
