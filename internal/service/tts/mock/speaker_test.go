package mock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSpeaker_RecordsUtterances(t *testing.T) {
	s := New()

	if err := s.Speak(context.Background(), "Hello.", "en-US", 1.4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := s.Spoken()
	if len(got) != 1 {
		t.Fatalf("expected 1 utterance, got %d", len(got))
	}
	if got[0] != (Utterance{Text: "Hello.", Lang: "en-US", Rate: 1.4}) {
		t.Errorf("unexpected utterance: %+v", got[0])
	}
}

func TestSpeaker_CancelledContextNotRecorded(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Speak(ctx, "stale", "en-US", 1); err != nil {
		t.Errorf("expected nil for cancelled speak, got %v", err)
	}
	if len(s.Spoken()) != 0 {
		t.Errorf("expected nothing recorded, got %v", s.Texts())
	}
}

func TestSpeaker_CancelAllInterrupts(t *testing.T) {
	s := New()
	s.SetDelay(time.Hour)

	done := make(chan error, 1)
	go func() {
		done <- s.Speak(context.Background(), "long", "en-US", 1)
	}()

	if !s.WaitFor("long", time.Second) {
		t.Fatal("utterance never started")
	}
	s.CancelAll()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil for interrupted speak, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("CancelAll did not interrupt the utterance")
	}
	if s.Cancels() != 1 {
		t.Errorf("expected 1 cancel, got %d", s.Cancels())
	}
}

func TestSpeaker_Failure(t *testing.T) {
	s := New()
	boom := errors.New("audio device busy")
	s.SetFailure(func(text string) error {
		if text == "bad" {
			return boom
		}
		return nil
	})

	if err := s.Speak(context.Background(), "bad", "en-US", 1); !errors.Is(err, boom) {
		t.Errorf("expected %v, got %v", boom, err)
	}
	if err := s.Speak(context.Background(), "good", "en-US", 1); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if texts := s.Texts(); len(texts) != 1 || texts[0] != "good" {
		t.Errorf("expected only 'good' recorded, got %v", texts)
	}
}

func TestSpeaker_VoiceAvailable(t *testing.T) {
	s := New()
	s.SetVoices("en-US")

	ok, err := s.VoiceAvailable(context.Background(), "en-GB")
	if err != nil || !ok {
		t.Errorf("expected en-GB served by en-US prefix, got %v %v", ok, err)
	}
	ok, _ = s.VoiceAvailable(context.Background(), "kn-IN")
	if ok {
		t.Error("expected kn-IN unavailable")
	}
}

func TestSpeaker_WaitForCountTimeout(t *testing.T) {
	s := New()
	if s.WaitForCount(1, 10*time.Millisecond) {
		t.Error("expected timeout with no utterances")
	}
}
