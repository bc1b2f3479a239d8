package google

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"ai-scene-narrator-service/internal/service/stt"
)

// fakeStream replays scripted responses and records audio sent to it.
type fakeStream struct {
	mu        sync.Mutex
	sent      int
	closed    bool
	responses []*speechpb.StreamingRecognizeResponse
	recvErr   error
}

func (s *fakeStream) Send(req *speechpb.StreamingRecognizeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent += len(req.GetAudioContent())
	return nil
}

func (s *fakeStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responses) == 0 {
		if s.recvErr != nil {
			return nil, s.recvErr
		}
		return nil, io.EOF
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func (s *fakeStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func result(text string, final bool) *speechpb.StreamingRecognizeResponse {
	return &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{{
			IsFinal:      final,
			Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: text}},
		}},
	}
}

func TestListen_FinalTranscript(t *testing.T) {
	stream := &fakeStream{responses: []*speechpb.StreamingRecognizeResponse{
		result("what is", false),
		{SpeechEventType: speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE},
		result(" What is in front of me ", true),
	}}

	got, err := listen(context.Background(), stream, bytes.NewReader(make([]byte, 10000)), 3200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "What is in front of me" {
		t.Errorf("expected trimmed final transcript, got %q", got)
	}
}

func TestListen_NoFinalIsNoSpeech(t *testing.T) {
	stream := &fakeStream{responses: []*speechpb.StreamingRecognizeResponse{
		result("mm", false),
	}}

	_, err := listen(context.Background(), stream, bytes.NewReader(nil), 3200)
	if !errors.Is(err, stt.ErrNoSpeech) {
		t.Errorf("expected ErrNoSpeech, got %v", err)
	}
}

func TestListen_RecvError(t *testing.T) {
	boom := errors.New("permission denied")
	stream := &fakeStream{recvErr: boom}

	_, err := listen(context.Background(), stream, bytes.NewReader(nil), 3200)
	if !errors.Is(err, boom) {
		t.Errorf("expected %v, got %v", boom, err)
	}
}

func TestListen_TimeoutIsNoSpeech(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	stream := &fakeStream{recvErr: context.DeadlineExceeded}
	_, err := listen(ctx, stream, bytes.NewReader(nil), 3200)
	if !errors.Is(err, stt.ErrNoSpeech) {
		t.Errorf("expected ErrNoSpeech after timeout, got %v", err)
	}
}

func TestPumpAudio_SendsAllAudioAndCloses(t *testing.T) {
	stream := &fakeStream{}
	pumpAudio(stream, bytes.NewReader(make([]byte, 7000)), 3200, make(chan struct{}))

	if stream.sent != 7000 {
		t.Errorf("expected 7000 bytes sent, got %d", stream.sent)
	}
	if !stream.closed {
		t.Error("expected CloseSend after audio ended")
	}
}

func TestStreamingConfig(t *testing.T) {
	cfg := DefaultConfig()
	req := streamingConfig(cfg, "hi-IN")

	sc := req.GetStreamingConfig()
	if sc == nil {
		t.Fatal("expected streaming config request")
	}
	if !sc.SingleUtterance {
		t.Error("expected single utterance mode")
	}
	if sc.Config.LanguageCode != "hi-IN" {
		t.Errorf("expected language hi-IN, got %s", sc.Config.LanguageCode)
	}
	if sc.Config.SampleRateHertz != 16000 || sc.Config.Encoding != speechpb.RecognitionConfig_LINEAR16 {
		t.Errorf("unexpected audio config: %v", sc.Config)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.LanguageCode)
	}
	if cfg.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.SampleRateHz)
	}
	if cfg.InterimResults {
		t.Error("expected interim results off by default")
	}
	if cfg.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.AudioEncoding)
	}
	if cfg.CaptureCommand != "arecord" {
		t.Errorf("expected default capture command 'arecord', got %s", cfg.CaptureCommand)
	}
}

func TestParseAudioEncoding(t *testing.T) {
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16},
		{"MULAW", speechpb.RecognitionConfig_MULAW},
		{"FLAC", speechpb.RecognitionConfig_FLAC},
		{"AMR", speechpb.RecognitionConfig_AMR},
		{"AMR_WB", speechpb.RecognitionConfig_AMR_WB},
		{"OGG_OPUS", speechpb.RecognitionConfig_OGG_OPUS},
		{"SPEEX_WITH_HEADER_BYTE", speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS},
		{"UNKNOWN", speechpb.RecognitionConfig_LINEAR16}, // fallback
		{"linear16", speechpb.RecognitionConfig_LINEAR16}, // lowercase -> fallback
		{"", speechpb.RecognitionConfig_LINEAR16},        // fallback
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseAudioEncoding(tt.input)
			if got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCaptureArgs(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected []string
	}{
		{"linear16", Config{AudioEncoding: "LINEAR16", SampleRateHz: 16000}, []string{"-q", "-t", "raw", "-c", "1", "-f", "S16_LE", "-r", "16000"}},
		{"mulaw", Config{AudioEncoding: "MULAW", SampleRateHz: 8000}, []string{"-q", "-t", "raw", "-c", "1", "-f", "MU_LAW", "-r", "8000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := captureArgs(tt.cfg); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("captureArgs = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestChunkBytes(t *testing.T) {
	tests := []struct {
		cfg      Config
		expected int
	}{
		{Config{AudioEncoding: "LINEAR16", SampleRateHz: 16000}, 3200},
		{Config{AudioEncoding: "MULAW", SampleRateHz: 8000}, 800},
		{Config{AudioEncoding: "LINEAR16", SampleRateHz: 0}, 3200},
	}
	for _, tt := range tests {
		if got := chunkBytes(tt.cfg); got != tt.expected {
			t.Errorf("chunkBytes(%+v) = %d, want %d", tt.cfg, got, tt.expected)
		}
	}
}

func TestCommandSource(t *testing.T) {
	cfg := Config{CaptureCommand: "echo", AudioEncoding: "LINEAR16", SampleRateHz: 16000}
	rc, err := CommandSource(cfg)(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
	if !bytes.Contains(data, []byte("S16_LE")) {
		t.Errorf("expected capture args echoed, got %q", data)
	}
}
