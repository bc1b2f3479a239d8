// Package google provides a Google Cloud Speech-to-Text listener.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"

	"ai-scene-narrator-service/internal/observability/logging"
	"ai-scene-narrator-service/internal/service/stt"
)

// chunkDuration is how much audio goes into each streaming request.
const chunkDuration = 100 * time.Millisecond

// Config holds Google STT configuration.
type Config struct {
	LanguageCode   string        // BCP-47 fallback when ListenOnce gets no language
	SampleRateHz   int32         // capture sample rate
	InterimResults bool          // request interim transcripts (ignored for the result)
	AudioEncoding  string        // LINEAR16, MULAW, FLAC, ...
	CaptureCommand string        // microphone capture binary, e.g. arecord
	ListenTimeout  time.Duration // give up after this long
}

// DefaultConfig returns sensible defaults for a device microphone.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   16000,
		InterimResults: false,
		AudioEncoding:  "LINEAR16",
		CaptureCommand: "arecord",
		ListenTimeout:  8 * time.Second,
	}
}

// AudioSource opens a stream of raw audio matching the configured encoding.
type AudioSource func(ctx context.Context) (io.ReadCloser, error)

// recognizeStream is the part of the gRPC stream the listener uses.
type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

// Listener implements stt.Listener with single-utterance streaming recognition.
type Listener struct {
	client *speech.Client
	cfg    Config
	audio  AudioSource
	logger zerolog.Logger
}

var _ stt.Listener = (*Listener)(nil)

// New creates a Google STT listener reading audio from the capture command.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Listener, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Listener{
		client: c,
		cfg:    cfg,
		audio:  CommandSource(cfg),
		logger: logging.WithProvider("stt", "google"),
	}, nil
}

// Close releases the client connection.
func (l *Listener) Close() error {
	return l.client.Close()
}

// ListenOnce streams microphone audio until Google reports the end of a
// single utterance, then returns the final transcript.
func (l *Listener) ListenOnce(ctx context.Context, lang string) (string, error) {
	if l.cfg.ListenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.ListenTimeout)
		defer cancel()
	}
	if lang == "" {
		lang = l.cfg.LanguageCode
	}

	stream, err := l.client.StreamingRecognize(ctx)
	if err != nil {
		return "", err
	}
	if err := stream.Send(streamingConfig(l.cfg, lang)); err != nil {
		return "", err
	}

	audio, err := l.audio(ctx)
	if err != nil {
		stream.CloseSend()
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer audio.Close()

	transcript, err := listen(ctx, stream, audio, chunkBytes(l.cfg))
	if err != nil {
		l.logger.Debug().Err(err).Str("language", lang).Msg("Recognition ended without transcript")
		return "", err
	}
	l.logger.Debug().Str("language", lang).Int("chars", len(transcript)).Msg("Recognized utterance")
	return transcript, nil
}

// listen pumps audio into stream and waits for the first final result.
// No final result before the stream ends or ctx expires is ErrNoSpeech.
func listen(ctx context.Context, stream recognizeStream, audio io.Reader, chunk int) (string, error) {
	stop := make(chan struct{})
	defer close(stop)
	go pumpAudio(stream, audio, chunk, stop)

	var transcript strings.Builder
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return "", err
		}

		for _, r := range resp.Results {
			if !r.IsFinal || len(r.Alternatives) == 0 {
				continue
			}
			transcript.WriteString(r.Alternatives[0].Transcript)
		}
		if transcript.Len() > 0 {
			break
		}
	}

	text := strings.TrimSpace(transcript.String())
	if text == "" {
		return "", stt.ErrNoSpeech
	}
	return text, nil
}

func pumpAudio(stream recognizeStream, audio io.Reader, chunk int, stop <-chan struct{}) {
	defer stream.CloseSend()
	buf := make([]byte, chunk)
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := audio.Read(buf)
		if n > 0 {
			req := &speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
					AudioContent: append([]byte(nil), buf[:n]...),
				},
			}
			if sendErr := stream.Send(req); sendErr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func streamingConfig(cfg Config, lang string) *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        parseAudioEncoding(cfg.AudioEncoding),
					SampleRateHertz: cfg.SampleRateHz,
					LanguageCode:    lang,
					MaxAlternatives: 1,
				},
				SingleUtterance: true,
				InterimResults:  cfg.InterimResults,
			},
		},
	}
}

// CommandSource captures raw mono audio from the configured command. The
// arguments follow arecord's flags.
func CommandSource(cfg Config) AudioSource {
	return func(ctx context.Context) (io.ReadCloser, error) {
		cmd := exec.CommandContext(ctx, cfg.CaptureCommand, captureArgs(cfg)...)
		out, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return &commandReader{ReadCloser: out, cmd: cmd}, nil
	}
}

func captureArgs(cfg Config) []string {
	format := "S16_LE"
	if parseAudioEncoding(cfg.AudioEncoding) == speechpb.RecognitionConfig_MULAW {
		format = "MU_LAW"
	}
	return []string{"-q", "-t", "raw", "-c", "1", "-f", format, "-r", strconv.Itoa(int(cfg.SampleRateHz))}
}

type commandReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (r *commandReader) Close() error {
	r.ReadCloser.Close()
	if r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	err := r.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// chunkBytes sizes each request to chunkDuration of 16-bit (or 8-bit mu-law) audio.
func chunkBytes(cfg Config) int {
	bytesPerSample := 2
	if parseAudioEncoding(cfg.AudioEncoding) == speechpb.RecognitionConfig_MULAW {
		bytesPerSample = 1
	}
	n := int(cfg.SampleRateHz) * bytesPerSample * int(chunkDuration/time.Millisecond) / 1000
	if n <= 0 {
		n = 3200
	}
	return n
}

func parseAudioEncoding(enc string) speechpb.RecognitionConfig_AudioEncoding {
	switch enc {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
