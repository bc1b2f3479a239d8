// Package mock provides a scripted vision service for development and tests.
package mock

import (
	"context"
	"sync"

	"ai-scene-narrator-service/internal/models"
	"ai-scene-narrator-service/internal/service/vision"
)

// Call records one query made against the mock.
type Call struct {
	Operation string
	Question  string
	People    []string
	History   []string
}

// Service implements vision.Service with canned answers per operation.
// Streaming operations emit their chunks in order; single-shot operations
// return their texts in order, repeating the last one.
type Service struct {
	mu     sync.Mutex
	chunks map[string][]string
	texts  map[string][]string
	errs   map[string]error
	gate   chan struct{}
	calls  []Call
}

var _ vision.Service = (*Service)(nil)

// New creates a mock with plausible default answers.
func New() *Service {
	return &Service{
		chunks: map[string][]string{
			vision.OpDescribeScene: {"A hallway with a door on the left. ", "The door is open."},
			vision.OpPerson:        {"A person in a blue shirt is standing ", "in front of you."},
			vision.OpAsk:           {"I cannot tell for certain ", "from this image."},
		},
		texts: map[string][]string{
			vision.OpNavigation: {"Path is clear."},
			vision.OpContinuous: {vision.Silent},
		},
		errs: make(map[string]error),
	}
}

// SetChunks sets the streamed answer for a streaming operation.
func (s *Service) SetChunks(op string, chunks ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[op] = chunks
}

// SetTexts sets the answers for a single-shot operation.
func (s *Service) SetTexts(op string, texts ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[op] = texts
}

// SetError makes op fail with err; nil clears it.
func (s *Service) SetError(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, op)
		return
	}
	s.errs[op] = err
}

// Hold makes every query block until the returned release func is called
// or the query's context ends.
func (s *Service) Hold() (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns the recorded queries.
func (s *Service) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns how many times op was queried.
func (s *Service) CallCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Operation == op {
			n++
		}
	}
	return n
}

func (s *Service) DescribeScene(ctx context.Context, image string, onChunk func(chunk string)) error {
	return s.stream(ctx, Call{Operation: vision.OpDescribeScene}, onChunk)
}

func (s *Service) RecognizeAndDescribePerson(ctx context.Context, image string, people []models.RememberedPerson, onChunk func(chunk string)) error {
	names := make([]string, len(people))
	for i, p := range people {
		names[i] = p.Name
	}
	return s.stream(ctx, Call{Operation: vision.OpPerson, People: names}, onChunk)
}

func (s *Service) AskAboutImage(ctx context.Context, image, question string, onChunk func(chunk string)) error {
	return s.stream(ctx, Call{Operation: vision.OpAsk, Question: question}, onChunk)
}

func (s *Service) NavigationGuidance(ctx context.Context, image string) (string, error) {
	return s.single(ctx, Call{Operation: vision.OpNavigation})
}

func (s *Service) ContinuousDescription(ctx context.Context, image string, history []string) (string, error) {
	return s.single(ctx, Call{Operation: vision.OpContinuous, History: append([]string(nil), history...)})
}

func (s *Service) begin(ctx context.Context, call Call) error {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs[call.Operation]
}

func (s *Service) stream(ctx context.Context, call Call, onChunk func(chunk string)) error {
	if err := s.begin(ctx, call); err != nil {
		return err
	}
	s.mu.Lock()
	chunks := append([]string(nil), s.chunks[call.Operation]...)
	s.mu.Unlock()

	for _, c := range chunks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		onChunk(c)
	}
	return nil
}

func (s *Service) single(ctx context.Context, call Call) (string, error) {
	if err := s.begin(ctx, call); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	texts := s.texts[call.Operation]
	if len(texts) == 0 {
		return "", vision.ErrEmptyResponse
	}
	text := texts[0]
	if len(texts) > 1 {
		s.texts[call.Operation] = texts[1:]
	}
	return text, nil
}
