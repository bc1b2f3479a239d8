// Package session owns the narrator's active feature and the sessions that
// run it.
//
// The Orchestrator serializes every state change behind one mutex. Each
// change tears the live session down (cancel its context, stop its loop,
// cancel its speech pipeline, silence the speaker) and then starts at most
// one new feature session and one continuous loop. Workers run without the
// lock; before they mutate state they re-check the session generation, so a
// superseded session never speaks or changes state again.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-scene-narrator-service/internal/events"
	"ai-scene-narrator-service/internal/models"
	"ai-scene-narrator-service/internal/observability/logging"
	"ai-scene-narrator-service/internal/observability/metrics"
	"ai-scene-narrator-service/internal/service/camera"
	"ai-scene-narrator-service/internal/service/narration"
	"ai-scene-narrator-service/internal/service/schedule"
	"ai-scene-narrator-service/internal/service/stt"
	"ai-scene-narrator-service/internal/service/tts"
	"ai-scene-narrator-service/internal/service/vision"
	"ai-scene-narrator-service/internal/store"
)

var (
	ErrInactive         = errors.New("narrator is not active")
	ErrContinuousActive = errors.New("continuous mode is active")
	ErrOffline          = errors.New("feature requires an internet connection")
	ErrSuperseded       = errors.New("session superseded")
	ErrInvalidRate      = errors.New("speech rate out of range")
	ErrInvalidLanguage  = errors.New("language code is required")
)

// Speech rate bounds accepted by SetSpeechRate.
const (
	MinSpeechRate = 0.5
	MaxSpeechRate = 2.0
)

// EventSink receives session lifecycle and utterance events.
type EventSink interface {
	PublishSession(ctx context.Context, event models.SessionEvent) error
	PublishUtterance(ctx context.Context, event models.UtteranceEvent) error
}

// Options tunes the orchestrator.
type Options struct {
	Language              string
	SpeechRate            float64
	NavigationInterval    time.Duration // pause after each guidance utterance
	ContinuousInterval    time.Duration // pause after each continuous tick
	HistorySize           int
	NavigationMaxFailures int // consecutive guidance failures before giving up; 0 = never
	PublishTimeout        time.Duration
}

// DefaultOptions returns the narrator defaults.
func DefaultOptions() Options {
	return Options{
		Language:           "en-US",
		SpeechRate:         1.4,
		NavigationInterval: 2 * time.Second,
		ContinuousInterval: 4 * time.Second,
		HistorySize:        3,
		PublishTimeout:     5 * time.Second,
	}
}

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Camera      camera.FrameSource
	Vision      vision.Service
	Speaker     tts.Speaker
	Listener    stt.Listener
	People      store.People
	Preferences store.Preferences // optional

	Events  EventSink // optional
	Metrics *metrics.Metrics

	// OnConnectivity is called outside the lock after every connectivity change.
	OnConnectivity func(online bool)
}

// Snapshot is a point-in-time view of the orchestrator state.
type Snapshot struct {
	Feature    string   `json:"feature"`
	Continuous bool     `json:"continuous"`
	Online     bool     `json:"online"`
	Active     bool     `json:"active"`
	DialogOpen bool     `json:"rememberDialogOpen"`
	Language   string   `json:"language"`
	SpeechRate float64  `json:"speechRate"`
	Status     string   `json:"status"`
	SessionID  string   `json:"sessionId,omitempty"`
	History    []string `json:"history"`
}

// liveSession is one run of a feature or of the continuous loop.
type liveSession struct {
	id        string
	name      string
	feature   models.Feature
	gen       uint64
	ctx       context.Context
	cancel    context.CancelFunc
	lifecycle *Lifecycle
	language  string
	rate      float64
	logger    zerolog.Logger

	// guarded by Orchestrator.mu
	task     *schedule.Task
	pipeline *narration.Pipeline
}

type announcement struct {
	ctx  context.Context
	text string
	lang string
	rate float64
}

// Orchestrator coordinates frame capture, vision queries, speech input and
// speech output for the active feature.
type Orchestrator struct {
	deps    Deps
	opts    Options
	ids     *IDGenerator
	logger  zerolog.Logger
	metrics *metrics.Metrics

	baseCtx       context.Context
	announcements chan announcement
	outbox        chan any

	mu             sync.Mutex
	feature        models.Feature
	continuous     bool
	online         bool
	active         bool
	dialogOpen     bool
	language       string
	rate           float64
	status         string
	history        []string
	gen            uint64
	current        *liveSession
	loop           *liveSession
	announceCtx    context.Context
	announceCancel context.CancelFunc
}

// New creates an inactive, online orchestrator. Background work stops when
// ctx is cancelled.
func New(ctx context.Context, deps Deps, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.Language == "" {
		opts.Language = def.Language
	}
	if opts.SpeechRate <= 0 {
		opts.SpeechRate = def.SpeechRate
	}
	if opts.NavigationInterval <= 0 {
		opts.NavigationInterval = def.NavigationInterval
	}
	if opts.ContinuousInterval <= 0 {
		opts.ContinuousInterval = def.ContinuousInterval
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = def.HistorySize
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = def.PublishTimeout
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}

	o := &Orchestrator{
		deps:          deps,
		opts:          opts,
		ids:           NewIDGenerator(),
		logger:        logging.WithComponent("orchestrator"),
		metrics:       m,
		baseCtx:       ctx,
		announcements: make(chan announcement, 16),
		outbox:        make(chan any, 256),
		online:        true,
		language:      opts.Language,
		rate:          opts.SpeechRate,
		status:        statusInitializing,
	}
	o.announceCtx, o.announceCancel = context.WithCancel(ctx)

	go o.runAnnouncer(ctx)
	go o.runOutbox(ctx)
	return o
}

// LoadPreferences applies the persisted speech rate, if any.
func (o *Orchestrator) LoadPreferences(ctx context.Context) error {
	if o.deps.Preferences == nil {
		return nil
	}
	rate, ok, err := o.deps.Preferences.SpeechRate(ctx)
	if err != nil {
		return fmt.Errorf("load speech rate: %w", err)
	}
	if !ok || !validRate(rate) {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rate == rate {
		return nil
	}
	o.rate = rate
	if o.active {
		o.restartLocked("speech rate loaded")
	}
	return nil
}

// Start activates the narrator and probes the camera. The ready message is
// spoken when a frame can be captured; otherwise the camera error is.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.active {
		o.mu.Unlock()
		return nil
	}
	o.active = true
	o.restartLocked("activated")
	o.status = statusInitializing
	o.mu.Unlock()

	o.logger.Info().Msg("Narrator activated")

	_, err := o.deps.Camera.CaptureFrame(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return nil
	}
	if err != nil {
		o.metrics.RecordCaptureFailure()
		o.logger.Error().Err(err).Msg("Camera probe failed")
		o.status = msgCameraUnavailable
		o.announceLocked(msgCameraUnavailable)
		return fmt.Errorf("camera probe: %w", err)
	}
	o.status = msgReady
	o.announceLocked(msgReady)
	return nil
}

// AnnounceReady speaks the ready message.
func (o *Orchestrator) AnnounceReady() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = msgReady
	o.announceLocked(msgReady)
}

// Deactivate stops all work and returns to the inactive state.
func (o *Orchestrator) Deactivate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return
	}
	o.active = false
	o.feature = models.FeatureNone
	o.dialogOpen = false
	o.restartLocked("deactivated")
	o.logger.Info().Msg("Narrator deactivated")
}

// SelectFeature handles a feature button press.
func (o *Orchestrator) SelectFeature(f models.Feature) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.active {
		return ErrInactive
	}
	if o.continuous {
		o.metrics.RecordRejected("continuous")
		o.announceLocked(msgSwitchToManual)
		return ErrContinuousActive
	}
	if !o.online && f != models.FeatureNone {
		o.metrics.RecordRejected("offline")
		o.announceLocked(msgOffline)
		return ErrOffline
	}

	if f == models.FeatureRememberPerson {
		if o.feature != models.FeatureNone {
			o.feature = models.FeatureNone
			o.restartLocked("remember person")
		}
		o.dialogOpen = true
		return nil
	}

	if f == o.feature {
		if f == models.FeatureAsk {
			return nil
		}
		o.feature = models.FeatureNone
		o.restartLocked("toggled off")
		if f == models.FeatureNavigation {
			o.announceLocked(msgNavigationStopped)
		}
		return nil
	}

	o.feature = f
	o.restartLocked("feature selected")
	return nil
}

// Stop resets the active feature to None.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	was := o.feature
	if was == models.FeatureNone {
		return
	}
	o.feature = models.FeatureNone
	o.restartLocked("stopped")
	if was == models.FeatureNavigation {
		o.announceLocked(msgNavigationStopped)
	}
}

// SetContinuous switches between continuous and manual mode. Continuous
// mode needs connectivity; switching it on while offline falls back to
// manual at once.
func (o *Orchestrator) SetContinuous(on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if on {
		o.feature = models.FeatureNone
	}
	if on && !o.online {
		o.metrics.RecordRejected("offline")
		o.continuous = false
		o.restartLocked("mode changed")
		o.announceLocked(msgConnectionLostContinuous)
		return
	}
	o.continuous = on
	o.restartLocked("mode changed")
	if on {
		o.announceLocked(msgContinuousOn)
	} else {
		o.announceLocked(msgManualOn)
	}
}

// SetOnline records a connectivity change. Going offline cancels the active
// feature and disables continuous mode, announcing each.
func (o *Orchestrator) SetOnline(online bool) {
	o.mu.Lock()
	if o.online == online {
		o.mu.Unlock()
		return
	}
	o.online = online
	o.metrics.RecordConnectivity(online)
	o.logger.Info().Bool("online", online).Msg("Connectivity changed")

	if !online {
		was, wasContinuous := o.feature, o.continuous
		o.feature = models.FeatureNone
		o.continuous = false
		o.restartLocked("offline")
		switch was {
		case models.FeatureNone:
		case models.FeatureNavigation:
			o.announceLocked(msgNavigationLost)
		default:
			o.announceLocked(msgConnectionLostFeature)
		}
		if wasContinuous {
			o.announceLocked(msgConnectionLostContinuous)
		}
	}
	notify := o.deps.OnConnectivity
	o.mu.Unlock()

	if notify != nil {
		notify(online)
	}
}

// SetLanguage switches the narration language if the speaker has a voice
// for it. It reports whether the language was applied.
func (o *Orchestrator) SetLanguage(ctx context.Context, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, ErrInvalidLanguage
	}

	supported, err := o.deps.Speaker.VoiceAvailable(ctx, code)
	if err != nil {
		o.logger.Warn().Err(err).Str("language", code).Msg("Voice lookup failed")
		supported = false
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	name := tts.LanguageName(code)
	if !supported {
		o.announceLocked(msgVoiceUnavailable(name))
		return false, nil
	}
	if code != o.language {
		o.language = code
		o.restartLocked("language changed")
	}
	o.announceLocked(msgLanguageSet(name))
	return true, nil
}

// SetSpeechRate changes and persists the speech rate.
func (o *Orchestrator) SetSpeechRate(ctx context.Context, rate float64) error {
	if !validRate(rate) {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}

	o.mu.Lock()
	if o.rate != rate {
		o.rate = rate
		o.restartLocked("speech rate changed")
	}
	o.mu.Unlock()

	if o.deps.Preferences == nil {
		return nil
	}
	if err := o.deps.Preferences.SetSpeechRate(ctx, rate); err != nil {
		return fmt.Errorf("persist speech rate: %w", err)
	}
	return nil
}

// CloseRememberDialog closes the enrollment dialog and resets to None.
func (o *Orchestrator) CloseRememberDialog() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dialogOpen = false
	o.feature = models.FeatureNone
	o.restartLocked("dialog closed")
}

// RememberPersonSpoken asks for a name, listens for it and enrolls the
// person in front of the camera. It blocks until the enrollment ends.
func (o *Orchestrator) RememberPersonSpoken() (models.RememberedPerson, error) {
	s, err := o.beginEnrollment(statusListeningName, true)
	if err != nil {
		return models.RememberedPerson{}, err
	}

	o.say(s, msgSayName)
	name, err := o.deps.Listener.ListenOnce(s.ctx, s.language)
	if s.ctx.Err() != nil {
		return models.RememberedPerson{}, ErrSuperseded
	}
	if err != nil {
		o.listenFailed(s, err)
		return models.RememberedPerson{}, err
	}
	if strings.TrimSpace(name) == "" {
		o.say(s, msgProvideName)
		o.finish(s, StateFailed, "blank name")
		return models.RememberedPerson{}, store.ErrInvalidName
	}
	return o.savePerson(s, name)
}

// RememberPersonNamed enrolls the person in front of the camera under a
// typed name. A blank name is rejected without touching state.
func (o *Orchestrator) RememberPersonNamed(name string) (models.RememberedPerson, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		o.mu.Lock()
		o.announceLocked(msgProvideName)
		o.mu.Unlock()
		return models.RememberedPerson{}, store.ErrInvalidName
	}

	s, err := o.beginEnrollment(fmt.Sprintf(statusRememberingName, name), false)
	if err != nil {
		return models.RememberedPerson{}, err
	}
	return o.savePerson(s, name)
}

// Feature returns the active feature.
func (o *Orchestrator) Feature() models.Feature {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.feature
}

// Online returns the connectivity flag.
func (o *Orchestrator) Online() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.online
}

// State returns a snapshot of the orchestrator.
func (o *Orchestrator) State() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := Snapshot{
		Feature:    o.feature.String(),
		Continuous: o.continuous,
		Online:     o.online,
		Active:     o.active,
		DialogOpen: o.dialogOpen,
		Language:   o.language,
		SpeechRate: o.rate,
		Status:     o.status,
		History:    append([]string{}, o.history...),
	}
	switch {
	case o.current != nil:
		snap.SessionID = o.current.id
	case o.loop != nil:
		snap.SessionID = o.loop.id
	}
	return snap
}

// --- transitions ---

// restartLocked tears down the live session and loop, then starts whatever
// the current state calls for.
func (o *Orchestrator) restartLocked(reason string) {
	o.teardownLocked(reason)

	if !o.continuous || !o.active {
		o.history = nil
	}
	if o.feature == models.FeatureRememberPerson {
		// A superseded enrollment is not resumed.
		o.feature = models.FeatureNone
	}
	if !o.active {
		o.status = statusInactive
		return
	}
	if !o.online {
		o.status = statusReady
		return
	}

	if o.feature == models.FeatureNone {
		o.status = statusReady
	} else {
		s := o.startSessionLocked(o.feature.String(), o.feature)
		o.current = s
		o.status = featureStatus(o.feature)
		go o.runFeature(s)
	}

	if o.continuous {
		s := o.startSessionLocked(models.ContinuousLoop, models.FeatureNone)
		o.loop = s
		o.status = statusContinuous
		s.task = schedule.Start(s.ctx, o.opts.ContinuousInterval, func(ctx context.Context) bool {
			return o.continuousTick(s)
		})
	}
}

func (o *Orchestrator) teardownLocked(reason string) {
	o.gen++
	o.announceCancel()
	o.announceCtx, o.announceCancel = context.WithCancel(o.baseCtx)

	for _, s := range []*liveSession{o.current, o.loop} {
		if s == nil {
			continue
		}
		s.cancel()
		s.task.Stop()
		if s.pipeline != nil {
			s.pipeline.Cancel()
		}
		o.endLocked(s, StateCancelled, reason)
	}
	o.current, o.loop = nil, nil
	o.deps.Speaker.CancelAll()
}

func (o *Orchestrator) startSessionLocked(name string, f models.Feature) *liveSession {
	ctx, cancel := context.WithCancel(o.baseCtx)
	id := o.ids.Next(name)
	s := &liveSession{
		id:        id,
		name:      name,
		feature:   f,
		gen:       o.gen,
		ctx:       ctx,
		cancel:    cancel,
		lifecycle: NewLifecycle(id),
		language:  o.language,
		rate:      o.rate,
		logger:    logging.WithSession(id, name),
	}
	o.metrics.RecordSessionStart(name)
	o.enqueue(events.NewSessionEvent(models.EventSessionStarted, id, name, s.lifecycle.State().String(), "", s.language, 0))
	s.logger.Info().Msg("Session started")
	return s
}

// endLocked moves s to a terminal state; only the first call has effect.
func (o *Orchestrator) endLocked(s *liveSession, to State, reason string) {
	var err error
	switch to {
	case StateCompleted:
		err = s.lifecycle.Complete()
	case StateFailed:
		err = s.lifecycle.Fail(reason)
	default:
		err = s.lifecycle.Cancel(reason)
	}
	if err != nil {
		return
	}

	d := s.lifecycle.Duration()
	o.metrics.RecordSessionEnd(s.name, strings.ToLower(to.String()), d.Seconds())
	o.enqueue(events.NewSessionEvent(models.EventSessionEnded, s.id, s.name, to.String(), reason, s.language, d))
	s.logger.Info().
		Str("state", to.String()).
		Str("reason", reason).
		Dur("duration", d).
		Msg("Session ended")
}

// finish ends a live feature session and resets the feature to None.
func (o *Orchestrator) finish(s *liveSession, to State, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s.gen != o.gen || o.current != s {
		return
	}
	o.endLocked(s, to, reason)
	o.feature = models.FeatureNone
	o.restartLocked("session ended")
}

// beginEnrollment starts a RememberPerson session. Offline, only a typed
// name entered into an already open dialog is accepted; listening needs
// the recognizer and so always needs connectivity.
func (o *Orchestrator) beginEnrollment(status string, listening bool) (*liveSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return nil, ErrInactive
	}
	if o.continuous {
		o.metrics.RecordRejected("continuous")
		o.announceLocked(msgSwitchToManual)
		return nil, ErrContinuousActive
	}
	if !o.online && (listening || !o.dialogOpen) {
		o.metrics.RecordRejected("offline")
		o.announceLocked(msgOffline)
		return nil, ErrOffline
	}
	o.teardownLocked("enrollment")
	o.feature = models.FeatureRememberPerson
	o.status = status
	s := o.startSessionLocked(o.feature.String(), o.feature)
	o.current = s
	return s, nil
}

// update runs fn under the lock if s is still live.
func (o *Orchestrator) update(s *liveSession, fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s.gen != o.gen {
		return false
	}
	fn()
	return true
}

func (o *Orchestrator) isOnline() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.online
}

func featureStatus(f models.Feature) string {
	switch f {
	case models.FeatureDescribeScene:
		return statusDescribing
	case models.FeaturePerson:
		return statusPerson
	case models.FeatureAsk:
		return statusListening
	case models.FeatureNavigation:
		return statusNavigation
	default:
		return statusReady
	}
}

func validRate(rate float64) bool {
	return !math.IsNaN(rate) && rate >= MinSpeechRate && rate <= MaxSpeechRate
}

// --- feature workers ---

func (o *Orchestrator) runFeature(s *liveSession) {
	switch s.feature {
	case models.FeatureDescribeScene, models.FeaturePerson:
		o.runDescribe(s)
	case models.FeatureAsk:
		o.runAsk(s)
	case models.FeatureNavigation:
		o.runNavigation(s)
	}
}

func (o *Orchestrator) runDescribe(s *liveSession) {
	frame, ok := o.capture(s)
	if !ok {
		return
	}

	var people []models.RememberedPerson
	if s.feature == models.FeaturePerson {
		var err error
		people, err = o.deps.People.AllPeople(s.ctx)
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			o.queryFailed(s, fmt.Errorf("read people: %w", err))
			return
		}
	}

	p := o.openPipeline(s)
	if p == nil {
		return
	}
	var err error
	if s.feature == models.FeaturePerson {
		err = o.deps.Vision.RecognizeAndDescribePerson(s.ctx, frame, people, p.AddChunk)
	} else {
		err = o.deps.Vision.DescribeScene(s.ctx, frame, p.AddChunk)
	}
	o.endStream(s, p, err)
}

func (o *Orchestrator) runAsk(s *liveSession) {
	question, err := o.deps.Listener.ListenOnce(s.ctx, s.language)
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		o.listenFailed(s, err)
		return
	}
	if !o.update(s, func() { o.status = fmt.Sprintf(statusQuestion, question) }) {
		return
	}

	frame, ok := o.capture(s)
	if !ok {
		return
	}
	p := o.openPipeline(s)
	if p == nil {
		return
	}
	err = o.deps.Vision.AskAboutImage(s.ctx, frame, question, p.AddChunk)
	o.endStream(s, p, err)
}

func (o *Orchestrator) runNavigation(s *liveSession) {
	o.say(s, msgNavigationStart)
	if s.ctx.Err() != nil {
		return
	}

	failures := 0
	task := schedule.Start(s.ctx, o.opts.NavigationInterval, func(ctx context.Context) bool {
		return o.navigationTick(s, &failures)
	})
	if !o.update(s, func() { s.task = task }) {
		task.Stop()
	}
}

func (o *Orchestrator) navigationTick(s *liveSession, failures *int) bool {
	o.metrics.RecordLoopTick("navigation")
	if !o.isOnline() {
		o.navigationLost(s)
		return false
	}

	frame, err := o.deps.Camera.CaptureFrame(s.ctx)
	if s.ctx.Err() != nil {
		return false
	}
	if err != nil {
		o.metrics.RecordCaptureFailure()
		s.logger.Debug().Err(err).Msg("No frame for navigation tick")
		return true
	}

	guidance, err := o.deps.Vision.NavigationGuidance(s.ctx, frame)
	if s.ctx.Err() != nil {
		return false
	}
	if err != nil {
		*failures++
		s.logger.Warn().Err(err).Int("consecutiveFailures", *failures).Msg("Navigation guidance failed")
		if !o.isOnline() {
			o.navigationLost(s)
			return false
		}
		if limit := o.opts.NavigationMaxFailures; limit > 0 && *failures >= limit {
			o.say(s, msgNavigationFailed)
			o.finish(s, StateFailed, "repeated guidance failures")
			return false
		}
		return true
	}

	*failures = 0
	if g := strings.TrimSpace(guidance); g != "" {
		o.say(s, g)
	}
	return s.ctx.Err() == nil
}

func (o *Orchestrator) navigationLost(s *liveSession) {
	o.say(s, msgNavigationLost)
	o.finish(s, StateCancelled, "offline")
}

func (o *Orchestrator) continuousTick(s *liveSession) bool {
	o.metrics.RecordLoopTick(models.ContinuousLoop)
	if !o.isOnline() {
		return false
	}

	frame, err := o.deps.Camera.CaptureFrame(s.ctx)
	if s.ctx.Err() != nil {
		return false
	}
	if err != nil {
		o.metrics.RecordCaptureFailure()
		s.logger.Debug().Err(err).Msg("No frame for continuous tick")
		return true
	}

	var history []string
	o.update(s, func() { history = append([]string(nil), o.history...) })

	text, err := o.deps.Vision.ContinuousDescription(s.ctx, frame, history)
	if s.ctx.Err() != nil {
		return false
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Continuous description failed")
		return true
	}

	text = strings.TrimSpace(text)
	if text == "" || vision.IsSilent(text) {
		o.metrics.RecordContinuousSilent()
		return true
	}

	o.say(s, text)
	o.update(s, func() {
		o.history = append([]string{text}, o.history...)
		if len(o.history) > o.opts.HistorySize {
			o.history = o.history[:o.opts.HistorySize]
		}
	})
	return s.ctx.Err() == nil
}

// --- worker helpers ---

// capture grabs a frame for a feature session, speaking the failure message
// and resetting when there is none. ok is false when the caller must stop.
func (o *Orchestrator) capture(s *liveSession) (frame string, ok bool) {
	frame, err := o.deps.Camera.CaptureFrame(s.ctx)
	if s.ctx.Err() != nil {
		return "", false
	}
	if err != nil {
		o.metrics.RecordCaptureFailure()
		s.logger.Warn().Err(err).Msg("Frame capture failed")
		o.say(s, msgCaptureFailed)
		o.finish(s, StateFailed, "capture failed")
		return "", false
	}
	return frame, true
}

func (o *Orchestrator) openPipeline(s *liveSession) *narration.Pipeline {
	p := narration.New(s.ctx, o.deps.Speaker, narration.Options{
		Language: s.language,
		Rate:     s.rate,
		OnComplete: func() {
			o.finish(s, StateCompleted, "")
		},
		OnUtterance: func(text string) {
			o.enqueue(events.NewUtteranceEvent(s.id, s.name, text, s.language, s.rate))
		},
		Logger:  &s.logger,
		Metrics: o.metrics,
	})
	if !o.update(s, func() { s.pipeline = p }) {
		return nil
	}
	return p
}

// endStream flushes the pipeline after a successful stream, or drops its
// output and reports the query failure.
func (o *Orchestrator) endStream(s *liveSession, p *narration.Pipeline, err error) {
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		p.Cancel()
		o.queryFailed(s, err)
		return
	}
	p.Flush()
}

func (o *Orchestrator) queryFailed(s *liveSession, err error) {
	s.logger.Error().Err(err).Msg("Vision query failed")
	msg := msgQueryFailedOnline
	if !o.isOnline() {
		msg = msgQueryFailedOffline
	}
	o.say(s, msg)
	o.finish(s, StateFailed, "query failed")
}

func (o *Orchestrator) listenFailed(s *liveSession, err error) {
	msg, reason := msgNotUnderstood, "not_understood"
	if errors.Is(err, stt.ErrNoSpeech) {
		msg, reason = msgNoSpeech, "no_speech"
	}
	o.metrics.RecordListenError(reason)
	s.logger.Warn().Err(err).Msg("Speech recognition failed")
	o.say(s, msg)
	o.finish(s, StateFailed, reason)
}

func (o *Orchestrator) savePerson(s *liveSession, name string) (models.RememberedPerson, error) {
	name = strings.TrimSpace(name)
	if !o.update(s, func() {
		o.dialogOpen = false
		o.status = fmt.Sprintf(statusRememberingName, name)
	}) {
		return models.RememberedPerson{}, ErrSuperseded
	}

	frame, err := o.deps.Camera.CaptureFrame(s.ctx)
	if s.ctx.Err() != nil {
		return models.RememberedPerson{}, ErrSuperseded
	}
	if err != nil {
		o.metrics.RecordCaptureFailure()
		s.logger.Warn().Err(err).Msg("Frame capture for enrollment failed")
		o.say(s, msgCaptureImageToRemember)
		o.finish(s, StateFailed, "capture failed")
		return models.RememberedPerson{}, fmt.Errorf("capture: %w", err)
	}

	person, err := o.deps.People.AddPerson(s.ctx, name, frame)
	if err != nil {
		s.logger.Error().Err(err).Str("name", name).Msg("Saving person failed")
		o.say(s, msgSaveFailed(name))
		o.finish(s, StateFailed, "save failed")
		return models.RememberedPerson{}, err
	}

	s.logger.Info().Uint64("personId", person.ID).Str("name", name).Msg("Person remembered")
	o.say(s, msgRemembered(name))
	o.finish(s, StateCompleted, "")
	return person, nil
}

// say speaks text on behalf of s and waits for it to finish. Nothing is
// spoken once s has been superseded.
func (o *Orchestrator) say(s *liveSession, text string) {
	err := o.deps.Speaker.Speak(s.ctx, text, s.language, s.rate)
	o.metrics.RecordUtterance(err)
	if err != nil {
		s.logger.Warn().Err(err).Str("text", text).Msg("Utterance failed")
		return
	}
	if s.ctx.Err() == nil {
		o.enqueue(events.NewUtteranceEvent(s.id, s.name, text, s.language, s.rate))
	}
}

// --- background goroutines ---

// announceLocked queues a message that belongs to no session. It is dropped
// if another transition happens before it is spoken.
func (o *Orchestrator) announceLocked(text string) {
	if !o.active {
		return
	}
	a := announcement{ctx: o.announceCtx, text: text, lang: o.language, rate: o.rate}
	select {
	case o.announcements <- a:
	default:
		o.logger.Warn().Str("text", text).Msg("Announcement queue full, dropping")
	}
}

func (o *Orchestrator) runAnnouncer(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-o.announcements:
			if a.ctx.Err() != nil {
				continue
			}
			err := o.deps.Speaker.Speak(a.ctx, a.text, a.lang, a.rate)
			o.metrics.RecordUtterance(err)
			if err != nil {
				o.logger.Warn().Err(err).Str("text", a.text).Msg("Announcement failed")
			}
		}
	}
}

func (o *Orchestrator) enqueue(event any) {
	if o.deps.Events == nil {
		return
	}
	select {
	case o.outbox <- event:
	default:
		o.logger.Warn().Msg("Event outbox full, dropping event")
	}
}

func (o *Orchestrator) runOutbox(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-o.outbox:
			o.publish(event)
		}
	}
}

func (o *Orchestrator) publish(event any) {
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.PublishTimeout)
	defer cancel()

	var err error
	switch e := event.(type) {
	case models.SessionEvent:
		err = o.deps.Events.PublishSession(ctx, e)
	case models.UtteranceEvent:
		err = o.deps.Events.PublishUtterance(ctx, e)
	}
	if err != nil {
		o.logger.Warn().Err(err).Msg("Failed to publish event")
	}
}
