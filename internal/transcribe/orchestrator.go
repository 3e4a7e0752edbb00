package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TechnicallyShaun/boquer/internal/transcribe/client"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/convert"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/dedup"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/logging"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/output"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/source"
)

// defaultSegmentExt is assumed for remote segments whose URL has no extension.
const defaultSegmentExt = ".aac"

// Orchestrator drives the pipeline: poll the source, transcribe and translate
// each admitted segment, record the result and publish live text.
// Segments are processed one at a time in discovery order.
type Orchestrator struct {
	source    source.Source
	speech    Speech
	store     OutputStore
	converter Converter
	publisher Publisher
	logger    *logging.Logger

	pollInterval  time.Duration
	minChunkBytes int64
	tempDir       string
	sourceTag     string
	targetTag     string
	translate     bool
	seen          *dedup.Buffer
	now           func() time.Time

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	results  []Result
	callback func(Result)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConverter sets the converter used for formats the backend rejects.
// Without one, segments are sent as they are.
func WithConverter(c Converter) Option {
	return func(o *Orchestrator) { o.converter = c }
}

// WithPublisher sets where translations are published as live text.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPollInterval sets the pause between poll cycles.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithMinChunkBytes sets the size below which a segment is rejected.
func WithMinChunkBytes(n int64) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.minChunkBytes = n
		}
	}
}

// WithTempDir sets where remote segments are written before transcription.
func WithTempDir(dir string) Option {
	return func(o *Orchestrator) {
		if dir != "" {
			o.tempDir = dir
		}
	}
}

// WithLanguageTags sets the file tags for source and target text, e.g. ES and EN.
func WithLanguageTags(sourceTag, targetTag string) Option {
	return func(o *Orchestrator) {
		o.sourceTag = sourceTag
		o.targetTag = targetTag
	}
}

// WithTranslation turns translation on or off.
func WithTranslation(enabled bool) Option {
	return func(o *Orchestrator) { o.translate = enabled }
}

// WithDedupCapacity sets how many recent segment ids are remembered.
func WithDedupCapacity(n int) Option {
	return func(o *Orchestrator) { o.seen = dedup.New(n) }
}

// WithClock replaces time.Now for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator creates a stopped orchestrator.
func NewOrchestrator(src source.Source, speech Speech, store OutputStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:        src,
		speech:        speech,
		store:         store,
		logger:        logging.Nop(),
		pollInterval:  DefaultPollInterval,
		minChunkBytes: DefaultMinChunkBytes,
		tempDir:       filepath.Join(os.TempDir(), "boquer"),
		sourceTag:     "ES",
		targetTag:     "EN",
		translate:     true,
		seen:          dedup.New(DefaultDedupCapacity),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// OnTranscription registers a callback invoked synchronously for each result.
func (o *Orchestrator) OnTranscription(cb func(Result)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.callback = cb
}

// Results returns a copy of the results recorded so far, in processing order.
func (o *Orchestrator) Results() []Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Result, len(o.results))
	copy(out, o.results)
	return out
}

// Running reports whether Run is active.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Run polls the source until Stop is called or ctx is cancelled. Stop lets
// the current batch finish.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	o.running = true
	stopCh := make(chan struct{})
	o.stopCh = stopCh
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.stopCh = nil
		o.mu.Unlock()
	}()

	o.logger.Info("pipeline started", logging.Duration("poll_interval", o.pollInterval))

	for {
		if err := o.RunOnce(ctx); err != nil && ctx.Err() == nil {
			o.logger.Error("poll cycle failed", err)
		}

		if !o.Running() || !o.wait(ctx, stopCh) {
			break
		}
	}

	reason := "stop requested"
	if ctx.Err() != nil {
		reason = "context cancelled"
	}
	o.logger.Info("pipeline stopped", logging.String("reason", reason))
	return nil
}

// wait sleeps for the poll interval and reports whether to poll again.
func (o *Orchestrator) wait(ctx context.Context, stopCh <-chan struct{}) bool {
	timer := time.NewTimer(o.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-stopCh:
		return false
	case <-timer.C:
		return true
	}
}

// Stop asks Run to return after the current batch.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return
	}
	o.running = false
	if o.stopCh != nil {
		close(o.stopCh)
		o.stopCh = nil
	}
}

// RunOnce performs a single poll cycle and processes every admitted segment.
// A panic inside the cycle is recovered and returned as an error.
func (o *Orchestrator) RunOnce(ctx context.Context) (err error) {
	defer o.recoverInto(&err, "poll cycle")

	segments, err := o.source.Poll(ctx, o.seen.Admit)
	if err != nil {
		return fmt.Errorf("poll source: %w", err)
	}
	if len(segments) > 0 {
		o.logger.Debug("polled source", logging.Int("segments", len(segments)))
	}

	for _, seg := range segments {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := o.safeProcess(ctx, seg); err != nil {
			o.logger.Error("segment failed", err, logging.String("segment", seg.ID))
		}
	}
	return nil
}

func (o *Orchestrator) safeProcess(ctx context.Context, seg source.Segment) (err error) {
	defer o.recoverInto(&err, seg.ID)
	return o.processSegment(ctx, seg)
}

func (o *Orchestrator) recoverInto(err *error, what string) {
	if r := recover(); r != nil {
		o.logger.Error("recovered from panic", fmt.Errorf("%v", r),
			logging.String("in", what),
			logging.String("stack", string(debug.Stack())),
		)
		*err = fmt.Errorf("panic in %s: %v", what, r)
	}
}

func (o *Orchestrator) translating() bool {
	return o.translate && o.speech.CanTranslate()
}

func (o *Orchestrator) tags() []string {
	if o.translating() {
		return []string{o.sourceTag, o.targetTag}
	}
	return []string{o.sourceTag}
}

func (o *Orchestrator) processSegment(ctx context.Context, seg source.Segment) error {
	base := output.BaseName(seg.ID)
	log := o.logger.WithComponent("pipeline")

	if o.store.Complete(base, o.tags()...) {
		log.Debug("output exists, skipping", logging.String("segment", seg.ID))
		return nil
	}

	text, ok, err := o.sourceText(ctx, base, seg)
	if err != nil || !ok {
		return err
	}

	var translation string
	if o.translating() {
		translation, err = o.targetText(ctx, base, text)
		if err != nil {
			return err
		}
	}

	res := Result{
		Timestamp:   o.now().Format("15:04:05"),
		SegmentID:   seg.ID,
		Text:        text,
		Translation: translation,
	}
	o.record(res)

	log.Info("segment processed",
		logging.String("segment", seg.ID),
		logging.Bool("translated", translation != ""),
	)

	if translation != "" && o.publisher != nil {
		if _, err := o.publisher.Publish(base, translation); err != nil {
			log.Error("failed to publish live text", err, logging.String("segment", seg.ID))
		}
	}
	return nil
}

// sourceText returns the source-language text for seg, reusing an existing
// text file and otherwise transcribing the audio. ok is false when there is
// nothing usable.
func (o *Orchestrator) sourceText(ctx context.Context, base string, seg source.Segment) (string, bool, error) {
	if o.store.Exists(base, o.sourceTag) {
		text, err := o.store.Read(base, o.sourceTag)
		if err != nil {
			return "", false, fmt.Errorf("read existing transcription: %w", err)
		}
		return text, true, nil
	}

	size, err := segmentSize(seg)
	if err != nil {
		return "", false, err
	}
	if size < o.minChunkBytes {
		return "", false, fmt.Errorf("%w: %d bytes, need %d", ErrChunkTooSmall, size, o.minChunkBytes)
	}

	audioPath, cleanup, err := o.stage(seg, base)
	if err != nil {
		return "", false, err
	}
	defer cleanup()

	audioPath, err = o.convert(ctx, audioPath)
	if err != nil {
		return "", false, err
	}

	res := o.speech.Transcribe(ctx, audioPath)
	if !o.usable(res, "transcription", seg.ID) {
		return "", false, nil
	}

	if _, err := o.store.Write(ctx, base, o.sourceTag, res.Text); err != nil {
		return "", false, fmt.Errorf("write transcription: %w", err)
	}
	return res.Text, true, nil
}

// targetText returns the translation of text, reusing an existing file.
// An empty string means translation produced nothing usable.
func (o *Orchestrator) targetText(ctx context.Context, base, text string) (string, error) {
	if o.store.Exists(base, o.targetTag) {
		translation, err := o.store.Read(base, o.targetTag)
		if err != nil {
			return "", fmt.Errorf("read existing translation: %w", err)
		}
		return translation, nil
	}

	res := o.speech.Translate(ctx, text)
	if !o.usable(res, "translation", base) {
		return "", nil
	}

	if _, err := o.store.Write(ctx, base, o.targetTag, res.Text); err != nil {
		return "", fmt.Errorf("write translation: %w", err)
	}
	return res.Text, nil
}

func (o *Orchestrator) usable(res client.Result, what, item string) bool {
	switch res.Kind {
	case client.OK:
		return true
	case client.Empty:
		o.logger.Info("discarding empty "+what, logging.String("segment", item))
	case client.Unsupported:
		o.logger.Warn("discarding unsupported "+what, logging.String("segment", item))
	default:
		o.logger.Warn("no result for "+what, logging.String("segment", item))
	}
	return false
}

func (o *Orchestrator) record(res Result) {
	o.mu.Lock()
	o.results = append(o.results, res)
	cb := o.callback
	o.mu.Unlock()

	if cb != nil {
		cb(res)
	}
}

// stage returns a file path for the segment's audio. Remote data is written
// to a fresh directory under tempDir that cleanup removes with everything
// derived from it.
func (o *Orchestrator) stage(seg source.Segment, base string) (string, func(), error) {
	if seg.Local() {
		return seg.Path, func() {}, nil
	}

	dir := filepath.Join(o.tempDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			o.logger.Warn("failed to remove temp files", logging.String("dir", dir), logging.String("error", err.Error()))
		}
	}

	p := filepath.Join(dir, base+segmentExt(seg.ID))
	if err := os.WriteFile(p, seg.Data, 0644); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write temp segment: %w", err)
	}
	return p, cleanup, nil
}

func (o *Orchestrator) convert(ctx context.Context, audioPath string) (string, error) {
	format, ok := convert.TargetFormat(filepath.Ext(audioPath))
	if !ok || o.converter == nil {
		return audioPath, nil
	}
	converted, err := o.converter.Convert(ctx, audioPath, format)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", filepath.Base(audioPath), err)
	}
	return converted, nil
}

func segmentSize(seg source.Segment) (int64, error) {
	if !seg.Local() {
		return int64(len(seg.Data)), nil
	}
	info, err := os.Stat(seg.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("segment file disappeared: %w", err)
		}
		return 0, err
	}
	return info.Size(), nil
}

// segmentExt returns the extension of a segment URL or path.
func segmentExt(id string) string {
	p := id
	if u, err := url.Parse(id); err == nil && u.Path != "" {
		p = u.Path
	}
	if ext := path.Ext(p); ext != "" {
		return ext
	}
	return defaultSegmentExt
}
