// Package workflow is the leaf-photo submission state machine: select an
// image (click or drag-and-drop), preview it, submit it to the classifier,
// show the interpreted result, reset.
//
// All state lives behind one mutex. Preview generation and submission run on
// their own goroutines and publish their results by re-acquiring the lock.
// Every async operation is tagged with the selection and submission
// generations current when it started; a completion whose tag no longer
// matches is discarded, so a slow read for a superseded image can never
// overwrite a newer preview or attach a result to the wrong image.
package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fpang/leafscan/internal/classifier"
	"github.com/fpang/leafscan/internal/filehandler"
	"github.com/fpang/leafscan/internal/interpret"
	"github.com/fpang/leafscan/internal/preview"
	"github.com/fpang/leafscan/internal/session"
	"github.com/rs/zerolog/log"
)

// DefaultSubmitTimeout bounds a classifier request unless overridden.
const DefaultSubmitTimeout = 30 * time.Second

// ErrNoArtifact is returned by Submit when nothing is selected.
var ErrNoArtifact = errors.New("no image selected")

// Predictor is the remote classifier. *classifier.Client implements it.
type Predictor interface {
	Predict(ctx context.Context, token string, a *filehandler.Artifact) (*classifier.Prediction, error)
}

// Observer receives a snapshot after every transition. It is called outside
// the workflow lock, possibly from several goroutines.
type Observer func(Snapshot)

// Option configures a Workflow.
type Option func(*Workflow)

// WithPreviewGenerator replaces the default data URI preview.
func WithPreviewGenerator(g preview.Generator) Option {
	return func(w *Workflow) { w.previewer = g }
}

// WithSubmitTimeout bounds each submission. Zero disables the timeout.
func WithSubmitTimeout(d time.Duration) Option {
	return func(w *Workflow) { w.submitTimeout = d }
}

// WithObserver registers a transition observer.
func WithObserver(o Observer) Option {
	return func(w *Workflow) { w.observers = append(w.observers, o) }
}

// generation identifies the state an async operation was issued against.
type generation struct {
	selection  uint64
	submission uint64
}

// Workflow owns the selected artifact and everything derived from it.
type Workflow struct {
	predictor     Predictor
	previewer     preview.Generator
	submitTimeout time.Duration
	observers     []Observer

	mu             sync.Mutex
	pending        int
	idle           chan struct{}
	sess           *session.Session
	version        uint64
	state          State
	artifact       *filehandler.Artifact
	preview        *preview.Image
	result         *classifier.Prediction
	annotation     *interpret.Annotation
	notice         string
	err            error
	dragging       bool
	previewPending bool
	gen            generation
	cancelPreview  context.CancelFunc
	cancelSubmit   context.CancelFunc
}

// New creates a workflow in the Idle state. sess supplies the bearer token
// for submissions and may be nil; the server decides what to do without one.
func New(predictor Predictor, sess *session.Session, opts ...Option) *Workflow {
	w := &Workflow{
		predictor:     predictor,
		previewer:     preview.DataURI{},
		submitTimeout: DefaultSubmitTimeout,
		sess:          sess,
		state:         Idle,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetSession replaces the session used by later submissions. A request
// already in flight keeps the token it was sent with.
func (w *Workflow) SetSession(sess *session.Session) {
	w.mu.Lock()
	w.sess = sess
	w.mu.Unlock()
}

// Snapshot returns the current state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Wait blocks until every preview and submission started so far has settled,
// or ctx is done.
func (w *Workflow) Wait(ctx context.Context) error {
	w.mu.Lock()
	if w.pending == 0 {
		w.mu.Unlock()
		return nil
	}
	idle := w.idle
	w.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- File acquisition ---

// SelectFile makes a the current artifact. A non-image artifact is rejected
// with a *filehandler.ValidationError and nothing changes. Otherwise any
// previous result is cleared, in-flight work for the previous artifact is
// cancelled, and preview generation starts in the background.
//
// ctx only contributes values to the background work; its cancellation does
// not stop the preview.
func (w *Workflow) SelectFile(ctx context.Context, a *filehandler.Artifact) error {
	if err := filehandler.ValidateArtifact(a); err != nil {
		log.Debug().Err(err).Msg("Artifact rejected")
		return err
	}

	w.mu.Lock()
	w.cancelInflightLocked()
	w.gen.selection++
	w.gen.submission++
	gen := w.gen

	w.artifact = a
	w.preview = nil
	w.result = nil
	w.annotation = nil
	w.notice = ""
	w.err = nil
	w.state = Previewing
	w.previewPending = true

	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancelPreview = cancel
	w.beginLocked()
	snap := w.transitionLocked()
	w.mu.Unlock()

	log.Info().
		Str("name", a.Name).
		Str("mime_type", a.MediaType).
		Int64("size_bytes", a.Size).
		Uint64("selection", gen.selection).
		Msg("Image selected")

	w.notify(snap)
	go w.runPreview(pctx, cancel, gen, a)
	return nil
}

// DragEnter marks a drag in progress over the drop zone.
func (w *Workflow) DragEnter() {
	w.setDragging(true)
}

// DragLeave clears the drag flag without selecting anything.
func (w *Workflow) DragLeave() {
	w.setDragging(false)
}

// Drop ends a drag and selects the dropped artifact. A drop carrying no file
// only clears the drag flag.
func (w *Workflow) Drop(ctx context.Context, a *filehandler.Artifact) error {
	w.setDragging(false)
	if a == nil {
		return nil
	}
	return w.SelectFile(ctx, a)
}

func (w *Workflow) setDragging(v bool) {
	w.mu.Lock()
	if w.dragging == v {
		w.mu.Unlock()
		return
	}
	w.dragging = v
	snap := w.transitionLocked()
	w.mu.Unlock()
	w.notify(snap)
}

// --- Preview ---

func (w *Workflow) runPreview(ctx context.Context, cancel context.CancelFunc, gen generation, a *filehandler.Artifact) {
	defer w.finish()
	defer cancel()

	start := time.Now()
	img, err := w.previewer.Generate(ctx, a)

	w.mu.Lock()
	if gen.selection != w.gen.selection {
		w.mu.Unlock()
		log.Debug().
			Str("name", a.Name).
			Uint64("selection", gen.selection).
			Msg("Discarding preview for superseded image")
		return
	}

	w.previewPending = false
	w.cancelPreview = nil
	if err != nil {
		w.notice = NoticePreviewFailed
		w.err = err
	} else {
		w.preview = img
	}
	snap := w.transitionLocked()
	w.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Str("name", a.Name).Msg("Preview generation failed")
	} else {
		log.Debug().Str("name", a.Name).Dur("duration", time.Since(start)).Msg("Preview ready")
	}
	w.notify(snap)
}

// --- Submission ---

// Submit sends the current artifact to the classifier in the background.
// Without a selection it sets a notice, makes no request and returns
// ErrNoArtifact. A submission already in flight is cancelled and its
// eventual completion ignored. There is no automatic retry; calling Submit
// again from Failed is the retry.
func (w *Workflow) Submit(ctx context.Context) error {
	w.mu.Lock()
	if w.artifact == nil {
		w.notice = NoticeSelectImage
		snap := w.transitionLocked()
		w.mu.Unlock()
		w.notify(snap)
		return ErrNoArtifact
	}

	if w.cancelSubmit != nil {
		w.cancelSubmit()
		w.cancelSubmit = nil
	}
	w.gen.submission++
	gen := w.gen

	a := w.artifact
	token := w.sess.BearerToken()
	w.state = Submitting
	w.result = nil
	w.annotation = nil
	w.notice = ""
	w.err = nil

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if w.submitTimeout > 0 {
		var cancelTimeout context.CancelFunc
		sctx, cancelTimeout = context.WithTimeout(sctx, w.submitTimeout)
		parentCancel := cancel
		cancel = func() {
			cancelTimeout()
			parentCancel()
		}
	}
	w.cancelSubmit = cancel
	w.beginLocked()
	snap := w.transitionLocked()
	w.mu.Unlock()

	log.Info().
		Str("name", a.Name).
		Uint64("submission", gen.submission).
		Bool("hasToken", token != "").
		Msg("Submitting image for analysis")

	w.notify(snap)
	go w.runSubmit(sctx, cancel, gen, token, a)
	return nil
}

func (w *Workflow) runSubmit(ctx context.Context, cancel context.CancelFunc, gen generation, token string, a *filehandler.Artifact) {
	defer w.finish()
	defer cancel()

	start := time.Now()
	prediction, err := w.predictor.Predict(ctx, token, a)
	duration := time.Since(start)

	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		log.Debug().
			Str("name", a.Name).
			Uint64("submission", gen.submission).
			Dur("duration", duration).
			Msg("Discarding result of superseded submission")
		return
	}

	w.cancelSubmit = nil
	if err != nil {
		w.state = Failed
		w.notice = NoticeSubmitFailed
		w.err = err
	} else {
		w.state = Succeeded
		w.result = prediction
		w.annotation = interpret.Interpret(prediction)
	}
	snap := w.transitionLocked()
	w.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Str("name", a.Name).Dur("duration", duration).Msg("Prediction failed")
	} else {
		log.Info().
			Str("name", a.Name).
			Str("prediction", prediction.Label).
			Float64("confidence", prediction.Confidence).
			Dur("duration", duration).
			Msg("Prediction succeeded")
	}
	w.notify(snap)
}

// --- Reset ---

// Reset returns to Idle from any state. In-flight preview and submission
// are cancelled and their completions ignored.
func (w *Workflow) Reset() {
	w.mu.Lock()
	w.cancelInflightLocked()
	w.gen.selection++
	w.gen.submission++

	w.state = Idle
	w.artifact = nil
	w.preview = nil
	w.result = nil
	w.annotation = nil
	w.notice = ""
	w.err = nil
	w.dragging = false
	w.previewPending = false
	snap := w.transitionLocked()
	w.mu.Unlock()

	log.Info().Msg("Workflow reset")
	w.notify(snap)
}

// --- Internal helpers ---

func (w *Workflow) cancelInflightLocked() {
	if w.cancelPreview != nil {
		w.cancelPreview()
		w.cancelPreview = nil
	}
	if w.cancelSubmit != nil {
		w.cancelSubmit()
		w.cancelSubmit = nil
	}
}

// beginLocked counts one more async operation. Caller holds mu.
func (w *Workflow) beginLocked() {
	if w.pending == 0 {
		w.idle = make(chan struct{})
	}
	w.pending++
}

// finish settles one async operation and releases Wait callers once none
// remain.
func (w *Workflow) finish() {
	w.mu.Lock()
	w.pending--
	if w.pending == 0 {
		close(w.idle)
	}
	w.mu.Unlock()
}

// transitionLocked bumps the version and captures a snapshot. Caller holds mu.
func (w *Workflow) transitionLocked() Snapshot {
	w.version++
	return w.snapshotLocked()
}

func (w *Workflow) snapshotLocked() Snapshot {
	return Snapshot{
		Version:        w.version,
		State:          w.state,
		Artifact:       w.artifact,
		Preview:        w.preview,
		Result:         w.result,
		Annotation:     w.annotation,
		Notice:         w.notice,
		Err:            w.err,
		Dragging:       w.dragging,
		PreviewPending: w.previewPending,
	}
}

func (w *Workflow) notify(snap Snapshot) {
	for _, o := range w.observers {
		o(snap)
	}
}
