package intake

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gradebot/sheetscan/internal/config"
	"github.com/gradebot/sheetscan/internal/frame"
	"github.com/gradebot/sheetscan/internal/model"
)

// State is the intake machine's position in the capture cycle.
type State int

const (
	// StateIdle watches for an insertion edge against the baseline.
	StateIdle State = iota
	// StateProcessing is locked: a capture is in flight, no new edge
	// can trigger.
	StateProcessing
	// StateSuccess means the image was persisted; transient, the
	// machine moves straight on to cooldown.
	StateSuccess
	// StateCooldown keeps detection disabled for the configured
	// duration, then re-baselines.
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateProcessing:
		return "PROCESSING"
	case StateSuccess:
		return "SUCCESS"
	case StateCooldown:
		return "COOLDOWN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CaptureHandler receives exactly one invocation per successful capture.
// The frame is the buffered image the capture was taken from; sheet
// carries the persisted artifact path. The handler runs synchronously
// inside the poll loop: the machine stays locked until it returns.
type CaptureHandler func(ctx context.Context, sheet model.CapturedSheet, frame image.Image) error

// FailureHandler is notified when a capture attempt fails after the
// trigger fired. The machine still proceeds to cooldown and back to
// idle; it never stays locked.
type FailureHandler func(seq uint64, err error)

// Machine drives the capture cycle over a pull-based frame source.
//
// All methods must be called from a single goroutine; Run is the
// intended driver. Guarantees, assuming the insertion lasts longer than
// one poll interval: at least one and at most one capture per insertion
// edge, regardless of how long the sheet then stays on the platen.
type Machine struct {
	cfg      config.IntakeConfig
	source   frame.Source
	detector *Detector
	log      *zap.Logger

	captureDir string
	onCapture  CaptureHandler
	onFailure  FailureHandler

	state         State
	seq           uint64
	cooldownSince time.Time
}

// NewMachine builds a machine persisting capture artifacts under
// captureDir. onCapture may not be nil; onFailure may be.
func NewMachine(cfg config.IntakeConfig, source frame.Source, captureDir string, onCapture CaptureHandler, onFailure FailureHandler) (*Machine, error) {
	if onCapture == nil {
		return nil, eris.New("intake: capture handler required")
	}
	if err := os.MkdirAll(captureDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "intake: create capture dir %s", captureDir)
	}
	return &Machine{
		cfg:        cfg,
		source:     source,
		detector:   NewDetector(cfg.EdgeDelta),
		log:        zap.L().Named("intake"),
		captureDir: captureDir,
		onCapture:  onCapture,
		onFailure:  onFailure,
	}, nil
}

// ResumeFrom sets the sequence counter so new captures continue after
// previously persisted sheets. Call before Run.
func (m *Machine) ResumeFrom(lastSeq uint64) {
	m.seq = lastSeq
}

// State reports the current machine state.
func (m *Machine) State() State {
	return m.state
}

// Seq reports the last assigned sheet sequence.
func (m *Machine) Seq() uint64 {
	return m.seq
}

// Run polls frames at the configured interval until ctx is canceled.
// There is no terminal state: the machine cycles indefinitely until
// stopped from outside.
func (m *Machine) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	m.log.Info("intake loop started",
		zap.Float64("edge_delta", m.cfg.EdgeDelta),
		zap.Duration("cooldown", m.cfg.Cooldown))

	for {
		select {
		case <-ctx.Done():
			m.log.Info("intake loop stopped", zap.Uint64("last_seq", m.seq))
			return ctx.Err()
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick advances the machine by one polled frame. Exposed so tests and
// replay harnesses can drive the machine without real time.
func (m *Machine) Tick(ctx context.Context) {
	img, err := m.source.Frame(ctx)
	if err != nil {
		// Acquisition errors are transient: keep polling. A dead
		// source never wedges the machine in a locked state.
		m.log.Warn("frame acquisition failed", zap.String("state", m.state.String()), zap.Error(err))
		return
	}

	switch m.state {
	case StateIdle:
		if m.detector.SheetPresent(img) {
			m.state = StateProcessing
			m.log.Info("insertion edge detected", zap.Uint64("next_seq", m.seq+1))
			m.process(ctx, img)
		}
	case StateCooldown:
		if time.Since(m.cooldownSince) >= m.cfg.Cooldown {
			m.detector.Reset()
			m.detector.SheetPresent(img) // re-sample baseline
			m.state = StateIdle
			m.log.Debug("cooldown expired, baseline re-sampled")
		}
	case StateProcessing, StateSuccess:
		// Unreachable from the poll loop: process() runs to cooldown
		// before Tick returns.
	}
}

// process captures from the buffered triggering frame, persists the
// artifact, signals the handler, and always ends in cooldown. The sheet
// being removed mid-processing is irrelevant: the frame is already in
// memory.
func (m *Machine) process(ctx context.Context, img image.Image) {
	defer m.enterCooldown()

	m.seq++
	now := time.Now().UTC()
	path := filepath.Join(m.captureDir,
		fmt.Sprintf("scan_%06d_%s.png", m.seq, now.Format("20060102T150405")))

	if err := imaging.Save(img, path); err != nil {
		err = eris.Wrapf(err, "intake: persist capture %d", m.seq)
		m.log.Error("capture failed", zap.Uint64("seq", m.seq), zap.Error(err))
		if m.onFailure != nil {
			m.onFailure(m.seq, err)
		}
		return
	}

	m.state = StateSuccess
	sheet := model.CapturedSheet{Seq: m.seq, ImagePath: path, CapturedAt: now}
	m.log.Info("sheet captured", zap.Uint64("seq", sheet.Seq), zap.String("path", path))

	if err := m.onCapture(ctx, sheet, img); err != nil {
		// The capture itself succeeded; downstream processing errors
		// are logged here and surfaced by the pipeline's own path.
		m.log.Error("capture handler failed", zap.Uint64("seq", sheet.Seq), zap.Error(err))
	}
}

func (m *Machine) enterCooldown() {
	m.state = StateCooldown
	m.cooldownSince = time.Now()
}
