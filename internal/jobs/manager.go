package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexiqai/doc-audio-service/internal/audio"
	"github.com/lexiqai/doc-audio-service/internal/extract"
	"github.com/lexiqai/doc-audio-service/internal/observability"
	"github.com/lexiqai/doc-audio-service/internal/tts"
)

// Notifier receives every status change of every job. Notify must not block.
type Notifier interface {
	Notify(st Status)
}

// ManagerConfig holds the storage settings of a Manager
type ManagerConfig struct {
	UploadDir   string
	OutputDir   string
	MaxFileSize int64         // bytes, 0 means unlimited
	TTL         time.Duration // how long finished jobs are kept, 0 keeps them forever
	Notifier    Notifier      // optional
}

// Download describes a finished artifact
type Download struct {
	Path        string
	Filename    string
	ContentType string
}

// Manager accepts uploads, runs conversions in the background and owns the
// files each job creates
type Manager struct {
	registry  *Registry
	converter *Converter
	cfg       ManagerConfig
	logger    zerolog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewManager creates the storage directories and returns a Manager
func NewManager(registry *Registry, converter *Converter, cfg ManagerConfig) (*Manager, error) {
	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Manager{
		registry:  registry,
		converter: converter,
		cfg:       cfg,
		logger:    observability.Component("jobs"),
		now:       time.Now,
	}, nil
}

// Submit stores the upload and starts its conversion. The returned status
// is the initial processing record.
func (m *Manager) Submit(filename string, r io.Reader, voice tts.VoiceConfig) (Status, error) {
	name := filepath.Base(filename)
	if !extract.Supported(name) {
		return Status{}, fmt.Errorf("%w: %s", extract.ErrUnsupportedFormat, filepath.Ext(name))
	}

	jobID := uuid.New().String()
	docPath := filepath.Join(m.cfg.UploadDir, jobID+"_"+name)
	if err := m.saveUpload(docPath, r); err != nil {
		return Status{}, err
	}

	st, err := m.registry.Create(Status{
		JobID:    jobID,
		State:    StateProcessing,
		Message:  "Starting conversion...",
		Filename: name,
	})
	if err != nil {
		os.Remove(docPath)
		return Status{}, err
	}
	m.notify(st)

	m.wg.Add(1)
	go m.run(jobID, docPath, voice.Clamp())

	m.logger.Info().
		Str("job_id", jobID).
		Str("filename", name).
		Msg("Conversion started")
	return st, nil
}

func (m *Manager) saveUpload(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save upload: %w", err)
	}

	src := r
	if m.cfg.MaxFileSize > 0 {
		src = io.LimitReader(r, m.cfg.MaxFileSize+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("save upload: %w", err)
	}
	if m.cfg.MaxFileSize > 0 && n > m.cfg.MaxFileSize {
		os.Remove(path)
		return fmt.Errorf("%w: max %d MB", ErrFileTooLarge, m.cfg.MaxFileSize/(1024*1024))
	}
	return nil
}

// run executes one job. Jobs are not cancellable once started.
func (m *Manager) run(jobID, docPath string, voice tts.VoiceConfig) {
	defer m.wg.Done()
	defer os.Remove(docPath)

	logger := observability.WithJobID(jobID)
	ctx := logger.WithContext(context.Background())

	metrics := observability.NewJobMetrics(jobID)
	metrics.RecordJobStart()

	result, err := m.converter.Convert(ctx, docPath, voice, metrics, func(progress int, message string) {
		m.update(jobID, func(st *Status) {
			st.Progress = progress
			st.Message = message
		})
	})
	if err == nil {
		err = m.complete(jobID, result)
	}
	if err != nil {
		metrics.RecordJobEnd(false)
		logger.Error().Err(err).Msg("Conversion failed")
		m.update(jobID, func(st *Status) {
			st.State = StateFailed
			st.Progress = 0
			st.Message = "Conversion failed: " + err.Error()
		})
		return
	}

	metrics.RecordJobEnd(true)
	logger.Info().Msg("Conversion completed")
}

func (m *Manager) complete(jobID string, result *Result) error {
	merged := result.Audio
	outPath := filepath.Join(m.cfg.OutputDir, jobID+"."+merged.Format)
	if err := os.WriteFile(outPath, merged.Data, 0o644); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}

	duration := audio.EstimateDuration(merged.Size())
	if merged.Format == audio.FormatWAV {
		if d, err := audio.WAVDuration(merged.Data); err == nil {
			duration = d
		}
	}

	_, err := m.update(jobID, func(st *Status) {
		st.State = StateCompleted
		st.Progress = ProgressDone
		st.Message = "Conversion completed successfully!"
		st.AudioURL = "/api/jobs/" + jobID + "/audio"
		st.AudioPath = outPath
		st.Format = merged.Format
		st.EstimatedDuration = duration.Seconds()
		st.SegmentsTotal = result.SegmentsTotal
		st.SegmentsFailed = result.SegmentsFailed
		st.MergeStrategy = merged.Strategy
		st.OutputSize = merged.Size()
	})
	if errors.Is(err, ErrJobNotFound) {
		// Cleaned up while running
		os.Remove(outPath)
		return nil
	}
	return err
}

func (m *Manager) update(jobID string, fn func(*Status)) (Status, error) {
	st, err := m.registry.Update(jobID, fn)
	if err == nil {
		m.notify(st)
	}
	return st, err
}

func (m *Manager) notify(st Status) {
	if m.cfg.Notifier != nil {
		m.cfg.Notifier.Notify(st)
	}
}

// Status returns the job record
func (m *Manager) Status(jobID string) (Status, error) {
	st, ok := m.registry.Get(jobID)
	if !ok {
		return Status{}, ErrJobNotFound
	}
	return st, nil
}

// Download returns the merged artifact of a completed job
func (m *Manager) Download(jobID string) (Download, error) {
	st, ok := m.registry.Get(jobID)
	if !ok {
		return Download{}, ErrJobNotFound
	}
	if st.State != StateCompleted {
		return Download{}, ErrJobNotCompleted
	}
	if _, err := os.Stat(st.AudioPath); err != nil {
		return Download{}, fmt.Errorf("%w: audio file missing", ErrJobNotFound)
	}

	base := st.Filename[:len(st.Filename)-len(filepath.Ext(st.Filename))]
	return Download{
		Path:        st.AudioPath,
		Filename:    base + "." + st.Format,
		ContentType: audio.ContentType(st.Format),
	}, nil
}

// Cleanup forgets the job and deletes its artifact
func (m *Manager) Cleanup(jobID string) error {
	st, ok := m.registry.Delete(jobID)
	if !ok {
		return ErrJobNotFound
	}
	if st.AudioPath != "" {
		if err := os.Remove(st.AudioPath); err != nil && !os.IsNotExist(err) {
			m.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to remove audio file")
		}
	}
	m.logger.Info().Str("job_id", jobID).Msg("Job cleaned up")
	return nil
}

// Subscribe streams status updates of a job
func (m *Manager) Subscribe(jobID string) (<-chan Status, func(), error) {
	return m.registry.Subscribe(jobID)
}

// Sweep cleans up finished jobs older than the TTL and returns how many
// were removed
func (m *Manager) Sweep() int {
	if m.cfg.TTL <= 0 {
		return 0
	}
	removed := 0
	for _, st := range m.registry.Expired(m.now().Add(-m.cfg.TTL)) {
		if err := m.Cleanup(st.JobID); err == nil {
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps expired jobs every interval until ctx is done
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	if m.cfg.TTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info().Int("removed", n).Msg("Expired jobs cleaned up")
			}
		}
	}
}

// Wait blocks until running conversions finish or ctx is done
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Healthy reports whether the job store is reachable
func (m *Manager) Healthy(ctx context.Context) (bool, error) {
	if err := m.registry.store.Ping(ctx); err != nil {
		return false, err
	}
	return true, nil
}
