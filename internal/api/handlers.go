package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lexiqai/doc-audio-service/internal/extract"
	"github.com/lexiqai/doc-audio-service/internal/jobs"
	"github.com/lexiqai/doc-audio-service/internal/tts"
)

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and the voice fields
const multipartOverhead = 1 << 20

// Handler serves the conversion API
type Handler struct {
	manager     *jobs.Manager
	voices      []tts.Voice
	voice       tts.VoiceConfig
	maxFileSize int64
}

// NewHandler creates a Handler. voice holds the defaults applied to fields
// a request leaves out; a nil catalogue means the built-in one.
func NewHandler(manager *jobs.Manager, voices []tts.Voice, voice tts.VoiceConfig, maxFileSize int64) *Handler {
	if voices == nil {
		voices = tts.Voices
	}
	return &Handler{
		manager:     manager,
		voices:      voices,
		voice:       voice,
		maxFileSize: maxFileSize,
	}
}

// ConvertDocument accepts a multipart upload and starts a conversion job
func (h *Handler) ConvertDocument(c *gin.Context) {
	if h.maxFileSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize+multipartOverhead)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, fmt.Errorf("%w: max %d MB", jobs.ErrFileTooLarge, h.maxFileSize/(1024*1024)))
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	if !extract.Supported(fileHeader.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only PDF and TXT files are supported"})
		return
	}

	voice, err := h.parseVoice(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		writeError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	st, err := h.manager.Submit(fileHeader.Filename, f, voice)
	if err != nil {
		writeError(c, err)
		return
	}

	zerolog.Ctx(c.Request.Context()).Info().
		Str("job_id", st.JobID).
		Str("voice_id", voice.VoiceID).
		Int64("size", fileHeader.Size).
		Msg("Document accepted")

	c.JSON(http.StatusOK, gin.H{
		"job_id":  st.JobID,
		"status":  st.State,
		"message": "File uploaded successfully. Conversion started.",
	})
}

// parseVoice reads the optional voice form fields over the defaults
func (h *Handler) parseVoice(c *gin.Context) (tts.VoiceConfig, error) {
	voice := h.voice
	if id := c.PostForm("voice_id"); id != "" {
		voice.VoiceID = id
	}

	for _, field := range []struct {
		name string
		dst  *float64
	}{
		{"speed", &voice.Speed},
		{"volume", &voice.Volume},
	} {
		raw := c.PostForm(field.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return voice, fmt.Errorf("invalid %s: %q", field.name, raw)
		}
		*field.dst = v
	}

	if raw := c.PostForm("pitch"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return voice, fmt.Errorf("invalid pitch: %q", raw)
		}
		voice.Pitch = v
	}
	return voice.Clamp(), nil
}

// GetJobStatus returns the status record of a job
func (h *Handler) GetJobStatus(c *gin.Context) {
	st, err := h.manager.Status(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// DownloadAudio sends the merged audio of a completed job
func (h *Handler) DownloadAudio(c *gin.Context) {
	dl, err := h.manager.Download(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Type", dl.ContentType)
	c.FileAttachment(dl.Path, dl.Filename)
}

// DeleteJob removes a job and its files
func (h *Handler) DeleteJob(c *gin.Context) {
	jobID := c.Param("id")
	if err := h.manager.Cleanup(jobID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job cleaned up", "job_id": jobID})
}

// ListVoices returns the voice catalogue and the defaults
func (h *Handler) ListVoices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"voices":  h.voices,
		"default": h.voice,
	})
}

// writeError maps domain errors onto HTTP status codes
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat):
		status = http.StatusBadRequest
	case errors.Is(err, jobs.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, jobs.ErrJobNotCompleted):
		status = http.StatusConflict
	case errors.Is(err, jobs.ErrFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	}

	if status == http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
