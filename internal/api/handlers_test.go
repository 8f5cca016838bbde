package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lexiqai/doc-audio-service/internal/audio"
	"github.com/lexiqai/doc-audio-service/internal/extract"
	"github.com/lexiqai/doc-audio-service/internal/jobs"
	"github.com/lexiqai/doc-audio-service/internal/text"
	"github.com/lexiqai/doc-audio-service/internal/tts"
)

const sampleText = "The first paragraph talks about the weather in some detail.\n\n" +
	"The second paragraph is about trains and the timetables they keep.\n\n" +
	"The third paragraph wraps things up with a short conclusion here."

func init() {
	gin.SetMode(gin.TestMode)
}

// gatedSynth blocks every call until release is closed
type gatedSynth struct {
	release chan struct{}
}

func (s gatedSynth) Synthesize(ctx context.Context, text string, voice tts.VoiceConfig) ([]byte, error) {
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return tts.MockSynth{}.Synthesize(ctx, text, voice)
}

func newTestServer(t *testing.T, synth tts.Synthesizer, maxSize int64) (*gin.Engine, *jobs.Manager) {
	t.Helper()
	seg, err := text.NewSegmenter(80, 10)
	if err != nil {
		t.Fatalf("Failed to create segmenter: %v", err)
	}

	dir := t.TempDir()
	m, err := jobs.NewManager(jobs.NewRegistry(nil), &jobs.Converter{
		Extractor:   extract.NewService(),
		Segmenter:   seg,
		Synthesizer: synth,
		Assembler:   audio.NewAssembler(nil),
	}, jobs.ManagerConfig{
		UploadDir:   filepath.Join(dir, "uploads"),
		OutputDir:   filepath.Join(dir, "audio"),
		MaxFileSize: maxSize,
	})
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	r := NewRouter(RouterConfig{
		Manager:        m,
		DefaultVoice:   tts.VoiceConfig{VoiceID: "female-qn-qingse", Speed: 1, Volume: 1},
		MaxFileSize:    maxSize,
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	return r, m
}

func uploadRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		part.Write([]byte(content))
	}
	for k, v := range fields {
		w.WriteField(k, v)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/convert", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func waitIdle(t *testing.T, m *jobs.Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Timed out waiting for jobs: %v", err)
	}
}

func submit(t *testing.T, r http.Handler) string {
	t.Helper()
	w := serve(r, uploadRequest(t, "notes.txt", sampleText, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("Expected a job ID")
	}
	if resp.Status != string(jobs.StateProcessing) {
		t.Errorf("Expected status processing, got %s", resp.Status)
	}
	return resp.JobID
}

func TestConvertLifecycle(t *testing.T) {
	r, m := newTestServer(t, tts.MockSynth{}, 1<<20)

	jobID := submit(t, r)
	waitIdle(t, m)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var st jobs.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if st.State != jobs.StateCompleted {
		t.Fatalf("Expected completed, got %s (%s)", st.State, st.Message)
	}
	if st.Progress != 100 {
		t.Errorf("Expected progress 100, got %d", st.Progress)
	}
	if st.AudioURL != "/api/jobs/"+jobID+"/audio" {
		t.Errorf("Expected audio URL for job, got %q", st.AudioURL)
	}
	if st.SegmentsTotal == 0 {
		t.Error("Expected segment count to be reported")
	}

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"/audio", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Expected audio/mpeg, got %q", got)
	}
	if got := w.Header().Get("Content-Disposition"); !strings.Contains(got, "notes.mp3") {
		t.Errorf("Expected download named notes.mp3, got %q", got)
	}
	if w.Body.Len() != st.OutputSize {
		t.Errorf("Expected %d bytes, got %d", st.OutputSize, w.Body.Len())
	}

	w = serve(r, httptest.NewRequest(http.MethodDelete, "/api/jobs/"+jobID, nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 on delete, got %d", w.Code)
	}
	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID, nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestConvertDocument_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		fields   map[string]string
		want     int
	}{
		{"no file", "", "", nil, http.StatusBadRequest},
		{"unsupported extension", "slides.pptx", "data", nil, http.StatusBadRequest},
		{"bad speed", "notes.txt", sampleText, map[string]string{"speed": "fast"}, http.StatusBadRequest},
		{"bad pitch", "notes.txt", sampleText, map[string]string{"pitch": "1.5"}, http.StatusBadRequest},
		{"too large", "notes.txt", strings.Repeat("a", 2048), nil, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newTestServer(t, tts.MockSynth{}, 1024)
			w := serve(r, uploadRequest(t, tt.filename, tt.content, tt.fields))
			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), `"error"`) {
				t.Errorf("Expected error body, got %s", w.Body.String())
			}
			waitIdle(t, m)
		})
	}
}

func TestParseVoice(t *testing.T) {
	h := NewHandler(nil, nil, tts.VoiceConfig{VoiceID: "female-qn-qingse", Speed: 1, Volume: 1}, 0)

	tests := []struct {
		name   string
		fields map[string]string
		want   tts.VoiceConfig
	}{
		{"defaults", nil, tts.VoiceConfig{VoiceID: "female-qn-qingse", Speed: 1, Volume: 1}},
		{"override", map[string]string{"voice_id": "male-youthful", "speed": "1.5", "volume": "0.5", "pitch": "3"},
			tts.VoiceConfig{VoiceID: "male-youthful", Speed: 1.5, Volume: 0.5, Pitch: 3}},
		{"clamped", map[string]string{"speed": "9", "volume": "0.01", "pitch": "-40"},
			tts.VoiceConfig{VoiceID: "female-qn-qingse", Speed: tts.MaxSpeed, Volume: tts.MinVolume, Pitch: tts.MinPitch}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = uploadRequest(t, "notes.txt", sampleText, tt.fields)

			got, err := h.parseVoice(c)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestDownloadAudio_NotCompleted(t *testing.T) {
	synth := gatedSynth{release: make(chan struct{})}
	r, m := newTestServer(t, synth, 1<<20)

	jobID := submit(t, r)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"/audio", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", w.Code)
	}

	close(synth.release)
	waitIdle(t, m)
}

func TestUnknownJob(t *testing.T) {
	r, _ := newTestServer(t, tts.MockSynth{}, 0)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil),
		httptest.NewRequest(http.MethodGet, "/api/jobs/missing/audio", nil),
		httptest.NewRequest(http.MethodDelete, "/api/jobs/missing", nil),
		httptest.NewRequest(http.MethodGet, "/ws/jobs/missing", nil),
	} {
		if w := serve(r, req); w.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", req.Method, req.URL.Path, w.Code)
		}
	}
}

func TestListVoices(t *testing.T) {
	r, _ := newTestServer(t, tts.MockSynth{}, 0)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/voices", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp struct {
		Voices  []tts.Voice     `json:"voices"`
		Default tts.VoiceConfig `json:"default"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode voices: %v", err)
	}
	if len(resp.Voices) != len(tts.Voices) {
		t.Errorf("Expected %d voices, got %d", len(tts.Voices), len(resp.Voices))
	}
	if resp.Default.VoiceID != "female-qn-qingse" {
		t.Errorf("Expected default voice female-qn-qingse, got %q", resp.Default.VoiceID)
	}
}

func TestHealthRoutes(t *testing.T) {
	r, _ := newTestServer(t, tts.MockSynth{}, 0)

	for _, path := range []string{"/health", "/ready"} {
		if w := serve(r, httptest.NewRequest(http.MethodGet, path, nil)); w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil)); w.Code != http.StatusNotFound {
		t.Errorf("Expected metrics disabled, got %d", w.Code)
	}
}
