package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robertrittmuller/stagemaster-ai/internal/domain"
)

const (
	testImageID = "8c7e0a0a-4f60-4b8e-a3f1-6d2b7c9e2222"
	testJobID   = "5b0b2f4e-7d39-4d5e-9a57-1f0fd0d0b111"
)

type stubImages struct {
	mu     sync.Mutex
	images map[string]*domain.SourceImage
}

func (s *stubImages) Create(ctx context.Context, image *domain.SourceImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.images == nil {
		s.images = make(map[string]*domain.SourceImage)
	}
	copied := *image
	s.images[image.ID] = &copied
	return nil
}

func (s *stubImages) GetByID(ctx context.Context, id string) (*domain.SourceImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *img
	return &copied, nil
}

type stubJobs struct {
	mu      sync.Mutex
	jobs    map[string]*domain.Job
	created []*domain.Job
	// states are returned in order by GetByID before falling back to jobs.
	states []*domain.Job
	err    error
}

func (s *stubJobs) FindJobWithImage(ctx context.Context, jobID string) (*domain.Job, *domain.SourceImage, error) {
	return nil, nil, errors.New("not used")
}

func (s *stubJobs) UpdateJob(ctx context.Context, job *domain.Job) error {
	return errors.New("not used")
}

func (s *stubJobs) Create(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	job.ID = testJobID
	job.Status = domain.JobStatusPending
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	copied := *job
	s.created = append(s.created, &copied)
	return nil
}

func (s *stubJobs) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if len(s.states) > 0 {
		next := *s.states[0]
		if len(s.states) > 1 {
			s.states = s.states[1:]
		}
		return &next, nil
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

type stubQueue struct {
	ids []string
	err error
}

func (q *stubQueue) Enqueue(ctx context.Context, jobID string) error {
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, jobID)
	return nil
}

func (q *stubQueue) Dequeue(ctx context.Context) (string, error) {
	return "", errors.New("not used")
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *memStore) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[bucket+"/"+key], nil
}

func (m *memStore) Write(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[bucket+"/"+key] = data
	return "http://storage.test/" + bucket + "/" + key, nil
}

type fixture struct {
	app    *App
	jobs   *stubJobs
	images *stubImages
	queue  *stubQueue
	store  *memStore
}

func newFixture() *fixture {
	f := &fixture{
		jobs:   &stubJobs{jobs: map[string]*domain.Job{}},
		images: &stubImages{},
		queue:  &stubQueue{},
		store:  &memStore{},
	}
	f.app = &App{
		Jobs:          f.jobs,
		Images:        f.images,
		Store:         f.store,
		Queue:         f.queue,
		UploadsBucket: "uploads",
		WatchInterval: 10 * time.Millisecond,
	}
	f.app.Logger = loggerForTest()
	return f
}

func (f *fixture) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/healthz", f.app.Health)
	r.Post("/v1/images", f.app.UploadImage)
	r.Post("/v1/jobs", f.app.CreateJob)
	r.Get("/v1/jobs/{id}", f.app.GetJob)
	r.Get("/v1/jobs/{id}/watch", f.app.WatchJob)
	return r
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture()
	rec := httptest.NewRecorder()
	f.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rec.Code != http.StatusOK || decodeBody(t, rec)["status"] != "ok" {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestUploadImageStoresPNG(t *testing.T) {
	f := newFixture()
	body, contentType := multipartBody(t, "file", "room.png", pngBytes(t))
	req := httptest.NewRequest(http.MethodPost, "/v1/images", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.router().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody(t, rec)
	id, _ := resp["id"].(string)
	if resp["content_type"] != "image/png" || resp["filename"] != "room.png" {
		t.Fatalf("unexpected response %v", resp)
	}
	if resp["original_url"] != "http://storage.test/uploads/"+id+".png" {
		t.Fatalf("original_url = %v", resp["original_url"])
	}
	if _, err := f.images.GetByID(context.Background(), id); err != nil {
		t.Fatalf("image not recorded: %v", err)
	}
	if len(f.store.objects["uploads/"+id+".png"]) == 0 {
		t.Fatal("object not written to uploads bucket")
	}
}

func TestUploadImageRejects(t *testing.T) {
	cases := []struct {
		name  string
		field string
		data  []byte
		want  int
	}{
		{name: "not an image", field: "file", data: []byte("hello, plain text"), want: http.StatusUnsupportedMediaType},
		{name: "missing file field", field: "photo", data: []byte("irrelevant"), want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			body, contentType := multipartBody(t, tc.field, "upload.bin", tc.data)
			req := httptest.NewRequest(http.MethodPost, "/v1/images", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			f.router().ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("code = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
			if len(f.store.objects) != 0 {
				t.Fatal("nothing should be stored")
			}
		})
	}

	f := newFixture()
	req := httptest.NewRequest(http.MethodPost, "/v1/images", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non multipart code = %d", rec.Code)
	}
}

func TestCreateJobDefaultsAndEnqueues(t *testing.T) {
	f := newFixture()
	_ = f.images.Create(context.Background(), &domain.SourceImage{ID: testImageID, OriginalURL: "http://storage.test/uploads/a.png"})

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(`{"image_id":"`+testImageID+`","room_type":"living_room","style_preset":"modern"}`))
	rec := httptest.NewRecorder()
	f.router().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("code = %d body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody(t, rec)
	if resp["status"] != "pending" || resp["fix_white_balance"] != true || resp["wall_decorations"] != true {
		t.Fatalf("unexpected response %v", resp)
	}
	if len(f.queue.ids) != 1 || f.queue.ids[0] != testJobID {
		t.Fatalf("queued = %v", f.queue.ids)
	}
	if !f.jobs.created[0].FixWhiteBalance || !f.jobs.created[0].WallDecorations {
		t.Fatalf("defaults not applied: %+v", f.jobs.created[0])
	}
}

func TestCreateJobExplicitFlags(t *testing.T) {
	f := newFixture()
	_ = f.images.Create(context.Background(), &domain.SourceImage{ID: testImageID})

	body := `{"image_id":"` + testImageID + `","room_type":"bedroom","style_preset":"scandinavian","fix_white_balance":false,"wall_decorations":false}`
	rec := httptest.NewRecorder()
	f.router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(body)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("code = %d", rec.Code)
	}
	if f.jobs.created[0].FixWhiteBalance || f.jobs.created[0].WallDecorations {
		t.Fatalf("explicit false flags ignored: %+v", f.jobs.created[0])
	}
}

func TestCreateJobEnqueueFailureLeavesJobPending(t *testing.T) {
	f := newFixture()
	f.queue.err = errors.New("redis down")
	_ = f.images.Create(context.Background(), &domain.SourceImage{ID: testImageID})

	body := `{"image_id":"` + testImageID + `","room_type":"bedroom","style_preset":"modern"}`
	rec := httptest.NewRecorder()
	f.router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(body)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("code = %d", rec.Code)
	}
	if len(f.jobs.created) != 1 || f.jobs.created[0].Status != domain.JobStatusPending {
		t.Fatalf("job must stay pending for the worker sweep: %+v", f.jobs.created)
	}
	if len(f.queue.ids) != 0 {
		t.Fatalf("queued = %v", f.queue.ids)
	}
}

func TestCreateJobRejects(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed json", body: `{`, want: http.StatusBadRequest},
		{name: "missing room type", body: `{"image_id":"` + testImageID + `","style_preset":"modern"}`, want: http.StatusBadRequest},
		{name: "blank style", body: `{"image_id":"` + testImageID + `","room_type":"bedroom","style_preset":"  "}`, want: http.StatusBadRequest},
		{name: "unknown image", body: `{"image_id":"00000000-0000-0000-0000-000000000000","room_type":"bedroom","style_preset":"modern"}`, want: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			_ = f.images.Create(context.Background(), &domain.SourceImage{ID: testImageID})
			rec := httptest.NewRecorder()
			f.router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(tc.body)))
			if rec.Code != tc.want {
				t.Fatalf("code = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
			if len(f.jobs.created) != 0 || len(f.queue.ids) != 0 {
				t.Fatal("rejected request must not create or queue a job")
			}
		})
	}
}

func TestGetJob(t *testing.T) {
	f := newFixture()
	now := time.Now()
	f.jobs.jobs[testJobID] = &domain.Job{
		ID:              testJobID,
		ImageID:         testImageID,
		Status:          domain.JobStatusCompleted,
		ProgressPercent: 100,
		CurrentStep:     "Staging complete",
		ResultURL:       "http://storage.test/results/" + testJobID + ".png",
		CompletedAt:     &now,
	}

	rec := httptest.NewRecorder()
	f.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+testJobID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	resp := decodeBody(t, rec)
	if resp["status"] != "completed" || resp["progress_percent"] != float64(100) {
		t.Fatalf("unexpected response %v", resp)
	}
	if _, ok := resp["error_message"]; ok {
		t.Fatal("empty error_message should be omitted")
	}

	rec = httptest.NewRecorder()
	f.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/missing", nil))
	if rec.Code != http.StatusNotFound || decodeBody(t, rec)["code"] != "not_found" {
		t.Fatalf("missing job = %d %s", rec.Code, rec.Body.String())
	}
}

func TestGetJobStoreFailure(t *testing.T) {
	f := newFixture()
	f.jobs.err = errors.New("connection reset")
	rec := httptest.NewRecorder()
	f.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+testJobID, nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestChanged(t *testing.T) {
	base := jobResponse{Status: "in_progress", ProgressPercent: 30, CurrentStep: "a"}
	if changed(base, base) {
		t.Fatal("identical views reported as changed")
	}
	next := base
	next.ProgressPercent = 60
	if !changed(base, next) {
		t.Fatal("progress change not detected")
	}
	next = base
	next.UpdatedAt = time.Now()
	if changed(base, next) {
		t.Fatal("updated_at alone should not trigger a push")
	}
}
