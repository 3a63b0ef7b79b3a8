package staging

import (
	"context"
	"errors"
	"sync"

	"github.com/robertrittmuller/stagemaster-ai/internal/domain"
	"github.com/robertrittmuller/stagemaster-ai/internal/media"
	"github.com/robertrittmuller/stagemaster-ai/internal/providers/openrouter"
)

type stubJobs struct {
	mu        sync.Mutex
	job       *domain.Job
	image     *domain.SourceImage
	findErr   error
	updateErr error
	updates   []domain.Job
}

func (s *stubJobs) FindJobWithImage(ctx context.Context, jobID string) (*domain.Job, *domain.SourceImage, error) {
	if s.findErr != nil {
		return nil, nil, s.findErr
	}
	if s.job == nil || s.job.ID != jobID {
		return nil, nil, domain.ErrNotFound
	}
	job := *s.job
	image := *s.image
	return &job, &image, nil
}

func (s *stubJobs) UpdateJob(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.updateErr != nil {
		return s.updateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, *job)
	return nil
}

func (s *stubJobs) Create(ctx context.Context, job *domain.Job) error {
	return errors.New("not implemented")
}

func (s *stubJobs) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	return nil, errors.New("not implemented")
}

func (s *stubJobs) last() domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates[len(s.updates)-1]
}

func (s *stubJobs) percents() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, 0, len(s.updates))
	for _, u := range s.updates {
		out = append(out, u.ProgressPercent)
	}
	return out
}

type completion struct {
	text string
	err  error
}

// stubLLM answers Complete calls in order and records every prompt.
type stubLLM struct {
	responses []completion
	calls     [][]openrouter.Message
	models    []string
	hook      func(call int)
}

func (s *stubLLM) Complete(ctx context.Context, model string, messages []openrouter.Message) (string, error) {
	call := len(s.calls)
	s.calls = append(s.calls, messages)
	s.models = append(s.models, model)
	if s.hook != nil {
		s.hook(call)
	}
	if call >= len(s.responses) {
		return "", errors.New("unexpected completion call")
	}
	return s.responses[call].text, s.responses[call].err
}

func (s *stubLLM) text(call int) string {
	return s.calls[call][0].Content[0].Text
}

type stubGenerator struct {
	msg        *openrouter.ResponseMessage
	err        error
	calls      int
	messages   []openrouter.Message
	modalities []string
	model      string
}

func (s *stubGenerator) Generate(ctx context.Context, model string, messages []openrouter.Message, modalities []string) (*openrouter.ResponseMessage, error) {
	s.calls++
	s.model = model
	s.messages = messages
	s.modalities = modalities
	return s.msg, s.err
}

type stubLoader struct {
	encoded *media.Encoded
	err     error
	urls    []string
}

func (s *stubLoader) Load(ctx context.Context, url string) (*media.Encoded, error) {
	s.urls = append(s.urls, url)
	if s.err != nil {
		return nil, s.err
	}
	enc := *s.encoded
	return &enc, nil
}

type stubFetcher struct {
	data []byte
	err  error
	urls []string
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	s.urls = append(s.urls, url)
	return s.data, s.err
}

type writtenObject struct {
	bucket      string
	key         string
	data        []byte
	contentType string
}

type memStore struct {
	writes   []writtenObject
	writeErr error
}

func (m *memStore) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	for _, w := range m.writes {
		if w.bucket == bucket && w.key == key {
			return w.data, nil
		}
	}
	return nil, errors.New("missing")
}

func (m *memStore) Write(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if m.writeErr != nil {
		return "", m.writeErr
	}
	m.writes = append(m.writes, writtenObject{bucket: bucket, key: key, data: data, contentType: contentType})
	return "http://localhost:9000/" + bucket + "/" + key, nil
}
