package extraction

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	answer   string
	err      error
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.answer}}}, nil
}

func TestVisionDescriber_Describe(t *testing.T) {
	path := writeFile(t, t.TempDir(), "form.png", []byte{0x89, 'P', 'N', 'G'})
	model := &fakeModel{answer: "  Two text fields and a Save button.\n"}
	d := NewVisionDescriberWithModel(model, VisionConfig{Temperature: 0.1}, nil)

	desc, err := d.Describe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Two text fields and a Save button.", desc)

	assert.InDelta(t, 0.1, model.opts.Temperature, 1e-9)
	assert.Equal(t, 1024, model.opts.MaxTokens)

	require.Len(t, model.messages, 1)
	msg := model.messages[0]
	assert.Equal(t, llms.ChatMessageTypeHuman, msg.Role)
	require.Len(t, msg.Parts, 2)

	text, ok := msg.Parts[0].(llms.TextContent)
	require.True(t, ok)
	assert.Equal(t, VisionPrompt, text.Text)

	img, ok := msg.Parts[1].(llms.ImageURLContent)
	require.True(t, ok)
	want := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'})
	assert.Equal(t, want, img.URL)
}

func TestVisionDescriber_ModelError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "form.png", []byte("img"))
	d := NewVisionDescriberWithModel(&fakeModel{err: errors.New("401 invalid key")}, VisionConfig{}, nil)

	_, err := d.Describe(context.Background(), path)
	assert.ErrorIs(t, err, ErrVisionUnavailable)
}

func TestVisionDescriber_RateLimiterHonoursContext(t *testing.T) {
	path := writeFile(t, t.TempDir(), "form.png", []byte("img"))
	d := NewVisionDescriberWithModel(&fakeModel{answer: "ok"}, VisionConfig{RateLimit: 0.001, Burst: 1}, nil)

	_, err := d.Describe(context.Background(), path)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = d.Describe(ctx, path)
	assert.Error(t, err)
}

func TestNewVisionDescriber_RequiresKey(t *testing.T) {
	_, err := NewVisionDescriber(VisionConfig{}, nil)
	assert.ErrorIs(t, err, ErrVisionUnavailable)
}

func TestRetryTransport(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"q":1}`, string(body))
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("done"))
	}))
	defer srv.Close()

	client := &http.Client{Transport: &retryTransport{
		base:        http.DefaultTransport,
		maxRetries:  3,
		baseBackoff: time.Millisecond,
	}}
	resp, err := client.Post(srv.URL, "application/json", strings.NewReader(`{"q":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, hits.Load())
}

func TestRetryTransport_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := &http.Client{Transport: &retryTransport{base: http.DefaultTransport, maxRetries: 3, baseBackoff: time.Millisecond}}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.EqualValues(t, 1, hits.Load())
}

func TestRetryTransport_GivesUpWithLastStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := &http.Client{Transport: &retryTransport{base: http.DefaultTransport, maxRetries: 2, baseBackoff: time.Millisecond}}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
