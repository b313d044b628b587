package transcoder

import (
	"context"
	"os"
	"sync"
)

type mockTranscoder struct {
	mu       sync.Mutex
	requests []ClipRequest

	TranscodeClipFunc func(ctx context.Context, req ClipRequest) error
}

func (m *mockTranscoder) TranscodeClip(ctx context.Context, req ClipRequest) error {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.TranscodeClipFunc != nil {
		return m.TranscodeClipFunc(ctx, req)
	}
	return os.WriteFile(req.OutputPath, make([]byte, 64*1024), 0o644)
}

func (m *mockTranscoder) Requests() []ClipRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ClipRequest(nil), m.requests...)
}
