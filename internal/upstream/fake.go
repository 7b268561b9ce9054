package upstream

import "context"

// FakeTransport is a test double for Transport, shared across packages that
// depend on upstream without a mocking framework.
type FakeTransport struct {
	StatusFn       func(ctx context.Context, requestID string) (StatusResponse, error)
	AnalyzeTextFn  func(ctx context.Context, req AnalyzeTextRequest) (AnalyzeResponse, error)
	AnalyzeImageFn func(ctx context.Context, req AnalyzeImageRequest) (AnalyzeResponse, error)
}

func (f *FakeTransport) Status(ctx context.Context, requestID string) (StatusResponse, error) {
	return f.StatusFn(ctx, requestID)
}

func (f *FakeTransport) AnalyzeText(ctx context.Context, req AnalyzeTextRequest) (AnalyzeResponse, error) {
	return f.AnalyzeTextFn(ctx, req)
}

func (f *FakeTransport) AnalyzeImage(ctx context.Context, req AnalyzeImageRequest) (AnalyzeResponse, error) {
	return f.AnalyzeImageFn(ctx, req)
}
