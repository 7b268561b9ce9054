package upstream

import "context"

// StatusResponse is the typed view of GET /status (spec §6); Raw is passed
// through untouched for logging and debug output.
type StatusResponse struct {
	Status        string
	Busy          bool
	PageURL       string
	BrowserLoaded bool
	Raw           []byte
}

// IsBusy reports whether the container considers itself busy (spec §4.2:
// status=="busy" OR busy truthy).
func (s StatusResponse) IsBusy() bool {
	return s.Status == "busy" || s.Busy
}

// AnalyzeResponse is the typed view of POST /analyze | /analyze_text (spec §9
// design note: minimal typed view plus opaque raw blob).
type AnalyzeResponse struct {
	Text    string
	Answer  string
	Message string
	Result  string
	URL     string
	PageURL string
	Raw     []byte
}

// FirstNonEmptyText returns the first non-empty field among
// {text, answer, message, result}, per spec §4.8 step 11.
func (a AnalyzeResponse) FirstNonEmptyText() (string, bool) {
	for _, v := range []string{a.Text, a.Answer, a.Message, a.Result} {
		if v != "" {
			return v, true
		}
	}
	return "", false
}

// EffectivePageURL returns page_url, falling back to url.
func (a AnalyzeResponse) EffectivePageURL() string {
	if a.PageURL != "" {
		return a.PageURL
	}
	return a.URL
}

// AnalyzeTextRequest is the payload for analyze_text (spec §4.2, §6).
type AnalyzeTextRequest struct {
	Text      string
	URL       string
	Profile   string
	Socks     string
	RequestID string
}

// AnalyzeImageRequest is the payload for analyze_image_b64 (spec §4.2, §6).
type AnalyzeImageRequest struct {
	ImageB64  string
	ImageExt  string
	URL       string
	Profile   string
	Socks     string
	RequestID string
}

// Transport is the narrow interface the Executor and ChatManager depend on —
// a fake implementation stands in for tests, no mocking framework needed.
type Transport interface {
	Status(ctx context.Context, requestID string) (StatusResponse, error)
	AnalyzeText(ctx context.Context, req AnalyzeTextRequest) (AnalyzeResponse, error)
	AnalyzeImage(ctx context.Context, req AnalyzeImageRequest) (AnalyzeResponse, error)
}
