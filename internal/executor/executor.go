// Package executor is the orchestration core described at the top of
// types.go: candidate enumeration, profile-exclusivity locking, container
// selection, chat lifecycle, upstream invocation, and durable job/attempt
// recording (spec §4.8). Grounded on the teacher's internal/session/manager.go
// runEscalationChain for the sequential, early-exit candidate loop shape.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arashi-labs/solveorch/internal/chatmanager"
	"github.com/arashi-labs/solveorch/internal/containerselector"
	"github.com/arashi-labs/solveorch/internal/iolog"
	"github.com/arashi-labs/solveorch/internal/profilelock"
	"github.com/arashi-labs/solveorch/internal/profilemanager"
	"github.com/arashi-labs/solveorch/internal/promptregistry"
	"github.com/arashi-labs/solveorch/internal/store"
	"github.com/arashi-labs/solveorch/internal/upstream"
)

// Config wires an Executor to its collaborators.
type Config struct {
	Store              *store.Store
	Pool               *upstream.Pool
	ProfileLock        *profilelock.Lock
	Profiles           *profilemanager.Manager
	Prompts            *promptregistry.Registry
	Selector           *containerselector.Selector
	Chats              *chatmanager.Manager
	AllowSocksOverride bool
	// ContainerRootURLs seeds page_url on a freshly created chat session,
	// keyed by container id (spec §6 containers[].base_url).
	ContainerRootURLs map[string]string
}

// Executor implements spec §4.8 against its configured collaborators.
type Executor struct {
	cfg Config
}

// New returns an Executor wired per cfg.
func New(cfg Config) *Executor {
	return &Executor{cfg: cfg}
}

func nowISO() string { return time.Now().UTC().Format(time.RFC3339) }

func containsAllowed(allowed []string, id string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == id {
			return true
		}
	}
	return false
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// candidateLoopState accumulates the counters and artifacts the per-candidate
// loop needs across iterations (spec §4.8 Exhaustion).
type candidateLoopState struct {
	profileBusyCount   int
	containerBusyCount int
	attempts           []AttemptDebug
}

// Solve runs spec §4.8's full request execution pipeline.
func (e *Executor) Solve(ctx context.Context, req SolveRequest) (int, *SolveResponse) {
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	jobID := uuid.NewString()
	startedAt := nowISO()

	promptID := req.Options.PromptID
	if promptID == "" {
		promptID = req.PromptID
	}
	if promptID == "" {
		promptID = "default"
	}

	if req.Input.Text == "" && req.Input.ImageB64 == "" {
		return e.earlyInvalid(jobID, requestID, promptID, startedAt, "at least one of input.text or input.image_b64 is required", nil)
	}
	if req.Input.ImageB64 != "" && req.Input.ImageExt == "" {
		return e.earlyInvalid(jobID, requestID, promptID, startedAt, "input.image_ext is required alongside input.image_b64", nil)
	}

	prompt, err := e.cfg.Prompts.Get(promptID)
	if err != nil {
		return e.earlyInvalid(jobID, requestID, promptID, startedAt, fmt.Sprintf("unknown prompt_id %q", promptID), map[string]any{"prompt_id": promptID})
	}

	maxChatUses := req.Options.MaxChatUses
	if maxChatUses <= 0 {
		maxChatUses = prompt.DefaultMaxChatUses
	}

	explicit := isExplicit(req.Options)
	decisionMode := "auto"
	if explicit {
		decisionMode = "explicit"
	}

	if err := e.cfg.Store.InsertJobStart(&store.Job{
		JobID: jobID, RequestID: requestID, PromptID: promptID, DecisionMode: decisionMode,
		FanoutRequested: 1, StartedAt: startedAt,
	}); err != nil {
		return 500, e.failResponse(CodeInternalError, fmt.Sprintf("insert job: %v", err), nil, e.baseMeta(jobID, requestID, promptID, startedAt))
	}

	candidates, err := buildCandidates(e.cfg.Store, promptID, req.Options, maxChatUses)
	if err != nil {
		code := CodeInternalError
		if errors.Is(err, ErrInvalidCandidate) {
			code = CodeInvalidRequest
		}
		resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, code, err.Error(), nil, nil, nil, nil)
		return status, resp
	}

	state := &candidateLoopState{}
	for _, cand := range candidates {
		resp, status, terminal := e.runCandidate(ctx, jobID, requestID, promptID, startedAt, prompt, req, cand, explicit, state)
		if terminal {
			return status, resp
		}
	}

	code := CodeContainerBusy
	if state.profileBusyCount > 0 && state.containerBusyCount == 0 {
		code = CodeProfileBusy
	}
	details := map[string]any{"profile_busy": state.profileBusyCount, "container_busy": state.containerBusyCount}
	resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, code, "no candidate could be completed", details, nil, nil, nil)
	return status, resp
}

// runCandidate executes steps 1-13 of spec §4.8 for one candidate. It returns
// (response, httpStatus, terminal); terminal=false means the caller should
// advance to the next candidate (a "soft" condition per spec §7).
func (e *Executor) runCandidate(ctx context.Context, jobID, requestID, promptID, startedAt string, prompt *promptregistry.Prompt, req SolveRequest, cand ProfileCandidate, explicit bool, state *candidateLoopState) (*SolveResponse, int, bool) {
	resolved, err := e.cfg.Profiles.ResolveForRequest(cand.ProfileID, cand.SocksOverride, e.cfg.AllowSocksOverride)
	if errors.Is(err, profilemanager.ErrUnknownProfile) {
		return nil, 0, false
	}
	if err != nil {
		resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, CodeInternalError, err.Error(), nil, nil, nil, nil)
		return resp, status, true
	}

	guestCount, err := e.cfg.Store.CountGuestChatsForProfile(resolved.ProfileID)
	if err != nil {
		resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, CodeInternalError, err.Error(), nil, resolved, nil, nil)
		return resp, status, true
	}
	if guestCount > 0 {
		if !explicit {
			return nil, 0, false
		}
		details := map[string]any{"guest_chats": guestCount, "hint": "clear guest chats via POST /v1/profiles/{id}/guest/clear"}
		resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, CodeProfileBlocked, "profile has guest chat sessions", details, resolved, nil, nil)
		return resp, status, true
	}

	handle, err := e.cfg.ProfileLock.TryLock(ctx, resolved.ProfileID, requestID)
	if err != nil {
		var busy *profilelock.BusyError
		if errors.As(err, &busy) {
			state.profileBusyCount++
			return nil, 0, false
		}
		resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, CodeInternalError, err.Error(), nil, resolved, nil, nil)
		return resp, status, true
	}
	defer handle.Release()

	containerID, ok := e.chooseContainer(cand, resolved)
	if !ok {
		ids, err := e.cfg.Selector.Select(ctx, containerselector.SelectOptions{
			PromptID: promptID, ProfileID: resolved.ProfileID, SocksID: resolved.SocksID,
			Fanout: 1, AllowedContainers: resolved.AllowedContainers,
		})
		if err != nil {
			var nec *containerselector.NotEnoughContainersError
			if errors.As(err, &nec) {
				state.containerBusyCount++
				return nil, 0, false
			}
			resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, CodeInternalError, err.Error(), nil, resolved, nil, nil)
			return resp, status, true
		}
		containerID = ids[0]
	}

	transport, ok := e.cfg.Pool.Get(containerID)
	if !ok {
		state.containerBusyCount++
		return nil, 0, false
	}

	st, err := transport.Status(ctx, requestID)
	if err != nil || st.IsBusy() {
		state.containerBusyCount++
		return nil, 0, false
	}

	if err := e.cfg.Store.SetJobSelectedContainers(jobID, &resolved.ProfileID, resolved.SocksID, []string{containerID}); err != nil {
		resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, CodeInternalError, err.Error(), nil, resolved, []string{containerID}, nil)
		return resp, status, true
	}

	var chatURL *string
	if req.Options.ChatURL != "" {
		chatURL = &req.Options.ChatURL
	}
	cs, err := e.cfg.Chats.GetOrCreateChat(chatmanager.GetOrCreateParams{
		ContainerID: containerID, PromptID: promptID, ProfileID: resolved.ProfileID, SocksID: resolved.SocksID,
		ChatURL: chatURL, ForceNew: req.Options.ForceNewChat, MaxChatUses: maxChatUsesFor(req, prompt),
		RootURL: e.cfg.ContainerRootURLs[containerID],
	})
	if err != nil {
		if errors.Is(err, chatmanager.ErrUnregisteredChatURL) || errors.Is(err, chatmanager.ErrChatURLContainerMismatch) {
			resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, CodeInvalidRequest, err.Error(), nil, resolved, []string{containerID}, nil)
			return resp, status, true
		}
		resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, CodeInternalError, err.Error(), nil, resolved, []string{containerID}, nil)
		return resp, status, true
	}

	loaded, err := e.cfg.Chats.EnsureChatLoaded(ctx, transport, cs, chatmanager.EnsureLoadedParams{
		StartPrompt: prompt.StartPrompt, ProfileValue: resolved.ProfileValue, SocksURL: derefStr(resolved.SocksURL), RequestID: requestID,
	})
	if err != nil {
		if errors.Is(err, upstream.ErrBusy) {
			state.containerBusyCount++
			return nil, 0, false
		}
		resp, status := e.finishTypedUpstreamFailure(jobID, requestID, promptID, startedAt, resolved, containerID, cs, nil, err)
		return resp, status, true
	}
	cs = loaded

	if cs.IsGuest() {
		now := nowISO()
		disabled := true
		tag := store.TagGuest
		if err := e.cfg.Store.UpdateFullChatSessionByID(cs.ID, nil, nil, &tag, &disabled, now); err != nil {
			resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, CodeInternalError, err.Error(), nil, resolved, []string{containerID}, cs)
			return resp, status, true
		}
		if !explicit {
			return nil, 0, false
		}
		details := map[string]any{"guest_chats": 1}
		resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, CodeProfileBlocked, "chat session became guest", details, resolved, []string{containerID}, cs)
		return resp, status, true
	}
	if cs.IsBlockedForReuse() {
		now := nowISO()
		disabled := true
		tag := store.TagArchive
		if err := e.cfg.Store.UpdateFullChatSessionByID(cs.ID, nil, nil, &tag, &disabled, now); err != nil {
			resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, CodeInternalError, err.Error(), nil, resolved, []string{containerID}, cs)
			return resp, status, true
		}
		if !explicit {
			return nil, 0, false
		}
		resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, CodeChatBlocked, "chat session is blocked", nil, resolved, []string{containerID}, cs)
		return resp, status, true
	}

	attemptStarted := nowISO()
	attemptID, err := e.cfg.Store.CreateJobAttempt(&store.JobAttempt{
		JobID: jobID, ChatSessionID: &cs.ID, ChatID: cs.ChatID, PageURL: &cs.PageURL,
		ContainerID: containerID, ProfileID: resolved.ProfileID, SocksID: resolved.SocksID, StartedAt: attemptStarted,
	})
	if err != nil {
		resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, CodeInternalError, err.Error(), nil, resolved, []string{containerID}, cs)
		return resp, status, true
	}

	finalResp, callErr := e.invokeUpstream(ctx, transport, req, resolved, cs, requestID)
	if callErr != nil {
		resp, status := e.finishTypedUpstreamFailure(jobID, requestID, promptID, startedAt, resolved, containerID, cs, &attemptID, callErr)
		return resp, status, true
	}

	text, ok := finalResp.FirstNonEmptyText()
	if !ok {
		if pageURL := finalResp.EffectivePageURL(); pageURL != "" {
			text = pageURL
		} else {
			text = string(finalResp.Raw)
		}
	}

	now := nowISO()
	rawStr := string(finalResp.Raw)
	if err := e.cfg.Store.FinishJobAttempt(attemptID, store.JobSucceeded, &text, &rawStr, nil, nil, now); err != nil {
		resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, CodeInternalError, err.Error(), nil, resolved, []string{containerID}, cs)
		return resp, status, true
	}
	if err := e.cfg.Store.UpdateJobFinish(jobID, store.JobSucceeded, &text, &rawStr, nil, nil, now); err != nil {
		resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, CodeInternalError, err.Error(), nil, resolved, []string{containerID}, cs)
		return resp, status, true
	}
	if err := e.cfg.Store.IncrementProfileUses(resolved.ProfileID, now); err != nil {
		resp, status := e.finishJobWith(jobID, requestID, promptID, startedAt, CodeInternalError, err.Error(), nil, resolved, []string{containerID}, cs)
		return resp, status, true
	}

	meta := e.metaFor(jobID, requestID, promptID, startedAt, now, resolved, []string{containerID}, cs)
	resp := &SolveResponse{OK: true, Final: &FinalResult{Kind: "text", Text: text}, Meta: meta}
	if req.Options.IncludeDebug {
		resp.Attempts = append(state.attempts, AttemptDebug{ContainerID: containerID, ProfileID: resolved.ProfileID, Status: store.JobSucceeded})
	}
	return resp, 200, true
}

func maxChatUsesFor(req SolveRequest, prompt *promptregistry.Prompt) int {
	if req.Options.MaxChatUses > 0 {
		return req.Options.MaxChatUses
	}
	return prompt.DefaultMaxChatUses
}

func (e *Executor) chooseContainer(cand ProfileCandidate, resolved *profilemanager.ResolvedProfile) (string, bool) {
	if cand.PreferredContainerID == nil {
		return "", false
	}
	id := *cand.PreferredContainerID
	if !containsAllowed(resolved.AllowedContainers, id) || !e.cfg.Pool.IsEnabled(id) {
		return "", false
	}
	return id, true
}

func (e *Executor) invokeUpstream(ctx context.Context, t upstream.Transport, req SolveRequest, resolved *profilemanager.ResolvedProfile, cs *store.ChatSession, requestID string) (upstream.AnalyzeResponse, error) {
	text := req.Input.Text
	imageB64 := req.Input.ImageB64
	socksURL := derefStr(resolved.SocksURL)

	switch {
	case text != "" && imageB64 != "":
		r1, err := t.AnalyzeText(ctx, upstream.AnalyzeTextRequest{Text: text, URL: cs.PageURL, Profile: resolved.ProfileValue, Socks: socksURL, RequestID: requestID})
		if err != nil {
			return upstream.AnalyzeResponse{}, err
		}
		_ = e.cfg.Store.IncrementChatUse(cs.ID, 1, nowISO())
		url2 := r1.EffectivePageURL()
		if url2 == "" {
			url2 = cs.PageURL
		}
		r2, err := t.AnalyzeImage(ctx, upstream.AnalyzeImageRequest{ImageB64: imageB64, ImageExt: req.Input.ImageExt, URL: url2, Profile: resolved.ProfileValue, Socks: socksURL, RequestID: requestID})
		if err != nil {
			return upstream.AnalyzeResponse{}, err
		}
		_ = e.cfg.Store.IncrementChatUse(cs.ID, 1, nowISO())
		return r2, nil
	case text != "":
		r, err := t.AnalyzeText(ctx, upstream.AnalyzeTextRequest{Text: text, URL: cs.PageURL, Profile: resolved.ProfileValue, Socks: socksURL, RequestID: requestID})
		if err != nil {
			return upstream.AnalyzeResponse{}, err
		}
		_ = e.cfg.Store.IncrementChatUse(cs.ID, 1, nowISO())
		return r, nil
	default:
		r, err := t.AnalyzeImage(ctx, upstream.AnalyzeImageRequest{ImageB64: imageB64, ImageExt: req.Input.ImageExt, URL: cs.PageURL, Profile: resolved.ProfileValue, Socks: socksURL, RequestID: requestID})
		if err != nil {
			return upstream.AnalyzeResponse{}, err
		}
		_ = e.cfg.Store.IncrementChatUse(cs.ID, 1, nowISO())
		return r, nil
	}
}

// finishTypedUpstreamFailure finalizes the attempt (if one was created) and
// the job with the classification rules of spec §7, then builds the response.
func (e *Executor) finishTypedUpstreamFailure(jobID, requestID, promptID, startedAt string, resolved *profilemanager.ResolvedProfile, containerID string, cs *store.ChatSession, attemptID *int64, callErr error) (*SolveResponse, int) {
	code := classifyUpstreamErr(callErr)
	now := nowISO()
	msg := callErr.Error()
	if attemptID != nil {
		_ = e.cfg.Store.FinishJobAttempt(*attemptID, store.JobFailed, nil, nil, &code, &msg, now)
	}
	return e.finishJobWith(jobID, requestID, promptID, startedAt, code, msg, nil, resolved, []string{containerID}, cs)
}

// finishJobWith finalizes the job row and builds the (status, response) pair.
// Any of resolved/containerIDs/cs may be nil/empty when the failure occurred
// before those facts were established.
func (e *Executor) finishJobWith(jobID, requestID, promptID, startedAt, code, message string, details map[string]any, resolved *profilemanager.ResolvedProfile, containerIDs []string, cs *store.ChatSession) (*SolveResponse, int) {
	now := nowISO()
	_ = e.cfg.Store.UpdateJobFinish(jobID, store.JobFailed, nil, nil, &code, &message, now)
	meta := e.metaFor(jobID, requestID, promptID, startedAt, now, resolved, containerIDs, cs)
	return e.failResponse(code, message, details, meta), codeHTTPStatus[code]
}

// earlyInvalid handles precondition failures that occur before a Job row exists.
func (e *Executor) earlyInvalid(jobID, requestID, promptID, startedAt, message string, details map[string]any) (int, *SolveResponse) {
	meta := e.baseMeta(jobID, requestID, promptID, startedAt)
	return codeHTTPStatus[CodeInvalidRequest], e.failResponse(CodeInvalidRequest, message, details, meta)
}

func (e *Executor) baseMeta(jobID, requestID, promptID, startedAt string) Meta {
	now := nowISO()
	return Meta{
		JobID: jobID, RequestID: requestID, PromptIDSelected: promptID, FanoutRequested: 1,
		ContainerIDsUsed: []string{}, ChatIDsUsed: []string{}, StartedAt: startedAt, FinishedAt: now,
	}
}

func (e *Executor) metaFor(jobID, requestID, promptID, startedAt, finishedAt string, resolved *profilemanager.ResolvedProfile, containerIDs []string, cs *store.ChatSession) Meta {
	m := Meta{
		JobID: jobID, RequestID: requestID, PromptIDSelected: promptID, FanoutRequested: 1,
		ContainerIDsUsed: containerIDs, ChatIDsUsed: []string{}, StartedAt: startedAt, FinishedAt: finishedAt,
	}
	if containerIDs == nil {
		m.ContainerIDsUsed = []string{}
	}
	if resolved != nil {
		m.ProfileID = resolved.ProfileID
		if resolved.SocksID != nil {
			m.SocksID = *resolved.SocksID
		}
		if resolved.SocksURL != nil {
			m.SocksURL = iolog.MaskSocksUserinfo(*resolved.SocksURL)
		}
	}
	if cs != nil {
		m.PageURL = cs.PageURL
		if cs.ChatID != nil {
			m.ChatIDsUsed = []string{*cs.ChatID}
		}
	}
	return m
}

func (e *Executor) failResponse(code, message string, details map[string]any, meta Meta) *SolveResponse {
	return &SolveResponse{OK: false, Error: &ErrorInfo{Code: code, Message: message, Details: details}, Meta: meta}
}
