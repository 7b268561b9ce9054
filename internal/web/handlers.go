package web

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/arashi-labs/solveorch/internal/executor"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// solveRequestBody mirrors spec §4.8's POST /v1/solve request contract.
type solveRequestBody struct {
	PromptID  string `json:"prompt_id"`
	RequestID string `json:"request_id"`
	Input     struct {
		Text     string `json:"text"`
		ImageB64 string `json:"image_b64"`
		ImageExt string `json:"image_ext"`
	} `json:"input"`
	Options struct {
		PromptID      string `json:"prompt_id"`
		ProfileID     string `json:"profile_id"`
		SocksOverride string `json:"socks_override"`
		SocksID       string `json:"socks_id"`
		ForceNewChat  bool   `json:"force_new_chat"`
		MaxChatUses   int    `json:"max_chat_uses"`
		IncludeDebug  bool   `json:"include_debug"`
		ChatURL       string `json:"chat_url"`
	} `json:"options"`
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var body solveRequestBody
	if !decodeJSON(w, r, &body) {
		return
	}

	req := executor.SolveRequest{
		PromptID:  body.PromptID,
		RequestID: body.RequestID,
		Input: executor.SolveInput{
			Text:     body.Input.Text,
			ImageB64: body.Input.ImageB64,
			ImageExt: body.Input.ImageExt,
		},
		Options: executor.SolveOptions{
			PromptID:      body.Options.PromptID,
			ProfileID:     body.Options.ProfileID,
			SocksOverride: body.Options.SocksOverride,
			SocksID:       body.Options.SocksID,
			ForceNewChat:  body.Options.ForceNewChat,
			MaxChatUses:   body.Options.MaxChatUses,
			IncludeDebug:  body.Options.IncludeDebug,
			ChatURL:       body.Options.ChatURL,
		},
	}

	status, resp := s.exec.Solve(r.Context(), req)
	writeJSON(w, status, resp)
}
