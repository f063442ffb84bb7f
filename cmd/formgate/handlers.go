package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"formgate/pkg/httpx"
	"formgate/pkg/metrics"
	"formgate/pkg/sanitize"
	"formgate/pkg/store"
	"formgate/pkg/stream"
	"formgate/pkg/suspect"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const csrfTokenLength = 64

func newCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func validCSRFToken(token string) bool {
	if len(token) != csrfTokenLength {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// parseResearchMetadata decodes the optional client-supplied JSON blob.
// Malformed input reads as an empty map, never an error.
func parseResearchMetadata(raw string) map[string]interface{} {
	if raw == "" {
		return map[string]interface{}{}
	}
	var meta map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil || meta == nil {
		return map[string]interface{}{}
	}
	return meta
}

func metadataBool(meta map[string]interface{}, key string) bool {
	v, ok := meta[key].(bool)
	return ok && v
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	token, err := newCSRFToken()
	if err != nil {
		s.Log.Error("csrf token generation failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := formTmpl.Execute(w, map[string]string{"CSRFToken": token}); err != nil {
		s.Log.Error("form render failed: %v", err)
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	if s.Config.Security.EnableCSRF {
		if !validCSRFToken(r.PostFormValue("csrf_token")) {
			s.Metrics.IncOutcome(metrics.OutcomeCSRFRejected)
			s.Log.Warn("csrf rejection client=%s", s.clientIP(r))
			httpx.Error(w, http.StatusForbidden, "Security validation failed")
			return
		}
	}

	clientIP := s.clientIP(r)
	fields := sanitize.Form(r.PostForm, "csrf_token", "research_metadata")
	meta := parseResearchMetadata(r.PostFormValue("research_metadata"))

	suspicious, pattern := suspect.Match(r.UserAgent(), fields)
	if suspicious {
		s.Metrics.IncOutcome(metrics.OutcomeSuspicious)
		s.Log.Warn("suspicious submission client=%s pattern=%q", clientIP, pattern)
		if s.Config.Security.BlockSuspiciousIPs && s.Guard != nil && s.Guard.Blocked != nil {
			// The current request is still processed; blocking takes
			// effect on the next one.
			s.Guard.Blocked.Add(clientIP)
			s.Events.Publish(stream.ClientBlocked(clientIP, pattern))
		}
	}

	id, err := store.NewSubmissionID()
	if err != nil {
		s.Log.Error("submission id generation failed: %v", err)
		httpx.Error(w, http.StatusInternalServerError, "Failed to save submission")
		return
	}
	rec := store.Submission{
		ID:               id,
		Timestamp:        time.Now().UTC(),
		ClientAddress:    clientIP,
		UserAgent:        r.UserAgent(),
		ResearchMetadata: meta,
		FormFields:       fields,
		IsSuspicious:     suspicious,
		AutofillUsed:     metadataBool(meta, "autofillUsed"),
	}
	if err := s.Store.Append(rec); err != nil {
		s.Metrics.IncOutcome(metrics.OutcomeStoreFailed)
		s.Log.Error("store append failed: %v", err)
		httpx.Error(w, http.StatusInternalServerError, "Failed to save submission")
		return
	}
	s.Metrics.IncOutcome(metrics.OutcomeAllowed)
	s.Events.Publish(stream.SubmissionAccepted(id, clientIP, suspicious))
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"message":      "Submission recorded",
		"submissionId": id,
	})
}

type viewRecord struct {
	ID            string
	Timestamp     string
	ClientAddress string
	UserAgent     string
	IsSuspicious  bool
	AutofillUsed  bool
	Fields        map[string]string
}

type viewData struct {
	Total          int
	AutofillUsed   int
	Suspicious     int
	BlockedClients int
	Records        []viewRecord
}

func (s *Server) handleViewData(w http.ResponseWriter, r *http.Request) {
	records, err := s.Store.LoadAll()
	if err != nil {
		s.Log.Error("store read failed: %v", err)
		http.Error(w, "Failed to load data", http.StatusInternalServerError)
		return
	}
	data := viewData{Total: len(records)}
	if s.Guard != nil && s.Guard.Blocked != nil {
		data.BlockedClients = s.Guard.Blocked.Len()
	}
	for _, rec := range records {
		if rec.AutofillUsed {
			data.AutofillUsed++
		}
		if rec.IsSuspicious {
			data.Suspicious++
		}
		fields := make(map[string]string, len(rec.FormFields))
		for k, v := range rec.FormFields {
			fields[k] = sanitize.RedactNumber(v)
		}
		data.Records = append(data.Records, viewRecord{
			ID:            rec.ID,
			Timestamp:     rec.Timestamp.Local().Format("2006-01-02 15:04:05"),
			ClientAddress: rec.ClientAddress,
			UserAgent:     rec.UserAgent,
			IsSuspicious:  rec.IsSuspicious,
			AutofillUsed:  rec.AutofillUsed,
			Fields:        fields,
		})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := viewTmpl.Execute(w, data); err != nil {
		s.Log.Error("view render failed: %v", err)
	}
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	records, err := s.Store.LoadAll()
	if err != nil {
		s.Log.Error("store read failed: %v", err)
		httpx.Error(w, http.StatusInternalServerError, "Failed to load statistics")
		return
	}
	autofill := 0
	suspicious := 0
	today := 0
	ips := map[string]struct{}{}
	now := time.Now()
	for _, rec := range records {
		if rec.AutofillUsed {
			autofill++
		}
		if rec.IsSuspicious {
			suspicious++
		}
		ips[rec.ClientAddress] = struct{}{}
		local := rec.Timestamp.Local()
		if local.Year() == now.Year() && local.YearDay() == now.YearDay() {
			today++
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"totalSubmissions":   len(records),
		"autofillUsed":       autofill,
		"suspiciousActivity": suspicious,
		"uniqueIPs":          len(ips),
		"submissionsToday":   today,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	raw, err := s.Store.Raw()
	if err != nil {
		s.Log.Error("store read failed: %v", err)
		httpx.Error(w, http.StatusInternalServerError, "Failed to export data")
		return
	}
	filename := "submissions-" + time.Now().UTC().Format("20060102") + ".json"
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	_, _ = w.Write(raw)
}

func (s *Server) handleAPISubmissions(w http.ResponseWriter, r *http.Request) {
	records, err := s.Store.LoadAll()
	if err != nil {
		s.Log.Error("store read failed: %v", err)
		httpx.Error(w, http.StatusInternalServerError, "Failed to load submissions")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"data":      records,
		"count":     len(records),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.Events == nil {
		httpx.Error(w, http.StatusServiceUnavailable, "stream unavailable")
		return
	}
	opts := &websocket.AcceptOptions{}
	if origins := splitNonEmpty(env("WS_ALLOWED_ORIGINS", "")); len(origins) > 0 {
		opts.OriginPatterns = origins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	sub := s.Events.Subscribe(64)
	defer s.Events.Unsubscribe(sub)
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			if err := wsjson.Write(r.Context(), conn, evt); err != nil {
				return
			}
		}
	}
}

var formTmpl = template.Must(template.New("form").Parse(formPage))
var viewTmpl = template.Must(template.New("view").Parse(viewPage))
