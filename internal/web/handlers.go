package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/tern/internal/capture"
	"github.com/hpungsan/tern/internal/config"
	"github.com/hpungsan/tern/internal/db"
	"github.com/hpungsan/tern/internal/errors"
	"github.com/hpungsan/tern/internal/ops"
	"github.com/hpungsan/tern/internal/session"
	"github.com/hpungsan/tern/internal/urlcheck"
	"github.com/hpungsan/tern/internal/utm"
)

// SessionCookie holds the visitor's session ID.
const SessionCookie = "tern_session"

// Handlers contains HTTP route handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
	logger   *zap.Logger
}

// sessionStore returns the store for the request's session, issuing a new
// session cookie when the request has none or an invalid one.
func (h *Handlers) sessionStore(w http.ResponseWriter, r *http.Request) (*session.Store, string) {
	id := ""
	if c, err := r.Cookie(SessionCookie); err == nil && db.IsSessionID(c.Value) {
		id = c.Value
	}
	if id == "" {
		id = db.NewSessionID()
		cookie := &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		}
		if h.cfg.SessionTTLHours > 0 {
			cookie.MaxAge = h.cfg.SessionTTLHours * 3600
		}
		http.SetCookie(w, cookie)
		h.logger.Debug("issued session", zap.String("session", id))
	}
	return session.NewStore(db.NewSessionMedium(h.db, id), h.logger.With(zap.String("session", id))), id
}

// HandleGo handles GET /go: capture from the request URL, then redirect to
// the target with the session's parameters appended. The target must be on
// the server's own host or match redirect_hosts.
func (h *Handlers) HandleGo(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("to")
	if strings.TrimSpace(target) == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("to parameter is required"))
		return
	}

	validator, err := urlcheck.NewValidator(h.cfg.DefaultProtocol)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	target, err = validator.Normalize(target)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if !urlcheck.HostAllowed(target, r.Host, h.cfg.RedirectHosts) {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("redirect target host is not allowed"))
		return
	}

	store, _ := h.sessionStore(w, r)

	if _, err := ops.Capture(store, h.cfg, ops.CaptureInput{
		Location: capture.RequestLocation{Request: r},
	}); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	result, err := ops.Append(store, h.cfg, ops.AppendInput{
		URL:      target,
		Platform: r.URL.Query().Get("platform"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	http.Redirect(w, r, result.URL, http.StatusFound)
}

// HandleParams handles GET /params: the session's current parameter set.
func (h *Handlers) HandleParams(w http.ResponseWriter, r *http.Request) {
	store, _ := h.sessionStore(w, r)

	result, err := ops.Read(store, h.cfg)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, result)
}

// HandleLink handles GET /link: build a shareable URL for the session.
func (h *Handlers) HandleLink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if strings.TrimSpace(q.Get("url")) == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("url parameter is required"))
		return
	}

	store, _ := h.sessionStore(w, r)

	result, err := ops.Append(store, h.cfg, ops.AppendInput{
		URL:          q.Get("url"),
		Platform:     q.Get("platform"),
		Placement:    q.Get("placement"),
		KeepExisting: parseBoolParam(r, "keep_existing"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, result)
}

// HandleClear handles POST /clear: remove the session's parameter set.
func (h *Handlers) HandleClear(w http.ResponseWriter, r *http.Request) {
	store, _ := h.sessionStore(w, r)

	result, err := ops.Clear(store, h.cfg)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if !result.Cleared {
		h.renderer.renderError(w, r, errors.NewStorageUnavailable("failed to clear session"))
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="clear-result">` + template.HTMLEscapeString("Cleared "+result.Slot) + `</div>`))
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/debug", http.StatusFound)
}

// HandleDebug handles GET /debug: a diagnostics report for the session.
func (h *Handlers) HandleDebug(w http.ResponseWriter, r *http.Request) {
	store, id := h.sessionStore(w, r)

	result, err := ops.Read(store, h.cfg)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	md := debugReport(id, store.IsAvailable(), result, h.cfg)

	h.renderer.renderPage(w, r, "debug", DebugPageData{
		PageData: PageData{
			Title:   "Session diagnostics",
			Version: h.renderer.version,
		},
		SessionID:    id,
		RenderedHTML: h.renderer.renderMarkdown(md),
	})
}

// debugReport builds the markdown body of the diagnostics page.
func debugReport(sessionID string, available bool, result *ops.ReadOutput, cfg *config.Config) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Session `%s`\n\n", sessionID)
	fmt.Fprintf(&b, "- Tracking enabled: **%t**\n", cfg.IsEnabled())
	fmt.Fprintf(&b, "- Storage available: **%t**\n", available)
	fmt.Fprintf(&b, "- Key format: `%s`\n", cfg.Format())
	fmt.Fprintf(&b, "- Default placement: `%s`\n", cfg.Placement())
	fmt.Fprintf(&b, "- Parameter source: `%s`\n\n", result.Source)

	b.WriteString("### Parameters\n\n")
	if len(result.Params) == 0 {
		b.WriteString("No parameters captured.\n")
	} else {
		b.WriteString("| Key | Value |\n|---|---|\n")
		for _, k := range result.Params.Keys() {
			fmt.Fprintf(&b, "| `%s` | %s |\n", k, mdCell(result.Params[k]))
		}
	}

	if len(cfg.ShareOverrides) > 0 {
		b.WriteString("\n### Share overrides\n\n| Platform | Parameters |\n|---|---|\n")
		platforms := make([]string, 0, len(cfg.ShareOverrides))
		for p := range cfg.ShareOverrides {
			platforms = append(platforms, p)
		}
		sort.Strings(platforms)
		for _, p := range platforms {
			params := utm.Params(cfg.ShareOverrides[p])
			pairs := make([]string, 0, len(params))
			for _, k := range params.Keys() {
				pairs = append(pairs, k+"="+params[k])
			}
			fmt.Fprintf(&b, "| %s | %s |\n", mdCell(p), mdCell(strings.Join(pairs, ", ")))
		}
	}

	return b.String()
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
