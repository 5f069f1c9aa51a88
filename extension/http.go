package extension

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/tobe/horosafe"
	"github.com/hazyhaar/tobe/jsonview"
	"github.com/hazyhaar/tobe/kit"
	"github.com/hazyhaar/tobe/screenshot"
	"github.com/hazyhaar/tobe/shield"
	"github.com/hazyhaar/tobe/store"
	"github.com/hazyhaar/tobe/timestamp"
)

// Handler is the full HTTP surface: the API routes plus the MCP tools of
// srv over streamable HTTP at /mcp. srv nil leaves /mcp unmounted.
func (e *Extension) Handler(srv *mcp.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(shield.HeadToGet)
	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
	r.Use(httpContext)
	r.Use(shield.NewRateLimiter(e.rateRules(), e.logger).Middleware)

	e.RegisterHTTP(r)
	if srv != nil {
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil))
	}
	return r
}

func (e *Extension) rateRules() map[string]shield.Rule {
	rules := make(map[string]shield.Rule, len(e.cfg.Server.RateLimits))
	for ep, limit := range e.cfg.Server.RateLimits {
		rule, err := shield.ParseRule(limit)
		if err != nil {
			e.logger.Warn("extension: rate limit ignored", "endpoint", ep, "error", err)
			continue
		}
		rules[ep] = rule
	}
	return rules
}

func httpContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithTransport(r.Context(), "http")
		ctx = kit.WithRequestID(ctx, middleware.GetReqID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RegisterHTTP mounts the API routes on r.
func (e *Extension) RegisterHTTP(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "capturing": e.shots.Active()})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/capture/visible", e.handleCapture(store.KindVisible))
		r.Post("/capture/fullpage", e.handleCapture(store.KindFullPage))
		r.Post("/capture/selection", e.handleCapture(store.KindSelection))

		r.Get("/screenshots", func(w http.ResponseWriter, r *http.Request) {
			list, err := e.Screenshots(r.Context(), queryInt(r, "limit", 50))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if list == nil {
				list = []*store.Screenshot{}
			}
			writeJSON(w, http.StatusOK, list)
		})
		r.Get("/screenshots/last", func(w http.ResponseWriter, r *http.Request) {
			shot, err := e.LastScreenshot(r.Context(), r.URL.Query().Get("kind"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if shot == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "no screenshot"})
				return
			}
			writePNG(w, shot)
		})

		r.Get("/settings", func(w http.ResponseWriter, r *http.Request) {
			s, err := e.Settings(r.Context())
			if err != nil {
				writeError(w, http.StatusBadGateway, err)
				return
			}
			writeJSON(w, http.StatusOK, s)
		})
		r.Put("/settings", func(w http.ResponseWriter, r *http.Request) {
			var s store.Settings
			if !decodeBody(w, r, &s) {
				return
			}
			out, err := e.UpdateSettings(r.Context(), s)
			if err != nil {
				writeError(w, http.StatusBadGateway, err)
				return
			}
			writeJSON(w, http.StatusOK, out)
		})

		r.Post("/json/format", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Text   string `json:"text"`
				Indent string `json:"indent"`
			}
			if !decodeBody(w, r, &req) {
				return
			}
			out, err := e.FormatJSON(req.Text, req.Indent)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"formatted": out})
		})
		r.Post("/json/render", func(w http.ResponseWriter, r *http.Request) {
			var req RenderRequest
			if !decodeBody(w, r, &req) {
				return
			}
			out, err := e.RenderJSON(r.Context(), req)
			if err != nil {
				writeError(w, jsonStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, out)
		})
		r.Post("/json/pending", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Text string `json:"text"`
			}
			if !decodeBody(w, r, &req) {
				return
			}
			p, err := e.PutPendingJSON(r.Context(), req.Text)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, p)
		})
		r.Get("/json/pending", func(w http.ResponseWriter, r *http.Request) {
			p, err := e.TakePendingJSON(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if p == nil {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			writeJSON(w, http.StatusOK, p)
		})

		r.Get("/timestamp", func(w http.ResponseWriter, r *http.Request) {
			out, err := e.Timestamp(r.Context(), r.URL.Query().Get("value"))
			if err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, timestamp.ErrInvalid) || errors.Is(err, timestamp.ErrBadDate) {
					status = http.StatusBadRequest
				}
				writeError(w, status, err)
				return
			}
			writeJSON(w, http.StatusOK, out)
		})
	})
}

type captureRequest struct {
	URL string `json:"url"`
	screenshot.Rect
}

func (e *Extension) handleCapture(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req captureRequest
		if !decodeBody(w, r, &req) {
			return
		}
		var (
			shot *store.Screenshot
			err  error
		)
		switch kind {
		case store.KindVisible:
			shot, err = e.CaptureVisible(r.Context(), req.URL)
		case store.KindFullPage:
			shot, err = e.CaptureFullPage(r.Context(), req.URL)
		case store.KindSelection:
			shot, err = e.CaptureSelection(r.Context(), req.URL, req.Rect)
		}
		if err != nil {
			writeCaptureError(w, err)
			return
		}
		writePNG(w, shot)
	}
}

func writePNG(w http.ResponseWriter, shot *store.Screenshot) {
	h := w.Header()
	h.Set("Content-Type", "image/png")
	h.Set("X-Screenshot-Id", shot.ID)
	h.Set("X-Page-Width", strconv.Itoa(shot.Width))
	h.Set("X-Page-Height", strconv.Itoa(shot.Height))
	h.Set("X-Page-Segments", strconv.Itoa(shot.Segments))
	w.WriteHeader(http.StatusOK)
	w.Write(shot.PNG)
}

// captureStatus maps a capture error code to an HTTP status.
func captureStatus(code string) int {
	switch code {
	case screenshot.CodePageTooLarge:
		return http.StatusRequestEntityTooLarge
	case screenshot.CodeBusy:
		return http.StatusConflict
	case screenshot.CodeInvalidPage:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeCaptureError(w http.ResponseWriter, err error) {
	code := screenshot.Code(err)
	writeJSON(w, captureStatus(code), map[string]string{
		"code":    code,
		"message": screenshot.UserMessage(err),
	})
}

func jsonStatus(err error) int {
	if errors.Is(err, jsonview.ErrEmpty) || errors.Is(err, jsonview.ErrInvalid) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := horosafe.LimitedReadAll(r.Body, horosafe.MaxRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, horosafe.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
