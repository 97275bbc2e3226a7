package intake_api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/RequestBox/internal/models"
	"github.com/BearBump/RequestBox/internal/services/intake"
	"github.com/BearBump/RequestBox/internal/storage/filetracking"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

const maxSubmissionBytes = 32 << 20 // форма с аудио и фото

// RateLimiter — необязательный лимитер публичной формы (redis в проде).
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type IntakeAPI struct {
	svc     *intake.Service
	limiter RateLimiter
	limit   int64
}

// New wires the handlers. limiter may be nil; limitPerMinute <= 0 disables
// rate limiting even when a limiter is present.
func New(svc *intake.Service, limiter RateLimiter, limitPerMinute int) *IntakeAPI {
	return &IntakeAPI{svc: svc, limiter: limiter, limit: int64(limitPerMinute)}
}

func (a *IntakeAPI) Routes(r chi.Router) {
	r.Post("/api/requests", a.handleSubmit)
	r.Get("/api/requests/track", a.handleTrack)
}

type notificationJSON struct {
	Sent  bool    `json:"sent"`
	ID    *string `json:"id,omitempty"`
	Error *string `json:"error,omitempty"`
}

type submitResponse struct {
	Success      bool             `json:"success"`
	TrackingCode string           `json:"trackingCode"`
	Notification notificationJSON `json:"notification"`
}

type trackResponse struct {
	Success bool                   `json:"success"`
	Data    *models.TrackingRecord `json:"data"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func (a *IntakeAPI) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !a.allow(r) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error: "trop de demandes, réessayez plus tard",
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSubmissionBytes)
	if err := r.ParseMultipartForm(maxSubmissionBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "formulaire invalide"})
		return
	}

	in := &models.SubmissionInput{
		Name:         r.FormValue("name"),
		Phone:        r.FormValue("phone"),
		Neighborhood: r.FormValue("neighborhood"),
		Position:     r.FormValue("position"),
		MapsLink:     r.FormValue("mapsLink"),
		Description:  r.FormValue("description"),
		InputKind:    inputKind(r.FormValue("inputType")),
	}

	var err error
	if in.Audio, err = readFilePart(r, "audio"); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "fichier audio illisible"})
		return
	}
	if in.Photo, err = readFilePart(r, "photo"); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "photo illisible"})
		return
	}

	res, err := a.svc.Submit(r.Context(), in)
	if err != nil {
		var verr *intake.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message, Code: verr.Code})
			return
		}
		// Submit после валидации не падает; это защита на будущее.
		slog.Error("submit failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "erreur interne"})
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{
		Success:      true,
		TrackingCode: res.TrackingCode,
		Notification: notificationJSON{
			Sent:  res.Notification.Sent(),
			ID:    res.Notification.MessageID,
			Error: res.Notification.Error,
		},
	})
}

func (a *IntakeAPI) handleTrack(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "le code de suivi est obligatoire"})
		return
	}

	rec, err := a.svc.Track(r.Context(), code)
	if err != nil {
		if errors.Is(err, filetracking.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "code de suivi inconnu"})
			return
		}
		slog.Error("track lookup failed", "code", code, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "erreur interne"})
		return
	}

	writeJSON(w, http.StatusOK, trackResponse{Success: true, Data: rec})
}

// allow пускает запрос, когда лимитер не настроен или сам сломался:
// доступность формы важнее точности лимита.
func (a *IntakeAPI) allow(r *http.Request) bool {
	if a.limiter == nil || a.limit <= 0 {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ok, _, err := a.limiter.Allow(r.Context(), "submit:"+host, a.limit, time.Minute)
	if err != nil {
		slog.Warn("rate limiter unavailable", "err", err)
		return true
	}
	return ok
}

func readFilePart(r *http.Request, field string) (*models.FilePayload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "form file %s", field)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read file %s", field)
	}
	return &models.FilePayload{
		Filename: header.Filename,
		MIMEType: partContentType(header),
		Data:     data,
	}, nil
}

func partContentType(h *multipart.FileHeader) string {
	ct := h.Header.Get("Content-Type")
	if ct == "application/octet-stream" {
		// Браузеры ставят octet-stream, когда не знают тип; пусть решает энкодер.
		return ""
	}
	return ct
}

func inputKind(v string) string {
	if v == "audio" {
		return models.InputKindAudio
	}
	return models.InputKindText
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
