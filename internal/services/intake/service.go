package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/RequestBox/internal/attach"
	"github.com/BearBump/RequestBox/internal/broker/messages"
	"github.com/BearBump/RequestBox/internal/cache"
	"github.com/BearBump/RequestBox/internal/models"
	"github.com/BearBump/RequestBox/internal/notify"
	"github.com/BearBump/RequestBox/internal/trackcode"
)

type Repository interface {
	Put(ctx context.Context, code string, rec *models.TrackingRecord) error
	Get(ctx context.Context, code string) (*models.TrackingRecord, error)
	Has(ctx context.Context, code string) (bool, error)
}

type Notifier interface {
	Send(ctx context.Context, msg notify.Message) models.NotificationOutcome
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// ValidationError — единственный вид ошибки, который Submit отдаёт наружу.
// Всё остальное деградирует внутри и попадает в SubmitResult.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var (
	errMissingName        = &ValidationError{Code: "MISSING_NAME", Message: "le nom est obligatoire"}
	errMissingPhone       = &ValidationError{Code: "MISSING_PHONE", Message: "le téléphone est obligatoire"}
	errMissingDescription = &ValidationError{Code: "MISSING_DESCRIPTION", Message: "la description est obligatoire"}
)

// SubmitResult always carries a tracking code for a validated submission,
// whatever happened to notification delivery and persistence.
type SubmitResult struct {
	TrackingCode string
	Notification models.NotificationOutcome
	Persisted    bool
}

// Options — необязательные зависимости сервиса. Нулевые значения валидны:
// без кэша, без kafka, без адресата уведомлений.
type Options struct {
	Cache    cache.BytesCache
	CacheTTL time.Duration

	Producer       Publisher
	SubmittedTopic string

	NotifyTo string
	From     string
}

type Service struct {
	repo       Repository
	dispatcher Notifier
	opts       Options
}

func New(repo Repository, dispatcher Notifier, opts Options) *Service {
	if opts.SubmittedTopic == "" {
		opts.SubmittedTopic = "request.submitted"
	}
	return &Service{repo: repo, dispatcher: dispatcher, opts: opts}
}

// Submit прогоняет заявку через весь конвейер: валидация → тело письма →
// вложения → код → уведомление → запись в стор. После валидации не падает:
// любой сбой даёт деградированный результат, но код заявитель получает.
func (s *Service) Submit(ctx context.Context, in *models.SubmissionInput) (*SubmitResult, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	lat, lng := parsePosition(in.Position)
	attachments := s.encodeAttachments(in)

	code := s.mintCode(ctx)

	outcome := models.NotificationOutcome{Channel: models.ChannelNone}
	if s.dispatcher != nil {
		outcome = s.dispatcher.Send(ctx, notify.Message{
			From:        s.opts.From,
			To:          s.opts.NotifyTo,
			Subject:     fmt.Sprintf("Nouvelle demande de service %s", code),
			PlainBody:   buildPlainBody(in, lat, lng),
			HTMLBody:    buildHTMLBody(in, lat, lng),
			Attachments: attachments,
		})
	}

	rec := &models.TrackingRecord{
		Code:         code,
		Name:         strings.TrimSpace(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
		Neighborhood: strings.TrimSpace(in.Neighborhood),
		Latitude:     lat,
		Longitude:    lng,
		MapsLink:     in.MapsLink,
		InputKind:    inputKind(in),
		Description:  in.Description,
		HasAudio:     hasPayload(in.Audio),
		HasPhoto:     hasPayload(in.Photo),
		Notification: outcome,
		Status:       models.RequestStatusSubmitted,
		CreatedAt:    time.Now().UTC(),
	}

	persisted := true
	if err := s.repo.Put(ctx, code, rec); err != nil {
		// Стор недоступен — код всё равно возвращаем заявителю.
		slog.Error("tracking record not persisted", "code", code, "err", err)
		persisted = false
	}

	if persisted {
		s.cacheRecord(ctx, rec)
		s.publishSubmitted(ctx, rec)
	}

	return &SubmitResult{
		TrackingCode: code,
		Notification: outcome,
		Persisted:    persisted,
	}, nil
}

// Track resolves a tracking code, through the cache when one is wired.
func (s *Service) Track(ctx context.Context, code string) (*models.TrackingRecord, error) {
	key := currentKey(code)

	if s.opts.Cache != nil && s.opts.CacheTTL > 0 {
		if b, ok, err := s.opts.Cache.Get(ctx, key); err == nil && ok {
			var rec models.TrackingRecord
			if json.Unmarshal(b, &rec) == nil {
				return &rec, nil
			}
		}
	}

	rec, err := s.repo.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	s.cacheRecord(ctx, rec)
	return rec, nil
}

func validate(in *models.SubmissionInput) *ValidationError {
	hasAudio := hasPayload(in.Audio)

	if !hasAudio && strings.TrimSpace(in.Name) == "" {
		return errMissingName
	}
	if !hasAudio && strings.TrimSpace(in.Phone) == "" {
		return errMissingPhone
	}
	if inputKind(in) == models.InputKindText && strings.TrimSpace(in.Description) == "" {
		return errMissingDescription
	}
	return nil
}

func inputKind(in *models.SubmissionInput) string {
	if in.InputKind == models.InputKindAudio {
		return models.InputKindAudio
	}
	return models.InputKindText
}

func hasPayload(p *models.FilePayload) bool {
	return p != nil && len(p.Data) > 0
}

// parsePosition разбирает "lat, lng". Любой мусор — просто нет координат,
// это не ошибка.
func parsePosition(s string) (*float64, *float64) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, nil
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil || !finite(lat) || !finite(lng) {
		return nil, nil
	}
	return &lat, &lng
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (s *Service) encodeAttachments(in *models.SubmissionInput) []*models.EncodedAttachment {
	var out []*models.EncodedAttachment
	for _, part := range []struct {
		kind    attach.Kind
		payload *models.FilePayload
	}{
		{attach.KindAudio, in.Audio},
		{attach.KindPhoto, in.Photo},
	} {
		if part.payload == nil {
			continue
		}
		a, err := attach.Encode(part.kind, part.payload)
		if err != nil {
			// Битое вложение выбрасываем, заявка идёт дальше без него.
			slog.Warn("attachment dropped", "kind", part.kind, "err", err)
			continue
		}
		out = append(out, a)
	}
	return out
}

// mintCode перевыпускает код при коллизии с уже существующей записью.
// После пяти попыток принимаем перезапись: пространство кодов маленькое
// намеренно, коды должны переписываться от руки.
func (s *Service) mintCode(ctx context.Context) string {
	var code string
	for i := 0; i < 5; i++ {
		code = trackcode.New()
		taken, err := s.repo.Has(ctx, code)
		if err != nil || !taken {
			return code
		}
		slog.Warn("tracking code collision, re-minting", "code", code)
	}
	return code
}

func (s *Service) cacheRecord(ctx context.Context, rec *models.TrackingRecord) {
	if s.opts.Cache == nil || s.opts.CacheTTL <= 0 {
		return
	}
	b, _ := json.Marshal(rec)
	_ = s.opts.Cache.Set(ctx, currentKey(rec.Code), b, s.opts.CacheTTL)
}

func (s *Service) publishSubmitted(ctx context.Context, rec *models.TrackingRecord) {
	if s.opts.Producer == nil {
		return
	}
	b, _ := json.Marshal(messages.RequestSubmitted{
		TrackingCode: rec.Code,
		Neighborhood: rec.Neighborhood,
		InputKind:    rec.InputKind,
		HasAudio:     rec.HasAudio,
		HasPhoto:     rec.HasPhoto,
		Notified:     rec.Notification.Sent(),
		SubmittedAt:  rec.CreatedAt,
	})
	if err := s.opts.Producer.Publish(ctx, s.opts.SubmittedTopic, []byte(rec.Code), b); err != nil {
		slog.Warn("request.submitted event not published", "code", rec.Code, "err", err)
	}
}

func currentKey(code string) string {
	return fmt.Sprintf("request:%s:current", code)
}

func buildPlainBody(in *models.SubmissionInput, lat, lng *float64) string {
	var b strings.Builder
	b.WriteString("Nouvelle demande de service\n\n")

	writeLine := func(label, value string) {
		if value != "" {
			b.WriteString(fmt.Sprintf("%s : %s\n", label, value))
		}
	}

	writeLine("Nom", strings.TrimSpace(in.Name))
	writeLine("Téléphone", strings.TrimSpace(in.Phone))
	writeLine("Quartier", strings.TrimSpace(in.Neighborhood))
	if lat != nil && lng != nil {
		writeLine("Position", fmt.Sprintf("%g, %g", *lat, *lng))
	}
	writeLine("Lien carte", in.MapsLink)

	if inputKind(in) == models.InputKindAudio {
		writeLine("Type", "message vocal")
	} else {
		writeLine("Type", "texte")
		writeLine("Description", in.Description)
	}

	writeLine("Audio joint", ouiNon(hasPayload(in.Audio)))
	writeLine("Photo jointe", ouiNon(hasPayload(in.Photo)))
	return b.String()
}

func buildHTMLBody(in *models.SubmissionInput, lat, lng *float64) string {
	var b strings.Builder
	b.WriteString("<h2>Nouvelle demande de service</h2>")

	writeRow := func(label, value string) {
		if value != "" {
			b.WriteString(fmt.Sprintf("<p><strong>%s :</strong> %s</p>", label, html.EscapeString(value)))
		}
	}

	writeRow("Nom", strings.TrimSpace(in.Name))
	writeRow("Téléphone", strings.TrimSpace(in.Phone))
	writeRow("Quartier", strings.TrimSpace(in.Neighborhood))
	if lat != nil && lng != nil {
		writeRow("Position", fmt.Sprintf("%g, %g", *lat, *lng))
	}
	if in.MapsLink != "" {
		b.WriteString(fmt.Sprintf("<p><strong>Lien carte :</strong> <a href=\"%s\">%s</a></p>",
			html.EscapeString(in.MapsLink), html.EscapeString(in.MapsLink)))
	}

	if inputKind(in) == models.InputKindAudio {
		writeRow("Type", "message vocal")
	} else {
		writeRow("Type", "texte")
		writeRow("Description", in.Description)
	}

	writeRow("Audio joint", ouiNon(hasPayload(in.Audio)))
	writeRow("Photo jointe", ouiNon(hasPayload(in.Photo)))
	return b.String()
}

func ouiNon(v bool) string {
	if v {
		return "oui"
	}
	return "non"
}
