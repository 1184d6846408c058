package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gocarina/gocsv"

	"raffle-bot/internal/config"
	appErrors "raffle-bot/internal/errors"
	"raffle-bot/internal/models"
	"raffle-bot/internal/raffle"
	"raffle-bot/internal/store"
	"raffle-bot/internal/telegram"
	"raffle-bot/internal/tgbot"
	"raffle-bot/internal/util"
)

type Server struct {
	cfg          config.Config
	campaigns    store.CampaignRepositoryInterface
	participants store.ParticipantRepositoryInterface
	engine       *tgbot.Engine
	raffler      *raffle.Engine
	sender       telegram.Sender
	log          *slog.Logger
}

func New(cfg config.Config, campaigns store.CampaignRepositoryInterface, participants store.ParticipantRepositoryInterface, engine *tgbot.Engine, raffler *raffle.Engine, sender telegram.Sender, log *slog.Logger) *Server {
	return &Server{
		cfg:          cfg,
		campaigns:    campaigns,
		participants: participants,
		engine:       engine,
		raffler:      raffler,
		sender:       sender,
		log:          log,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/telegram/webhook", s.handleWebhook)

	r.Route("/campaigns/{slug}", func(r chi.Router) {
		r.Use(s.requireAdminToken)
		r.Post("/start", s.handleStartCampaign)
		r.Post("/stop", s.handleStopCampaign)
		r.Post("/draw", s.handleDraw)
	})

	r.Get("/export/participants.csv", s.handleExportParticipants)
	r.Get("/export/winners.csv", s.handleExportWinners)

	return r
}

// ---------- Webhook dispatcher ----------

// handleWebhook always acknowledges: Telegram retry-storms on non-2xx
// responses, so every internal failure is logged and swallowed here.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("webhook panic", "panic", rec)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}()

	var upd tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		s.log.Warn("webhook: malformed update", "err", err)
		return
	}

	campaign, err := s.campaigns.GetRunning()
	if err != nil {
		s.log.Error("webhook: resolve running campaign", "err", err)
		return
	}
	if campaign == nil {
		// Bot paused; orphaned webhook traffic is acknowledged and dropped.
		return
	}

	ev, ok := eventFromUpdate(&upd)
	if !ok {
		return
	}

	if err := s.engine.HandleEvent(r.Context(), campaign, ev); err != nil {
		s.log.Error("webhook: handle event", "user_id", ev.UserID, "err", err)
	}

	// Clear the platform-side pending indicator no matter how the
	// verification went.
	if ev.Kind == tgbot.EventCallback {
		if err := s.sender.AnswerCallback(ev.CallbackID); err != nil {
			s.log.Warn("webhook: answer callback", "err", err)
		}
	}
}

func eventFromUpdate(upd *tgbotapi.Update) (tgbot.Event, bool) {
	switch {
	case upd.Message != nil:
		m := upd.Message
		if m.From == nil || m.Chat == nil {
			return tgbot.Event{}, false
		}
		ev := tgbot.Event{
			ChatID:    m.Chat.ID,
			UserID:    m.From.ID,
			Username:  m.From.UserName,
			FirstName: m.From.FirstName,
		}
		switch {
		case m.Contact != nil:
			ev.Kind = tgbot.EventContact
			ev.Phone = m.Contact.PhoneNumber
		case strings.HasPrefix(m.Text, "/start"):
			ev.Kind = tgbot.EventCommand
			ev.Text = m.Text
		default:
			ev.Kind = tgbot.EventText
			ev.Text = m.Text
		}
		return ev, true
	case upd.CallbackQuery != nil:
		q := upd.CallbackQuery
		if q.From == nil {
			return tgbot.Event{}, false
		}
		chatID := q.From.ID
		if q.Message != nil && q.Message.Chat != nil {
			chatID = q.Message.Chat.ID
		}
		return tgbot.Event{
			Kind:       tgbot.EventCallback,
			ChatID:     chatID,
			UserID:     q.From.ID,
			Username:   q.From.UserName,
			FirstName:  q.From.FirstName,
			Callback:   q.Data,
			CallbackID: q.ID,
		}, true
	}
	return tgbot.Event{}, false
}

// ---------- Campaign control ----------

func (s *Server) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Admin-Token") != s.cfg.AdminToken {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStartCampaign(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := s.campaigns.Start(slug); err != nil {
		s.writeControlError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "slug": slug, "running": true})
}

func (s *Server) handleStopCampaign(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := s.campaigns.Stop(slug); err != nil {
		s.writeControlError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "slug": slug, "running": false})
}

func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var body struct {
		Winners int `json:"winners"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	winners, err := s.raffler.Draw(slug, body.Winners)
	if err != nil {
		s.writeControlError(w, err)
		return
	}
	resp := map[string]any{"ok": true, "slug": slug, "winners": winners}
	if links := s.exportLinks(slug); links != nil {
		resp["export"] = links
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// exportLinks mints tokened CSV URLs for the campaign when a public base URL
// is configured, so a finished draw hands the operator the result files
// directly.
func (s *Server) exportLinks(slug string) map[string]string {
	if s.cfg.BasePublicURL == "" {
		return nil
	}
	token := util.HMACSHA256Hex(s.cfg.AdminToken, "export:"+slug)
	query := "?slug=" + url.QueryEscape(slug) + "&token=" + token
	return map[string]string{
		"participants": s.cfg.BasePublicURL + "/export/participants.csv" + query,
		"winners":      s.cfg.BasePublicURL + "/export/winners.csv" + query,
	}
}

func (s *Server) writeControlError(w http.ResponseWriter, err error) {
	var (
		notFound  *appErrors.ErrCampaignNotFound
		running   *appErrors.ErrAnotherCampaignRunning
		notActive *appErrors.ErrCampaignNotActive
		raffled   *appErrors.ErrAlreadyRaffled
		notEnough *appErrors.ErrNotEnoughParticipants
		badCount  *appErrors.ErrInvalidWinnerCount
	)
	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &running), errors.As(err, &notActive), errors.As(err, &raffled):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &notEnough), errors.As(err, &badCount):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		s.log.Error("campaign control", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// ---------- CSV export ----------

type participantRow struct {
	TelegramID int64  `csv:"telegram_id"`
	Username   string `csv:"username"`
	Name       string `csv:"name"`
	Phone      string `csv:"phone"`
	Subscribed bool   `csv:"subscribed"`
	Stage      string `csv:"stage"`
	CreatedAt  string `csv:"created_at"`
}

func (s *Server) handleExportParticipants(w http.ResponseWriter, r *http.Request) {
	c, ok := s.authorizeExport(w, r)
	if !ok {
		return
	}
	participants, err := s.participants.ListByCampaign(c.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rows := make([]participantRow, 0, len(participants))
	for _, p := range participants {
		rows = append(rows, participantRow{
			TelegramID: p.TelegramID,
			Username:   p.Username,
			Name:       p.Name,
			Phone:      p.Phone,
			Subscribed: p.Subscribed,
			Stage:      string(p.Stage),
			CreatedAt:  p.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	s.writeCSV(w, "participants_"+c.Slug+".csv", &rows)
}

func (s *Server) handleExportWinners(w http.ResponseWriter, r *http.Request) {
	c, ok := s.authorizeExport(w, r)
	if !ok {
		return
	}
	winners := c.Winners
	if winners == nil {
		winners = []models.Winner{}
	}
	s.writeCSV(w, "winners_"+c.Slug+".csv", &winners)
}

// authorizeExport validates the HMAC token on an export link and loads the
// campaign. Links are minted as HMAC(adminToken, "export:"+slug).
func (s *Server) authorizeExport(w http.ResponseWriter, r *http.Request) (*models.Campaign, bool) {
	slug := r.URL.Query().Get("slug")
	token := r.URL.Query().Get("token")
	if slug == "" || token == "" {
		http.Error(w, "slug and token required", http.StatusBadRequest)
		return nil, false
	}
	expected := util.HMACSHA256Hex(s.cfg.AdminToken, "export:"+slug)
	if token != expected {
		http.Error(w, "invalid token", http.StatusForbidden)
		return nil, false
	}
	c, err := s.campaigns.GetBySlug(slug)
	if err != nil {
		s.writeControlError(w, err)
		return nil, false
	}
	return c, true
}

func (s *Server) writeCSV(w http.ResponseWriter, filename string, rows interface{}) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := gocsv.Marshal(rows, w); err != nil {
		s.log.Error("csv export", "file", filename, "err", err)
	}
}
