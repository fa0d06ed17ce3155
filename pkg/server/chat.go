package server

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/models"
	"github.com/wayfare-ai/wayfare/pkg/orchestrator"
	"github.com/wayfare-ai/wayfare/pkg/store"
)

const (
	maxMessageLen     = 1000
	maxDestinationLen = 100
	dateLayout        = "2006-01-02"
)

// chatForm is the validated POST /chat form.
type chatForm struct {
	Message     string
	Destination string
	StartDate   string
	EndDate     string
	BudgetTier  models.BudgetTier
	SessionID   string
}

// chatMessage is one entry of the conversation returned to the client.
type chatMessage struct {
	Role      models.Role `json:"role"`
	Content   string      `json:"content"`
	Timestamp string      `json:"timestamp"`
}

type chatResponse struct {
	SessionID   string        `json:"session_id"`
	Response    string        `json:"response"`
	Success     bool          `json:"success"`
	SpendCapped bool          `json:"spend_capped"`
	ItineraryID string        `json:"itinerary_id,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

func parseChatForm(r *http.Request) (chatForm, error) {
	if err := r.ParseForm(); err != nil {
		return chatForm{}, errors.New("invalid form body")
	}
	f := chatForm{
		Message:     r.PostForm.Get("message"),
		Destination: strings.TrimSpace(r.PostForm.Get("destination")),
		StartDate:   strings.TrimSpace(r.PostForm.Get("start_date")),
		EndDate:     strings.TrimSpace(r.PostForm.Get("end_date")),
		BudgetTier:  models.BudgetTier(strings.TrimSpace(r.PostForm.Get("budget_tier"))),
		SessionID:   strings.TrimSpace(r.PostForm.Get("session_id")),
	}

	n := utf8.RuneCountInString(f.Message)
	if n < 1 || n > maxMessageLen {
		return chatForm{}, errors.New("message must be between 1 and 1000 characters")
	}
	if utf8.RuneCountInString(f.Destination) > maxDestinationLen {
		return chatForm{}, errors.New("destination must be at most 100 characters")
	}
	if f.BudgetTier == "" {
		f.BudgetTier = models.TierMid
	}
	if !f.BudgetTier.Valid() {
		return chatForm{}, errors.New("budget tier must be budget, mid, or premium")
	}

	var start, end time.Time
	var err error
	if f.StartDate != "" {
		if start, err = time.Parse(dateLayout, f.StartDate); err != nil {
			return chatForm{}, errors.New("invalid start date format")
		}
	}
	if f.EndDate != "" {
		if end, err = time.Parse(dateLayout, f.EndDate); err != nil {
			return chatForm{}, errors.New("invalid end date format")
		}
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return chatForm{}, errors.New("end date must be after start date")
	}
	return f, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	form, err := parseChatForm(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ipHash := HashIP(clientIP(r), s.cfg.IPHashSalt)
	if !s.limiter.Allow(ipHash) {
		writeJSONError(w, http.StatusTooManyRequests, "daily chat limit reached, please try again tomorrow")
		return
	}

	sess, err := s.session(r, form.SessionID, ipHash)
	if err != nil {
		s.logger.Error("resolve session", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	reply := s.deps.Chat.ProcessChatMessage(r.Context(), orchestrator.Turn{
		SessionID:   sess.ID,
		Message:     form.Message,
		Destination: form.Destination,
		StartDate:   form.StartDate,
		EndDate:     form.EndDate,
		BudgetTier:  form.BudgetTier,
	})

	history, err := s.deps.Sessions.Messages(r.Context(), sess.ID)
	if err != nil {
		s.logger.Error("load conversation", zap.String("session_id", sess.ID), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		SessionID:   sess.ID,
		Response:    reply.Response,
		Success:     reply.Success,
		SpendCapped: reply.SpendCapped,
		ItineraryID: reply.ItineraryID,
		Messages: lo.Map(history, func(m models.Message, _ int) chatMessage {
			return chatMessage{Role: m.Role, Content: m.Content, Timestamp: m.CreatedAt.Format("15:04")}
		}),
	})
}

// session reuses the session named by id when it is a known UUID and
// creates a new one otherwise.
func (s *Server) session(r *http.Request, id, ipHash string) (models.Session, error) {
	if _, err := uuid.Parse(id); err == nil {
		sess, err := s.deps.Sessions.GetSession(r.Context(), id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return models.Session{}, err
		}
	}
	return s.deps.Sessions.CreateSession(r.Context(), ipHash)
}
