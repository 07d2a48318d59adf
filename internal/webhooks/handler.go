package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/citycare/clinic-assistant/internal/dialogue"
	"github.com/citycare/clinic-assistant/internal/notify"
	"github.com/citycare/clinic-assistant/internal/session"
	"github.com/citycare/clinic-assistant/pkg/logging"
)

const (
	// VoicePath is where Gather posts the next turn.
	VoicePath = "/webhooks/voice"

	confirmationSendTimeout = 10 * time.Second

	smsApology = "We're experiencing technical difficulties. Please try again later."
)

// turnEngine runs one dialogue turn. Satisfied by *dialogue.Engine.
type turnEngine interface {
	Turn(ctx context.Context, sess *session.Session, input, channel string) (*dialogue.Outcome, error)
}

// Handler serves the Twilio voice and SMS webhooks. It owns session
// load/persist around each turn; the dialogue engine stays transport-free.
type Handler struct {
	manager   *session.Manager
	engine    turnEngine
	messenger notify.Messenger
	logger    *logging.Logger
}

// NewHandler wires the webhook endpoints.
func NewHandler(manager *session.Manager, engine turnEngine, messenger notify.Messenger, logger *logging.Logger) *Handler {
	if manager == nil {
		panic("webhooks: manager is required")
	}
	if engine == nil {
		panic("webhooks: engine is required")
	}
	if messenger == nil {
		messenger = notify.NoopMessenger{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		manager:   manager,
		engine:    engine,
		messenger: messenger,
		logger:    logger.Component("webhooks"),
	}
}

// Voice handles POST /webhooks/voice.
func (h *Handler) Voice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ev, err := ParseEvent(r)
	if err != nil {
		h.logger.Warn("bad voice webhook", "error", err.Error())
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	phone := session.NormalizePhone(ev.From)

	sess, err := h.loadSession(ctx, ev.SessionID, phone)
	if err != nil {
		h.logger.Error("session load failed", "phone", phone, "error", err.Error())
		h.writeVoiceFailure(w)
		return
	}

	out, err := h.engine.Turn(ctx, sess, ev.Input(), dialogue.ChannelVoice)
	if err != nil {
		h.logger.Error("voice turn failed", "session_id", sess.ID, "error", err.Error())
		h.writeVoiceFailure(w)
		return
	}
	h.persist(ctx, sess, out)

	action := fmt.Sprintf("%s?sessionId=%s", VoicePath, url.QueryEscape(sess.ID))
	writeXML(w, RenderVoice(out.Steps, action))

	if out.ConfirmationSMS != "" {
		h.sendConfirmation(ev.From, out.ConfirmationSMS)
	}
}

// SMS handles POST /webhooks/sms. The reply goes out through the messenger;
// the webhook itself answers with an empty ack, which tells Twilio not to
// send anything on its own.
func (h *Handler) SMS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ev, err := ParseEvent(r)
	if err != nil {
		h.logger.Warn("bad sms webhook", "error", err.Error())
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	phone := session.NormalizePhone(ev.From)

	sess, err := h.loadSession(ctx, ev.SessionID, phone)
	if err != nil {
		h.logger.Error("session load failed", "phone", phone, "error", err.Error())
		h.replySMS(ctx, ev.From, smsApology)
		writeXML(w, RenderMessage(""))
		return
	}

	out, err := h.engine.Turn(ctx, sess, ev.Input(), dialogue.ChannelSMS)
	if err != nil {
		h.logger.Error("sms turn failed", "session_id", sess.ID, "error", err.Error())
		h.replySMS(ctx, ev.From, smsApology)
		writeXML(w, RenderMessage(""))
		return
	}
	h.persist(ctx, sess, out)

	h.replySMS(ctx, ev.From, out.SpokenText())
	writeXML(w, RenderMessage(""))
}

func (h *Handler) replySMS(ctx context.Context, to, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	if err := h.messenger.SendSMS(ctx, to, body); err != nil {
		h.logger.Error("sms reply failed", "to", to, "error", err.Error())
	}
}

// loadSession resolves the live session under the per-key lock. The lock is
// released before the turn runs so a slow extraction call cannot hold it.
func (h *Handler) loadSession(ctx context.Context, id, phone string) (*session.Session, error) {
	unlock := h.manager.Lock(phone)
	defer unlock()

	sess, created, err := h.manager.LoadOrCreate(ctx, id, phone)
	if err != nil {
		return nil, err
	}
	if created {
		h.logger.Info("session created", "session_id", sess.ID, "phone", phone)
	}
	return sess, nil
}

// persist writes the post-turn session state back, again under the lock. A
// session swept mid-turn surfaces as not-found; the turn's outcome still
// stands, so the state is recreated unless this turn ended the conversation.
func (h *Handler) persist(ctx context.Context, sess *session.Session, out *dialogue.Outcome) {
	unlock := h.manager.Lock(sess.Phone)
	defer unlock()

	store := h.manager.Store()
	if out.DeleteSession {
		if err := store.Delete(ctx, sess.ID); err != nil && !errors.Is(err, session.ErrNotFound) {
			h.logger.Error("session delete failed", "session_id", sess.ID, "error", err.Error())
		}
		return
	}

	err := store.Update(ctx, sess)
	if errors.Is(err, session.ErrNotFound) {
		err = store.Create(ctx, sess)
	}
	if err != nil {
		h.logger.Error("session persist failed", "session_id", sess.ID, "error", err.Error())
	}
}

func (h *Handler) sendConfirmation(to, body string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), confirmationSendTimeout)
		defer cancel()
		if err := h.messenger.SendSMS(ctx, to, body); err != nil {
			h.logger.Error("confirmation sms failed", "to", to, "error", err.Error())
		}
	}()
}

func (h *Handler) writeVoiceFailure(w http.ResponseWriter) {
	steps := []dialogue.Step{
		{Kind: dialogue.StepSay, Text: "We're experiencing technical difficulties. Please try again later."},
		{Kind: dialogue.StepHangup},
	}
	writeXML(w, RenderVoice(steps, VoicePath))
}

func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
