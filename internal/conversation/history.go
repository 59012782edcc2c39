package conversation

import (
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"docflow/internal/models"
	"docflow/internal/session"
)

// ChatHistory is the session scoped log of user and assistant turns.
// Callers serialise access per session.
type ChatHistory struct {
	sess *session.Session
}

func NewChatHistory(sess *session.Session) (*ChatHistory, error) {
	if sess == nil {
		return nil, models.SessionError("chat history", errors.New("session is nil"))
	}
	h := &ChatHistory{sess: sess}
	if _, err := h.load(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *ChatHistory) load() ([]models.Turn, error) {
	var turns []models.Turn
	if _, err := h.sess.Get(models.SessionChatHistory, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

// Append stores text as the next turn. The role is fixed here from the
// current number of turns: even positions are the user's.
func (h *ChatHistory) Append(text string) (models.Turn, error) {
	if strings.TrimSpace(text) == "" {
		return models.Turn{}, models.ValidationError("append", models.ErrEmptyMessage)
	}
	turns, err := h.load()
	if err != nil {
		return models.Turn{}, err
	}
	turn := models.Turn{Role: models.RoleForIndex(len(turns)), Content: text}
	turns = append(turns, turn)
	if err := h.sess.Set(models.SessionChatHistory, turns); err != nil {
		return models.Turn{}, err
	}
	return turn, nil
}

// History returns the stored turns in order.
func (h *ChatHistory) History() ([]models.Turn, error) {
	return h.load()
}

func (h *ChatHistory) Len() (int, error) {
	turns, err := h.load()
	return len(turns), err
}

// Messages converts the stored turns for the model call, trusting each turn's
// stored role. Unknown roles become AI messages.
func (h *ChatHistory) Messages() ([]llms.ChatMessage, error) {
	turns, err := h.load()
	if err != nil {
		return nil, err
	}
	return ToMessages(turns), nil
}

func ToMessages(turns []models.Turn) []llms.ChatMessage {
	out := make([]llms.ChatMessage, 0, len(turns))
	for i, t := range turns {
		switch t.Role {
		case models.RoleUser:
			out = append(out, llms.HumanChatMessage{Content: t.Content})
		case models.RoleAssistant:
			out = append(out, llms.AIChatMessage{Content: t.Content})
		default:
			log.Warn().Int("turn", i).Str("role", string(t.Role)).Msg("Unknown chat role, treating as assistant")
			out = append(out, llms.AIChatMessage{Content: t.Content})
		}
	}
	return out
}

// Format renders turns as "Human: ..." / "AI: ..." lines for the prompt.
func Format(turns []models.Turn) (string, error) {
	if len(turns) == 0 {
		return "", nil
	}
	return llms.GetBufferString(ToMessages(turns), "Human", "AI")
}

func (h *ChatHistory) Clear() error {
	return h.sess.Set(models.SessionChatHistory, []models.Turn{})
}
