package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/newyears25/internal/domain"
	"github.com/ashureev/newyears25/internal/store"
)

var (
	errMissingSession = errors.New("sessionId is required")
	errMissingMessage = errors.New("message or messages is required")
)

// snapshotSuffix keys the latest full-session snapshot.
const snapshotSuffix = "snapshot"

// HandleLog handles POST /api/log. A single message is stored under
// {sessionId}-{message timestamp ms}; a full snapshot replaces
// {sessionId}-snapshot.
func (h *Handler) HandleLog(w http.ResponseWriter, r *http.Request) {
	var entry domain.ConversationLog
	if err := decodeBody(w, r, &entry); err != nil {
		slog.Error("Error logging conversation", "error", fmt.Errorf("decode request: %w", err))
		Text(w, http.StatusInternalServerError, msgLogFailed)
		return
	}

	key, err := conversationKey(entry)
	if err != nil {
		slog.Error("Error logging conversation", "error", err)
		Text(w, http.StatusInternalServerError, msgLogFailed)
		return
	}

	value, err := json.Marshal(entry)
	if err != nil {
		slog.Error("Error logging conversation", "error", err, "session_id", entry.SessionID)
		Text(w, http.StatusInternalServerError, msgLogFailed)
		return
	}

	if err := h.conversations.Put(r.Context(), key, value, h.recordTTL); err != nil {
		slog.Error("Error logging conversation", "error", err, "session_id", entry.SessionID)
		Text(w, http.StatusInternalServerError, msgLogFailed)
		return
	}

	slog.Info("Logged conversation", "session_id", entry.SessionID, "key", key, "complete", entry.Complete)
	Text(w, http.StatusOK, msgLogged)
}

func conversationKey(entry domain.ConversationLog) (string, error) {
	if entry.SessionID == "" {
		return "", errMissingSession
	}
	switch {
	case entry.Messages != nil:
		return entry.SessionID + "-" + snapshotSuffix, nil
	case entry.Message != nil:
		return entry.SessionID + "-" + strconv.FormatInt(entry.Message.Timestamp.UnixMilli(), 10), nil
	default:
		return "", errMissingMessage
	}
}

// HandleDPO handles POST /api/dpo. The pair is stored in preference-training
// form under {sessionId}-{now ms}.
func (h *Handler) HandleDPO(w http.ResponseWriter, r *http.Request) {
	var pair domain.PreferencePair
	if err := decodeBody(w, r, &pair); err != nil {
		slog.Error("Error logging DPO data", "error", fmt.Errorf("decode request: %w", err))
		Text(w, http.StatusInternalServerError, msgDPOFailed)
		return
	}
	if pair.SessionID == "" {
		slog.Error("Error logging DPO data", "error", errMissingSession)
		Text(w, http.StatusInternalServerError, msgDPOFailed)
		return
	}

	value, err := json.Marshal(domain.NewDPORecord(pair))
	if err != nil {
		slog.Error("Error logging DPO data", "error", err, "session_id", pair.SessionID)
		Text(w, http.StatusInternalServerError, msgDPOFailed)
		return
	}

	key := pair.SessionID + "-" + strconv.FormatInt(h.now().UnixMilli(), 10)
	if err := h.dpo.Put(r.Context(), key, value, h.recordTTL); err != nil {
		slog.Error("Error logging DPO data", "error", err, "session_id", pair.SessionID)
		Text(w, http.StatusInternalServerError, msgDPOFailed)
		return
	}

	slog.Info("Logged DPO data", "session_id", pair.SessionID, "key", key)
	Text(w, http.StatusOK, msgDPOLogged)
}

// HandleDumpConversations handles GET /api/dump/conversations.
func (h *Handler) HandleDumpConversations(w http.ResponseWriter, r *http.Request) {
	h.dump(w, r, h.conversations)
}

// HandleDumpDPO handles GET /api/dump/dpo.
func (h *Handler) HandleDumpDPO(w http.ResponseWriter, r *http.Request) {
	h.dump(w, r, h.dpo)
}

// dump writes every stored value as a JSON array of strings, one serialized
// record per element.
func (h *Handler) dump(w http.ResponseWriter, r *http.Request, kv store.KV) {
	values, err := store.ListValues(r.Context(), kv)
	if err != nil {
		slog.Error("Error dumping data", "error", err)
		Text(w, http.StatusInternalServerError, msgDumpFailed)
		return
	}

	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	JSON(w, http.StatusOK, out)
}
