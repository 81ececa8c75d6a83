package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maitre-io/maitre/internal/restaurant"
	"github.com/maitre-io/maitre/pkg/protocol"
)

// Config holds the intake sources allowed to post arrivals.
type Config struct {
	// Sources maps a source name (the last path segment) to its auth.
	// e.g., {"reservations": {Secret: "whsec_abc123"}, "kiosk": {BearerToken: "xyz"}}
	Sources map[string]SourceConfig `json:"sources" yaml:"sources"`
}

// SourceConfig holds per-source authentication.
type SourceConfig struct {
	// Secret for HMAC-SHA256 signature verification (X-Signature-256 header).
	// If empty, Bearer auth is used instead.
	Secret string `json:"secret,omitempty" yaml:"secret,omitempty"`
	// BearerToken for Authorization header auth. Used if Secret is empty.
	BearerToken string `json:"bearer_token,omitempty" yaml:"bearer_token,omitempty"`
}

// Registrar enqueues arrivals.
type Registrar interface {
	Register(a restaurant.Arrival) (*protocol.Party, error)
}

// Handler accepts arrivals from reservation systems, kiosks and other
// external sources at /api/intake/{source}.
type Handler struct {
	config Config
	floor  Registrar
	logger *slog.Logger
}

// New creates an intake handler.
func New(cfg Config, floor Registrar, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{config: cfg, floor: floor, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.PathValue("source")
	if name == "" {
		name = lastSegment(r.URL.Path)
	}
	source, ok := h.config.Sources[name]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown intake source: %s", name), http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if !authenticate(r, source, body) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var arrival restaurant.Arrival
	if err := json.Unmarshal(body, &arrival); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(arrival.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	party, err := h.floor.Register(arrival)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, protocol.ErrInvalidArgument) || errors.Is(err, protocol.ErrNullReference) {
			status = http.StatusBadRequest
		} else {
			h.logger.Error("intake registration failed", "source", name, "error", err)
		}
		http.Error(w, err.Error(), status)
		return
	}
	h.logger.Info("arrival received", "source", name, "party", party.ID, "kind", party.Kind)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(party)
}

func authenticate(r *http.Request, source SourceConfig, body []byte) bool {
	if source.Secret != "" {
		return verifyHMAC(body, source.Secret, r.Header.Get("X-Signature-256"))
	}
	if source.BearerToken != "" {
		return verifyBearer(r.Header.Get("Authorization"), source.BearerToken)
	}
	// No auth configured: open source, for local kiosks.
	return true
}

// verifyBearer compares an Authorization header against token in constant time.
func verifyBearer(header, token string) bool {
	got, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}

// verifyHMAC checks a "sha256=<hex>" signature of body.
func verifyHMAC(body []byte, secret, signature string) bool {
	want, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil || len(want) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

func lastSegment(path string) string {
	path = strings.TrimSuffix(path, "/")
	return path[strings.LastIndexByte(path, '/')+1:]
}

// ComputeSignature returns the X-Signature-256 value for body.
func ComputeSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
