package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"trustreg/internal/registry"
	"trustreg/internal/shared"
)

const maxBodyBytes = 1 << 20

type API struct {
	Registry registry.Registry
	Hub      *Hub // optional; nil disables /watch

	// ServiceKey guards the /admin routes. Empty means they are not mounted.
	ServiceKey string
	StaticDir  string
	Logger     *slog.Logger
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, code int, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, s)
}

func writeError(w http.ResponseWriter, code int, errCode, msg string) {
	writeJSON(w, code, shared.ErrorResponse{Error: msg, Code: errCode})
}

var errBadJSON = errors.New("bad json")

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

func decodeMessage(w http.ResponseWriter, r *http.Request) (registry.UpdateMessage, error) {
	var msg registry.UpdateMessage
	body, err := readBody(w, r)
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return msg, nil
}

// writeBodyError reports a failed body read or decode.
func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, shared.CodeTooLarge, "body too large")
	case errors.Is(err, errBadJSON):
		writeError(w, http.StatusBadRequest, shared.CodeBadJSON, "bad json")
	default:
		writeError(w, http.StatusBadRequest, shared.CodeBadRequest, "bad body")
	}
}

func (a *API) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

func (a *API) Hello(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "hello world")
}

func (a *API) GetID(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	key, err := a.Registry.GetIDKey(user)
	if err != nil {
		a.logger().Error("get id", "user", user, "error", err)
		writeError(w, http.StatusInternalServerError, shared.CodeInternal, "store error")
		return
	}
	if key == nil {
		writeError(w, http.StatusNotFound, shared.CodeNotFound, "no such user")
		return
	}
	writeText(w, http.StatusOK, shared.EncodeKey(key))
}

func (a *API) GetName(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	msg, err := a.Registry.GetName(name)
	if err != nil {
		a.logger().Error("get name", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, shared.CodeInternal, "store error")
		return
	}
	if msg == nil {
		writeError(w, http.StatusNotFound, shared.CodeNotFound, "no such name")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// PostName is the only untrusted write path. Everything it commits has passed
// ApplyUpdateIfValid.
func (a *API) PostName(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	msg, err := decodeMessage(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	if err := a.Registry.ApplyUpdateIfValid(name, msg); err != nil {
		if registry.IsValidationError(err) {
			a.logger().Info("update rejected", "name", name, "user", msg.User, "error", err)
			writeError(w, http.StatusForbidden, validationCode(err), err.Error())
			return
		}
		a.logger().Error("apply update", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, shared.CodeInternal, "store error")
		return
	}

	a.logger().Info("update applied", "name", name, "user", msg.User)
	a.publish(name)
	writeText(w, http.StatusOK, "ok")
}

func validationCode(err error) string {
	switch {
	case errors.Is(err, registry.ErrUnknownUser):
		return shared.CodeUnknownUser
	case errors.Is(err, registry.ErrMalformedSignature):
		return shared.CodeMalformedSignature
	default:
		return shared.CodeInvalidSignature
	}
}

// publish runs after the commit; the hub sends the stored value, not msg.
func (a *API) publish(name string) {
	if a.Hub != nil {
		a.Hub.Publish(name)
	}
}

// RegisterID is trusted: it is only mounted behind RequireServiceKey.
func (a *API) RegisterID(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	body, err := readBody(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	var req shared.RegisterIDRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, shared.CodeBadJSON, "bad json")
		return
	}

	pub, err := shared.DecodePubKey(req.PublicKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, shared.CodeBadRequest, "invalid public key")
		return
	}

	if err := a.Registry.AddID(user, pub); err != nil {
		a.logger().Error("register id", "user", user, "error", err)
		writeError(w, http.StatusInternalServerError, shared.CodeInternal, "store error")
		return
	}

	a.logger().Info("id registered", "user", user)
	w.WriteHeader(http.StatusNoContent)
}

// SeedName is trusted: it stores the message without verification.
func (a *API) SeedName(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	msg, err := decodeMessage(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	if err := a.Registry.UpdateName(name, msg); err != nil {
		a.logger().Error("seed name", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, shared.CodeInternal, "store error")
		return
	}

	a.logger().Info("name seeded", "name", name, "user", msg.User)
	a.publish(name)
	w.WriteHeader(http.StatusNoContent)
}
