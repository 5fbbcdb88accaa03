package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/avvvet/opsboard-services/internal/apperr"
	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	"github.com/avvvet/opsboard-services/internal/boardsvc/service"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	boards    *service.BoardService
	roster    *service.RosterService
}

func NewHandler(tokenAuth *jwtauth.JWTAuth, boards *service.BoardService) *Handler {
	return &Handler{tokenAuth: tokenAuth, boards: boards, roster: boards.Roster()}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

func (h *Handler) ok(w http.ResponseWriter, msg string, data interface{}) {
	h.CreateResponse(w, Response{Message: msg, Code: http.StatusOK, Data: data})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		log.Warnf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	h.CreateResponse(w, Response{Message: http.StatusText(code), Code: code, Error: err.Error()})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "board service is running at port " + os.Getenv("BOARD_SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	json.NewEncoder(w).Encode(rsp)
}

// emailFrom returns the identity claim set by the upstream identity provider.
func emailFrom(r *http.Request) (string, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, apperr.ErrUnauthenticated)
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return "", fmt.Errorf("token has no email claim: %w", apperr.ErrUnauthenticated)
	}
	return email, nil
}

func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	email, err := emailFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.boards.Get(r.Context(), email, r.URL.Query().Get("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "board", b)
}

func (h *Handler) ListBoards(w http.ResponseWriter, r *http.Request) {
	email, err := emailFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	files, err := h.boards.List(r.Context(), email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "boards", files)
}

func (h *Handler) BoardSummary(w http.ResponseWriter, r *http.Request) {
	email, err := emailFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sum, err := h.boards.Summary(r.Context(), email, r.URL.Query().Get("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "summary", sum)
}

type BoardAction struct {
	Action      string            `json:"action"`
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	LocationID  string            `json:"locationId"`
	Data        json.RawMessage   `json:"data"`
	Locations   []models.Location `json:"locations"`
}

// PostBoard dispatches the board actions. Each branch authorizes against the
// target board on its own.
func (h *Handler) PostBoard(w http.ResponseWriter, r *http.Request) {
	email, err := emailFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req BoardAction
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, fmt.Errorf("decode body: %w", apperr.ErrBadRequest))
		return
	}

	ctx := r.Context()
	switch req.Action {
	case "create":
		cr := service.CreateRequest{Name: req.Name, Description: req.Description, LocationID: req.LocationID}
		if len(req.Data) > 0 && string(req.Data) != "null" {
			cr.Data = &models.Board{}
			if err := json.Unmarshal(req.Data, cr.Data); err != nil {
				h.fail(w, r, fmt.Errorf("decode board: %w", apperr.ErrBadRequest))
				return
			}
		}
		meta, err := h.boards.Create(ctx, email, cr)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.ok(w, "board created", meta)

	case "update":
		if err := h.boards.Update(ctx, email, req.ID, req.Data); err != nil {
			h.fail(w, r, err)
			return
		}
		h.ok(w, "board updated", map[string]string{"id": req.ID})

	case "copy":
		meta, err := h.boards.Copy(ctx, email, req.ID, req.Name)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.ok(w, "board copied", meta)

	case "delete":
		if err := h.boards.Delete(ctx, email, req.ID); err != nil {
			h.fail(w, r, err)
			return
		}
		h.ok(w, "board deleted", map[string]interface{}{"success": true, "deleted": req.ID})

	case "auto-generate":
		n, err := h.boards.AutoGenerate(ctx, email, req.Locations)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.ok(w, "boards generated", map[string]interface{}{"success": true, "generated": n})

	default:
		h.fail(w, r, fmt.Errorf("unknown action %q: %w", req.Action, apperr.ErrBadRequest))
	}
}

func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	email, err := emailFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cfg, err := h.roster.Get(r.Context(), email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "roster", cfg)
}

func (h *Handler) PostRoster(w http.ResponseWriter, r *http.Request) {
	email, err := emailFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var cfg models.GlobalConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.fail(w, r, fmt.Errorf("decode roster: %w", apperr.ErrBadRequest))
		return
	}
	if err := h.roster.Replace(r.Context(), email, &cfg); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "roster saved", nil)
}

func (h *Handler) PostLocation(w http.ResponseWriter, r *http.Request) {
	email, err := emailFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		h.fail(w, r, fmt.Errorf("decode location: %w", apperr.ErrBadRequest))
		return
	}
	added, err := h.boards.AddLocation(r.Context(), email, loc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "location added", added)
}

func (h *Handler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	email, err := emailFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.roster.DeleteLocation(r.Context(), email, id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "location deleted", map[string]string{"id": id})
}
