package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/avvvet/dice-services/internal/dice"
	"github.com/avvvet/dice-services/internal/gamesvc/models"
	"github.com/avvvet/dice-services/internal/gamesvc/service"
	"github.com/avvvet/dice-services/internal/gamesvc/store"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type WagerPlacer interface {
	PlaceWager(ctx context.Context, playerID, roundID int64, text string) (*service.Placement, error)
}

type RoundQueries interface {
	CurrentRound(ctx context.Context, groupID int64, family dice.Family) (*models.Round, error)
	CancelRound(ctx context.Context, roundID int64) (*models.Round, int, error)
	Wagers(ctx context.Context, roundID int64) ([]*models.Wager, error)
	Player(ctx context.Context, playerID int64) (*models.Player, error)
	Catalog(ctx context.Context, groupID int64, family dice.Family) ([]models.WagerRule, error)
}

type Ledger interface {
	Adjust(ctx context.Context, playerID int64, kind models.LedgerKind, amount decimal.Decimal, refID int64) (*models.LedgerEntry, error)
	Statement(ctx context.Context, playerID int64) (*service.Statement, error)
}

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	wagers    WagerPlacer
	rounds    RoundQueries
	ledger    Ledger
	port      string
}

func NewHandler(wagers WagerPlacer, rounds RoundQueries, ledger Ledger, port string) *Handler {
	return &Handler{wagers: wagers, rounds: rounds, ledger: ledger, port: port}
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

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "game service is running at port " + h.port,
		Code:    http.StatusOK,
	})
}

type placeWagerRequest struct {
	PlayerID int64  `json:"player_id"`
	RoundID  int64  `json:"round_id"`
	Text     string `json:"text"`
}

func (h *Handler) PlaceWagerHandler(w http.ResponseWriter, r *http.Request) {
	var req placeWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Message: "invalid request body", Code: http.StatusBadRequest, Error: err.Error()})
		return
	}

	placed, err := h.wagers.PlaceWager(r.Context(), req.PlayerID, req.RoundID, req.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "wager accepted", Code: http.StatusCreated, Data: placed.Wager})
}

func (h *Handler) CurrentRoundHandler(w http.ResponseWriter, r *http.Request) {
	groupID, family, ok := h.groupAndFamily(w, r)
	if !ok {
		return
	}
	round, err := h.rounds.CurrentRound(r.Context(), groupID, family)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "current round", Code: http.StatusOK, Data: round})
}

func (h *Handler) CancelRoundHandler(w http.ResponseWriter, r *http.Request) {
	roundID, ok := h.idParam(w, r, "roundID")
	if !ok {
		return
	}
	round, refunded, err := h.rounds.CancelRound(r.Context(), roundID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.CreateResponse(w, Response{
		Message: "round cancelled",
		Code:    http.StatusOK,
		Data: map[string]interface{}{
			"round":    round,
			"refunded": refunded,
		},
	})
}

func (h *Handler) RoundWagersHandler(w http.ResponseWriter, r *http.Request) {
	roundID, ok := h.idParam(w, r, "roundID")
	if !ok {
		return
	}
	wagers, err := h.rounds.Wagers(r.Context(), roundID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "round wagers", Code: http.StatusOK, Data: wagers})
}

func (h *Handler) PlayerHandler(w http.ResponseWriter, r *http.Request) {
	playerID, ok := h.idParam(w, r, "playerID")
	if !ok {
		return
	}
	player, err := h.rounds.Player(r.Context(), playerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "player", Code: http.StatusOK, Data: player})
}

type adjustRequest struct {
	Kind   models.LedgerKind `json:"kind"`
	Amount decimal.Decimal   `json:"amount"`
	RefID  int64             `json:"ref_id"`
}

// AdjustBalanceHandler records a manual deposit or withdrawal.
func (h *Handler) AdjustBalanceHandler(w http.ResponseWriter, r *http.Request) {
	playerID, ok := h.idParam(w, r, "playerID")
	if !ok {
		return
	}
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Message: "invalid request body", Code: http.StatusBadRequest, Error: err.Error()})
		return
	}
	entry, err := h.ledger.Adjust(r.Context(), playerID, req.Kind, req.Amount, req.RefID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "balance adjusted", Code: http.StatusCreated, Data: entry})
}

func (h *Handler) LedgerHandler(w http.ResponseWriter, r *http.Request) {
	playerID, ok := h.idParam(w, r, "playerID")
	if !ok {
		return
	}
	st, err := h.ledger.Statement(r.Context(), playerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ledger", Code: http.StatusOK, Data: st})
}

func (h *Handler) CatalogHandler(w http.ResponseWriter, r *http.Request) {
	groupID, family, ok := h.groupAndFamily(w, r)
	if !ok {
		return
	}
	rules, err := h.rounds.Catalog(r.Context(), groupID, family)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "wager catalog", Code: http.StatusOK, Data: rules})
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		h.CreateResponse(w, Response{Message: "invalid " + name, Code: http.StatusBadRequest, Error: err.Error()})
		return 0, false
	}
	return id, true
}

func (h *Handler) groupAndFamily(w http.ResponseWriter, r *http.Request) (int64, dice.Family, bool) {
	groupID, ok := h.idParam(w, r, "groupID")
	if !ok {
		return 0, "", false
	}
	family, err := dice.ParseFamily(r.URL.Query().Get("family"))
	if err != nil {
		h.CreateResponse(w, Response{Message: "invalid family", Code: http.StatusBadRequest, Error: err.Error()})
		return 0, "", false
	}
	return groupID, family, true
}

// writeError maps domain errors to HTTP statuses. Unexpected errors are
// logged and reported without detail.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var pe *service.PlacementError
	if errors.As(err, &pe) {
		h.CreateResponse(w, Response{Message: pe.Message, Code: placementStatus(pe.Code), Error: string(pe.Code)})
		return
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		h.CreateResponse(w, Response{Message: "not found", Code: http.StatusNotFound, Error: err.Error()})
	case errors.Is(err, service.ErrInvalidAdjustment):
		h.CreateResponse(w, Response{Message: "invalid adjustment", Code: http.StatusUnprocessableEntity, Error: err.Error()})
	case errors.Is(err, store.ErrInsufficientFunds):
		h.CreateResponse(w, Response{Message: "insufficient balance", Code: http.StatusPaymentRequired, Error: err.Error()})
	case errors.Is(err, service.ErrNotCancellable):
		h.CreateResponse(w, Response{Message: "round can no longer be cancelled", Code: http.StatusConflict, Error: err.Error()})
	default:
		log.Errorf("request failed: %v", err)
		h.CreateResponse(w, Response{Message: "internal error", Code: http.StatusInternalServerError})
	}
}

func placementStatus(code service.ErrorCode) int {
	switch code {
	case service.CodeParse, service.CodeLimitExceeded:
		return http.StatusUnprocessableEntity
	case service.CodeConfigMissing, service.CodeRoundNotOpen:
		return http.StatusConflict
	case service.CodeInsufficientBalance:
		return http.StatusPaymentRequired
	case service.CodePlayerBanned:
		return http.StatusForbidden
	case service.CodeRoundNotFound, service.CodePlayerNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
