package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"rupeeverse/internal/auth"
	"rupeeverse/internal/config"
	"rupeeverse/internal/economy"
	"rupeeverse/internal/player"
)

type contextKey string

const userContextKey contextKey = "user"

type UserContext struct {
	UserID string
	Email  string
	Token  string
}

// KeyClaimer claims idempotency keys; Claim reports false when the key was
// already recorded for that user.
type KeyClaimer interface {
	Claim(ctx context.Context, userID, key string) (bool, error)
}

type Server struct {
	cfg     config.APIConfig
	log     *slog.Logger
	auth    *auth.SupabaseClient
	players *player.Store
	economy *economy.Service
	keys    KeyClaimer
	mux     *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, authClient *auth.SupabaseClient, players *player.Store, ledger *economy.Service, keys KeyClaimer) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger,
		auth:    authClient,
		players: players,
		economy: ledger,
		keys:    keys,
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, http.StatusOK, map[string]any{"ok": true}, "")
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/player-state", s.handlePlayerState)
			r.Put("/player-state", s.handlePlayerStateUpdate)
			r.Put("/player-state/rupees", s.handleRupeesUpdate)
			r.Put("/player-state/position", s.handlePositionUpdate)
			r.Put("/player-state/settings", s.handleSettingsUpdate)
			r.Get("/player-state/starter-status", s.handleStarterStatus)
			r.With(s.idempotency).Post("/player-state/claim-starter", s.handleClaimStarter)
			r.Get("/player-state/consistency", s.handleConsistency)

			r.With(s.idempotency).Post("/bank-account/create", s.handleCreateAccount)
			r.Get("/bank-account", s.handleGetAccount)
			r.With(s.idempotency).Post("/bank-account/deposit", s.handleDeposit)
			r.With(s.idempotency).Post("/bank-account/withdraw", s.handleWithdraw)

			r.Get("/fixed-deposits", s.handleListFixedDeposits)
			r.With(s.idempotency).Post("/fixed-deposits", s.handleCreateFixedDeposit)
			r.With(s.idempotency).Post("/fixed-deposits/{id}/claim", s.handleClaimFixedDeposit)

			r.Get("/stock-portfolio", s.handlePortfolio)
			r.With(s.idempotency).Post("/stock-portfolio/buy", s.handleBuyStock)
			r.With(s.idempotency).Post("/stock-portfolio/sell", s.handleSellStock)
			r.Get("/stock-transactions", s.handleStockTransactions)

			r.Get("/sync", s.handleSync)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.auth.VerifyAccessToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("invalid token: %v", err))
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			UserID: user.ID,
			Email:  user.Email,
			Token:  token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// idempotency claims the request's Idempotency-Key before the handler runs.
// A request whose key was already claimed is answered without re-running the
// mutation, so a replayed command after a lost response cannot double-apply.
func (s *Server) idempotency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		if key == "" || s.keys == nil {
			next.ServeHTTP(w, r)
			return
		}
		user, err := userFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		claimed, err := s.keys.Claim(r.Context(), user.UserID, key)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		if !claimed {
			writeData(w, http.StatusOK, map[string]any{"applied": false}, "already applied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.auth.SignUp(r.Context(), strings.TrimSpace(in.Email), strings.TrimSpace(in.Password))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if session.User.ID != "" {
		if _, err := s.players.GetOrCreate(r.Context(), session.User.ID); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	writeData(w, http.StatusCreated, session, "account created")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.auth.Login(r.Context(), strings.TrimSpace(in.Email), strings.TrimSpace(in.Password))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if _, err := s.players.GetOrCreate(r.Context(), session.User.ID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, session, "")
}

func (s *Server) handlePlayerState(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	doc, err := s.players.GetOrCreate(r.Context(), user.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, doc, "")
}

func (s *Server) handlePlayerStateUpdate(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var patch map[string]any
	if err := decodeLooseJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(patch) == 0 {
		writeError(w, http.StatusBadRequest, "empty update")
		return
	}
	doc, err := s.players.Update(r.Context(), user.UserID, patch)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, doc, "player state updated")
}

func (s *Server) handleRupeesUpdate(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Rupees    float64 `json:"rupees"`
		Operation string  `json:"operation"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch in.Operation {
	case player.RupeeOpSet, player.RupeeOpAdd, player.RupeeOpSubtract:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown operation %q", in.Operation))
		return
	}
	doc, err := s.players.UpdateRupees(r.Context(), user.UserID, in.Rupees, in.Operation)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"financial": doc["financial"]}, "rupees updated")
}

func (s *Server) handlePositionUpdate(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		X         float64 `json:"x"`
		Y         float64 `json:"y"`
		SceneName string  `json:"sceneName"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.players.UpdatePosition(r.Context(), user.UserID, in.X, in.Y, in.SceneName); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"ok": true}, "")
}

func (s *Server) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var settings map[string]any
	if err := decodeLooseJSON(r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.players.UpdateSettings(r.Context(), user.UserID, settings); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"ok": true}, "")
}

func (s *Server) handleStarterStatus(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	claimed, err := s.economy.StarterStatus(r.Context(), user.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"claimed": claimed}, "")
}

func (s *Server) handleClaimStarter(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	grant, err := s.economy.GrantStarterBonus(r.Context(), user.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	message := "starter bonus already claimed"
	if grant.NewlyGranted {
		message = "starter bonus granted"
	}
	writeData(w, http.StatusOK, grant, message)
}

func (s *Server) handleConsistency(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	violations, err := s.economy.CheckConsistency(r.Context(), user.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if violations == nil {
		violations = []string{}
	}
	writeData(w, http.StatusOK, map[string]any{"consistent": len(violations) == 0, "violations": violations}, "")
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		AccountHolder  string  `json:"accountHolder"`
		InitialDeposit float64 `json:"initialDeposit"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := s.economy.CreateAccount(r.Context(), user.UserID, in.AccountHolder, in.InitialDeposit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, account, "bank account created")
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	account, err := s.economy.GetAccount(r.Context(), user.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, account, "")
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleBankMove(w, r, s.economy.Deposit, "deposit successful")
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleBankMove(w, r, s.economy.Withdraw, "withdrawal successful")
}

func (s *Server) handleBankMove(w http.ResponseWriter, r *http.Request,
	move func(context.Context, string, float64) (*economy.BankAccount, error), message string) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Amount float64 `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := move(r.Context(), user.UserID, in.Amount)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, account, message)
}

func (s *Server) handleListFixedDeposits(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	deposits, err := s.economy.ListFixedDeposits(r.Context(), user.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"fixedDeposits": deposits}, "")
}

func (s *Server) handleCreateFixedDeposit(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Amount   float64 `json:"amount"`
		Duration int     `json:"duration"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fd, err := s.economy.CreateFixedDeposit(r.Context(), user.UserID, in.Amount, in.Duration)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, fd, "fixed deposit created")
}

func (s *Server) handleClaimFixedDeposit(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	claim, err := s.economy.ClaimFixedDeposit(r.Context(), user.UserID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, claim, "fixed deposit claimed")
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	pf, err := s.economy.Portfolio(r.Context(), user.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, pf, "")
}

func (s *Server) handleBuyStock(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		StockID   string  `json:"stockId"`
		StockName string  `json:"stockName"`
		Quantity  int64   `json:"quantity"`
		Price     float64 `json:"price"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.economy.BuyStock(r.Context(), user.UserID, in.StockID, in.StockName, in.Quantity, in.Price)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, result, "stock purchased")
}

func (s *Server) handleSellStock(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		StockID  string  `json:"stockId"`
		Quantity int64   `json:"quantity"`
		Price    float64 `json:"price"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.economy.SellStock(r.Context(), user.UserID, in.StockID, in.Quantity, in.Price)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, result, "stock sold")
}

func (s *Server) handleStockTransactions(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	txs, err := s.economy.Transactions(r.Context(), user.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"transactions": txs}, "")
}

// handleSync aggregates everything the game client needs to resume a session
// in one round trip. Missing collections (no bank account yet, no portfolio)
// come back as null rather than failing the whole read.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	ctx := r.Context()

	doc, err := s.players.GetOrCreate(ctx, user.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	claimed, err := s.economy.StarterStatus(ctx, user.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	var account *economy.BankAccount
	if a, err := s.economy.GetAccount(ctx, user.UserID); err == nil {
		account = a
	} else if !errors.Is(err, economy.ErrNotFound) {
		s.writeDomainError(w, err)
		return
	}

	deposits, err := s.economy.ListFixedDeposits(ctx, user.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	pf, err := s.economy.Portfolio(ctx, user.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	txs, err := s.economy.Transactions(ctx, user.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if limit := s.cfg.SyncTxLimit; limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}

	writeData(w, http.StatusOK, map[string]any{
		"playerState":       doc,
		"starterClaimed":    claimed,
		"bankAccount":       account,
		"fixedDeposits":     deposits,
		"stockPortfolio":    pf,
		"stockTransactions": txs,
	}, "")
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, economy.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, economy.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, economy.ErrNotMatured):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, economy.ErrAlreadyClaimed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, economy.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, economy.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, player.ErrPersistenceUnavailable):
		s.log.Error("persistence unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "persistence unavailable")
	default:
		s.log.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// decodeLooseJSON accepts arbitrary keys; used for free-form document patches.
func decodeLooseJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	body := map[string]any{"success": true, "data": data}
	if message != "" {
		body["message"] = message
	}
	writeJSON(w, status, body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
