package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/service"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
	"github.com/creativerezz/cofk-lunch-card-app/internal/reader"
)

type Dependencies struct {
	Logger       *logrus.Logger
	Addr         string
	Processor    *service.Processor
	Sync         *service.SyncEngine
	Transactions store.TransactionStore
	Students     store.StudentStore
	Menu         store.MenuStore
	Offline      store.OfflineStore
	Operators    store.OperatorStore
	ScanTimeout  time.Duration
}

type Server struct {
	httpServer   *http.Server
	logger       *logrus.Logger
	mux          *http.ServeMux
	processor    *service.Processor
	sync         *service.SyncEngine
	transactions store.TransactionStore
	students     store.StudentStore
	menu         store.MenuStore
	offline      store.OfflineStore
	scanTimeout  time.Duration
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	scanTimeout := d.ScanTimeout
	if scanTimeout <= 0 {
		scanTimeout = 10 * time.Second
	}

	s := &Server{
		logger:       d.Logger,
		mux:          mux,
		processor:    d.Processor,
		sync:         d.Sync,
		transactions: d.Transactions,
		students:     d.Students,
		menu:         d.Menu,
		offline:      d.Offline,
		scanTimeout:  scanTimeout,
	}

	mux.HandleFunc("POST /v1/card/scan", s.handleScan)
	mux.HandleFunc("POST /v1/card/register", s.handleRegister)
	mux.HandleFunc("POST /v1/card/load", s.handleLoad)
	mux.HandleFunc("POST /v1/card/status", s.handleCardStatus)
	mux.HandleFunc("POST /v1/purchase", s.handlePurchase)
	mux.HandleFunc("POST /v1/refund", requireAdmin(s.handleRefund))
	mux.HandleFunc("GET /v1/menu", s.handleMenu)
	mux.HandleFunc("GET /v1/sync/pending", s.handleSyncPending)
	mux.HandleFunc("POST /v1/sync/run", s.handleSyncRun)
	mux.HandleFunc("GET /v1/reports/daily", s.handleDailyReport)
	mux.HandleFunc("GET /v1/students/{sid}/transactions", s.handleStudentTransactions)

	handler := loggingMiddleware(d.Logger, basicAuthMiddleware(d.Operators, d.Logger, mux))

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// decodeBody decodes a JSON request body, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeOperationError maps core errors onto the API contract: hard business
// rejections, missing entities, and internal failures all get distinct
// shapes, and insufficient balance carries its numbers in the payload.
func (s *Server) writeOperationError(w http.ResponseWriter, err error) {
	var insErr *store.InsufficientBalanceError
	switch {
	case errors.As(err, &insErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "insufficient_balance",
			"message":  insErr.Error(),
			"balance":  insErr.Balance,
			"required": insErr.Required,
		})
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrEmptyOrder),
		errors.Is(err, service.ErrAlreadyRefund):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, store.ErrCardNotFound),
		errors.Is(err, store.ErrStudentNotFound),
		errors.Is(err, store.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrCardRegistered),
		errors.Is(err, store.ErrCardNotActive),
		errors.Is(err, store.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "card_state", err.Error())
	case errors.Is(err, service.ErrNoReader), errors.Is(err, reader.ErrNoReader):
		writeError(w, http.StatusServiceUnavailable, "reader_unavailable", err.Error())
	case errors.Is(err, reader.ErrCardTimeout):
		writeError(w, http.StatusRequestTimeout, "card_timeout", "no card presented in time")
	default:
		s.logger.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}

// ── Card operations ──────────────────────────────────────────────────────────

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TimeoutSeconds int `json:"timeout_seconds"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
			return
		}
	}
	timeout := s.scanTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	res, err := s.processor.Scan(r.Context(), timeout)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardUID        string          `json:"card_uid"`
		StudentSID     string          `json:"student_sid"`
		InitialBalance decimal.Decimal `json:"initial_balance"`
		PIN            string          `json:"pin"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if req.CardUID == "" || req.StudentSID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "card_uid and student_sid are required")
		return
	}

	res, err := s.processor.RegisterCard(r.Context(), req.CardUID, req.StudentSID, req.InitialBalance, req.PIN, actorFrom(r))
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardUID     string          `json:"card_uid"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	res, err := s.processor.LoadFunds(r.Context(), req.CardUID, req.Amount, req.Description, actorFrom(r))
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCardStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardUID string `json:"card_uid"`
		Status  string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	status, err := types.ParseCardStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := s.processor.SetCardStatus(r.Context(), req.CardUID, status, actorFrom(r)); err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"card_uid": req.CardUID, "status": status})
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardUID string            `json:"card_uid"`
		Items   []types.OrderItem `json:"items"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	res, err := s.processor.Purchase(r.Context(), req.CardUID, req.Items, actorFrom(r))
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if req.TransactionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "transaction_id is required")
		return
	}

	res, err := s.processor.Refund(r.Context(), req.TransactionID, actorFrom(r))
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ── Menu ─────────────────────────────────────────────────────────────────────

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	items, err := s.menu.ListAvailable(r.Context())
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// ── Sync ─────────────────────────────────────────────────────────────────────

func (s *Server) handleSyncPending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.offline.ListPending(r.Context())
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pending": pending,
		"count":   len(pending),
	})
}

func (s *Server) handleSyncRun(w http.ResponseWriter, r *http.Request) {
	res, err := s.sync.Run(r.Context())
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ── Reports ──────────────────────────────────────────────────────────────────

func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	summary, err := s.transactions.DailySummary(r.Context(), day)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	popular, err := s.transactions.PopularItems(r.Context(), day, 10)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":       summary,
		"popular_items": popular,
	})
}

func (s *Server) handleStudentTransactions(w http.ResponseWriter, r *http.Request) {
	student, err := s.students.GetBySID(r.Context(), r.PathValue("sid"))
	if err != nil {
		s.writeOperationError(w, err)
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if v := q.Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "to must be YYYY-MM-DD")
			return
		}
		to = parsed.AddDate(0, 0, 1) // inclusive end date
	}

	txs, err := s.transactions.ListByStudent(r.Context(), student.ID, from, to)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"student":      student,
		"transactions": txs,
		"count":        len(txs),
	})
}
