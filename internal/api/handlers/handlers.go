// Package handlers is the thin HTTP collaborator layer over the
// ledger engine. It validates shape, resolves the acting user and maps
// engine failures to status codes; every balance-affecting decision
// lives in the engine.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/finexbank/ledger/internal/api/middleware"
	"github.com/finexbank/ledger/internal/domain"
	"github.com/finexbank/ledger/internal/kvstore"
	"github.com/finexbank/ledger/internal/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerHandler serves all engine-backed endpoints. cache holds
// short-lived display state (the exchange-rate quote) and may be nil.
type LedgerHandler struct {
	engine *ledger.Engine
	cache  kvstore.Store
	log    zerolog.Logger
}

// NewLedgerHandler creates the handler set.
func NewLedgerHandler(engine *ledger.Engine, cache kvstore.Store, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{engine: engine, cache: cache, log: log}
}

// Register wires every route onto mux.
func (h *LedgerHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users", h.CreateUser)

	mux.HandleFunc("GET /api/accounts", h.ListAccounts)
	mux.HandleFunc("POST /api/accounts", h.CreateAccount)
	mux.HandleFunc("GET /api/accounts/summary", h.AccountSummary)
	mux.HandleFunc("POST /api/accounts/{id}/verify-pin", h.VerifyPIN)
	mux.HandleFunc("PATCH /api/accounts/{id}", h.UpdateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", h.DeleteAccount)

	mux.HandleFunc("POST /api/transactions/send", h.Transfer)
	mux.HandleFunc("GET /api/transactions", h.ListTransactions)

	mux.HandleFunc("GET /api/bills", h.ListBills)
	mux.HandleFunc("POST /api/bills", h.CreateBill)
	mux.HandleFunc("GET /api/bills/summary", h.BillSummary)
	mux.HandleFunc("PUT /api/bills/{id}/pay", h.PayBill)
	mux.HandleFunc("PATCH /api/bills/{id}", h.UpdateBill)
	mux.HandleFunc("DELETE /api/bills/{id}", h.DeleteBill)
	mux.HandleFunc("POST /api/bills/check-autopay", h.RunAutoPay)

	mux.HandleFunc("GET /api/rewards/balance", h.RewardBalance)
	mux.HandleFunc("GET /api/rewards/exchange-rate", h.ExchangeRate)
	mux.HandleFunc("GET /api/rewards/my-rewards", h.RedeemedRewards)
	mux.HandleFunc("POST /api/rewards/redeem", h.RedeemReward)

	mux.HandleFunc("GET /api/alerts", h.ListAlerts)
}

// currentUser resolves the acting user from the X-User-ID header.
// Session handling is the gateway's job; by the time a request reaches
// this service the id is trusted.
func currentUser(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	return id, err == nil && id > 0
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// CreateUser handles POST /api/users
func (h *LedgerHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Email == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name and email are required")
		return
	}

	user, account, err := h.engine.CreateUser(r.Context(), req.Name, req.Email)
	if err != nil {
		h.log.Error().Err(err).Str("email", req.Email).Msg("Failed to create user")
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"user":    user,
		"account": account,
	})
}

// ListAccounts handles GET /api/accounts
func (h *LedgerHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	accounts, err := h.engine.Accounts(r.Context(), userID)
	if err != nil {
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, accounts)
}

// CreateAccount handles POST /api/accounts
func (h *LedgerHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	var req struct {
		BankName      string          `json:"bank_name"`
		AccountType   string          `json:"account_type"`
		MaskedAccount string          `json:"masked_account"`
		Balance       decimal.Decimal `json:"balance"`
		Currency      string          `json:"currency"`
		PIN           string          `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	account, err := h.engine.CreateAccount(r.Context(), userID, req.BankName,
		domain.AccountKind(req.AccountType), req.MaskedAccount, req.Balance, req.Currency, req.PIN)
	if err != nil {
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, account)
}

// AccountSummary handles GET /api/accounts/summary
func (h *LedgerHandler) AccountSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	summary, err := h.engine.SummarizeAccounts(r.Context(), userID)
	if err != nil {
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, summary)
}

// VerifyPIN handles POST /api/accounts/{id}/verify-pin
func (h *LedgerHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	accountID, ok := pathID(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid account id")
		return
	}
	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	valid, err := h.engine.VerifyPIN(r.Context(), userID, accountID, req.PIN)
	if err != nil {
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// UpdateAccount handles PATCH /api/accounts/{id}
func (h *LedgerHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	accountID, ok := pathID(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid account id")
		return
	}
	var req struct {
		BankName *string `json:"bank_name"`
		PIN      *string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	account, err := h.engine.UpdateAccount(r.Context(), userID, accountID,
		domain.AccountUpdate{BankName: req.BankName, PIN: req.PIN})
	if err != nil {
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, account)
}

// DeleteAccount handles DELETE /api/accounts/{id}
func (h *LedgerHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	accountID, ok := pathID(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid account id")
		return
	}
	if err := h.engine.DeleteAccount(r.Context(), userID, accountID); err != nil {
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Transfer handles POST /api/transactions/send
func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	var req struct {
		RecipientEmail string          `json:"recipient_email"`
		Amount         decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RecipientEmail == "" {
		middleware.WriteError(w, http.StatusBadRequest, "recipient_email and amount are required")
		return
	}

	entry, err := h.engine.Transfer(r.Context(), userID, req.RecipientEmail, req.Amount)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("Transfer rejected")
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, entry)
}

// ListTransactions handles GET /api/transactions
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	entries, err := h.engine.Transactions(r.Context(), userID)
	if err != nil {
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, entries)
}

// ListBills handles GET /api/bills
func (h *LedgerHandler) ListBills(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	bills, err := h.engine.ListBills(r.Context(), userID)
	if err != nil {
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, bills)
}

// CreateBill handles POST /api/bills
func (h *LedgerHandler) CreateBill(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	var req struct {
		BillerName  string          `json:"biller_name"`
		DueDate     string          `json:"due_date"` // YYYY-MM-DD
		AmountDue   decimal.Decimal `json:"amount_due"`
		AutoPay     bool            `json:"auto_pay"`
		AutoPayTime string          `json:"auto_pay_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BillerName == "" {
		middleware.WriteError(w, http.StatusBadRequest, "biller_name is required")
		return
	}
	due, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
		return
	}

	bill, err := h.engine.CreateBill(r.Context(), userID, req.BillerName, due, req.AmountDue, req.AutoPay, req.AutoPayTime)
	if err != nil {
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, bill)
}

// BillSummary handles GET /api/bills/summary
func (h *LedgerHandler) BillSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	summary, err := h.engine.SummarizeBills(r.Context(), userID)
	if err != nil {
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, summary)
}

// PayBill handles PUT /api/bills/{id}/pay
func (h *LedgerHandler) PayBill(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	billID, ok := pathID(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid bill id")
		return
	}

	var accountID *int64
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid account_id")
			return
		}
		accountID = &id
	}

	bill, err := h.engine.PayBill(r.Context(), userID, billID, accountID)
	if err != nil {
		h.log.Warn().Err(err).Int64("bill_id", billID).Msg("Bill payment rejected")
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, bill)
}

// UpdateBill handles PATCH /api/bills/{id}
func (h *LedgerHandler) UpdateBill(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	billID, ok := pathID(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid bill id")
		return
	}
	var req struct {
		BillerName  *string          `json:"biller_name"`
		DueDate     *string          `json:"due_date"` // YYYY-MM-DD
		AmountDue   *decimal.Decimal `json:"amount_due"`
		AutoPay     *bool            `json:"auto_pay"`
		AutoPayTime *string          `json:"auto_pay_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	update := domain.BillUpdate{
		BillerName:  req.BillerName,
		AmountDue:   req.AmountDue,
		AutoPay:     req.AutoPay,
		AutoPayTime: req.AutoPayTime,
	}
	if req.DueDate != nil {
		due, err := time.Parse("2006-01-02", *req.DueDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
			return
		}
		update.DueDate = &due
	}

	bill, err := h.engine.UpdateBill(r.Context(), userID, billID, update)
	if err != nil {
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, bill)
}

// DeleteBill handles DELETE /api/bills/{id}
func (h *LedgerHandler) DeleteBill(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	billID, ok := pathID(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid bill id")
		return
	}
	if err := h.engine.DeleteBill(r.Context(), userID, billID); err != nil {
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// RunAutoPay handles POST /api/bills/check-autopay, the request-time
// sweep trigger.
func (h *LedgerHandler) RunAutoPay(w http.ResponseWriter, r *http.Request) {
	paid, err := h.engine.AutoPaySweep(r.Context(), time.Now())
	if err != nil {
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"paid":  paid,
		"count": len(paid),
	})
}

// RewardBalance handles GET /api/rewards/balance
func (h *LedgerHandler) RewardBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	reward, err := h.engine.RewardBalance(r.Context(), userID)
	if err != nil {
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"points_balance": reward.Points,
		"program_name":   reward.ProgramName,
	})
}

const (
	quoteCacheKey = "rewards:exchange_rate"
	quoteCacheTTL = 30 * time.Second
)

// ExchangeRate handles GET /api/rewards/exchange-rate. Quotes are
// display-only, so one cached quote per TTL window is plenty.
func (h *LedgerHandler) ExchangeRate(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		if raw, ok, err := h.cache.Get(r.Context(), quoteCacheKey); err == nil && ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(raw))
			return
		}
	}

	quote := h.engine.ExchangeRateQuote()
	if h.cache != nil {
		if raw, err := json.Marshal(quote); err == nil {
			// WriteJSON uses json.Encoder, which appends a newline;
			// cache the same bytes so replays match the first response.
			if err := h.cache.Set(r.Context(), quoteCacheKey, string(raw)+"\n", quoteCacheTTL); err != nil {
				h.log.Warn().Err(err).Msg("Failed to cache exchange-rate quote")
			}
		}
	}
	middleware.WriteJSON(w, http.StatusOK, quote)
}

// RedeemedRewards handles GET /api/rewards/my-rewards
func (h *LedgerHandler) RedeemedRewards(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	items, err := h.engine.RedeemedRewards(r.Context(), userID)
	if err != nil {
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, items)
}

// RedeemReward handles POST /api/rewards/redeem
func (h *LedgerHandler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	var req struct {
		ItemID   string `json:"item_id"`
		ItemName string `json:"item_name"`
		Cost     int64  `json:"cost"`
		Type     string `json:"type"` // 'cashback', 'giftcard'
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemName == "" {
		middleware.WriteError(w, http.StatusBadRequest, "item_name and cost are required")
		return
	}

	result, err := h.engine.RedeemReward(r.Context(), userID, req.ItemID, req.ItemName, req.Cost, domain.RedemptionKind(req.Type))
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("Redemption rejected")
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"new_balance": result.NewPointsBalance,
		"transaction": result.CashbackEntry,
		"redeemed":    result.Redeemed,
	})
}

// ListAlerts handles GET /api/alerts
func (h *LedgerHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID is required")
		return
	}
	alerts, err := h.engine.Alerts(r.Context(), userID)
	if err != nil {
		middleware.WriteEngineError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, alerts)
}
