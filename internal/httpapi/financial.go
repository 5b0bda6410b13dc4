package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/khazna/khazna/internal/apperr"
)

func (h *Handler) registerFinancial(mux *http.ServeMux) {
	mux.HandleFunc("GET /financial/report", h.handleFinancialReport)
	mux.HandleFunc("GET /financial/debts", h.handleFinancialDebts)
	mux.HandleFunc("POST /financial/debts/payment", h.handleFinancialDebtPayment)
	mux.HandleFunc("GET /financial/alerts", h.handleFinancialAlerts)
}

func (h *Handler) handleFinancialReport(w http.ResponseWriter, r *http.Request) {
	now := h.deps.Now()
	month := queryInt(r, "month", int(now.Month()))
	year := queryInt(r, "year", now.Year())
	compare := r.URL.Query().Get("compare") == "true"

	report, err := h.deps.Graph.QueryFinancialReport(ctxOrBackground(r), month, year, compare)
	if err != nil {
		writeError(w, "financial_report", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleFinancialDebts(w http.ResponseWriter, r *http.Request) {
	direction := r.URL.Query().Get("direction")
	status := r.URL.Query().Get("status")
	debts, err := h.deps.Graph.QueryDebts(ctxOrBackground(r), direction, status)
	if err != nil {
		writeError(w, "financial_debts", err)
		return
	}
	summary, err := h.deps.Graph.GetDebtSummary(ctxOrBackground(r))
	if err != nil {
		writeError(w, "financial_debts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"debts": debts, "summary": summary})
}

type debtPaymentRequest struct {
	DebtID string  `json:"debt_id"`
	Amount float64 `json:"amount"`
	Date   string  `json:"date"`
}

func (h *Handler) handleFinancialDebtPayment(w http.ResponseWriter, r *http.Request) {
	var req debtPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "financial_debt_payment", err)
		return
	}
	if req.DebtID == "" {
		writeError(w, "financial_debt_payment", apperr.Validation("httpapi.handleFinancialDebtPayment", errDebtIDRequired))
		return
	}
	if req.Date == "" {
		req.Date = h.deps.Now().Format(time.RFC3339)
	}

	status, remaining, err := h.deps.Graph.PayDebt(ctxOrBackground(r), req.DebtID, req.Amount, req.Date)
	if err != nil {
		writeError(w, "financial_debt_payment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "remaining": remaining})
}

func (h *Handler) handleFinancialAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.deps.Graph.QuerySpendingAlerts(ctxOrBackground(r), h.deps.Now())
	if err != nil {
		writeError(w, "financial_alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
