package http

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"installment-subledger/internal/domain/subloan"
	"installment-subledger/internal/ledger"
	"installment-subledger/internal/usecase/subledger"
)

// LedgerHandler exposes the sub-ledger entry points over HTTP. Raw ledger
// units go in; summary amounts come back as decimal strings scaled by
// amountScale.
type LedgerHandler struct {
	uc          *subledger.Usecase
	amountScale int32
}

func NewLedgerHandler(uc *subledger.Usecase, amountScale int32) *LedgerHandler {
	return &LedgerHandler{uc: uc, amountScale: amountScale}
}

// RegisterRoutes binds every ledger route on e.
func (h *LedgerHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/loans", h.TakeLoan)
	e.GET("/loans/:first_id/summary", h.LoanSummary)
	e.POST("/loans/:sub_loan_id/revoke", h.RevokeLoan)

	e.POST("/subloans/:id/operations", h.AddOperation)
	e.POST("/subloans/:id/operations/:op_id/cancel", h.CancelOperation)
	e.POST("/subloans/:id/process", h.Process)
	e.GET("/subloans/:id/preview", h.Preview)

	e.POST("/operations/batch", h.SubmitBatch)
	e.POST("/operations/batch/void", h.VoidBatch)
}

type subLoanParamsReq struct {
	Borrowed     uint64 `json:"borrowed" validate:"required"`
	Addon        uint64 `json:"addon"`
	PrimaryRate  uint64 `json:"primary_rate" validate:"rate"`
	PenaltyRate  uint64 `json:"penalty_rate" validate:"rate"`
	LateFeeRate  uint64 `json:"late_fee_rate" validate:"rate"`
	GraceRate    uint64 `json:"grace_rate" validate:"rate"`
	DurationDays uint32 `json:"duration_days" validate:"required"`
}

type takeLoanReq struct {
	BorrowerID string             `json:"borrower_id" validate:"required,hex32"`
	ProgramID  string             `json:"program_id"`
	Account    string             `json:"account" validate:"required"`
	StartAt    int64              `json:"start_at"`
	SubLoans   []subLoanParamsReq `json:"sub_loans" validate:"required,min=1,max=32,dive"`
}

func (h *LedgerHandler) TakeLoan(c echo.Context) error {
	var req takeLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}

	in := subledger.TakeLoanInput{
		BorrowerID: req.BorrowerID,
		ProgramID:  req.ProgramID,
		Account:    req.Account,
		StartAt:    req.StartAt,
	}
	for _, p := range req.SubLoans {
		in.SubLoans = append(in.SubLoans, subledger.SubLoanParams(p))
	}

	out, err := h.uc.TakeLoan(c.Request().Context(), in)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

type revokeLoanReq struct {
	Account string `json:"account"`
}

func (h *LedgerHandler) RevokeLoan(c echo.Context) error {
	subLoanID, err := pathID(c, "sub_loan_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid sub_loan_id"})
	}
	var req revokeLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := h.uc.RevokeLoan(c.Request().Context(), subLoanID, req.Account); err != nil {
		return ledgerError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type addOperationReq struct {
	Kind    string `json:"kind" validate:"required,opkind"`
	At      int64  `json:"at" validate:"required,gt=0"`
	Value   uint64 `json:"value"`
	Account string `json:"account"`
}

func (h *LedgerHandler) AddOperation(c echo.Context) error {
	subLoanID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid sub-loan id"})
	}
	var req addOperationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}

	out, err := h.uc.AddOperation(c.Request().Context(), subLoanID, subloan.Kind(req.Kind), req.At, req.Value, req.Account)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

type cancelOperationReq struct {
	Counterparty string `json:"counterparty"`
}

func (h *LedgerHandler) CancelOperation(c echo.Context) error {
	subLoanID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid sub-loan id"})
	}
	opID64, err := strconv.ParseUint(c.Param("op_id"), 10, 16)
	if err != nil || opID64 == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid op_id"})
	}
	var req cancelOperationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.CancelOperation(c.Request().Context(), subLoanID, uint16(opID64), req.Counterparty)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LedgerHandler) Process(c echo.Context) error {
	subLoanID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid sub-loan id"})
	}
	out, err := h.uc.ProcessSubLoan(c.Request().Context(), subLoanID)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LedgerHandler) Preview(c echo.Context) error {
	subLoanID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid sub-loan id"})
	}
	var at int64
	if raw := c.QueryParam("at"); raw != "" {
		if at, err = strconv.ParseInt(raw, 10, 64); err != nil || at <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid at"})
		}
	}
	ignoreGrace := c.QueryParam("ignore_grace") == "true"

	snap, err := h.uc.PreviewSubLoan(c.Request().Context(), subLoanID, at, ignoreGrace)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

type batchSubmitReq struct {
	Operations []batchOperationReq `json:"operations" validate:"required,min=1,max=32,dive"`
}

type batchOperationReq struct {
	SubLoanID uint64 `json:"sub_loan_id" validate:"required"`
	Kind      string `json:"kind" validate:"required,opkind"`
	At        int64  `json:"at" validate:"required,gt=0"`
	Value     uint64 `json:"value"`
	Account   string `json:"account"`
}

func (h *LedgerHandler) SubmitBatch(c echo.Context) error {
	var req batchSubmitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}

	reqs := make([]ledger.OperationRequest, 0, len(req.Operations))
	for _, o := range req.Operations {
		reqs = append(reqs, ledger.OperationRequest{
			SubLoanID: o.SubLoanID,
			Kind:      subloan.Kind(o.Kind),
			At:        o.At,
			Value:     o.Value,
			Account:   o.Account,
		})
	}
	out, err := h.uc.SubmitOperationBatch(c.Request().Context(), reqs)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type batchVoidReq struct {
	Cancellations []batchCancelReq `json:"cancellations" validate:"required,min=1,max=32,dive"`
}

type batchCancelReq struct {
	SubLoanID    uint64 `json:"sub_loan_id" validate:"required"`
	OpID         uint16 `json:"op_id" validate:"required"`
	Counterparty string `json:"counterparty"`
}

func (h *LedgerHandler) VoidBatch(c echo.Context) error {
	var req batchVoidReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}

	reqs := make([]ledger.CancelRequest, 0, len(req.Cancellations))
	for _, o := range req.Cancellations {
		reqs = append(reqs, ledger.CancelRequest{
			SubLoanID:    o.SubLoanID,
			OpID:         o.OpID,
			Counterparty: o.Counterparty,
		})
	}
	out, err := h.uc.VoidOperationBatch(c.Request().Context(), reqs)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type loanSummaryResp struct {
	LoanRef        string `json:"loan_ref"`
	BorrowerID     string `json:"borrower_id"`
	FirstSubLoanID uint64 `json:"first_sub_loan_id"`
	SubLoanCount   uint16 `json:"sub_loan_count"`
	Borrowed       string `json:"borrowed"`
	Addon          string `json:"addon"`
	Repaid         string `json:"repaid"`
	Outstanding    string `json:"outstanding"`
	Ongoing        int    `json:"ongoing"`
}

func (h *LedgerHandler) LoanSummary(c echo.Context) error {
	firstID, err := pathID(c, "first_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid first_id"})
	}
	sum, err := h.uc.LoanSummary(c.Request().Context(), firstID)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusOK, loanSummaryResp{
		LoanRef:        sum.LoanRef,
		BorrowerID:     sum.BorrowerID,
		FirstSubLoanID: sum.FirstSubLoanID,
		SubLoanCount:   sum.SubLoanCount,
		Borrowed:       h.amount(sum.Borrowed),
		Addon:          h.amount(sum.Addon),
		Repaid:         h.amount(sum.Repaid),
		Outstanding:    h.amount(sum.Outstanding),
		Ongoing:        sum.Ongoing,
	})
}

// amount renders a raw ledger amount as a decimal string with amountScale
// fractional digits (scale 2: 12345 -> "123.45").
func (h *LedgerHandler) amount(v uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -h.amountScale).String()
}

func pathID(c echo.Context, name string) (uint64, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, errors.New("invalid id")
	}
	return v, nil
}

// ledgerError maps domain errors onto HTTP statuses.
func ledgerError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, subloan.ErrNotFound), errors.Is(err, subloan.ErrNoSuchOperation):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, subloan.ErrRevoked),
		errors.Is(err, subloan.ErrOperationVoided),
		errors.Is(err, subloan.ErrAlreadyFrozen),
		errors.Is(err, subloan.ErrNotFrozen),
		errors.Is(err, subloan.ErrGraceToggle),
		errors.Is(err, subloan.ErrAfterRevocation),
		errors.Is(err, subloan.ErrRevocationNotLast):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, subloan.ErrOperationOverflow),
		errors.Is(err, subloan.ErrAmountOverflow),
		errors.Is(err, subloan.ErrPaymentExceedsDebt):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
}
