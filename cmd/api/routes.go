package main

import (
	"net/http"

	"github.com/encorelive/backend/internal/admin"
	"github.com/encorelive/backend/internal/auth"
	"github.com/encorelive/backend/internal/banks"
	"github.com/encorelive/backend/internal/blobstore"
	"github.com/encorelive/backend/internal/deposits"
	"github.com/encorelive/backend/internal/ledger"
	"github.com/encorelive/backend/internal/middleware"
	"github.com/encorelive/backend/internal/payments"
	"github.com/encorelive/backend/internal/withdrawals"
)

type handlerDeps struct {
	Auth        *auth.Handler
	Tokens      middleware.TokenValidator
	Ledger      *ledger.Handler
	Deposits    *deposits.Handler
	Banks       *banks.Handler
	Withdrawals *withdrawals.Handler
	Payments    *payments.Handler
	Admin       *admin.Handler
	Vouchers    *blobstore.Handler
}

// registerRoutes wires the full API surface. Middleware chain on protected
// routes: RequireAuth -> (RequireAdmin on /v1/admin/) -> handler.
func registerRoutes(mux *http.ServeMux, d handlerDeps) {
	authed := middleware.RequireAuth(d.Tokens)
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.RequireAdmin(h))
	}

	// Public
	mux.HandleFunc("POST /api/v1/auth/register", d.Auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", d.Auth.Login)
	// Signed voucher URLs resolve here; the signature is the authorization.
	mux.HandleFunc("GET /vouchers/{key}", d.Vouchers.ServeVoucher)

	// Balance
	mux.Handle("GET /v1/balance", authed(http.HandlerFunc(d.Ledger.GetBalance)))
	mux.Handle("GET /v1/balance/history", authed(http.HandlerFunc(d.Ledger.ListEntries)))

	// Deposits
	mux.Handle("POST /v1/deposits", authed(http.HandlerFunc(d.Deposits.SubmitDeposit)))
	mux.Handle("GET /v1/deposits", authed(http.HandlerFunc(d.Deposits.ListOwnDeposits)))
	mux.Handle("GET /v1/deposits/{id}/voucher-url", authed(http.HandlerFunc(d.Deposits.VoucherURL)))

	// Bank accounts
	mux.Handle("POST /v1/bank-accounts", authed(http.HandlerFunc(d.Banks.CreateBankAccount)))
	mux.Handle("GET /v1/bank-accounts", authed(http.HandlerFunc(d.Banks.ListBankAccounts)))

	// Withdrawals
	mux.Handle("POST /v1/withdrawals", authed(http.HandlerFunc(d.Withdrawals.RequestWithdrawal)))
	mux.Handle("GET /v1/withdrawals", authed(http.HandlerFunc(d.Withdrawals.ListOwnWithdrawals)))

	// Event settlement
	mux.Handle("POST /v1/events/{id}/pay", authed(http.HandlerFunc(d.Payments.PayEvent)))

	// Admin
	mux.Handle("GET /v1/admin/deposits", adminOnly(d.Deposits.ListDeposits))
	mux.Handle("GET /v1/admin/deposits/{id}", adminOnly(d.Deposits.GetDeposit))
	mux.Handle("GET /v1/admin/deposits/{id}/duplicates", adminOnly(d.Deposits.CheckDuplicates))
	mux.Handle("POST /v1/admin/deposits/{id}/verify", adminOnly(d.Deposits.VerifyDeposit))
	mux.Handle("GET /v1/admin/withdrawals", adminOnly(d.Withdrawals.ListWithdrawals))
	mux.Handle("POST /v1/admin/withdrawals/{id}/process", adminOnly(d.Withdrawals.ProcessWithdrawal))
	mux.Handle("GET /v1/admin/stats", adminOnly(d.Admin.GetStats))
}
