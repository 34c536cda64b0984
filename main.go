package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"

	"banking-system/account"
	"banking-system/audit"
	"banking-system/auth"
	"banking-system/budgets"
	"banking-system/goals"
	"banking-system/interest"
	"banking-system/ledger"
	"banking-system/limits"
	"banking-system/loans"
	"banking-system/payments"
	"banking-system/transactions"
)

func main() {
	// Get database connection details from environment variables
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s "+
		"password=%s dbname=%s sslmode=disable",
		os.Getenv("DATABASE_HOST"), 5432, os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"), os.Getenv("POSTGRES_DB"))

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}
	log.Println("Successfully connected to the database")

	auth.SetSigningKey([]byte(os.Getenv("JWT_SECRET")))

	// Stores, guard and audit sink, then the engines on top of them.
	accountStore := account.NewDB(db)
	ledgerStore := ledger.NewDB(db)
	loanStore := loans.NewDB(db)
	budgetStore := budgets.NewDB(db)
	goalStore := goals.NewDB(db)
	paymentStore := payments.NewDB(db)

	sink := audit.NewSQLSink(db)
	defer sink.Close()

	guard := limits.NewGuard(limits.Default(), ledgerStore)
	txEngine := transactions.NewEngine(accountStore, ledgerStore, guard, sink)
	interestEngine := interest.NewEngine(accountStore, txEngine)
	loanEngine := loans.NewEngine(loanStore, accountStore, txEngine, sink)
	budgetService := budgets.NewService(budgetStore, accountStore, ledgerStore, budgets.NewKeywordMatcher())
	goalService := goals.NewService(goalStore, accountStore, sink)
	paymentService := payments.NewService(paymentStore, accountStore, txEngine, sink)

	authEnv := &auth.Env{DB: db, Audit: sink}
	accountEnv := &account.Env{Store: accountStore, Audit: sink}
	txEnv := &transactions.Env{Engine: txEngine, Accounts: accountStore}
	interestEnv := &interest.Env{Engine: interestEngine}
	loanEnv := &loans.Env{Engine: loanEngine}
	budgetEnv := &budgets.Env{Service: budgetService}
	goalEnv := &goals.Env{Service: goalService}
	paymentEnv := &payments.Env{Service: paymentService}

	rateLimiter := auth.NewRateLimiter(5, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Welcome to the Banking System!")
	})

	// Auth routes
	mux.Handle("/signup", auth.ValidateSignupRequest(http.HandlerFunc(authEnv.SignupHandler)))
	mux.Handle("/login", rateLimiter.Middleware(http.HandlerFunc(authEnv.LoginHandler)))
	mux.Handle("/change-password", auth.AuthenticationMiddleware(http.HandlerFunc(authEnv.ChangePasswordHandler)))
	mux.Handle("/me", auth.AuthenticationMiddleware(http.HandlerFunc(authEnv.GetUserHandler)))

	// Account routes
	mux.Handle("/accounts", auth.AuthenticationMiddleware(http.HandlerFunc(accountEnv.GetAccountsHandler)))
	mux.Handle("/create-account", auth.AuthenticationMiddleware(http.HandlerFunc(accountEnv.CreateAccountHandler)))
	mux.Handle("/close-account", auth.AuthenticationMiddleware(http.HandlerFunc(accountEnv.CloseAccountHandler)))
	mux.Handle("/account-types", auth.AuthenticationMiddleware(http.HandlerFunc(accountEnv.GetAccountTypesHandler)))

	// Transaction routes
	mux.Handle("/deposit", auth.AuthenticationMiddleware(http.HandlerFunc(txEnv.DepositHandler)))
	mux.Handle("/withdraw", auth.AuthenticationMiddleware(http.HandlerFunc(txEnv.WithdrawHandler)))
	mux.Handle("/transfer", auth.AuthenticationMiddleware(http.HandlerFunc(txEnv.TransferHandler)))
	mux.Handle("/transactions", auth.AuthenticationMiddleware(http.HandlerFunc(txEnv.HistoryHandler)))

	// Interest routes
	mux.Handle("/interest/apply", auth.AuthenticationMiddleware(http.HandlerFunc(interestEnv.ApplyHandler)))
	mux.Handle("/interest/projected", auth.AuthenticationMiddleware(http.HandlerFunc(interestEnv.ProjectedHandler)))

	// Loan routes
	mux.Handle("/loans", auth.AuthenticationMiddleware(http.HandlerFunc(loanEnv.ListHandler)))
	mux.Handle("/loans/eligibility", auth.AuthenticationMiddleware(http.HandlerFunc(loanEnv.EligibilityHandler)))
	mux.Handle("/loans/apply", auth.AuthenticationMiddleware(http.HandlerFunc(loanEnv.ApplyHandler)))
	mux.Handle("/loans/approve", auth.AuthenticationMiddleware(http.HandlerFunc(loanEnv.ApproveHandler)))
	mux.Handle("/loans/reject", auth.AuthenticationMiddleware(http.HandlerFunc(loanEnv.RejectHandler)))
	mux.Handle("/loans/pay", auth.AuthenticationMiddleware(http.HandlerFunc(loanEnv.PayHandler)))

	// Budget routes
	mux.Handle("/budgets", auth.AuthenticationMiddleware(http.HandlerFunc(budgetEnv.ListHandler)))
	mux.Handle("/budgets/create", auth.AuthenticationMiddleware(http.HandlerFunc(budgetEnv.CreateHandler)))
	mux.Handle("/budgets/status", auth.AuthenticationMiddleware(http.HandlerFunc(budgetEnv.StatusHandler)))
	mux.Handle("/budgets/delete", auth.AuthenticationMiddleware(http.HandlerFunc(budgetEnv.DeleteHandler)))

	// Savings goal routes
	mux.Handle("/goals", auth.AuthenticationMiddleware(http.HandlerFunc(goalEnv.ListHandler)))
	mux.Handle("/goals/create", auth.AuthenticationMiddleware(http.HandlerFunc(goalEnv.CreateHandler)))
	mux.Handle("/goals/add", auth.AuthenticationMiddleware(http.HandlerFunc(goalEnv.AddHandler)))
	mux.Handle("/goals/withdraw", auth.AuthenticationMiddleware(http.HandlerFunc(goalEnv.WithdrawHandler)))
	mux.Handle("/goals/delete", auth.AuthenticationMiddleware(http.HandlerFunc(goalEnv.DeleteHandler)))

	// Recurring payment and bill routes
	mux.Handle("/payments/recurring", auth.AuthenticationMiddleware(http.HandlerFunc(paymentEnv.ListRecurringHandler)))
	mux.Handle("/payments/recurring/create", auth.AuthenticationMiddleware(http.HandlerFunc(paymentEnv.CreateRecurringHandler)))
	mux.Handle("/payments/recurring/deactivate", auth.AuthenticationMiddleware(http.HandlerFunc(paymentEnv.DeactivateRecurringHandler)))
	mux.Handle("/payments/recurring/delete", auth.AuthenticationMiddleware(http.HandlerFunc(paymentEnv.DeleteRecurringHandler)))
	mux.Handle("/bills", auth.AuthenticationMiddleware(http.HandlerFunc(paymentEnv.ListBillsHandler)))
	mux.Handle("/bills/create", auth.AuthenticationMiddleware(http.HandlerFunc(paymentEnv.CreateBillHandler)))
	mux.Handle("/bills/overdue", auth.AuthenticationMiddleware(http.HandlerFunc(paymentEnv.OverdueBillsHandler)))
	mux.Handle("/bills/pay", auth.AuthenticationMiddleware(http.HandlerFunc(paymentEnv.PayBillHandler)))
	mux.Handle("/bills/cancel", auth.AuthenticationMiddleware(http.HandlerFunc(paymentEnv.CancelBillHandler)))
	mux.Handle("/bills/delete", auth.AuthenticationMiddleware(http.HandlerFunc(paymentEnv.DeleteBillHandler)))

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("Starting server on %s", addr)
	if err := http.ListenAndServe(addr, auth.Logger(mux)); err != nil {
		log.Fatal(err)
	}
}
