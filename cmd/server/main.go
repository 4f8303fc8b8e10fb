package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/induscol/planta/internal/config"
	"github.com/induscol/planta/internal/db"
	"github.com/induscol/planta/internal/migrations"
	"github.com/induscol/planta/internal/seed"
)

type server struct {
	auth *authService
	db   *sql.DB
}

func main() {
	cfg := config.Load()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database); err != nil {
			log.Fatalf("failed to run database migrations: %v", err)
		}
	}

	stats, err := seed.Run(database, seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		log.Fatalf("failed to run startup seed: %v", err)
	}
	if stats.Inserts > 0 {
		log.Printf("startup seed inserted %d rows", stats.Inserts)
	}

	srv := &server{auth: newAuthService(database, cfg.SessionSecret), db: database}

	addr := ":" + cfg.Port
	log.Printf("listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.router()); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func (s *server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.authMiddleware)

	r.Get("/healthz", handleHealth)
	r.Post("/api/login", s.handleLogin)
	r.Post("/api/logout", s.handleLogout)

	r.Route("/api/materials", func(r chi.Router) {
		r.Get("/", s.handleMaterialsList)
		r.Post("/", s.handleMaterialCreate)
		r.Get("/critical", s.handleMaterialsCritical)
		r.Get("/value", s.handleInventoryValue)
		r.Post("/{id}", s.handleMaterialUpdate)
		r.Get("/{id}/rupture", s.handleMaterialRupture)
		r.Get("/{id}/purchase-suggestion", s.handleMaterialPurchaseSuggestion)
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", s.handleProductsList)
		r.Post("/", s.handleProductCreate)
		r.Get("/{id}/cost", s.handleProductCost)
		r.Post("/{id}/simulations/price", s.handleSimulatePrice)
		r.Post("/{id}/simulations/target-profit", s.handleSimulateTargetProfit)
		r.Post("/{id}/simulations/material-cost", s.handleSimulateMaterialCost)
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/", s.handleOrdersList)
		r.Post("/", s.handleOrderCreate)
		r.Post("/{id}/start", s.handleOrderStart)
		r.Post("/{id}/complete", s.handleOrderComplete)
		r.Post("/{id}/cancel", s.handleOrderCancel)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func newID() string {
	return uuid.NewString()
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func parseDecimalParam(r *http.Request, name string) (decimal.Decimal, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("%s es requerido", name)
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s debe ser numérico", name)
	}
	return value, nil
}
