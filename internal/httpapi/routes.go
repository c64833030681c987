// Package httpapi exposes the composite over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"product-composite/internal/composite"
	"product-composite/internal/fault"
	"product-composite/internal/logger"
	"product-composite/internal/model"
	"product-composite/internal/reqctx"
	"product-composite/internal/resilience"
)

var validate = validator.New()

// AggregateService is implemented by *composite.Service.
type AggregateService interface {
	GetAggregate(ctx context.Context, rc reqctx.RequestContext, productID int, opts composite.ReadOptions) (model.ProductAggregate, error)
	CreateAggregate(ctx context.Context, rc reqctx.RequestContext, body model.ProductAggregate) error
	DeleteAggregate(ctx context.Context, rc reqctx.RequestContext, productID int) error
}

type BreakerStatus interface {
	Snapshot() []resilience.Status
}

type Handler struct {
	svc      AggregateService
	breakers BreakerStatus
	log      logger.Logger
}

func NewHandler(svc AggregateService, breakers BreakerStatus, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{svc: svc, breakers: breakers, log: log}
}

// RegisterRoutes wires the composite routes on r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/circuit-breakers", h.circuitBreakers).Methods(http.MethodGet)
	r.HandleFunc("/aggregate", h.createAggregate).Methods(http.MethodPost)
	r.HandleFunc("/aggregate/{productId}", h.getAggregate).Methods(http.MethodGet)
	r.HandleFunc("/aggregate/{productId}", h.deleteAggregate).Methods(http.MethodDelete)
}

// NewRouter returns the full handler chain of the service.
func NewRouter(h *Handler, rps float64, burst int) http.Handler {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	r.Use(WithRequestID, AccessLog(h.log), RateLimit(rps, burst, h.log))
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, h.log, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) circuitBreakers(w http.ResponseWriter, _ *http.Request) {
	var out []resilience.Status
	if h.breakers != nil {
		out = h.breakers.Snapshot()
	}
	if out == nil {
		out = []resilience.Status{}
	}
	respondJSON(w, h.log, http.StatusOK, out)
}

func (h *Handler) getAggregate(w http.ResponseWriter, r *http.Request) {
	rc := reqctx.FromRequest(r)
	productID, err := pathProductID(r)
	if err != nil {
		writeProblem(w, r, h.log, rc.CorrelationID, err)
		return
	}
	opts, err := readOptions(r)
	if err != nil {
		writeProblem(w, r, h.log, rc.CorrelationID, err)
		return
	}

	agg, err := h.svc.GetAggregate(r.Context(), rc, productID, opts)
	if err != nil {
		writeProblem(w, r, h.log, rc.CorrelationID, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, agg)
}

func (h *Handler) createAggregate(w http.ResponseWriter, r *http.Request) {
	rc := reqctx.FromRequest(r)

	var body model.ProductAggregate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, r, h.log, rc.CorrelationID, errMalformedBody)
		return
	}
	if body.ProductID < 1 {
		writeProblem(w, r, h.log, rc.CorrelationID, fault.InvalidID(body.ProductID))
		return
	}
	if err := validate.Struct(body); err != nil {
		writeProblem(w, r, h.log, rc.CorrelationID, fault.New(fault.InvalidInput, "", "%s", err.Error()))
		return
	}

	if err := h.svc.CreateAggregate(r.Context(), rc, body); err != nil {
		writeProblem(w, r, h.log, rc.CorrelationID, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) deleteAggregate(w http.ResponseWriter, r *http.Request) {
	rc := reqctx.FromRequest(r)
	productID, err := pathProductID(r)
	if err != nil {
		writeProblem(w, r, h.log, rc.CorrelationID, err)
		return
	}
	if err := h.svc.DeleteAggregate(r.Context(), rc, productID); err != nil {
		writeProblem(w, r, h.log, rc.CorrelationID, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func pathProductID(r *http.Request) (int, error) {
	raw := mux.Vars(r)["productId"]
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fault.New(fault.InvalidInput, "", "Invalid productId: %s", raw)
	}
	return id, nil
}

func readOptions(r *http.Request) (composite.ReadOptions, error) {
	var opts composite.ReadOptions
	q := r.URL.Query()
	for name, dst := range map[string]*int{"delay": &opts.Delay, "faultPercent": &opts.FaultPercent} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return composite.ReadOptions{}, fault.New(fault.InvalidInput, "", "Invalid %s: %s", name, raw)
		}
		*dst = v
	}
	return opts, nil
}
