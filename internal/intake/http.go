package intake

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ai-agentic-browser/exchange/internal/domain"
	"github.com/ai-agentic-browser/exchange/pkg/observability"
	"github.com/gorilla/mux"
)

// Server is the HTTP surface over an Intake, in the teacher's APIServer
// idiom: a *mux.Router, sendJSON/sendError response helpers, and a
// withLogging middleware wrapping every route.
type Server struct {
	intake *Intake
	logger *observability.Logger
	router *mux.Router
}

// NewServer builds the HTTP router. Call Handler() to get the
// http.Handler to pass to http.Server.
func NewServer(in *Intake, logger *observability.Logger) *Server {
	s := &Server{intake: in, logger: logger}
	s.router = mux.NewRouter()
	s.setupRoutes()
	return s
}

// Handler returns the wired http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(s.withLogging)
	s.router.HandleFunc("/order", s.handleSubmitOrder).Methods(http.MethodPost)
	s.router.HandleFunc("/orderbook/{symbol}", s.handleGetOrderbook).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if s.logger != nil {
			s.logger.Info(r.Context(), "http request", map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).String(),
			})
		}
	})
}

// handleSubmitOrder is POST /order. Response shape matches spec.md §6
// exactly: 200 {"success":"True","order_id":N} or 500 with no body.
func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, r, err)
		return
	}

	result, err := s.intake.Submit(r.Context(), req)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	s.sendJSON(w, http.StatusOK, SuccessResponse{Success: "True", OrderID: result.ResultID})
}

// handleGetOrderbook is GET /orderbook/{symbol}, an addition beyond the
// order-submission round trip. It round-trips an OrderbookQueryEnvelope
// through the broker to the worker, the sole holder of the live
// registry, rather than reading a second local registry that would never
// observe a fill (spec.md §5: the worker is the sole writer).
func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	symbolStr := mux.Vars(r)["symbol"]
	symbol, err := domain.ParseSymbol(symbolStr)
	if err != nil {
		http.Error(w, "unknown symbol", http.StatusNotFound)
		return
	}

	result, err := s.intake.QueryOrderbook(r.Context(), symbol)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	s.sendJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) sendError(w http.ResponseWriter, r *http.Request, err error) {
	if s.logger != nil {
		s.logger.Error(r.Context(), "order submission failed", err, map[string]interface{}{"path": r.URL.Path})
	}
	w.WriteHeader(http.StatusInternalServerError)
}
