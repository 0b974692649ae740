package researchserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anatolykoptev/go_research/internal/research"
)

// DefaultOrigin is the local UI dev server.
const DefaultOrigin = "http://localhost:5173"

// HTTPOptions configures the REST surface.
type HTTPOptions struct {
	AllowedOrigins []string
	Logger         *slog.Logger
}

// researchRequest is the POST /research body. Pointer fields tell an
// explicit zero from an omitted value.
type researchRequest struct {
	Question      string `json:"question"`
	MaxIterations *int   `json:"max_iterations"`
	MaxRetry      *int   `json:"max_retry"`
}

func (r researchRequest) question() research.Question {
	q := research.Question{Text: strings.TrimSpace(r.Question), MaxIterations: 1, MaxRetry: DefaultMaxRetry}
	if r.MaxIterations != nil {
		q.MaxIterations = *r.MaxIterations
	}
	if r.MaxRetry != nil {
		q.MaxRetry = *r.MaxRetry
	}
	return q
}

type errorBody struct {
	Detail string `json:"detail"`
}

// NewHTTPServer builds the REST API around runner.
func NewHTTPServer(runner Runner, opts HTTPOptions) *echo.Echo {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{DefaultOrigin}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &handler{runner: Instrument(runner), log: opts.Logger}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: opts.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAccept},
	}))

	e.POST("/research", h.research)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}

type handler struct {
	runner Runner
	log    *slog.Logger
}

func (h *handler) research(c echo.Context) error {
	var req researchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Detail: "invalid request body"})
	}
	q := req.question()
	if err := q.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Detail: err.Error()})
	}

	res, err := h.runner.Run(c.Request().Context(), q)
	if err != nil {
		if errors.Is(err, research.ErrInvalidQuestion) {
			return c.JSON(http.StatusBadRequest, errorBody{Detail: err.Error()})
		}
		h.log.Error("research request failed", slog.String("question", q.Text), slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, errorBody{Detail: err.Error()})
	}
	return c.JSON(http.StatusOK, res)
}
