package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/krau/imagenetbench/results"
)

var (
	errUnauthorized = errors.New("unauthorized")
)

// Status serves the progress of a running benchmark over HTTP.
type Status struct {
	token   string
	test    string
	model   string
	started time.Time
	res     *results.Results
	srv     *http.Server
	done    chan struct{}
}

func New(addr, token, test, model string, res *results.Results) *Status {
	s := &Status{
		token:   token,
		test:    test,
		model:   model,
		started: time.Now(),
		res:     res,
		done:    make(chan struct{}),
	}
	s.srv = &http.Server{Addr: addr, Handler: s.Handler()}
	return s
}

func (s *Status) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", s.HealthHandler)
	r.GET("/results", s.ResultsHandler)
	return r
}

func (s *Status) authenticate(c *gin.Context) error {
	if s.token == "" {
		return nil
	}
	auth := c.GetHeader("Authorization")
	providedToken := ""
	if len(auth) > 7 && auth[:7] == "Bearer " {
		providedToken = auth[7:]
	}
	if subtle.ConstantTimeCompare([]byte(providedToken), []byte(s.token)) != 1 {
		return errUnauthorized
	}
	return nil
}

func (s *Status) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Status) ResultsHandler(c *gin.Context) {
	if err := s.authenticate(c); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"test":            s.test,
		"model":           s.model,
		"elapsed_seconds": time.Since(s.started).Seconds(),
		"results":         s.res.Snapshot(),
	})
}

// Start serves in the background until Shutdown.
func (s *Status) Start() {
	slog.Info("Serving status", slog.String("address", s.srv.Addr))
	go func() {
		defer close(s.done)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Status server error", slog.String("error", err.Error()))
		}
	}()
}

// Shutdown stops the server and waits for the serving goroutine to exit.
func (s *Status) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	<-s.done
	return err
}
