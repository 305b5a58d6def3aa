package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sakaguchiii/bus-notification/internal/metrics"
)

// UpdateDecoder turns a webhook request into a Telegram update.
// *tgbotapi.BotAPI implements it.
type UpdateDecoder interface {
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// routes builds the HTTP surface: health, metrics and, when webhook is
// non-nil, the Telegram webhook endpoint feeding updates into out.
func routes(log *zap.Logger, gatherer prometheus.Gatherer, webhookPath string, webhook UpdateDecoder, out chan<- tgbotapi.Update) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))

	if webhook != nil {
		r.Post(webhookPath, func(w http.ResponseWriter, req *http.Request) {
			upd, err := webhook.HandleUpdate(req)
			if err != nil {
				log.Warn("bad webhook update", zap.Error(err))
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			select {
			case out <- *upd:
				w.WriteHeader(http.StatusOK)
			case <-req.Context().Done():
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		})
	}
	return r
}
