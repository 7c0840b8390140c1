package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/signin/pkg/logger"
)

const callbackPath = "/callback"

// deepLinkHandler is the part of *supabase.Manager the receiver drives.
type deepLinkHandler interface {
	HandleDeepLinks(ctx context.Context, rawURL string) error
}

// newReceiver routes the Supabase redirect back into handler. redirectURL is the
// address Supabase was told to redirect to; the query of each request is appended to it.
// Fragments never reach a server, so the receiver needs the PKCE flow type.
func newReceiver(h deepLinkHandler, redirectURL string, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Get(callbackPath, func(w http.ResponseWriter, req *http.Request) {
		link := redirectURL
		if req.URL.RawQuery != "" {
			link += "?" + req.URL.RawQuery
		}
		if err := h.HandleDeepLinks(req.Context(), link); err != nil {
			log.WarnContext(req.Context(), "redirect rejected", logger.Error(err))
			http.Error(w, fmt.Sprintf("Sign in failed: %v. Please try again from the terminal", err), http.StatusBadRequest)
			return
		}
		_, _ = fmt.Fprint(w, "Authentication successful. You can close this window and return to the terminal")
	})
	return r
}
