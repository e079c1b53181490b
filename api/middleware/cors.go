package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// Local console dev plus the hosted operator consoles.
var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"https://console.api.taxi",
	"https://dev.console.api.taxi",
}

// CORS returns middleware that applies the API's allowed origin policy.
func CORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   defaultCORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Api-Key", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
