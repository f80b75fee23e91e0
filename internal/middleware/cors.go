package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

var (
	corsMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
	}
	corsHeaders = []string{"Authorization", "Content-Type", RequestIDHeader}
	corsExposed = []string{"Content-Disposition", RequestIDHeader}
)

// CORS echoes allow-listed origins with credentials allowed and answers every
// other origin with a permissive, non-credentialed "*". Preflight requests
// never reach the next handler.
func CORS(allowedOrigins []string, maxAge int) func(http.Handler) http.Handler {
	credentialed := cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   corsMethods,
		AllowedHeaders:   corsHeaders,
		ExposedHeaders:   corsExposed,
		AllowCredentials: true,
		MaxAge:           maxAge,
	})
	permissive := cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: corsMethods,
		AllowedHeaders: corsHeaders,
		ExposedHeaders: corsExposed,
		MaxAge:         maxAge,
	})

	return func(next http.Handler) http.Handler {
		withCredentials := credentialed(next)
		withoutCredentials := permissive(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && containsFold(allowedOrigins, origin) {
				withCredentials.ServeHTTP(w, r)
				return
			}
			withoutCredentials.ServeHTTP(w, r)
		})
	}
}

// Preflight answers any OPTIONS request that was not a CORS preflight with
// 204 and no body.
func Preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
