package http

import "net/http"

// NotFoundHandler is the catch-all for paths outside the booking API. It
// answers in the same error envelope the handlers use, so clients never see
// the stdlib's plain-text 404.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(notFound)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, codeNotFound, "no route for "+r.URL.Path)
}
