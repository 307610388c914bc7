package http

import (
	"encoding/json"
	"net/http"

	"go-shortlink/pkg/problemdetails"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeProblem(w http.ResponseWriter, r *http.Request, problem *problemdetails.ProblemDetail) {
	problemdetails.Write(w, problem.WithInstance(r.URL.Path))
}

func internalError(w http.ResponseWriter, r *http.Request) {
	writeProblem(w, r, problemdetails.New(
		http.StatusInternalServerError,
		problemdetails.TypeInternalError,
		"Internal Server Error",
		"Internal server error",
	))
}
