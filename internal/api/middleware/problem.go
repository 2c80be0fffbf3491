package middleware

import (
	"net/http"

	"github.com/lungbuddy/lungbuddy/internal/api/models"
)

// writeProblem writes the standard problem for status. The response package
// cannot be used here because it imports middleware.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	p := models.NewStatusProblem(status, GetRequestID(r.Context()), detail)
	p.Instance = r.URL.Path
	p.Write(w)
}
