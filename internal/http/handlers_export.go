package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"spendwise/internal/core"
	applog "spendwise/internal/log"
)

// handleExportCSV renders into a buffer first so that a failure still gets a
// JSON error instead of a truncated file.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request, user *core.User) {
	from, to, err := parseDateRange(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.deps.Export.WriteCSV(r.Context(), &buf, user.ID, from, to); err != nil {
		s.writeError(w, r, err)
		return
	}

	name := s.deps.Export.Filename()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "CSV export interrupted",
			applog.FieldOperation, applog.OpExport,
			applog.FieldError, err.Error())
	}
}
