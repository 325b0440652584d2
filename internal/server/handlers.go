package server

import (
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/michaelbrown/coderun/internal/execution"
)

// writeText writes body as plain text with the given status.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// parseForm reads a url-encoded or multipart body, capped at the
// configured size.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(s.cfg.MaxBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err == nil {
		return nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("request body must not be larger than %d bytes", tooLarge.Limit)
	}
	return fmt.Errorf("invalid form body: %w", err)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	resp := s.handler.Handle(r.Context(), execution.Request{
		Code: r.PostForm.Get("code"),
	})
	writeText(w, resp.Status, resp.Body)
}
