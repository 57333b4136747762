package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
)

// handleServeFile streams a stored object. The path is the reference returned
// by Storage.Upload, i.e. "{bucket}/{objectName}".
func (s *Server) handleServeFile(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimPrefix(chi.URLParam(r, "*"), "/")

	objectName, ok := s.infra.Files.ObjectName(ref)
	if !ok {
		writeError(w, http.StatusNotFound, "file not found", s.logger)
		return
	}

	rc, err := s.infra.Files.Open(objectName)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "file not found", s.logger)
			return
		}
		s.logger.Warn("failed to open stored object", "object", objectName, "error", err)
		writeError(w, http.StatusBadRequest, "invalid file path", s.logger)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(objectName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", CacheOneDay)
	if hash, err := s.infra.Files.Hash(objectName); err == nil {
		w.Header().Set("ETag", `"`+hash+`"`)
		if r.Header.Get("If-None-Match") == `"`+hash+`"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Debug("file stream interrupted", "object", objectName, "error", err)
	}
}
