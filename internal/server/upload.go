package server

import (
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
)

type uploadResponse struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
	// Size - длина текста в символах
	Size int `json:"size"`
}

// handleUpload читает текстовый файл из multipart-поля file, в UI он попадает в редактор
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > maxBodyBytes {
		s.writeError(w, fmt.Errorf("%w: limit %d bytes", errBodyTooLarge, maxBodyBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, bodyError(err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, bodyError(err))
		return
	}
	if !utf8.Valid(data) {
		s.writeError(w, fmt.Errorf("%w: %s is not UTF-8 text", errInvalidBody, header.Filename))
		return
	}

	text := string(data)
	if err := domain.ValidateArtifact(text); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Filename: header.Filename,
		Text:     text,
		Size:     utf8.RuneCountInString(text),
	})
}
