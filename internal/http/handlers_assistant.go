package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"bujo/internal/assistant"
	"bujo/internal/core"
	"bujo/internal/submit"
)

func (s *Server) handleAssistantTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeBadRequest(w, "잘못된 요청 형식입니다")
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if !json.Valid(body) {
		writeBadRequest(w, "잘못된 요청 형식입니다")
		return
	}

	result, err := s.tools.Invoke(r.Context(), name, json.RawMessage(body))
	if err != nil {
		switch {
		case errors.Is(err, assistant.ErrUnknownTool):
			writeNotFound(w, "알 수 없는 도구입니다")
		case errors.Is(err, submit.ErrNothingToSubmit):
			writeValidationError(w, "금액과 참여자를 입력해 주세요")
		case errors.Is(err, core.ErrNotFound):
			writeNotFound(w, "대상을 찾을 수 없습니다")
		case isValidationError(err):
			writeValidationError(w, err.Error())
		default:
			slog.ErrorContext(r.Context(), "Assistant tool invocation failed",
				"tool", name, "error", err)
			writeInternalError(w, "요청을 처리하지 못했습니다")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidAmount,
		core.ErrEmptyName,
		core.ErrEmptyRelation,
		core.ErrEmptyTitle,
		core.ErrInvalidEventType,
		core.ErrInvalidDate,
		core.ErrInvalidDirection,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
