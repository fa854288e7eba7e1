package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/engine"
	"github.com/stemsi/cbt-backend/internal/middleware"
	"github.com/stemsi/cbt-backend/internal/response"
	"github.com/stemsi/cbt-backend/internal/service"
)

// errorMapping pairs a sentinel with the status and code sent to clients.
// Order matters: more specific sentinels wrap more general ones.
type errorMapping struct {
	target error
	status int
	code   response.ErrCode
}

var errorMappings = []errorMapping{
	// sessions
	{service.ErrSessionActive, http.StatusConflict, response.ErrSessionActive},
	{service.ErrNoActiveSession, http.StatusNotFound, response.ErrNoActiveSession},
	{service.ErrShuttingDown, http.StatusServiceUnavailable, response.ErrUnavailable},
	{engine.ErrPersistence, http.StatusServiceUnavailable, response.ErrPersistenceFailure},
	{engine.ErrPartialCatalogMiss, http.StatusConflict, response.ErrQuestionsMissing},
	{engine.ErrAlreadySubmitted, http.StatusConflict, response.ErrAlreadySubmitted},
	{engine.ErrInvalidState, http.StatusConflict, response.ErrInvalidState},
	{engine.ErrValidation, http.StatusUnprocessableEntity, response.ErrInvalidAnswerOption},
	{engine.ErrNotFound, http.StatusNotFound, response.ErrNotFound},

	// catalogs
	{service.ErrExamNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrExamNotActive, http.StatusForbidden, response.ErrExamNotActive},
	{service.ErrExamInUse, http.StatusConflict, response.ErrDependencyExists},
	{service.ErrDuplicateQuestions, http.StatusUnprocessableEntity, response.ErrValidation},
	{service.ErrQuestionNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrQuestionsMissing, http.StatusUnprocessableEntity, response.ErrQuestionsMissing},
	{service.ErrInvalidCorrectAnswer, http.StatusUnprocessableEntity, response.ErrValidation},
	{service.ErrAttemptNotFound, http.StatusNotFound, response.ErrNotFound},

	// accounts
	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
	{service.ErrUsernameTaken, http.StatusConflict, response.ErrUsernameTaken},
	{service.ErrUserNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrStudentHasAttempts, http.StatusConflict, response.ErrDependencyExists},
	{service.ErrStudentInExam, http.StatusConflict, response.ErrConflict},
}

// classify resolves err to an HTTP status and API error code.
func classify(err error) (int, response.ErrCode) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// fail writes the mapped error response. Unmapped errors are logged since
// they are never expected by clients.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", response.RequestID(c)).
			Str("path", c.FullPath()).
			Msg("Request failed")
	}
	response.Fail(c, status, code)
}

// paramUUID parses a UUID path parameter, writing INVALID_ID on failure.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// requireClaims returns the caller's claims, writing TOKEN_REQUIRED when the
// route was mounted without RequireJWT.
func requireClaims(c *gin.Context) (*service.Claims, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}
	return claims, true
}
