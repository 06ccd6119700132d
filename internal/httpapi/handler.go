package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/memberhub/achievement-service/internal/achievement"
	"github.com/memberhub/achievement-service/internal/award"
	"github.com/memberhub/achievement-service/pkg/apierror"
	"github.com/memberhub/achievement-service/pkg/auth"
	"github.com/memberhub/achievement-service/pkg/logging"
)

const (
	serviceTimeout    = 8 * time.Second
	batchTimeout      = 30 * time.Second
	maxRuleBodyBytes  = 64 * 1024
	maxBatchBodyBytes = 256 * 1024
	maxBatchMembers   = 500
)

var errInvalidPayload = errors.New("invalid request body")

// RegisterRoutes registers achievement and award routes. Rule edits and batch checks are
// restricted to operators.
func RegisterRoutes(r chi.Router, service award.Service, operators auth.Operators, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	r.Route("/v1/achievements", func(r chi.Router) {
		r.Get("/", listRules(service, logger))
		r.Get("/me", getProgress(service, logger))
		r.Post("/me/check", checkAwards(service, logger))
		r.Get("/{id}", getRule(service, logger))
		r.With(requireOperator(operators, logger)).Put("/{id}", putRule(service, logger))
	})

	r.Route("/v1/awards", func(r chi.Router) {
		r.Get("/me", listAwards(service, logger))
		r.With(requireOperator(operators, logger)).Post("/check", checkAwardsBatch(service, logger))
	})
}

func requireOperator(operators auth.Operators, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok || user.UserID == "" {
				writeError(w, r, apierror.CodeUnauthorized, "missing user ID")
				return
			}
			if !operators.Allows(user) {
				logging.WithRequestID(r.Context(), logger).Warn("operator route denied",
					zap.String("userId", user.UserID),
					zap.String("path", r.URL.Path))
				writeError(w, r, apierror.CodeForbidden, "operator access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func listRules(service award.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		rules, err := service.ListRules(ctx)
		if err != nil {
			logRequestError(r.Context(), logger, "failed to list achievements", err, "")
			writeError(w, r, apierror.CodeInternal, "failed to list achievements")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"achievements": rules})
	}
}

func getRule(service award.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ruleID := strings.TrimSpace(chi.URLParam(r, "id"))

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		rule, err := service.GetRule(ctx, ruleID)
		if err != nil {
			handleServiceError(w, r, logger, "failed to load achievement", err, "")
			return
		}
		writeJSON(w, http.StatusOK, rule)
	}
}

func putRule(service award.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ruleID := strings.TrimSpace(chi.URLParam(r, "id"))
		if ruleID == "" {
			writeError(w, r, apierror.CodeBadRequest, "missing achievement id")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRuleBodyBytes)
		defer r.Body.Close()

		var rule achievement.Rule
		if err := decodeStrict(r.Body, &rule); err != nil {
			writeDecodeError(w, r, err)
			return
		}
		if rule.ID == "" {
			rule.ID = ruleID
		}
		if strings.TrimSpace(rule.ID) != ruleID {
			writeError(w, r, apierror.CodeBadRequest, "achievement id does not match path")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		saved, err := service.PutRule(ctx, rule)
		if err != nil {
			handleServiceError(w, r, logger, "failed to save achievement", err, "")
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func getProgress(service award.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID := memberIDFromRequest(r)
		if memberID == "" {
			writeError(w, r, apierror.CodeUnauthorized, "missing user ID")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		resp, err := service.GetProgress(ctx, memberID)
		if err != nil {
			handleServiceError(w, r, logger, "failed to load progress", err, memberID)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func checkAwards(service award.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID := memberIDFromRequest(r)
		if memberID == "" {
			writeError(w, r, apierror.CodeUnauthorized, "missing user ID")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		resp, err := service.CheckAwards(ctx, memberID)
		if err != nil {
			handleServiceError(w, r, logger, "failed to check awards", err, memberID)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listAwards(service award.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID := memberIDFromRequest(r)
		if memberID == "" {
			writeError(w, r, apierror.CodeUnauthorized, "missing user ID")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		awards, err := service.ListAwards(ctx, memberID)
		if err != nil {
			handleServiceError(w, r, logger, "failed to list awards", err, memberID)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"awards": awards})
	}
}

func checkAwardsBatch(service award.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBatchBodyBytes)
		defer r.Body.Close()

		var body struct {
			MemberIDs []string `json:"member_ids"`
		}
		if err := decodeStrict(r.Body, &body); err != nil {
			writeDecodeError(w, r, err)
			return
		}
		if len(body.MemberIDs) == 0 {
			writeError(w, r, apierror.CodeBadRequest, "member_ids must not be empty")
			return
		}
		if len(body.MemberIDs) > maxBatchMembers {
			writeError(w, r, apierror.CodeBadRequest, "too many member_ids")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), batchTimeout)
		defer cancel()

		results, err := service.CheckAwardsBatch(ctx, body.MemberIDs)
		if err != nil {
			handleServiceError(w, r, logger, "failed to check awards batch", err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}

func decodeStrict(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errInvalidPayload
	}
	return nil
}

func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, r, apierror.CodePayloadTooLarge, "payload too large")
		return
	}
	writeError(w, r, apierror.CodeBadRequest, errInvalidPayload.Error())
}

func handleServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, message string, err error, memberID string) {
	switch {
	case errors.Is(err, achievement.ErrInvalidRuleDefinition):
		writeError(w, r, apierror.CodeBadRequest, err.Error())
	case errors.Is(err, award.ErrNotFound):
		writeError(w, r, apierror.CodeNotFound, "achievement not found")
	case errors.Is(err, award.ErrMissingMemberID):
		writeError(w, r, apierror.CodeBadRequest, err.Error())
	default:
		logRequestError(r.Context(), logger, message, err, memberID)
		writeError(w, r, apierror.CodeInternal, message)
	}
}

// memberIDFromRequest prefers the authenticated subject and falls back to the internal header.
func memberIDFromRequest(r *http.Request) string {
	if user, ok := auth.UserFromContext(r.Context()); ok && user.UserID != "" {
		return user.UserID
	}
	return strings.TrimSpace(r.Header.Get(auth.HeaderUserID))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, code, message string) {
	writeJSON(w, apierror.ToStatusCode(code), apierror.ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func logRequestError(ctx context.Context, logger *zap.Logger, message string, err error, memberID string) {
	if logger == nil || err == nil {
		return
	}
	logging.WithRequestID(ctx, logger).Error(message,
		zap.String("userId", memberID),
		zap.Error(err))
}
