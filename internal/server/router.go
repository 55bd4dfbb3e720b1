package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/cadence/internal/auth"
	"github.com/MarcoPoloResearchLab/cadence/internal/challenges"
	"github.com/MarcoPoloResearchLab/cadence/internal/expenses"
	"github.com/MarcoPoloResearchLab/cadence/internal/habits"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const userIDContextKey = "cadence_user_id"

var (
	errMissingSessionValidator  = errors.New("session validator dependency required")
	errMissingTokenManager      = errors.New("token manager dependency required")
	errMissingIdentityResolver  = errors.New("identity resolver dependency required")
	errMissingHabitsService     = errors.New("habits service dependency required")
	errMissingExpensesService   = errors.New("expenses service dependency required")
	errMissingChallengesService = errors.New("challenges service dependency required")
	errInvalidAuthorization     = errors.New("authorization header missing or invalid")
)

// SessionValidator verifies the identity-gateway session cookie on inbound
// requests.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// BackendTokenManager issues and validates the short-lived bearer tokens
// used by every protected endpoint.
type BackendTokenManager interface {
	IssueBackendToken(ctx context.Context, subject string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// IdentityResolver maps gateway session claims to a canonical user id.
type IdentityResolver interface {
	ResolveCanonicalUserID(claims auth.SessionClaims) (string, error)
}

type Dependencies struct {
	SessionValidator  SessionValidator
	TokenManager      BackendTokenManager
	IdentityResolver  IdentityResolver
	HabitsService     *habits.Service
	ExpensesService   *expenses.Service
	ChallengesService *challenges.Service
	Realtime          *RealtimeDispatcher
	Clock             func() time.Time
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.IdentityResolver == nil {
		return nil, errMissingIdentityResolver
	}
	if deps.HabitsService == nil {
		return nil, errMissingHabitsService
	}
	if deps.ExpensesService == nil {
		return nil, errMissingExpensesService
	}
	if deps.ChallengesService == nil {
		return nil, errMissingChallengesService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	dispatcher := deps.Realtime
	if dispatcher == nil {
		dispatcher = NewRealtimeDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		sessions:   deps.SessionValidator,
		tokens:     deps.TokenManager,
		identities: deps.IdentityResolver,
		habits:     deps.HabitsService,
		expenses:   deps.ExpensesService,
		challenges: deps.ChallengesService,
		realtime:   dispatcher,
		clock:      clock,
		logger:     logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.POST("/auth/session", handler.handleSessionExchange)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/habits", handler.handleListHabits)
	protected.POST("/habits", handler.handleCreateHabit)
	protected.GET("/habits/:id", handler.handleGetHabit)
	protected.POST("/habits/:id/rebuild", handler.handleRebuildHabit)
	protected.PATCH("/habits/:id", handler.handleUpdateHabit)
	protected.DELETE("/habits/:id", handler.handleDeleteHabit)
	protected.POST("/habits/:id/checkins", handler.handleCheckIn)
	protected.GET("/habits/:id/checkins", handler.handleCheckInHistory)
	protected.GET("/expenses", handler.handleListExpenses)
	protected.POST("/expenses", handler.handleCreateExpense)
	protected.DELETE("/expenses/:id", handler.handleDeleteExpense)
	protected.POST("/expenses/:id/members/:memberID/settle", handler.handleSettleExpenseMember)
	protected.GET("/challenges", handler.handleListChallenges)
	protected.POST("/challenges", handler.handleCreateChallenge)
	protected.POST("/challenges/:id/join", handler.handleJoinChallenge)
	protected.PATCH("/challenges/:id/progress", handler.handleChallengeProgress)
	protected.DELETE("/challenges/:id", handler.handleDeleteChallenge)
	protected.GET("/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	sessions   SessionValidator
	tokens     BackendTokenManager
	identities IdentityResolver
	habits     *habits.Service
	expenses   *expenses.Service
	challenges *challenges.Service
	realtime   *RealtimeDispatcher
	clock      func() time.Time
	logger     *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type sessionResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// handleSessionExchange trades a valid identity-gateway cookie for a
// short-lived backend bearer token bound to the canonical user id.
func (h *httpHandler) handleSessionExchange(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		h.logger.Warn("session cookie validation failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	userID, err := h.identities.ResolveCanonicalUserID(claims)
	if err != nil {
		h.logger.Error("identity resolution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "identity_resolution_failed"})
		return
	}

	token, expiresIn, err := h.tokens.IssueBackendToken(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to issue backend token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, sessionResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

type habitPayload struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Icon            string `json:"icon"`
	TargetDays      int    `json:"target_days"`
	StreakCount     int    `json:"streak_count"`
	BestStreak      int    `json:"best_streak"`
	LastCompletedOn string `json:"last_completed_at,omitempty"`
	ProgressPercent int    `json:"progress_percent"`
	CreatedAt       int64  `json:"created_at_s"`
}

func toHabitPayload(habit habits.Habit) habitPayload {
	return habitPayload{
		ID:              habit.ID,
		Name:            habit.Name,
		Icon:            habit.Icon,
		TargetDays:      habit.TargetDays,
		StreakCount:     habit.StreakCount,
		BestStreak:      habit.BestStreak,
		LastCompletedOn: habit.LastCompletedOn,
		ProgressPercent: habit.Progress().Percent,
		CreatedAt:       habit.CreatedAt.Unix(),
	}
}

func (h *httpHandler) handleListHabits(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	listed, err := h.habits.List(c.Request.Context(), owner)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	payload := make([]habitPayload, 0, len(listed))
	for _, habit := range listed {
		payload = append(payload, toHabitPayload(habit))
	}
	c.JSON(http.StatusOK, gin.H{"habits": payload})
}

func (h *httpHandler) handleGetHabit(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	habitID, err := habits.NewHabitID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_habit_id"})
		return
	}
	habit, err := h.habits.Get(c.Request.Context(), owner, habitID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toHabitPayload(habit))
}

// handleRebuildHabit recomputes the cached streak fields from the check-in
// ledger. Exposed for repair after imports or manual row edits.
func (h *httpHandler) handleRebuildHabit(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	habitID, err := habits.NewHabitID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_habit_id"})
		return
	}
	habit, err := h.habits.Rebuild(c.Request.Context(), owner, habitID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	h.publish(owner.String(), RealtimeEventHabitChanged, habit.ID)
	c.JSON(http.StatusOK, toHabitPayload(habit))
}

type createHabitPayload struct {
	Name       string `json:"name"`
	Icon       string `json:"icon"`
	TargetDays int    `json:"target_days"`
}

func (h *httpHandler) handleCreateHabit(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	var request createHabitPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	habit, err := h.habits.Create(c.Request.Context(), owner, habits.CreateRequest{
		Name:       request.Name,
		Icon:       request.Icon,
		TargetDays: request.TargetDays,
	})
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	h.publish(owner.String(), RealtimeEventHabitChanged, habit.ID)
	c.JSON(http.StatusCreated, toHabitPayload(habit))
}

type updateHabitPayload struct {
	Name       *string `json:"name"`
	Icon       *string `json:"icon"`
	TargetDays *int    `json:"target_days"`
}

func (h *httpHandler) handleUpdateHabit(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	habitID, err := habits.NewHabitID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_habit_id"})
		return
	}
	var request updateHabitPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	habit, err := h.habits.Update(c.Request.Context(), owner, habitID, habits.Patch{
		Name:       request.Name,
		Icon:       request.Icon,
		TargetDays: request.TargetDays,
	})
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	h.publish(owner.String(), RealtimeEventHabitChanged, habit.ID)
	c.JSON(http.StatusOK, toHabitPayload(habit))
}

func (h *httpHandler) handleDeleteHabit(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	habitID, err := habits.NewHabitID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_habit_id"})
		return
	}
	if err := h.habits.Delete(c.Request.Context(), owner, habitID); err != nil {
		h.respondDomainError(c, err)
		return
	}
	h.publish(owner.String(), RealtimeEventHabitChanged, habitID.String())
	c.Status(http.StatusNoContent)
}

type checkInPayload struct {
	OccurredOn      string `json:"occurred_on"`
	TZOffsetMinutes int    `json:"tz_offset_minutes"`
}

// handleCheckIn records today's completion. The day defaults to the
// caller's local calendar day derived from their UTC offset; clients that
// compute their own day may send occurred_on explicitly.
func (h *httpHandler) handleCheckIn(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	habitID, err := habits.NewHabitID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_habit_id"})
		return
	}
	var request checkInPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	var day habits.Day
	if strings.TrimSpace(request.OccurredOn) != "" {
		day, err = habits.NewDay(request.OccurredOn)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_occurred_on"})
			return
		}
	} else {
		day = habits.DayOf(h.clock(), request.TZOffsetMinutes)
	}

	habit, err := h.habits.CheckIn(c.Request.Context(), owner, habitID, day)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	h.publish(owner.String(), RealtimeEventHabitChanged, habit.ID)
	c.JSON(http.StatusOK, toHabitPayload(habit))
}

type checkInHistoryPayload struct {
	ID         string `json:"id"`
	OccurredOn string `json:"occurred_on"`
}

func (h *httpHandler) handleCheckInHistory(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	habitID, err := habits.NewHabitID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_habit_id"})
		return
	}
	from, ok := h.parseDayQuery(c, "from")
	if !ok {
		return
	}
	to, ok := h.parseDayQuery(c, "to")
	if !ok {
		return
	}

	history, err := h.habits.History(c.Request.Context(), owner, habitID, from, to)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	payload := make([]checkInHistoryPayload, 0, len(history))
	for _, checkIn := range history {
		payload = append(payload, checkInHistoryPayload{ID: checkIn.ID, OccurredOn: checkIn.OccurredOn})
	}
	c.JSON(http.StatusOK, gin.H{"check_ins": payload})
}

type createExpensePayload struct {
	Name          string   `json:"name"`
	TotalCents    int64    `json:"total_cents"`
	MemberUserIDs []string `json:"member_user_ids"`
}

func (h *httpHandler) handleCreateExpense(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	var request createExpensePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	expense, err := h.expenses.Create(c.Request.Context(), owner.String(), expenses.CreateRequest{
		Name:          request.Name,
		TotalCents:    request.TotalCents,
		MemberUserIDs: request.MemberUserIDs,
	})
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	h.publish(owner.String(), RealtimeEventExpenseChanged, expense.ID)
	c.JSON(http.StatusCreated, expense)
}

func (h *httpHandler) handleListExpenses(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	listed, err := h.expenses.List(c.Request.Context(), owner.String())
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expenses": listed})
}

func (h *httpHandler) handleDeleteExpense(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	expenseID := c.Param("id")
	if err := h.expenses.Delete(c.Request.Context(), owner.String(), expenseID); err != nil {
		h.respondDomainError(c, err)
		return
	}
	h.publish(owner.String(), RealtimeEventExpenseChanged, expenseID)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleSettleExpenseMember(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	expense, err := h.expenses.Settle(c.Request.Context(), owner.String(), c.Param("id"), c.Param("memberID"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	h.publish(owner.String(), RealtimeEventExpenseChanged, expense.ID)
	c.JSON(http.StatusOK, expense)
}

type createChallengePayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

func (h *httpHandler) handleCreateChallenge(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	var request createChallengePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	challenge, err := h.challenges.Create(c.Request.Context(), owner.String(), challenges.CreateRequest{
		Name:        request.Name,
		Description: request.Description,
		StartDate:   request.StartDate,
		EndDate:     request.EndDate,
	})
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	h.publish(owner.String(), RealtimeEventChallengeChanged, challenge.ID)
	c.JSON(http.StatusCreated, challenge)
}

func (h *httpHandler) handleListChallenges(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	listed, err := h.challenges.List(c.Request.Context(), owner.String())
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"challenges": listed})
}

func (h *httpHandler) handleJoinChallenge(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	participant, err := h.challenges.Join(c.Request.Context(), owner.String(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	h.publish(owner.String(), RealtimeEventChallengeChanged, participant.ChallengeID)
	c.JSON(http.StatusCreated, participant)
}

type challengeProgressPayload struct {
	Progress int `json:"progress"`
}

func (h *httpHandler) handleChallengeProgress(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	var request challengeProgressPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	participant, err := h.challenges.UpdateProgress(c.Request.Context(), owner.String(), c.Param("id"), request.Progress)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	h.publish(owner.String(), RealtimeEventChallengeChanged, participant.ChallengeID)
	c.JSON(http.StatusOK, participant)
}

func (h *httpHandler) handleDeleteChallenge(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	challengeID := c.Param("id")
	if err := h.challenges.Delete(c.Request.Context(), owner.String(), challengeID); err != nil {
		h.respondDomainError(c, err)
		return
	}
	h.publish(owner.String(), RealtimeEventChallengeChanged, challengeID)
	c.Status(http.StatusNoContent)
}

type realtimeEventData struct {
	EntityIDs []string `json:"entityIds"`
	Source    string   `json:"source"`
	Timestamp int64    `json:"timestamp_s"`
}

// handleEvents serves per-user change notifications over SSE. The stream
// carries habit/expense/challenge change events plus periodic heartbeats so
// intermediaries do not reap idle connections.
func (h *httpHandler) handleEvents(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming_unsupported"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream, cancel := h.realtime.Subscribe(c.Request.Context(), userID)
	defer cancel()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			writeSSEEvent(c, realtimeEventHeartbeat, realtimeEventData{
				Source:    realtimeSourceBackend,
				Timestamp: h.clock().Unix(),
			})
			flusher.Flush()
		case message, open := <-stream:
			if !open {
				return
			}
			writeSSEEvent(c, message.EventType, realtimeEventData{
				EntityIDs: message.EntityIDs,
				Source:    realtimeSourceBackend,
				Timestamp: message.Timestamp.Unix(),
			})
			flusher.Flush()
		}
	}
}

func writeSSEEvent(c *gin.Context, eventType string, data realtimeEventData) {
	c.SSEvent(eventType, data)
	c.Writer.Write([]byte("\n"))
}

func (h *httpHandler) publish(userID, eventType string, entityIDs ...string) {
	h.realtime.Publish(RealtimeMessage{
		UserID:    userID,
		EventType: eventType,
		EntityIDs: entityIDs,
		Timestamp: h.clock().UTC(),
	})
}

// authorizeRequest validates the bearer token and stores the canonical user
// id on the request context. SSE clients cannot set headers, so the token
// may also arrive as an access_token query parameter.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := ""
	header := c.GetHeader("Authorization")
	switch {
	case strings.HasPrefix(header, "Bearer "):
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	default:
		token = strings.TrimSpace(c.Query("access_token"))
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		// Expired tokens are routine; clients refresh through /auth/session.
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

func (h *httpHandler) requireOwner(c *gin.Context) (habits.OwnerID, bool) {
	owner, err := habits.NewOwnerID(c.GetString(userIDContextKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return owner, true
}

func (h *httpHandler) parseDayQuery(c *gin.Context, key string) (habits.Day, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return habits.Day(""), true
	}
	day, err := habits.NewDay(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_" + key})
		return "", false
	}
	return day, true
}

// respondDomainError maps the domain error taxonomy onto HTTP statuses.
// Validation, not-found, and duplicate outcomes are caller errors; storage
// failures are the only retriable class and surface as 503.
func (h *httpHandler) respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, habits.ErrDuplicateCheckIn):
		c.JSON(http.StatusConflict, gin.H{"error": "already_checked_in"})
	case errors.Is(err, challenges.ErrAlreadyJoined):
		c.JSON(http.StatusConflict, gin.H{"error": "already_joined"})
	case errors.Is(err, habits.ErrValidation),
		errors.Is(err, expenses.ErrValidation),
		errors.Is(err, challenges.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": err.Error()})
	case errors.Is(err, habits.ErrNotFound),
		errors.Is(err, expenses.ErrNotFound),
		errors.Is(err, challenges.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, habits.ErrStorageUnavailable),
		errors.Is(err, expenses.ErrStorageUnavailable),
		errors.Is(err, challenges.ErrStorageUnavailable):
		h.logger.Error("storage unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
	default:
		h.logger.Error("unhandled domain error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
