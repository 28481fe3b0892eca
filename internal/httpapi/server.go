package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/peraclub/rewards/internal/auth"
	"github.com/peraclub/rewards/pkg/rewards"
)

const (
	sessionCookieName = "rewards_session"
	contextKeyUser    = "auth_user"
	contextKeyToken   = "auth_token"
)

// Deps carries the collaborators the HTTP facade exposes.
type Deps struct {
	Store    rewards.Store
	Accounts *rewards.Service
	Sessions *auth.Service
	Logger   *zap.Logger
}

// Run boots the HTTP facade and blocks until ctx is cancelled or the listener
// fails.
func Run(ctx context.Context, cfg Config, deps Deps) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := &httpHandler{
		logger:       logger,
		cfg:          cfg,
		store:        deps.Store,
		accounts:     deps.Accounts,
		sessions:     deps.Sessions,
		coordinators: make(map[string]*rewards.Coordinator),
	}
	router := setupRouter(cfg, handler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rewards api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := router.Group("/api/auth")
	authGroup.POST("/signup", handler.handleSignUp)
	authGroup.POST("/signin", handler.handleSignIn)
	authGroup.POST("/signout", handler.handleSignOut)

	api := router.Group("/api")
	api.Use(handler.requireSession)

	api.GET("/wallet", handler.handleWallet)
	api.GET("/transactions", handler.handleTransactions)
	api.POST("/redemptions", handler.handleSubmitRedemption)
	api.GET("/redemptions", handler.handleListRedemptions)

	return router
}

type httpHandler struct {
	logger   *zap.Logger
	cfg      Config
	store    rewards.Store
	accounts *rewards.Service
	sessions *auth.Service

	mutex        sync.Mutex
	coordinators map[string]*rewards.Coordinator
}

// coordinatorFor returns the per-user submission coordinator, creating it on
// first use. The coordinator keeps the optimistic balance between requests.
func (handler *httpHandler) coordinatorFor(userID string) (*rewards.Coordinator, error) {
	handler.mutex.Lock()
	defer handler.mutex.Unlock()
	if coordinator, ok := handler.coordinators[userID]; ok {
		return coordinator, nil
	}
	coordinator, err := rewards.NewCoordinator(handler.store, time.Now, zapOperationLogger{logger: handler.logger})
	if err != nil {
		return nil, err
	}
	handler.coordinators[userID] = coordinator
	return coordinator, nil
}

func (handler *httpHandler) requireSession(ctx *gin.Context) {
	token := bearerToken(ctx)
	if token == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.StoreTimeout)
	defer cancel()
	user, err := handler.sessions.CurrentUser(requestCtx, token)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid or expired session"))
		return
	}
	ctx.Set(contextKeyUser, user)
	ctx.Set(contextKeyToken, token)
	ctx.Next()
}

func bearerToken(ctx *gin.Context) string {
	header := ctx.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	cookie, err := ctx.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie
}

func currentUser(ctx *gin.Context) (auth.User, bool) {
	value, ok := ctx.Get(contextKeyUser)
	if !ok {
		return auth.User{}, false
	}
	user, ok := value.(auth.User)
	return user, ok
}

type signUpPayload struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
}

type signInPayload struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (handler *httpHandler) handleSignUp(ctx *gin.Context) {
	var payload signUpPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "email, password and full_name are required"))
		return
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.StoreTimeout)
	defer cancel()
	session, err := handler.sessions.SignUp(requestCtx, payload.Email, payload.Password, payload.FullName)
	if err != nil {
		handler.respondAuthError(ctx, err)
		return
	}
	handler.respondSession(ctx, session)
}

func (handler *httpHandler) handleSignIn(ctx *gin.Context) {
	var payload signInPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "email and password are required"))
		return
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.StoreTimeout)
	defer cancel()
	session, err := handler.sessions.SignIn(requestCtx, payload.Email, payload.Password)
	if err != nil {
		handler.respondAuthError(ctx, err)
		return
	}
	handler.respondSession(ctx, session)
}

func (handler *httpHandler) handleSignOut(ctx *gin.Context) {
	token := bearerToken(ctx)
	if token == "" {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	if err := handler.sessions.SignOut(token); err != nil && !errors.Is(err, auth.ErrNotAuthenticated) {
		handler.logger.Warn("sign out failed", zap.Error(err))
	}
	ctx.SetCookie(sessionCookieName, "", -1, "/", "", false, true)
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (handler *httpHandler) respondAuthError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		ctx.JSON(http.StatusConflict, errorResponse("email_taken", "email already registered"))
	case errors.Is(err, auth.ErrInvalidEmail):
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_email", "email address is not valid"))
	case errors.Is(err, auth.ErrWeakPassword):
		ctx.JSON(http.StatusBadRequest, errorResponse("weak_password", err.Error()))
	case errors.Is(err, auth.ErrInvalidCredentials):
		ctx.JSON(http.StatusUnauthorized, errorResponse("invalid_credentials", "invalid email or password"))
	default:
		handler.logger.Error("auth operation failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("auth_error", "authentication unavailable"))
	}
}

func (handler *httpHandler) respondSession(ctx *gin.Context, session auth.Session) {
	maxAge := int(time.Until(session.ExpiresAt) / time.Second)
	ctx.SetCookie(sessionCookieName, session.Token, maxAge, "/", "", false, true)
	ctx.JSON(http.StatusOK, gin.H{
		"token":      session.Token,
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
		"user": gin.H{
			"user_id":   session.User.UserID,
			"email":     session.User.Email,
			"full_name": session.User.FullName,
			"roles":     session.User.Roles,
		},
	})
}

func (handler *httpHandler) handleWallet(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	userID, err := rewards.NewUserID(user.UserID)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.StoreTimeout)
	defer cancel()
	view := handler.accounts.LoadAccount(requestCtx, userID, handler.cfg.HistoryLimit)
	if view.ProfileErr != nil && view.EntriesErr != nil {
		handler.logger.Error("wallet load failed",
			zap.String("user_id", user.UserID),
			zap.Error(view.ProfileErr),
		)
		ctx.JSON(http.StatusBadGateway, errorResponse("store_error", "wallet unavailable"))
		return
	}

	response := gin.H{
		"entries": entriesPayload(view.Entries),
		"stats":   statsPayload(rewards.ComputeStats(view.Entries, time.Now())),
	}
	if view.EntriesErr != nil {
		response["entries_error"] = "history unavailable"
	}
	if view.ProfileErr != nil {
		response["profile"] = nil
		response["profile_error"] = "profile unavailable"
	} else {
		profile := *view.Profile
		if coordinator, coordErr := handler.coordinatorFor(user.UserID); coordErr == nil {
			coordinator.AdoptAuthoritative(profile)
			balance := coordinator.Balance()
			response["balance"] = gin.H{
				"available_points": balance.Available.Int64(),
				"confidence":       string(balance.Confidence),
			}
		}
		response["profile"] = profilePayload(profile)
	}
	ctx.JSON(http.StatusOK, response)
}

func (handler *httpHandler) handleTransactions(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	userID, err := rewards.NewUserID(user.UserID)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.StoreTimeout)
	defer cancel()
	view := handler.accounts.LoadAccount(requestCtx, userID, handler.cfg.HistoryLimit)
	if view.EntriesErr != nil {
		handler.logger.Error("transactions load failed",
			zap.String("user_id", user.UserID),
			zap.Error(view.EntriesErr),
		)
		ctx.JSON(http.StatusBadGateway, errorResponse("store_error", "history unavailable"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"entries": entriesPayload(view.Entries)})
}

type redemptionPayload struct {
	AccountID   string `json:"account_id"`
	FullName    string `json:"full_name"`
	GCashNumber string `json:"gcash_number"`
	Points      string `json:"points"`
	Confirm     bool   `json:"confirm"`
}

func (handler *httpHandler) handleSubmitRedemption(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	userID, err := rewards.NewUserID(user.UserID)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var payload redemptionPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}

	coordinator, err := handler.coordinatorFor(user.UserID)
	if err != nil {
		handler.logger.Error("coordinator init failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "submission unavailable"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.StoreTimeout)
	defer cancel()

	// The tracked balance drives validation; refresh it from the store so a
	// stale session cannot pass a redemption the profile no longer covers.
	if profile, profileErr := handler.store.GetProfile(requestCtx, user.UserID); profileErr == nil {
		coordinator.AdoptAuthoritative(profile)
	}

	input := rewards.RawRedemptionInput{
		PayoutAccountID: payload.AccountID,
		PayoutName:      payload.FullName,
		PayoutNumber:    payload.GCashNumber,
		PointsToRedeem:  payload.Points,
	}

	if !payload.Confirm {
		result := rewards.ValidateRedemption(input, coordinator.Balance().Available)
		if !result.OK() {
			ctx.JSON(http.StatusBadRequest, gin.H{"field_errors": fieldErrorsPayload(result.FieldErrors())})
			return
		}
		redemption := result.Redemption()
		ctx.JSON(http.StatusOK, gin.H{
			"points":      redemption.PointsToRedeem.Int64(),
			"cash_amount": redemption.CashAmount.StringFixed(2),
		})
		return
	}

	result := coordinator.Submit(requestCtx, userID, input)
	switch result.State {
	case rewards.SubmissionSucceeded:
		balance := coordinator.Balance()
		ctx.JSON(http.StatusCreated, gin.H{
			"request_id":  result.RequestID,
			"message":     result.Message,
			"points":      result.Redemption.PointsToRedeem.Int64(),
			"cash_amount": result.Redemption.CashAmount.StringFixed(2),
			"balance": gin.H{
				"available_points": balance.Available.Int64(),
				"confidence":       string(balance.Confidence),
			},
		})
	case rewards.SubmissionFailed:
		if len(result.FieldErrors) > 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"field_errors": fieldErrorsPayload(result.FieldErrors)})
			return
		}
		handler.logger.Error("redemption submit failed",
			zap.String("user_id", user.UserID),
			zap.Error(result.Err),
		)
		ctx.JSON(http.StatusBadGateway, errorResponse("store_error", result.Message))
	default:
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "unexpected submission state"))
	}
}

func (handler *httpHandler) handleListRedemptions(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	userID, err := rewards.NewUserID(user.UserID)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.StoreTimeout)
	defer cancel()
	requests, err := handler.accounts.RedemptionHistory(requestCtx, userID)
	if err != nil {
		handler.logger.Error("redemption history failed",
			zap.String("user_id", user.UserID),
			zap.Error(err),
		)
		ctx.JSON(http.StatusBadGateway, errorResponse("store_error", "redemption history unavailable"))
		return
	}
	payload := make([]gin.H, 0, len(requests))
	for _, request := range requests {
		payload = append(payload, gin.H{
			"request_id":   request.RequestID,
			"gcash_number": request.PayoutNumber,
			"points":       request.PointsRedeemed.Int64(),
			"cash_amount":  request.CashAmount.StringFixed(2),
			"status":       request.Status.String(),
			"created_at":   request.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"redemptions": payload})
}

func profilePayload(profile rewards.AccountProfile) gin.H {
	return gin.H{
		"user_id":          profile.UserID,
		"full_name":        profile.FullName,
		"email":            profile.Email,
		"member_number":    profile.MemberNumber,
		"member_since":     profile.MemberSince.UTC().Format(time.RFC3339),
		"total_points":     profile.TotalPoints.Int64(),
		"available_points": profile.AvailablePoints.Int64(),
		"redeemed_points":  profile.RedeemedPoints.Int64(),
		"tier":             rewards.TierFor(profile).String(),
	}
}

func entriesPayload(entries []rewards.LedgerEntry) []gin.H {
	payload := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, gin.H{
			"entry_id":    entry.EntryID,
			"kind":        entry.Kind.String(),
			"amount":      entry.Amount.Int64(),
			"description": entry.Description,
			"status":      entry.Status.String(),
			"created_at":  entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return payload
}

func statsPayload(stats rewards.AccountStats) gin.H {
	return gin.H{
		"total_transactions": stats.TotalTransactions,
		"weekly_earned":      stats.WeeklyEarned.Int64(),
		"weekly_redeemed":    stats.WeeklyRedeemed.Int64(),
		"monthly_earned":     stats.MonthlyEarned.Int64(),
		"monthly_redeemed":   stats.MonthlyRedeemed.Int64(),
	}
}

func fieldErrorsPayload(fieldErrors []rewards.FieldError) []gin.H {
	payload := make([]gin.H, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		entry := gin.H{
			"field":   string(fieldError.Field),
			"code":    string(fieldError.Code),
			"message": fieldError.Message,
		}
		if fieldError.Code == rewards.CodeInsufficientBalance {
			entry["available"] = fieldError.Available.Int64()
		}
		payload = append(payload, entry)
	}
	return payload
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// zapOperationLogger adapts a zap logger to the domain operation callback.
type zapOperationLogger struct {
	logger *zap.Logger
}

func (adapter zapOperationLogger) LogOperation(_ context.Context, entry rewards.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("user_id", entry.UserID),
		zap.String("status", entry.Status),
	}
	if entry.RequestID != "" {
		fields = append(fields, zap.String("request_id", entry.RequestID))
	}
	if entry.Points > 0 {
		fields = append(fields, zap.Int64("points", entry.Points.Int64()))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
	}
	adapter.logger.Info("rewards operation", fields...)
}
