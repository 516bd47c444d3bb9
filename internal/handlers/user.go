package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/serroba/online-compiler-go/internal/activity"
	"github.com/serroba/online-compiler-go/internal/apierr"
	"github.com/serroba/online-compiler-go/internal/messaging"
	"github.com/serroba/online-compiler-go/internal/snippet"
	"github.com/serroba/online-compiler-go/internal/user"
	"go.uber.org/zap"
)

// UserHandler serves the caller's account and snippets.
type UserHandler struct {
	users    user.Repository
	snippets snippet.Repository
	cookies  Cookies
	publish  messaging.Publish[activity.SnippetChangedEvent]
	logger   *zap.Logger
	now      func() time.Time
}

// NewUserHandler creates a new user handler.
func NewUserHandler(
	users user.Repository,
	snippets snippet.Repository,
	cookies Cookies,
	publish messaging.Publish[activity.SnippetChangedEvent],
	logger *zap.Logger,
) *UserHandler {
	return &UserHandler{
		users:    users,
		snippets: snippets,
		cookies:  cookies,
		publish:  publish,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *UserHandler) currentUser(ctx context.Context) (*user.User, error) {
	subject, err := currentSubject(ctx)
	if err != nil {
		return nil, err
	}

	u, err := h.users.GetByID(ctx, subject.ID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, apierr.NotFound("User not found")
		}

		h.logger.Error("failed to load user", zap.String("userId", subject.ID), zap.Error(err))

		return nil, apierr.Internal("Failed to load user")
	}

	return u, nil
}

func (h *UserHandler) Profile(ctx context.Context, _ *struct{}) (*ProfileResponse, error) {
	u, err := h.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	resp := &ProfileResponse{}
	resp.Body.Success = true
	resp.Body.User = profileOf(u, true)

	return resp, nil
}

func (h *UserHandler) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*ProfileResponse, error) {
	u, err := h.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	if req.Body.Email != "" && user.NormalizeEmail(req.Body.Email) != u.Email {
		return nil, apierr.BadRequest("Email cannot be changed. Please create a new account.")
	}

	updated, err := h.users.MarkLogin(ctx, u.ID, h.now().UTC())
	if err != nil {
		h.logger.Error("failed to update profile", zap.String("userId", u.ID), zap.Error(err))

		return nil, apierr.Internal("Failed to update profile")
	}

	resp := &ProfileResponse{}
	resp.Body.Success = true
	resp.Body.Message = "Profile updated successfully"
	resp.Body.User = profileOf(updated, false)

	return resp, nil
}

func (h *UserHandler) Stats(ctx context.Context, _ *struct{}) (*StatsResponse, error) {
	u, err := h.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := h.snippets.Stats(ctx, u.ID)
	if err != nil {
		h.logger.Error("failed to compute stats", zap.String("userId", u.ID), zap.Error(err))

		return nil, apierr.Internal("Failed to load stats")
	}

	resp := &StatsResponse{}
	resp.Body.Success = true
	resp.Body.Stats.TotalSnippets = stats.Total
	resp.Body.Stats.MemberSince = timePtr(u.CreatedAt)
	resp.Body.Stats.LastActive = timePtr(u.LastLogin)
	resp.Body.Stats.LanguageBreakdown = stats.Languages
	resp.Body.Stats.TotalCodeSize = stats.TotalCodeSize

	if resp.Body.Stats.LanguageBreakdown == nil {
		resp.Body.Stats.LanguageBreakdown = []snippet.LanguageCount{}
	}

	return resp, nil
}

func (h *UserHandler) Activity(ctx context.Context, req *ActivityRequest) (*ActivityResponse, error) {
	u, err := h.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	page, err := h.snippets.List(ctx, snippet.Filter{UserID: u.ID, Limit: req.Limit})
	if err != nil {
		h.logger.Error("failed to list recent snippets", zap.String("userId", u.ID), zap.Error(err))

		return nil, apierr.Internal("Failed to load activity")
	}

	resp := &ActivityResponse{}
	resp.Body.Success = true
	resp.Body.Activity.AccountCreated = timePtr(u.CreatedAt)
	resp.Body.Activity.LastLogin = timePtr(u.LastLogin)
	resp.Body.Activity.RecentActivity = summariesOf(page.Items)

	return resp, nil
}

func (h *UserHandler) DeleteAccount(ctx context.Context, _ *struct{}) (*DeleteAccountResponse, error) {
	u, err := h.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	deleted, err := h.snippets.DeleteAll(ctx, u.ID)
	if err != nil {
		h.logger.Error("failed to delete snippets", zap.String("userId", u.ID), zap.Error(err))

		return nil, apierr.Internal("Failed to delete account")
	}

	if err := h.users.Delete(ctx, u.ID); err != nil && !errors.Is(err, user.ErrNotFound) {
		h.logger.Error("failed to delete user", zap.String("userId", u.ID), zap.Error(err))

		return nil, apierr.Internal("Failed to delete account")
	}

	h.logger.Info("account deleted", zap.String("userId", u.ID), zap.Int64("snippets", deleted))
	h.publishChanged(ctx, u.ID, activity.ActionDeleted, nil, int(deleted))

	resp := &DeleteAccountResponse{SetCookie: h.cookies.Cleared()}
	resp.Body.Success = true
	resp.Body.Message = "Account deleted successfully"
	resp.Body.DeletedSnippets = deleted

	return resp, nil
}

func (h *UserHandler) publishChanged(ctx context.Context, userID, action string, ids []string, count int) {
	event := &activity.SnippetChangedEvent{
		UserID:     userID,
		Action:     action,
		SnippetIDs: ids,
		Count:      count,
		ClientIP:   RequestMetaFromContext(ctx).ClientIP,
		ChangedAt:  h.now().UTC(),
	}

	if err := h.publish(ctx, event); err != nil {
		h.logger.Error("failed to publish snippet event",
			zap.String("userId", userID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
