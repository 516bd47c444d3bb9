package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/serroba/online-compiler-go/internal/activity"
	"github.com/serroba/online-compiler-go/internal/apierr"
	"github.com/serroba/online-compiler-go/internal/snippet"
	"go.uber.org/zap"
)

const exportDisposition = `attachment; filename="snippets-export.json"`

func validationError(err error) error {
	var ve *snippet.ValidationError
	if errors.As(err, &ve) {
		return apierr.BadRequest(ve.Message)
	}

	return apierr.BadRequest(err.Error())
}

func (h *UserHandler) snippetError(err error, op string) error {
	if errors.Is(err, snippet.ErrNotFound) {
		return apierr.NotFound("Snippet not found")
	}

	h.logger.Error("snippet operation failed", zap.String("op", op), zap.Error(err))

	return apierr.Internal("Failed to " + op + " snippet")
}

func (h *UserHandler) CreateSnippet(ctx context.Context, req *CreateSnippetRequest) (*CreateSnippetResponse, error) {
	subject, err := currentSubject(ctx)
	if err != nil {
		return nil, err
	}

	if err := snippet.ValidateNew(req.Body.Language, req.Body.Code); err != nil {
		return nil, validationError(err)
	}

	now := h.now().UTC()
	s := &snippet.Snippet{
		ID:        uuid.NewString(),
		UserID:    subject.ID,
		Language:  snippet.NormalizeLanguage(req.Body.Language),
		Code:      req.Body.Code,
		Title:     snippet.TruncateTitle(req.Body.Title, snippet.DefaultTitle),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.snippets.Create(ctx, s); err != nil {
		return nil, h.snippetError(err, "save")
	}

	h.publishChanged(ctx, subject.ID, activity.ActionCreated, []string{s.ID}, 1)

	resp := &CreateSnippetResponse{}
	resp.Body.Success = true
	resp.Body.Message = "Snippet saved successfully"
	resp.Body.Snippet = summaryOf(s)

	return resp, nil
}

func (h *UserHandler) ListSnippets(ctx context.Context, req *ListSnippetsRequest) (*ListSnippetsResponse, error) {
	subject, err := currentSubject(ctx)
	if err != nil {
		return nil, err
	}

	language := snippet.NormalizeLanguage(req.Language)
	if language == "all" {
		language = ""
	}

	page, err := h.snippets.List(ctx, snippet.Filter{
		UserID:   subject.ID,
		Language: language,
		Offset:   (req.Page - 1) * req.Limit,
		Limit:    req.Limit,
	})
	if err != nil {
		return nil, h.snippetError(err, "list")
	}

	resp := &ListSnippetsResponse{}
	resp.Body.Success = true
	resp.Body.Snippets = summariesOf(page.Items)
	resp.Body.Pagination = paginate(page.Total, req.Page, req.Limit)

	return resp, nil
}

func (h *UserHandler) GetSnippet(ctx context.Context, req *SnippetRequest) (*SnippetResponse, error) {
	subject, err := currentSubject(ctx)
	if err != nil {
		return nil, err
	}

	s, err := h.snippets.Get(ctx, subject.ID, req.SnippetID)
	if err != nil {
		return nil, h.snippetError(err, "load")
	}

	resp := &SnippetResponse{}
	resp.Body.Success = true
	resp.Body.Snippet = viewOf(s)

	return resp, nil
}

func (h *UserHandler) UpdateSnippet(ctx context.Context, req *UpdateSnippetRequest) (*SnippetResponse, error) {
	subject, err := currentSubject(ctx)
	if err != nil {
		return nil, err
	}

	var patch snippet.Patch

	if req.Body.Code != "" {
		patch.Code = &req.Body.Code
	}

	if req.Body.Title != "" {
		patch.Title = &req.Body.Title
	}

	if req.Body.Language != "" {
		language := snippet.NormalizeLanguage(req.Body.Language)
		patch.Language = &language
	}

	if err := snippet.ValidatePatch(patch); err != nil {
		return nil, validationError(err)
	}

	s, err := h.snippets.Update(ctx, subject.ID, req.SnippetID, patch, h.now().UTC())
	if err != nil {
		return nil, h.snippetError(err, "update")
	}

	h.publishChanged(ctx, subject.ID, activity.ActionUpdated, []string{s.ID}, 1)

	resp := &SnippetResponse{}
	resp.Body.Success = true
	resp.Body.Message = "Snippet updated successfully"
	resp.Body.Snippet = viewOf(s)

	return resp, nil
}

func (h *UserHandler) DeleteSnippet(ctx context.Context, req *SnippetRequest) (*DeleteSnippetsResponse, error) {
	subject, err := currentSubject(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.snippets.Delete(ctx, subject.ID, req.SnippetID); err != nil {
		return nil, h.snippetError(err, "delete")
	}

	h.publishChanged(ctx, subject.ID, activity.ActionDeleted, []string{req.SnippetID}, 1)

	resp := &DeleteSnippetsResponse{}
	resp.Body.Success = true
	resp.Body.Message = "Snippet deleted successfully"
	resp.Body.DeletedCount = 1

	return resp, nil
}

func (h *UserHandler) DeleteSnippets(ctx context.Context, req *DeleteSnippetsRequest) (*DeleteSnippetsResponse, error) {
	subject, err := currentSubject(ctx)
	if err != nil {
		return nil, err
	}

	if len(req.Body.SnippetIDs) == 0 {
		return nil, apierr.BadRequest("Snippet IDs array is required")
	}

	deleted, err := h.snippets.DeleteMany(ctx, subject.ID, req.Body.SnippetIDs)
	if err != nil {
		return nil, h.snippetError(err, "delete")
	}

	if deleted > 0 {
		h.publishChanged(ctx, subject.ID, activity.ActionDeleted, req.Body.SnippetIDs, int(deleted))
	}

	resp := &DeleteSnippetsResponse{}
	resp.Body.Success = true
	resp.Body.Message = fmt.Sprintf("%d snippets deleted successfully", deleted)
	resp.Body.DeletedCount = deleted

	return resp, nil
}

func (h *UserHandler) SearchSnippets(ctx context.Context, req *SearchSnippetsRequest) (*SearchSnippetsResponse, error) {
	subject, err := currentSubject(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, apierr.BadRequest("Search query is required")
	}

	page, err := h.snippets.List(ctx, snippet.Filter{
		UserID: subject.ID,
		Query:  query,
		Offset: (req.Page - 1) * req.Limit,
		Limit:  req.Limit,
	})
	if err != nil {
		return nil, h.snippetError(err, "search")
	}

	resp := &SearchSnippetsResponse{}
	resp.Body.Success = true
	resp.Body.Query = query
	resp.Body.Snippets = summariesOf(page.Items)
	resp.Body.Pagination = paginate(page.Total, req.Page, req.Limit)

	return resp, nil
}

func (h *UserHandler) Export(ctx context.Context, _ *struct{}) (*ExportResponse, error) {
	subject, err := currentSubject(ctx)
	if err != nil {
		return nil, err
	}

	all, err := h.snippets.All(ctx, subject.ID)
	if err != nil {
		return nil, h.snippetError(err, "export")
	}

	views := make([]SnippetView, 0, len(all))
	for _, s := range all {
		views = append(views, viewOf(s))
	}

	resp := &ExportResponse{ContentDisposition: exportDisposition}
	resp.Body.User = subject.Email
	resp.Body.ExportDate = h.now().UTC()
	resp.Body.SnippetCount = len(views)
	resp.Body.Snippets = views

	return resp, nil
}

func (h *UserHandler) Import(ctx context.Context, req *ImportRequest) (*ImportResponse, error) {
	subject, err := currentSubject(ctx)
	if err != nil {
		return nil, err
	}

	if len(req.Body.Snippets) == 0 {
		return nil, apierr.BadRequest("Snippets array is required")
	}

	now := h.now().UTC()
	valid := make([]*snippet.Snippet, 0, len(req.Body.Snippets))

	for _, in := range req.Body.Snippets {
		if snippet.ValidateNew(in.Language, in.Code) != nil {
			continue
		}

		valid = append(valid, &snippet.Snippet{
			ID:        uuid.NewString(),
			UserID:    subject.ID,
			Language:  snippet.NormalizeLanguage(in.Language),
			Code:      in.Code,
			Title:     snippet.TruncateTitle(in.Title, snippet.ImportedTitle),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if len(valid) == 0 {
		return nil, apierr.BadRequest("No valid snippets found to import")
	}

	if err := h.snippets.CreateMany(ctx, valid); err != nil {
		return nil, h.snippetError(err, "import")
	}

	ids := make([]string, 0, len(valid))
	for _, s := range valid {
		ids = append(ids, s.ID)
	}

	h.publishChanged(ctx, subject.ID, activity.ActionImported, ids, len(valid))

	resp := &ImportResponse{}
	resp.Body.Success = true
	resp.Body.Message = fmt.Sprintf("%d snippets imported successfully", len(valid))
	resp.Body.ImportedCount = len(valid)
	resp.Body.Snippets = summariesOf(valid)

	return resp, nil
}
