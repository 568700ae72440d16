package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/LeeRoiii/Image-Vault/internal/apperror"
	"github.com/LeeRoiii/Image-Vault/internal/gallery"
	"github.com/LeeRoiii/Image-Vault/internal/models"
	"github.com/LeeRoiii/Image-Vault/internal/upload"
)

// ImageHandler lists and uploads the caller's images.
type ImageHandler struct {
	Pages          gallery.PageLoader
	Uploads        Uploader
	MaxUploadBytes int64
}

type imagePageResponse struct {
	Page     int            `json:"page"`
	Category string         `json:"category,omitempty"`
	Images   []models.Image `json:"images"`
	HasMore  bool           `json:"hasMore"`
}

type uploadResponse struct {
	Image        models.Image `json:"image"`
	Uploads      int          `json:"uploads"`
	QuotaReached bool         `json:"quotaReached"`
}

// List handles GET /api/v1/images?page=N&category=C.
func (h ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := userFromContext(ctx)
	if !ok {
		writeError(ctx, w, apperror.Unauthorized("User not authenticated."), "")
		return
	}

	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(ctx, w, apperror.Validation("page", "page must be a non-negative integer"), "")
			return
		}
		page = n
	}
	category := strings.TrimSpace(r.URL.Query().Get("category"))

	result, err := h.Pages.LoadPage(ctx, user.ID, page, category)
	if err != nil {
		writeError(ctx, w, err, "Failed to load images.")
		return
	}

	images := result.Images
	if images == nil {
		images = []models.Image{}
	}
	respondJSON(ctx, w, http.StatusOK, imagePageResponse{
		Page:     result.Number,
		Category: result.Category,
		Images:   images,
		HasMore:  result.HasMore,
	})
}

// Create handles POST /api/v1/images as multipart/form-data with a "file"
// part and title, description and category fields.
func (h ImageHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := userFromContext(ctx)
	if !ok {
		writeError(ctx, w, apperror.Unauthorized("User not authenticated."), "")
		return
	}

	maxBytes := h.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = upload.DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(ctx, w, apperror.Validation("file", upload.TooLargeMessage(maxBytes)), "")
			return
		}
		writeError(ctx, w, apperror.Validation("", "expected a multipart form"), "")
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := upload.Request{
		UserID:      user.ID,
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
	}
	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		req.File = file
		req.FileName = header.Filename
		req.Size = header.Size
	}

	result, err := h.Uploads.Upload(ctx, req)
	if err != nil {
		writeError(ctx, w, err, "Upload failed")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, uploadResponse{
		Image:        result.Image,
		Uploads:      result.Uploads,
		QuotaReached: result.QuotaReached,
	})
}

// CategoryHandler lists and creates the caller's categories.
type CategoryHandler struct {
	Categories CategoryService
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

// List handles GET /api/v1/categories.
func (h CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := userFromContext(ctx)
	if !ok {
		writeError(ctx, w, apperror.Unauthorized("User not authenticated."), "")
		return
	}

	names, err := h.Categories.List(ctx, user.ID)
	if err != nil {
		writeError(ctx, w, err, "Failed to load categories.")
		return
	}
	if names == nil {
		names = []string{}
	}
	respondJSON(ctx, w, http.StatusOK, map[string][]string{"categories": names})
}

// Create handles POST /api/v1/categories.
func (h CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := userFromContext(ctx)
	if !ok {
		writeError(ctx, w, apperror.Unauthorized("User not authenticated."), "")
		return
	}

	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err, "invalid request body")
		return
	}

	category, err := h.Categories.Add(ctx, user.ID, req.Name)
	if err != nil {
		writeError(ctx, w, err, "Failed to add category.")
		return
	}
	respondJSON(ctx, w, http.StatusCreated, category)
}
