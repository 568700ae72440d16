package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/LeeRoiii/Image-Vault/internal/apperror"
	"github.com/LeeRoiii/Image-Vault/internal/gallery"
	"github.com/LeeRoiii/Image-Vault/internal/logging"
	"github.com/LeeRoiii/Image-Vault/internal/ui"
	"github.com/LeeRoiii/Image-Vault/internal/upload"
)

const (
	msgLoadFailed       = "Failed to load images. Please refresh the page."
	msgCategoriesFailed = "Failed to load categories."
	msgUploaded         = "Image uploaded successfully!"
	msgCategoryAdded    = "Category added!"
	msgCategoryFailed   = "Failed to add category."
	msgUploadBusy       = "An upload is already in progress."
)

// viewer returns the gallery state for the signed-in user of r. The caller
// saves sess.
func (s *Server) viewer(r *http.Request) (*Viewer, bool) {
	current, ok := currentSession(r.Context())
	if !ok {
		return nil, false
	}
	sess := s.session(r)
	return s.viewers.Get(viewerID(sess), current.User.ID), true
}

// Home renders the gallery. ?category= switches the filter, ?modal= opens the
// upload or category dialog and ?image= shows a single image.
func (s *Server) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	current, _ := currentSession(ctx)

	v, ok := s.viewer(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	sess := s.session(r)
	data := pageData{
		Title:     "Gallery",
		BodyClass: "home-page",
		CSRFToken: s.ensureCSRF(sess),
		Snackbar:  popSnackbar(sess),
		User:      current.User,
	}
	s.save(w, r, sess)

	query := r.URL.Query()
	snap := v.Feed.Snapshot()
	category := snap.Category
	if query.Has("category") {
		category = strings.TrimSpace(query.Get("category"))
	}
	if !snap.Loaded || category != snap.Category {
		if _, err := v.Feed.SelectCategory(ctx, category); err != nil && !errors.Is(err, gallery.ErrStaleLoad) {
			logger.Error("load gallery", "userId", v.UserID, "error", err)
			data.Snackbar = snackbarPtr(ui.Error(msgLoadFailed, ui.GalleryAutoHide))
		}
		snap = v.Feed.Snapshot()
	}
	data.Feed = snap
	data.Category = snap.Category

	categories, err := s.categories.List(ctx, v.UserID)
	if err != nil {
		logger.Error("list categories", "userId", v.UserID, "error", err)
		if data.Snackbar == nil {
			data.Snackbar = snackbarPtr(ui.Error(msgCategoriesFailed, ui.GalleryAutoHide))
		}
	}
	data.Categories = categories

	data.QuotaReached = v.quotaReached.Load()
	if !data.QuotaReached {
		reached, err := s.uploads.QuotaReached(ctx, v.UserID)
		if err != nil {
			logger.Warn("check upload quota", "userId", v.UserID, "error", err)
		}
		data.QuotaReached = reached
		v.quotaReached.Store(reached)
	}

	data.Modal = query.Get("modal")
	for _, name := range []string{"upload", "category"} {
		m, _ := v.Modal(name)
		if name == data.Modal {
			if err := m.Open(); err != nil && !errors.Is(err, ui.ErrModalBusy) {
				logger.Warn("open modal", "modal", name, "error", err)
			}
			data.ModalState = m.State().String()
			continue
		}
		// A modal that is not on screen is closed; a busy one finishes on its own.
		_ = m.Dismiss(ui.DismissCloseButton)
	}
	if data.Modal == "upload" && data.QuotaReached {
		data.Modal = ""
		_ = v.Upload.Dismiss(ui.DismissCloseButton)
	}

	if id := query.Get("image"); id != "" {
		for i := range snap.Images {
			if snap.Images[i].ID == id {
				selected := snap.Images[i]
				data.Selected = &selected
				_ = v.Image.Open()
				break
			}
		}
	}

	s.render(w, r, http.StatusOK, "home.html", data)
}

// MoreImages appends the next page to the feed and returns its cards. It
// answers 204 when nothing was added.
func (s *Server) MoreImages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, ok := s.viewer(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	s.save(w, r, s.session(r))

	added, err := v.Feed.Advance(ctx)
	if err != nil && !errors.Is(err, gallery.ErrStaleLoad) {
		logging.FromContext(ctx).Error("load next page", "userId", v.UserID, "error", err)
		http.Error(w, msgLoadFailed, http.StatusInternalServerError)
		return
	}
	if len(added) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	snap := v.Feed.Snapshot()
	s.render(w, r, http.StatusOK, "cards", cardsData{Images: added, HasMore: snap.HasMore})
}

// UploadImage handles the upload dialog submit.
func (s *Server) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	v, ok := s.viewer(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	sess := s.session(r)

	back := func(target string, snackbar ui.Snackbar) {
		flash(sess, snackbar)
		s.save(w, r, sess)
		http.Redirect(w, r, target, http.StatusSeeOther)
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			back("/?modal=upload", ui.Error(upload.TooLargeMessage(s.maxUpload), ui.GalleryAutoHide))
			return
		}
		logger.Warn("parse upload form", "error", err)
		back("/?modal=upload", ui.Error("Upload failed", ui.GalleryAutoHide))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	if !s.validateCSRF(sess, r.FormValue("csrf_token")) {
		back("/", ui.Error(msgBadForm, ui.GalleryAutoHide))
		return
	}

	modal := &v.Upload
	err := modal.Begin()
	if errors.Is(err, ui.ErrModalClosed) {
		if err = modal.Open(); err == nil {
			err = modal.Begin()
		}
	}
	if err != nil {
		logger.Info("upload refused", "userId", v.UserID, "error", err)
		back("/?modal=upload", ui.Error(msgUploadBusy, ui.GalleryAutoHide))
		return
	}

	req := upload.Request{
		UserID:      v.UserID,
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
	}
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		req.File = file
		req.FileName = header.Filename
		req.Size = header.Size
	case !errors.Is(err, http.ErrMissingFile):
		logger.Warn("read upload file", "error", err)
	}

	result, err := s.uploads.Upload(ctx, req)
	modal.Finish(err == nil)
	if err != nil {
		if errors.Is(err, apperror.ErrQuota) {
			v.quotaReached.Store(true)
			_ = modal.Dismiss(ui.DismissCloseButton)
			back("/", ui.Info(upload.QuotaMessage(), ui.GalleryAutoHide))
			return
		}
		back("/?modal=upload", ui.Error(apperror.MessageOf(err, "Upload failed"), ui.GalleryAutoHide))
		return
	}

	v.Feed.Prepend(result.Image)
	if result.QuotaReached {
		v.quotaReached.Store(true)
		back("/", ui.Success(upload.QuotaMessage(), ui.GalleryAutoHide))
		return
	}
	back("/", ui.Success(msgUploaded, ui.GalleryAutoHide))
}

// AddCategory handles the category dialog submit.
func (s *Server) AddCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, ok := s.viewer(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	sess := s.session(r)
	back := func(target string, snackbar ui.Snackbar) {
		flash(sess, snackbar)
		s.save(w, r, sess)
		http.Redirect(w, r, target, http.StatusSeeOther)
	}

	if !s.validateCSRF(sess, r.FormValue("csrf_token")) {
		back("/", ui.Error(msgBadForm, ui.GalleryAutoHide))
		return
	}

	modal := &v.Category
	if err := modal.Begin(); errors.Is(err, ui.ErrModalClosed) {
		_ = modal.Open()
		_ = modal.Begin()
	}

	category, err := s.categories.Add(ctx, v.UserID, r.FormValue("name"))
	modal.Finish(err == nil)
	if err != nil {
		logging.FromContext(ctx).Warn("add category", "userId", v.UserID, "error", err)
		back("/?modal=category", ui.Error(apperror.MessageOf(err, msgCategoryFailed), ui.GalleryAutoHide))
		return
	}
	back("/?category="+url.QueryEscape(category.Name), ui.Success(msgCategoryAdded, ui.GalleryAutoHide))
}

// CloseModal dismisses a dialog. A dialog that is submitting cannot be
// dismissed and answers 409.
func (s *Server) CloseModal(w http.ResponseWriter, r *http.Request) {
	v, ok := s.viewer(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	sess := s.session(r)
	if !s.validateCSRF(sess, r.FormValue("csrf_token")) {
		http.Error(w, "Invalid CSRF token", http.StatusBadRequest)
		return
	}

	modal, ok := v.Modal(chi.URLParam(r, "name"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := modal.Dismiss(ui.ParseDismissReason(r.FormValue("reason"))); err != nil {
		http.Error(w, "Please wait for the current action to finish.", http.StatusConflict)
		return
	}

	s.save(w, r, sess)
	target := "/"
	if category := v.Feed.Snapshot().Category; category != "" {
		target = "/?category=" + url.QueryEscape(category)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
