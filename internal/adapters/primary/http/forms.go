package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

const (
	mediaField    = "media"
	maxMediaFiles = 10
)

// parseForm accepte multipart/form-data (avec fichiers) ou un formulaire urlencoded.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	err := r.ParseMultipartForm(s.opts.MaxUploadBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return badRequest("invalid form data")
	}
	return nil
}

// uploadsFrom ouvre les fichiers du champ "media". Les images et vidéos seules sont acceptées.
// L'appelant ferme les fichiers via le io.Closer renvoyé.
func uploadsFrom(r *http.Request, limit int) ([]ports.Upload, io.Closer, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[mediaField]) == 0 {
		return nil, closers(nil), nil
	}
	headers := r.MultipartForm.File[mediaField]
	if len(headers) > limit {
		return nil, nil, badRequest("at most %d media files are allowed", limit)
	}

	uploads := make([]ports.Upload, 0, len(headers))
	opened := make(closers, 0, len(headers))
	for _, fh := range headers {
		upload, f, err := openUpload(fh)
		if err != nil {
			_ = opened.Close()
			return nil, nil, err
		}
		opened = append(opened, f)
		uploads = append(uploads, upload)
	}
	return uploads, opened, nil
}

func openUpload(fh *multipart.FileHeader) (ports.Upload, multipart.File, error) {
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "video/") {
		return ports.Upload{}, nil, badRequest("%s: only images and videos are allowed", fh.Filename)
	}
	f, err := fh.Open()
	if err != nil {
		return ports.Upload{}, nil, badRequest("%s: unreadable file", fh.Filename)
	}
	return ports.Upload{
		Filename:    fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Body:        f,
	}, f, nil
}

type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for _, cl := range c {
		errs = append(errs, cl.Close())
	}
	return errors.Join(errs...)
}

// formBool lit "true"/"false" ; absent = def.
func formBool(r *http.Request, key string, def bool) (bool, error) {
	raw := r.FormValue(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest("%s must be a boolean", key)
	}
	return v, nil
}

// formList accepte des valeurs répétées ou séparées par des virgules.
func formList(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.Form[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return lo.Uniq(out)
}

func formPrivacy(r *http.Request) (domain.Privacy, error) {
	return domain.ParsePrivacy(r.FormValue("privacy"))
}

// pageFrom lit ?limit=&skip= ; les services appliquent bornes et défauts.
func pageFrom(r *http.Request) domain.Page {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	skip, _ := strconv.Atoi(q.Get("skip"))
	return domain.Page{Limit: limit, Offset: skip}
}

// singleUpload ouvre au plus un fichier du champ donné ; nil s'il est absent.
func singleUpload(r *http.Request, field string) (*ports.Upload, io.Closer, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, closers(nil), nil
	}
	headers := r.MultipartForm.File[field]
	if len(headers) > 1 {
		return nil, nil, badRequest("only one %s file is allowed", field)
	}
	upload, f, err := openUpload(headers[0])
	if err != nil {
		return nil, nil, err
	}
	return &upload, f, nil
}
