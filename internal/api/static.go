package api

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/dgnsrekt/lunashim/internal/controller"
	"github.com/dgnsrekt/lunashim/internal/resources"
)

// appFileHandler serves files of installed apps. Framework paths the page
// requests relative to the app resolve through the framework map.
func appFileHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rest := "/" + chi.URLParam(r, "*")
		if rest == "/" {
			if meta, err := svc.GetPackage(id); err == nil {
				rest = "/" + meta.App.EntryPoint()
			}
		}
		file, err := svc.AppFile(id, rest)
		if err != nil {
			writeFileErr(w, err)
			return
		}
		serveFile(w, r, file)
	}
}

func frameworkFileHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, err := svc.FrameworkFile(r.URL.Path)
		if err != nil {
			writeFileErr(w, err)
			return
		}
		serveFile(w, r, file)
	}
}

func writeFileErr(w http.ResponseWriter, err error) {
	var coded *controller.CodedError
	if errors.As(err, &coded) && coded.Code == controller.CodeValidation {
		http.Error(w, coded.Message, http.StatusBadRequest)
		return
	}
	http.NotFound(w, nil)
}

func serveFile(w http.ResponseWriter, r *http.Request, file string) {
	f, err := os.Open(file)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", resources.ContentType(file))
	http.ServeContent(w, r, path.Base(file), info.ModTime(), f)
	slog.Debug("app file served", "path", r.URL.Path, "file", file)
}
