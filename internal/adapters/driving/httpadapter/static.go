package httpadapter

import (
	"net/http"
	"os"
)

// fileOnlyFS hides directories so the file server never renders a listing
type fileOnlyFS struct {
	root http.FileSystem
}

func (f fileOnlyFS) Open(name string) (http.File, error) {
	file, err := f.root.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}

	return file, nil
}

func (h *Handler) staticHandler() http.HandlerFunc {
	files := http.StripPrefix(h.opts.PublicPath, http.FileServer(fileOnlyFS{http.Dir(h.opts.PublicDir)}))

	return func(w http.ResponseWriter, r *http.Request) {
		// dot files such as .gitkeep are not uploads
		if hasDotSegment(r.URL.Path) {
			h.HandleUnknownRoute(w, r)
			return
		}
		files.ServeHTTP(w, r)
	}
}

func hasDotSegment(path string) bool {
	for i := 0; i < len(path)-1; i++ {
		if path[i] == '/' && path[i+1] == '.' {
			return true
		}
	}
	return false
}
