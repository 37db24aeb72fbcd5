package server

import "net/http"

func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", a.Hello)
	mux.HandleFunc("GET /id/{user}", a.GetID)
	mux.HandleFunc("GET /name/{name}", a.GetName)
	mux.HandleFunc("POST /name/{name}", a.PostName)

	if a.Hub != nil {
		mux.HandleFunc("GET /watch/{name}", a.Watch)
	}
	if a.StaticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(a.StaticDir))))
	}

	// trusted
	if a.ServiceKey != "" {
		mux.HandleFunc("POST /admin/id/{user}", a.RequireServiceKey(a.RegisterID))
		mux.HandleFunc("PUT /admin/name/{name}", a.RequireServiceKey(a.SeedName))
	}

	return a.RequestLogger(mux)
}
