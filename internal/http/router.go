package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Auth         *AuthHandler
	Users        *UserHandler
	Availability *AvailabilityHandler
	TimeOff      *TimeOffHandler
	Topics       *TopicHandler
	Bookings     *BookingHandler
	Departments  *DepartmentHandler
	Batches      *BatchHandler
	Settings     *SettingsHandler
	Public       *PublicHandler

	// RequireAuth guards the provider endpoints; RequireAdmin additionally
	// guards the administrative endpoints and runs after RequireAuth.
	RequireAuth  func(http.Handler) http.Handler
	RequireAdmin func(http.Handler) http.Handler

	// Middleware wraps the whole router, first entry outermost.
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	authed := func(fn http.HandlerFunc) http.HandlerFunc {
		return wrapFunc(fn, cfg.RequireAuth)
	}
	admin := func(fn http.HandlerFunc) http.HandlerFunc {
		return wrapFunc(wrapFunc(fn, cfg.RequireAdmin), cfg.RequireAuth)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Login(w, r)
		})
		mux.HandleFunc("/api/logout", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Logout(w, r)
		})
		mux.HandleFunc("/api/me", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				authed(cfg.Auth.Me)(w, r)
			case http.MethodPut:
				if cfg.Users == nil {
					http.NotFound(w, r)
					return
				}
				authed(cfg.Users.UpdateMe)(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut)
			}
		})
	}

	if cfg.Users != nil {
		mux.HandleFunc("/api/setup", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Users.SetupStatus(w, r)
			case http.MethodPost:
				cfg.Users.Setup(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		registerCollection(mux, "/api/admin/users", collectionRoutes{
			List:   admin(cfg.Users.List),
			Create: admin(cfg.Users.Create),
			Get:    admin(cfg.Users.Get),
			Update: admin(cfg.Users.Update),
			Delete: admin(cfg.Users.Delete),
		})
	}

	if cfg.Availability != nil {
		registerCollection(mux, "/api/availability", collectionRoutes{
			List:   authed(cfg.Availability.List),
			Create: authed(cfg.Availability.Create),
			Delete: authed(cfg.Availability.Delete),
		})
	}

	if cfg.TimeOff != nil {
		registerCollection(mux, "/api/timeoff", collectionRoutes{
			List:   authed(cfg.TimeOff.List),
			Create: authed(cfg.TimeOff.Create),
			Delete: authed(cfg.TimeOff.Delete),
		})
	}

	if cfg.Topics != nil {
		registerCollection(mux, "/api/topics", collectionRoutes{
			List:   authed(cfg.Topics.List),
			Create: authed(cfg.Topics.Create),
			Update: authed(cfg.Topics.Update),
			Delete: authed(cfg.Topics.Delete),
		})
	}

	if cfg.Bookings != nil {
		mux.HandleFunc("/api/bookings", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			authed(cfg.Bookings.List)(w, r)
		})
		mux.HandleFunc("/api/bookings/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/api/bookings/")
			id, action, _ := strings.Cut(rest, "/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithPathID(r.Context(), id))

			switch action {
			case "":
				if r.Method != http.MethodDelete {
					methodNotAllowed(w, http.MethodDelete)
					return
				}
				authed(cfg.Bookings.Delete)(w, r)
			case "cancel":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				authed(cfg.Bookings.Cancel)(w, r)
			case "archive":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				authed(cfg.Bookings.Archive)(w, r)
			case "unarchive":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				authed(cfg.Bookings.Unarchive)(w, r)
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Departments != nil {
		registerCollection(mux, "/api/admin/departments", collectionRoutes{
			List:   admin(cfg.Departments.List),
			Create: admin(cfg.Departments.Create),
			Get:    admin(cfg.Departments.Get),
			Update: admin(cfg.Departments.Update),
			Delete: admin(cfg.Departments.Delete),
		})
	}

	if cfg.Batches != nil {
		registerCollection(mux, "/api/admin/batches", collectionRoutes{
			List:   admin(cfg.Batches.List),
			Create: admin(cfg.Batches.Create),
			Get:    admin(cfg.Batches.Get),
			Update: admin(cfg.Batches.Update),
			Delete: admin(cfg.Batches.Delete),
		})
	}

	if cfg.Settings != nil {
		mux.HandleFunc("/api/admin/settings", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			admin(cfg.Settings.List)(w, r)
		})
		mux.HandleFunc("/api/admin/settings/", func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimPrefix(r.URL.Path, "/api/admin/settings/")
			if key == "" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodPut {
				methodNotAllowed(w, http.MethodPut)
				return
			}
			r = r.WithContext(ContextWithPathID(r.Context(), key))
			admin(cfg.Settings.Upsert)(w, r)
		})
	}

	if cfg.Public != nil {
		mux.HandleFunc("/api/public/users", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Public.Directory(w, r)
		})
		mux.HandleFunc("/api/public/users/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/api/public/users/")
			providerID, resource, _ := strings.Cut(rest, "/")
			if providerID == "" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			switch resource {
			case "topics":
				cfg.Public.ProviderTopics(w, r, providerID)
			case "slots":
				cfg.Public.Slots(w, r, providerID)
			default:
				http.NotFound(w, r)
			}
		})
		mux.HandleFunc("/api/public/departments", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Public.Departments(w, r)
		})
		mux.HandleFunc("/api/public/settings", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Public.Settings(w, r)
		})
		mux.HandleFunc("/api/public/bookings", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Public.Book(w, r)
		})
		mux.HandleFunc("/api/public/bookings/cancel", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Public.CancelByToken(w, r)
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

// collectionRoutes bundles the handlers for a REST collection. Nil entries
// respond with 405 on the collection path and 404 on the item path.
type collectionRoutes struct {
	List   http.HandlerFunc
	Create http.HandlerFunc
	Get    http.HandlerFunc
	Update http.HandlerFunc
	Delete http.HandlerFunc
}

func registerCollection(mux *http.ServeMux, base string, routes collectionRoutes) {
	mux.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && routes.List != nil:
			routes.List(w, r)
		case r.Method == http.MethodPost && routes.Create != nil:
			routes.Create(w, r)
		default:
			methodNotAllowed(w, collectionMethods(routes.List != nil, routes.Create != nil)...)
		}
	})
	mux.HandleFunc(base+"/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, base+"/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		r = r.WithContext(ContextWithPathID(r.Context(), id))
		switch {
		case r.Method == http.MethodGet && routes.Get != nil:
			routes.Get(w, r)
		case r.Method == http.MethodPut && routes.Update != nil:
			routes.Update(w, r)
		case r.Method == http.MethodDelete && routes.Delete != nil:
			routes.Delete(w, r)
		default:
			methodNotAllowed(w, itemMethods(routes.Get != nil, routes.Update != nil, routes.Delete != nil)...)
		}
	})
}

func collectionMethods(hasList, hasCreate bool) []string {
	var methods []string
	if hasList {
		methods = append(methods, http.MethodGet)
	}
	if hasCreate {
		methods = append(methods, http.MethodPost)
	}
	return methods
}

func itemMethods(hasGet, hasUpdate, hasDelete bool) []string {
	var methods []string
	if hasGet {
		methods = append(methods, http.MethodGet)
	}
	if hasUpdate {
		methods = append(methods, http.MethodPut)
	}
	if hasDelete {
		methods = append(methods, http.MethodDelete)
	}
	return methods
}

func wrapFunc(fn http.HandlerFunc, middleware func(http.Handler) http.Handler) http.HandlerFunc {
	if middleware == nil {
		return fn
	}
	wrapped := middleware(fn)
	return wrapped.ServeHTTP
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
