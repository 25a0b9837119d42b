package guard

import (
	"context"
	"net/http"

	"github.com/MrEthical07/moodjournal/session"
)

// StateSource resolves the session state. *session.Manager satisfies it.
type StateSource interface {
	WaitResolved(ctx context.Context) (session.State, error)
}

// AdminState reports whether an admin session is active. *api.AdminAPI satisfies it.
type AdminState interface {
	IsLoggedIn() bool
}

// Decision is the outcome of a guard. Redirect is set when Allow is false.
type Decision struct {
	Allow    bool
	Redirect string
	User     *session.User
}

// Check produces a Decision for a request context. A non-nil error means no
// decision was made.
type Check func(ctx context.Context) (Decision, error)

// RequireAuth allows authenticated sessions and redirects everyone else to loginPath.
func RequireAuth(ctx context.Context, src StateSource, loginPath string) (Decision, error) {
	st, err := src.WaitResolved(ctx)
	if err != nil {
		return Decision{}, err
	}
	if st.Authenticated() {
		u := *st.User
		return Decision{Allow: true, User: &u}, nil
	}
	return Decision{Redirect: loginPath}, nil
}

// RequireGuest allows anonymous visitors and redirects logged-in users to homePath.
func RequireGuest(ctx context.Context, src StateSource, homePath string) (Decision, error) {
	st, err := src.WaitResolved(ctx)
	if err != nil {
		return Decision{}, err
	}
	if st.Authenticated() {
		return Decision{Redirect: homePath}, nil
	}
	return Decision{Allow: true}, nil
}

// RequireAdmin allows requests while an admin session is active.
func RequireAdmin(admin AdminState, loginPath string) Decision {
	if admin != nil && admin.IsLoggedIn() {
		return Decision{Allow: true}
	}
	return Decision{Redirect: loginPath}
}

// RequireAdminGuest keeps a logged-in admin away from the admin login page.
func RequireAdminGuest(admin AdminState, dashboardPath string) Decision {
	if admin != nil && admin.IsLoggedIn() {
		return Decision{Redirect: dashboardPath}
	}
	return Decision{Allow: true}
}

// Auth allows authenticated users and redirects everyone else to loginPath.
func Auth(src StateSource, loginPath string) Check {
	return func(ctx context.Context) (Decision, error) {
		return RequireAuth(ctx, src, loginPath)
	}
}

// Guest allows visitors without a session and sends authenticated users to homePath.
func Guest(src StateSource, homePath string) Check {
	return func(ctx context.Context) (Decision, error) {
		return RequireGuest(ctx, src, homePath)
	}
}

// Admin allows a logged-in admin and redirects to loginPath otherwise.
func Admin(admin AdminState, loginPath string) Check {
	return func(context.Context) (Decision, error) {
		return RequireAdmin(admin, loginPath), nil
	}
}

// AdminGuest keeps a logged-in admin off the admin login page.
func AdminGuest(admin AdminState, dashboardPath string) Check {
	return func(context.Context) (Decision, error) {
		return RequireAdminGuest(admin, dashboardPath), nil
	}
}

type userContextKey struct{}

// UserFromContext returns the user stored by Middleware for allowed requests.
func UserFromContext(ctx context.Context) (session.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(session.User)
	return u, ok
}

// Middleware applies check to every request. Denied requests get a 302 to
// the decision's Redirect; requests whose wait was abandoned get 503.
func Middleware(check Check) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if check == nil {
				http.Error(w, "guard not configured", http.StatusInternalServerError)
				return
			}

			d, err := check(r.Context())
			if err != nil {
				http.Error(w, "session unavailable", http.StatusServiceUnavailable)
				return
			}
			if !d.Allow {
				target := d.Redirect
				if target == "" {
					target = "/"
				}
				http.Redirect(w, r, target, http.StatusFound)
				return
			}

			if d.User != nil {
				r = r.WithContext(context.WithValue(r.Context(), userContextKey{}, *d.User))
			}
			next.ServeHTTP(w, r)
		})
	}
}
