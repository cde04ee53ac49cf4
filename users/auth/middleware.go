package auth

import (
	"net/http"

	"userAuthService/database"
	"userAuthService/httputils"
	"userAuthService/users/sessions"
	"userAuthService/users/state"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "session"

// LoginRequired resolves the session cookie to a principal and stores it in
// the request context. Requests without a live session are rejected before
// the handler body runs, so handlers never see an anonymous caller.
func LoginRequired(db *database.Database, manager *sessions.Manager, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil {
			httputils.WriteMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}

		session, err := manager.Lookup(cookie.Value)
		if err != nil {
			httputils.WriteMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}

		// The account may have been deleted since login.
		user, err := state.GetUserByID(db.GetDB(), session.UserID)
		if err != nil {
			httputils.WriteMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := WithPrincipal(r.Context(), &Principal{ID: user.ID, Role: user.Role})
		ctx = WithSession(ctx, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}
