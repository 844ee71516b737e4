package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/model"
)

// MemberHeader names the member a device is acting for.
const MemberHeader = "X-Chorely-Member"

type MemberLookup interface {
	GetByID(ctx context.Context, id int64) (*model.Member, error)
}

// IdentifyMember resolves MemberHeader into an auth.Identity. Requests
// without the header pass through anonymously; a header naming no known
// member is rejected.
func IdentifyMember(members MemberLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(MemberHeader)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				http.Error(w, "invalid member header", http.StatusBadRequest)
				return
			}

			m, err := members.GetByID(r.Context(), id)
			if err != nil {
				http.Error(w, "failed to look up member", http.StatusInternalServerError)
				return
			}
			if m == nil {
				http.Error(w, "unknown member", http.StatusUnauthorized)
				return
			}

			ctx := auth.WithIdentity(r.Context(), auth.Identity{MemberID: m.ID, Name: m.Name})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireMember rejects requests that do not name a member.
func RequireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.MemberID(r.Context()) == 0 {
			http.Error(w, "member required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
