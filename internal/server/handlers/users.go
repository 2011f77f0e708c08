package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/accounts/internal/models"
	"github.com/iudanet/accounts/pkg/api"
)

// ToUserView strips every secret from an account
func ToUserView(u *models.User) api.UserView {
	return api.UserView{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		IsVerified: u.IsVerified,
		Admin:      u.Admin,
		Sessions:   len(u.Tokens),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// Dump handles GET /user/dump (admin only).
// With PurgeOnDump set, every non-admin account is deleted after listing.
func (h *AuthHandler) Dump(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.users.ListUsers(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list users", slog.Any("error", err))
		h.sendError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	resp := api.DumpResponse{Users: make([]api.UserView, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, ToUserView(u))
	}

	if h.cfg.PurgeOnDump {
		for _, u := range users {
			if u.Admin {
				continue
			}
			if err := h.users.DeleteUser(ctx, u.ID); err != nil {
				h.logger.ErrorContext(ctx, "failed to purge user",
					slog.String("user_id", u.ID),
					slog.Any("error", err))
				continue
			}
			resp.Purged++
		}
		h.logger.WarnContext(ctx, "purged non-admin accounts on dump", slog.Int("count", resp.Purged))
	}

	h.sendJSON(w, resp, http.StatusOK)
}

// Home handles GET /home/index
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	h.sendJSON(w, api.HomeResponse{Msg: "Welcome " + sess.User.FirstName}, http.StatusOK)
}
