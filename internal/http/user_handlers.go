package http

import (
	"bufio"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"identity-service/internal/domain"
	"identity-service/internal/service"
)

const avatarField = "avatar"

type updateProfileRequest struct {
	AvatarURL  *string `json:"avatar_url"`
	Level      *int    `json:"level"`
	Experience *int64  `json:"experience"`
	Wins       *int    `json:"wins"`
	Losses     *int    `json:"losses"`
}

type updatePreferencesRequest struct {
	Notifications *bool   `json:"notifications"`
	Language      *string `json:"language"`
	Theme         *string `json:"theme"`
}

func (h *Handler) getUser(c *gin.Context) {
	res, err := h.users.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, UserProfileResponse{
		User:        userToResponse(res.Account),
		Profile:     profileToResponse(res.Profile),
		Preferences: preferencesToResponse(res.Preferences),
	})
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("invalid request body"))
		return
	}

	profile, err := h.users.UpdateProfile(c.Request.Context(), c.Param("id"), domain.ProfileUpdate{
		AvatarURL:  req.AvatarURL,
		Level:      req.Level,
		Experience: req.Experience,
		Wins:       req.Wins,
		Losses:     req.Losses,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profileToResponse(profile))
}

func (h *Handler) updatePreferences(c *gin.Context) {
	var req updatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("invalid request body"))
		return
	}

	prefs, err := h.users.UpdatePreferences(c.Request.Context(), c.Param("id"), domain.PreferencesUpdate{
		Notifications: req.Notifications,
		Language:      req.Language,
		Theme:         req.Theme,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, preferencesToResponse(prefs))
}

// uploadAvatar stores the multipart "avatar" file. The content type is
// sniffed from the payload rather than trusted from the client.
func (h *Handler) uploadAvatar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxAvatarBytes)

	fh, err := c.FormFile(avatarField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, badRequest("avatar is too large"))
			return
		}
		h.fail(c, badRequest("multipart field \"avatar\" is required"))
		return
	}

	file, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer file.Close()

	body := bufio.NewReaderSize(file, 512)
	head, err := body.Peek(512)
	if err != nil && len(head) == 0 {
		h.fail(c, badRequest("avatar is empty"))
		return
	}

	profile, err := h.users.UploadAvatar(c.Request.Context(), c.Param("id"), service.AvatarUpload{
		ContentType: http.DetectContentType(head),
		Body:        body,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profileToResponse(profile))
}
