package server

import (
	"github.com/gin-gonic/gin"
	profiledomain "github.com/smallbiznis/portal/internal/profile/domain"
)

type updateProfileRequest struct {
	Department string `json:"department" form:"department" validate:"max=100"`
	Position   string `json:"position" form:"position" validate:"max=100"`
}

func (s *Server) GetProfile(c *gin.Context) {
	attrs, _ := s.attributes(c)
	profile, err := s.profileSvc.Get(c.Request.Context(), attrs.Subject())
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "", profile)
}

// UpdateProfile changes department and position only.
func (s *Server) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := bindForm(c, &req); err != nil {
		s.AbortWithError(c, err)
		return
	}
	attrs, _ := s.attributes(c)
	profile, err := s.profileSvc.UpdateDetails(c.Request.Context(), profiledomain.UpdateDetailsRequest{
		UserID:     attrs.Subject(),
		Department: req.Department,
		Position:   req.Position,
	})
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "profile_updated", profile)
}
