package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	deletiondomain "github.com/smallbiznis/portal/internal/deletion/domain"
	"github.com/smallbiznis/portal/internal/locale"
	"github.com/smallbiznis/portal/internal/wizard"
)

type sessionView struct {
	Authenticated bool                         `json:"authenticated"`
	User          any                          `json:"user,omitempty"`
	Wizard        *wizard.SignupState          `json:"wizard,omitempty"`
	Gate          *deletiondomain.GateDecision `json:"gate,omitempty"`
}

func (s *Server) Home(c *gin.Context) {
	s.respond(c, "", gin.H{
		"locale":    s.lang(c),
		"default":   s.locales.Default(),
		"supported": locale.Supported,
		"common":    s.dict.Lookup(s.lang(c), "common").All(),
	})
}

func (s *Server) GetDictionary(c *gin.Context) {
	page := strings.TrimSpace(c.Param("page"))
	bundle := s.dict.Lookup(s.lang(c), page)
	s.respond(c, "", gin.H{
		"locale":  bundle.Locale,
		"page":    bundle.Page,
		"strings": bundle.All(),
	})
}

// GetSession reports the signed-in user, the next onboarding step and the
// gate for the optional ?page= query. Anonymous callers get authenticated=false.
func (s *Server) GetSession(c *gin.Context) {
	user, err := s.accessor.Current(c)
	if err != nil {
		s.respond(c, "", sessionView{})
		return
	}

	page := deletiondomain.Page(c.DefaultQuery("page", string(deletiondomain.PageDashboard)))
	gate := deletiondomain.Gate(user.Attributes, page, s.clock.Now(), s.graceDays())
	state := wizard.ResumeSignup(user.Attributes)
	s.respond(c, "", sessionView{
		Authenticated: true,
		User:          user.Attributes,
		Wizard:        &state,
		Gate:          &gate,
	})
}

// GetGate decides what the caller sees on a page. The message carries the
// localized banner for the chosen view.
func (s *Server) GetGate(c *gin.Context) {
	attrs, _ := s.attributes(c)
	page := deletiondomain.Page(strings.TrimSpace(c.Param("page")))
	decision := deletiondomain.Gate(attrs, page, s.clock.Now(), s.graceDays())

	bundle := s.dict.Lookup(s.lang(c), "deletion")
	banner := gin.H{}
	switch decision.View {
	case deletiondomain.ViewServiceSuspended:
		banner["title"] = bundle.T("service_suspended_title")
		banner["body"] = bundle.T("service_suspended_body")
	case deletiondomain.ViewDeletionPending:
		date := ""
		if decision.Status.DeletionDate != nil {
			date = decision.Status.DeletionDate.Format("2006-01-02")
		}
		banner["title"] = bundle.T("deletion_pending_title")
		banner["body"] = bundle.Format("deletion_pending_body", map[string]string{
			"days": strconv.Itoa(decision.Status.DaysRemaining),
			"date": date,
		})
		banner["action"] = bundle.T("restore")
	default:
		if decision.CanRequestDeletion {
			banner["action"] = bundle.T("request_deletion")
		}
	}

	s.respond(c, "", gin.H{"decision": decision, "banner": banner})
}
